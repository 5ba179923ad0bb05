package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"agentk/assistant"
	"agentk/config"
	"agentk/scheduler"
	"agentk/server"
	"agentk/store"
	"agentk/wizard"
)

var verbose bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config/config.json", "path to config.json")
	draftPath := flag.String("draft", "", "path to a draft JSON file for one-shot agent creation")
	userID := flag.String("user", "", "user id to tag the created agent with")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Web server mode
	if *serve {
		srv := server.New(server.Options{
			Backend:  buildBackend(cfg),
			Chat:     buildChat(cfg),
			News:     buildNews(cfg),
			Improver: buildImprover(cfg),
			Sched:    buildScheduler(cfg),
			Verbose:  verbose,
			Logger:   log.Default(),
		})
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		if listen == "" {
			listen = ":8080"
		}
		log.Printf("Starting web server on %s", listen)
		if err := http.ListenAndServe(listen, srv.Routes()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *draftPath == "" {
		fmt.Fprintln(os.Stderr, "--draft is required (or use --serve)")
		os.Exit(1)
	}
	if err := createFromFile(cfg, *draftPath, *userID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// draftFile is the one-shot CLI input.
type draftFile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path,omitempty"`

	Sources    []string `json:"sources,omitempty"`
	Activities []string `json:"activities,omitempty"`

	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model,omitempty"`

	PostingClients  []string `json:"posting_clients,omitempty"`
	PostingInterval int      `json:"posting_interval,omitempty"`
	PostingTopics   string   `json:"posting_topics,omitempty"`

	ChatClients      []string `json:"chat_clients,omitempty"`
	ReplyToUsernames []string `json:"reply_to_usernames,omitempty"`
	ReplyToReplies   bool     `json:"reply_to_replies,omitempty"`

	QAList []wizard.QA `json:"qa_list,omitempty"`
	Posts  []string    `json:"posts,omitempty"`

	SetupX  bool                       `json:"setup_x,omitempty"`
	Twitter *wizard.TwitterCredentials `json:"twitter,omitempty"`
}

func createFromFile(cfg config.Config, path, userID string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var in draftFile
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}

	collab := wizard.Collaborators{
		Improver: buildImprover(cfg),
		Sched:    buildScheduler(cfg),
	}
	if backend := buildBackend(cfg); backend != nil {
		collab.Assets = backend
		collab.Records = backend
	}
	wiz := wizard.New("cli", collab, verbose, log.Default(), nil)

	d := wiz.Draft()
	d.Name = in.Name
	d.Description = in.Description
	d.Prompt = in.Prompt
	if in.Model != "" {
		if !wizard.KnownModel(in.Model) {
			return fmt.Errorf("unknown model %q", in.Model)
		}
		d.SelectedModel = in.Model
	}
	for _, tag := range in.Sources {
		if !wizard.KnownSource(tag) {
			return fmt.Errorf("unknown data source %q", tag)
		}
		d.ToggleSource(tag)
	}
	for _, tag := range in.Activities {
		d.ToggleActivity(tag)
	}
	for _, tag := range in.PostingClients {
		d.TogglePostingClient(tag)
	}
	for _, tag := range in.ChatClients {
		d.ToggleChatClient(tag)
	}
	if in.PostingInterval > 0 {
		d.PostingInterval = in.PostingInterval
	}
	d.PostingTopics = in.PostingTopics
	for _, u := range in.ReplyToUsernames {
		d.AddUsername(u)
	}
	d.ReplyToReplies = in.ReplyToReplies
	for _, qa := range in.QAList {
		d.AddQA(qa.Question, qa.Answer)
	}
	for _, p := range in.Posts {
		d.AddPost(p)
	}
	d.SetupX = in.SetupX
	if in.Twitter != nil {
		d.TwitterCredentials = *in.Twitter
	}
	if in.ImagePath != "" {
		img, err := os.ReadFile(in.ImagePath)
		if err != nil {
			return err
		}
		if err := d.SetImage(in.ImagePath, img); err != nil {
			return err
		}
	}

	ctx := context.Background()
	log.Printf("[cli] creating agent name=%q", d.Name)
	res, err := wiz.Submit(ctx, store.Identity{UserID: userID})
	if err != nil {
		return err
	}
	log.Printf("[cli] agent created id=%d scheduled=%v", res.Agent.ID, res.Scheduled)
	fmt.Println(res.Agent.ID)
	return nil
}

func buildBackend(cfg config.Config) server.Backend {
	if cfg.Supabase.URL == "" || cfg.Supabase.Key == "" {
		return nil
	}
	c, err := store.New(cfg.Supabase.URL, cfg.Supabase.Key, cfg.Supabase.Bucket, nil, verbose, log.Default())
	if err != nil {
		log.Printf("[WARN] store disabled: %v", err)
		return nil
	}
	return c
}

func buildChat(cfg config.Config) server.ChatSource {
	if cfg.Inference.URL == "" {
		return nil
	}
	c, err := assistant.NewClient(cfg.Inference.URL, nil, verbose, log.Default())
	if err != nil {
		log.Printf("[WARN] chat disabled: %v", err)
		return nil
	}
	return c
}

func buildImprover(cfg config.Config) wizard.PromptImprover {
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		log.Printf("[WARN] prompt improver disabled: %v", err)
		return nil
	}
	llm.Temperature = 0.7
	llm.MaxTokens = 1024
	imp, err := assistant.NewImprover(llm)
	if err != nil {
		return nil
	}
	return imp
}

func buildNews(cfg config.Config) server.NewsSource {
	if cfg.News != nil && cfg.News.Model == "" {
		cfg.News.Model = "sonar"
	}
	llm, err := buildLLM(cfg.News)
	if err != nil {
		log.Printf("[WARN] news disabled: %v", err)
		return nil
	}
	n, err := assistant.NewNews(llm)
	if err != nil {
		return nil
	}
	return n
}

func buildScheduler(cfg config.Config) wizard.Scheduler {
	if cfg.Scheduler.Endpoint == "" {
		return nil
	}
	c, err := scheduler.New(cfg.Scheduler.Endpoint, nil, verbose, log.Default())
	if err != nil {
		log.Printf("[WARN] scheduler disabled: %v", err)
		return nil
	}
	return c
}

func buildLLM(cfg *config.LLMConfig) (*assistant.OpenAILLM, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, fmt.Errorf("llm config missing; set llm.provider/model/api_key in config")
	}
	switch cfg.Provider {
	case "openai":
		return assistant.NewOpenAILLMFromConfig(&assistant.LLMSettings{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
		})
	case "groq", "perplexity", "deepseek":
		// OpenAI-compatible providers need an explicit base_url.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider %s requires base_url (OpenAI-compatible endpoint)", cfg.Provider)
		}
		return assistant.NewOpenAILLMFromConfig(&assistant.LLMSettings{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
