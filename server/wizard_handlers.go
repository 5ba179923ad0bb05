package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentk/wizard"
)

// draftView is the redacted draft sent to the host. Credentials never leave
// the server; only whether they are populated does.
type draftView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageName   string `json:"image_name,omitempty"`
	HasImage    bool   `json:"has_image"`

	SelectedSources    []string `json:"selected_sources"`
	SelectedActivities []string `json:"selected_activities"`

	Prompt        string `json:"prompt"`
	SelectedModel string `json:"selected_model"`

	PostingClients  []string `json:"posting_clients"`
	PostingInterval int      `json:"posting_interval"`
	PostingTopics   string   `json:"posting_topics"`
	PostingEnabled  bool     `json:"posting_enabled"`

	ChatClients      []string `json:"chat_clients"`
	ReplyToUsernames []string `json:"reply_to_usernames"`
	ReplyToReplies   bool     `json:"reply_to_replies"`

	QAList         []wizard.QA `json:"qa_list"`
	PostList       []string    `json:"post_list"`
	ExampleQueries string      `json:"example_queries"`
	ExamplePosts   string      `json:"example_posts"`

	SetupX      bool `json:"setup_x"`
	XConfigured bool `json:"x_configured"`
}

type wizardResp struct {
	SessionID string      `json:"session_id"`
	Step      wizard.Step `json:"step"`
	StepCount int         `json:"step_count"`
	Draft     draftView   `json:"draft"`
}

func viewOf(d *wizard.Draft) draftView {
	v := draftView{
		Name:               d.Name,
		Description:        d.Description,
		HasImage:           d.Image != nil,
		SelectedSources:    d.SelectedSources,
		SelectedActivities: d.SelectedActivities,
		Prompt:             d.Prompt,
		SelectedModel:      d.SelectedModel,
		PostingClients:     d.PostingClients,
		PostingInterval:    d.PostingInterval,
		PostingTopics:      d.PostingTopics,
		PostingEnabled:     d.PostingEnabled(),
		ChatClients:        d.ChatClients,
		ReplyToUsernames:   d.ReplyToUsernames,
		ReplyToReplies:     d.ReplyToReplies,
		QAList:             d.QAList,
		PostList:           d.PostList,
		ExampleQueries:     d.ExampleQueries,
		ExamplePosts:       d.ExamplePosts,
		SetupX:             d.SetupX,
	}
	if d.Image != nil {
		v.ImageName = d.Image.Name
	}
	c := d.TwitterCredentials
	v.XConfigured = c.Username != "" && c.Password != "" && c.Email != ""
	return v
}

func (s *Server) writeState(w http.ResponseWriter, wiz *wizard.Wizard) {
	writeJSON(w, wizardResp{
		SessionID: wiz.ID,
		Step:      wiz.Step(),
		StepCount: wizard.StepCount(),
		Draft:     viewOf(wiz.Draft()),
	})
}

func (s *Server) handleWizardCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := newSessionID()
	wiz := wizard.New(id, s.collaborators(), s.verbose, s.logger, nil)
	s.sessions.set(id, wiz)
	s.writeState(w, wiz)
}

func (s *Server) handleWizardByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/wizards/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	wiz, ok := s.sessions.get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.writeState(w, wiz)
	case "next":
		s.handleNav(w, r, wiz, true)
	case "back":
		s.handleNav(w, r, wiz, false)
	case "draft":
		s.handleDraftPatch(w, r, wiz)
	case "sources":
		s.handleToggle(w, r, wiz, wizardToggleSource)
	case "activities":
		s.handleToggle(w, r, wiz, wizardToggleActivity)
	case "posting-clients":
		s.handleToggle(w, r, wiz, wizardTogglePostingClient)
	case "chat-clients":
		s.handleToggle(w, r, wiz, wizardToggleChatClient)
	case "usernames":
		s.handleUsernames(w, r, wiz)
	case "qa":
		s.handleQA(w, r, wiz)
	case "posts":
		s.handlePosts(w, r, wiz)
	case "image":
		s.handleImage(w, r, wiz)
	case "improve-prompt":
		s.handleImprovePrompt(w, r, wiz)
	case "submit":
		s.handleSubmit(w, r, wiz)
	case "close":
		s.handleClose(w, r, wiz)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard, forward bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if forward {
		wiz.Advance()
	} else {
		wiz.Retreat()
	}
	s.writeState(w, wiz)
}

// draftPatch sets scalar draft fields; absent fields are untouched.
type draftPatch struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Prompt          *string `json:"prompt,omitempty"`
	SelectedModel   *string `json:"selected_model,omitempty"`
	PostingInterval *int    `json:"posting_interval,omitempty"`
	PostingTopics   *string `json:"posting_topics,omitempty"`
	ReplyToReplies  *bool   `json:"reply_to_replies,omitempty"`
	SetupX          *bool   `json:"setup_x,omitempty"`

	TwitterUsername    *string `json:"twitter_username,omitempty"`
	TwitterPassword    *string `json:"twitter_password,omitempty"`
	TwitterEmail       *string `json:"twitter_email,omitempty"`
	TwitterTwoFASecret *string `json:"twitter_2fa_secret,omitempty"`
}

func (s *Server) handleDraftPatch(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var patch draftPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if patch.SelectedModel != nil && !wizard.KnownModel(*patch.SelectedModel) {
		writeWizardError(w, &wizard.ValidationError{Field: "selected_model", Reason: "unknown model"})
		return
	}

	d := wiz.Draft()
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	if patch.Prompt != nil {
		d.Prompt = *patch.Prompt
	}
	if patch.SelectedModel != nil {
		d.SelectedModel = *patch.SelectedModel
	}
	if patch.PostingInterval != nil {
		d.PostingInterval = *patch.PostingInterval
	}
	if patch.PostingTopics != nil {
		d.PostingTopics = *patch.PostingTopics
	}
	if patch.ReplyToReplies != nil {
		d.ReplyToReplies = *patch.ReplyToReplies
	}
	if patch.SetupX != nil {
		d.SetupX = *patch.SetupX
	}
	if patch.TwitterUsername != nil {
		d.TwitterCredentials.Username = *patch.TwitterUsername
	}
	if patch.TwitterPassword != nil {
		d.TwitterCredentials.Password = *patch.TwitterPassword
	}
	if patch.TwitterEmail != nil {
		d.TwitterCredentials.Email = *patch.TwitterEmail
	}
	if patch.TwitterTwoFASecret != nil {
		d.TwitterCredentials.TwoFASecret = *patch.TwitterTwoFASecret
	}
	s.writeState(w, wiz)
}

type toggleKind int

const (
	wizardToggleSource toggleKind = iota
	wizardToggleActivity
	wizardTogglePostingClient
	wizardToggleChatClient
)

type tagReq struct {
	Tag string `json:"tag"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard, kind toggleKind) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req tagReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := wiz.Draft()
	switch kind {
	case wizardToggleSource:
		if !wizard.KnownSource(req.Tag) {
			writeWizardError(w, &wizard.ValidationError{Field: "source", Reason: "unknown source tag"})
			return
		}
		d.ToggleSource(req.Tag)
	case wizardToggleActivity:
		if req.Tag != "post" && req.Tag != "chat" {
			writeWizardError(w, &wizard.ValidationError{Field: "activity", Reason: "unknown activity"})
			return
		}
		d.ToggleActivity(req.Tag)
	case wizardTogglePostingClient:
		d.TogglePostingClient(req.Tag)
	case wizardToggleChatClient:
		d.ToggleChatClient(req.Tag)
	}
	s.writeState(w, wiz)
}

func (s *Server) handleUsernames(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wiz.Draft().AddUsername(req.Username)
	case http.MethodDelete:
		wiz.Draft().RemoveUsername(r.URL.Query().Get("name"))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeState(w, wiz)
}

func (s *Server) handleQA(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wiz.Draft().AddQA(req.Question, req.Answer)
	case http.MethodDelete:
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
		wiz.Draft().RemoveQA(index)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeState(w, wiz)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wiz.Draft().AddPost(req.Text)
	case http.MethodDelete:
		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		if err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
		wiz.Draft().RemovePost(index)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeState(w, wiz)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// One extra byte past the cap so oversize uploads are detected rather
	// than silently truncated.
	if err := r.ParseMultipartForm(wizard.MaxImageBytes + 1); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, wizard.MaxImageBytes+1))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := wiz.Draft().SetImage(header.Filename, data); err != nil {
		writeWizardError(w, err)
		return
	}
	s.writeState(w, wiz)
}

func (s *Server) handleImprovePrompt(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	if err := wiz.ImprovePrompt(ctx); err != nil {
		writeWizardError(w, err)
		return
	}
	s.writeState(w, wiz)
}

type submitResp struct {
	AgentID   int64       `json:"agent_id"`
	ImageURL  string      `json:"image_url,omitempty"`
	Scheduled bool        `json:"scheduled"`
	Step      wizard.Step `json:"step"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Detached from the request: an in-flight submission completes even if
	// the host disconnects or closes the wizard.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Minute)
	defer cancel()

	res, err := wiz.Submit(ctx, identityFrom(r))
	if err != nil {
		writeWizardError(w, err)
		return
	}
	writeJSON(w, submitResp{
		AgentID:   res.Agent.ID,
		ImageURL:  res.ImageURL,
		Scheduled: res.Scheduled,
		Step:      wiz.Step(),
	})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, wiz *wizard.Wizard) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	target := wiz.Close()
	s.sessions.delete(wiz.ID)
	writeJSON(w, map[string]string{"navigate_to": target})
}
