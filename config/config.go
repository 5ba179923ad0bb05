package config

import (
	"encoding/json"
	"os"
)

// Config collects every collaborator endpoint and credential. All fields are
// optional at load time: a missing key degrades the corresponding call to a
// failure at call time, never at startup.
type Config struct {
	Supabase  SupabaseConfig  `json:"supabase,omitempty"`
	Inference InferenceConfig `json:"inference,omitempty"`
	LLM       *LLMConfig      `json:"llm,omitempty"`
	News      *LLMConfig      `json:"news,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`

	ServerAddr string `json:"server_addr,omitempty"`
}

// SupabaseConfig points at the hosted storage + PostgREST backend.
type SupabaseConfig struct {
	URL    string `json:"url,omitempty"`
	Key    string `json:"key,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

// InferenceConfig points at the chat analysis service.
type InferenceConfig struct {
	URL string `json:"url,omitempty"`
}

// LLMConfig configures an OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// SchedulerConfig points at the posting-schedule endpoint.
type SchedulerConfig struct {
	Endpoint string `json:"endpoint,omitempty"`
}

// Load reads JSON config from disk and overlays environment variables on top.
// The file may be absent; env-only operation is fine.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if cfg.Supabase.Bucket == "" {
		cfg.Supabase.Bucket = "images"
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Supabase.URL, "AGENTK_SUPABASE_URL")
	setIfEnv(&c.Supabase.Key, "AGENTK_SUPABASE_KEY")
	setIfEnv(&c.Supabase.Bucket, "AGENTK_SUPABASE_BUCKET")
	setIfEnv(&c.Inference.URL, "AGENTK_INFERENCE_URL")
	setIfEnv(&c.Scheduler.Endpoint, "AGENTK_SCHEDULER_ENDPOINT")
	setIfEnv(&c.ServerAddr, "AGENTK_SERVER_ADDR")

	if key := os.Getenv("AGENTK_LLM_API_KEY"); key != "" {
		if c.LLM == nil {
			c.LLM = &LLMConfig{}
		}
		c.LLM.APIKey = key
	}
	if c.LLM != nil {
		setIfEnv(&c.LLM.Model, "AGENTK_LLM_MODEL")
		setIfEnv(&c.LLM.BaseURL, "AGENTK_LLM_BASE_URL")
	}
	if key := os.Getenv("AGENTK_NEWS_API_KEY"); key != "" {
		if c.News == nil {
			c.News = &LLMConfig{}
		}
		c.News.APIKey = key
	}
	if c.News != nil {
		setIfEnv(&c.News.Model, "AGENTK_NEWS_MODEL")
		setIfEnv(&c.News.BaseURL, "AGENTK_NEWS_BASE_URL")
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
