// Package assistant holds the chat-inference collaborators: the analysis
// endpoint the chat UI talks to, the prompt improver, and the news fetcher.
package assistant

import "context"

// LLMClient abstracts an OpenAI-compatible chat completion call so the
// improver and news fetcher can be mocked.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLMSettings configures a concrete LLMClient implementation.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
