package assistant

import (
	"context"
	"errors"
	"strings"
)

const newsSystemPrompt = "You are Alphachad, a degenerate and fun assistant focused on crypto. " +
	"Give one brief piece of recent crypto news or market update in a degen manner."

const newsUserPrompt = "Give me one piece of recent crypto news or market update."

// News fetches one crypto-news blurb per call from an OpenAI-compatible
// search-augmented model (Perplexity-style endpoint).
type News struct {
	llm LLMClient
}

func NewNews(llm LLMClient) (*News, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &News{llm: llm}, nil
}

// Latest returns one news blurb.
func (n *News) Latest(ctx context.Context) (string, error) {
	out, err := n.llm.Complete(ctx, newsSystemPrompt, newsUserPrompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("news model returned empty content")
	}
	return out, nil
}
