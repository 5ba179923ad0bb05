package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const improveSystemPrompt = "You are an expert at improving AI agent prompts. " +
	"Make the prompt more specific, detailed, and effective while maintaining its original intent."

// Improver rewrites agent prompts through an LLM.
type Improver struct {
	llm LLMClient
}

// NewImprover wraps an LLMClient. The caller configures temperature and
// token limits on the client itself.
func NewImprover(llm LLMClient) (*Improver, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Improver{llm: llm}, nil
}

// Improve returns a rewritten prompt. The input is returned untouched only
// through the caller: on error the caller keeps its current prompt.
func (i *Improver) Improve(ctx context.Context, prompt string) (string, error) {
	improved, err := i.llm.Complete(ctx, improveSystemPrompt,
		fmt.Sprintf("Please improve this prompt: %s", prompt))
	if err != nil {
		return "", err
	}
	improved = strings.TrimSpace(improved)
	if improved == "" {
		return "", errors.New("improver returned empty prompt")
	}
	return improved, nil
}
