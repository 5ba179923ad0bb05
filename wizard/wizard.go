// Package wizard implements the agent-configuration flow: a draft record, a
// fixed step catalog, navigation with one conditional skip, and the
// submission pipeline that persists the finished draft.
package wizard

import (
	"context"
	"log"
	"strings"
	"sync"

	"agentk/scheduler"
	"agentk/store"
)

// AssetStore persists the agent picture and returns a public URL.
type AssetStore interface {
	UploadPublic(ctx context.Context, id store.Identity, key string, data []byte, contentType string) (string, error)
}

// AgentStore persists the agent record.
type AgentStore interface {
	InsertAgent(ctx context.Context, id store.Identity, rec store.AgentRecord) (store.AgentRow, error)
}

// Scheduler creates the automated-posting schedule.
type Scheduler interface {
	Schedule(ctx context.Context, r scheduler.Request) error
}

// PromptImprover rewrites a draft prompt via a remote model.
type PromptImprover interface {
	Improve(ctx context.Context, prompt string) (string, error)
}

// Collaborators are the external services the wizard drives. Any of them may
// be nil; the corresponding operation then fails at call time.
type Collaborators struct {
	Assets   AssetStore
	Records  AgentStore
	Sched    Scheduler
	Improver PromptImprover
}

// Wizard is one configuration session. It is not safe for concurrent use
// except for the submission guard; the host serializes access per session.
type Wizard struct {
	ID string

	draft   *Draft
	current int
	created *store.AgentRow

	mu         sync.Mutex
	submitting bool

	collab  Collaborators
	verbose bool
	logger  *log.Logger
	onClose func()
}

// New creates a session positioned at the welcome step. onClose may be nil.
func New(id string, collab Collaborators, verbose bool, logger *log.Logger, onClose func()) *Wizard {
	if logger == nil {
		logger = log.Default()
	}
	return &Wizard{
		ID:      id,
		draft:   NewDraft(),
		collab:  collab,
		verbose: verbose,
		logger:  logger,
		onClose: onClose,
	}
}

func (w *Wizard) infof(format string, args ...interface{}) {
	if !w.verbose {
		return
	}
	w.logger.Printf("[INFO] "+format, args...)
}

// Draft exposes the mutable draft.
func (w *Wizard) Draft() *Draft { return w.draft }

// CurrentStep returns the current step index.
func (w *Wizard) CurrentStep() int { return w.current }

// Step returns the current step descriptor.
func (w *Wizard) Step() Step { return steps[w.current] }

// Created returns the persisted agent row once submission has succeeded.
func (w *Wizard) Created() *store.AgentRow { return w.created }

// Advance moves forward, applying the conditional skip. At the terminal step
// it is a no-op.
func (w *Wizard) Advance() int {
	w.current = NextStep(w.current, w.draft)
	return w.current
}

// Retreat moves back exactly one step; a no-op at the welcome step.
func (w *Wizard) Retreat() int {
	w.current = PrevStep(w.current)
	return w.current
}

// ImprovePrompt rewrites the draft prompt through the remote improver. On
// any failure the prompt is left unchanged and a RemoteServiceError is
// returned; there is no retry.
func (w *Wizard) ImprovePrompt(ctx context.Context) error {
	if strings.TrimSpace(w.draft.Prompt) == "" {
		return nil
	}
	if w.collab.Improver == nil {
		return &RemoteServiceError{Service: "prompt improver", Err: errNotConfigured}
	}
	improved, err := w.collab.Improver.Improve(ctx, w.draft.Prompt)
	if err != nil {
		return &RemoteServiceError{Service: "prompt improver", Err: err}
	}
	w.draft.Prompt = improved
	return nil
}

// Close ends the session and returns the navigation target for the host: a
// chat path for the created agent, or "" when nothing was created. The
// callback runs synchronously; there is no broadcast event.
func (w *Wizard) Close() string {
	target := ""
	if w.created != nil {
		target = "/chat/" + w.draft.Name
	}
	if w.onClose != nil {
		w.onClose()
	}
	return target
}
