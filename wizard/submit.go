package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"agentk/scheduler"
	"agentk/store"
)

var errNotConfigured = errors.New("collaborator not configured")

// Result is a successful submission: the created agent plus whether a
// posting schedule was acknowledged.
type Result struct {
	Agent     store.AgentRow
	ImageURL  string
	Scheduled bool
}

// Submit runs the pipeline: validate, upload the picture, insert the record,
// and conditionally create the posting schedule. It aborts at the first
// failure without rolling back earlier stages. A scheduling failure is
// logged and does not fail a submission whose record insert succeeded; the
// session still advances to the terminal step.
//
// Only one submission may be in flight per session. Closing the session does
// not cancel an in-flight submission; the caller-supplied ctx owns its
// lifetime (detach-and-complete).
func (w *Wizard) Submit(ctx context.Context, id store.Identity) (Result, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return Result{}, ErrSubmitInFlight
	}
	w.submitting = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()

	d := w.draft

	// Stage 1: preconditions, before any external call.
	if strings.TrimSpace(d.Name) == "" {
		return Result{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if d.PostingEnabled() && d.PostingInterval < 2 {
		return Result{}, &ValidationError{Field: "posting_interval", Reason: "must be at least 2 minutes"}
	}

	// Stage 2: X credentials when the X client is selected anywhere.
	var credsJSON *string
	if d.WantsX() {
		c := d.TwitterCredentials
		if !d.SetupX || c.Username == "" || c.Password == "" || c.Email == "" {
			return Result{}, &ValidationError{
				Field:  "twitter_credentials",
				Reason: "set up X credentials or remove X from the clients",
			}
		}
		raw, err := json.Marshal(TwitterCredentials{
			Username:    strings.TrimSpace(c.Username),
			Password:    c.Password,
			Email:       strings.TrimSpace(c.Email),
			TwoFASecret: strings.TrimSpace(c.TwoFASecret),
		})
		if err != nil {
			return Result{}, &ValidationError{Field: "twitter_credentials", Reason: err.Error()}
		}
		s := string(raw)
		credsJSON = &s
	}

	var res Result

	// Stage 3: picture upload.
	var imageURL *string
	if d.Image != nil {
		if w.collab.Assets == nil {
			return Result{}, &AssetError{Reason: "storage", Err: errNotConfigured}
		}
		key := imageKey(d.Image.Name, time.Now())
		url, err := w.collab.Assets.UploadPublic(ctx, id, key, d.Image.Data, imageContentType(d.Image.Name))
		if err != nil {
			return Result{}, &AssetError{Reason: "upload rejected", Err: err}
		}
		imageURL = &url
		res.ImageURL = url
	}

	// Stage 4: record insert.
	if w.collab.Records == nil {
		return Result{}, &PersistenceError{Err: errNotConfigured}
	}
	row, err := w.collab.Records.InsertAgent(ctx, id, w.record(id, imageURL, credsJSON))
	if err != nil {
		return Result{}, &PersistenceError{Err: err}
	}
	w.created = &row
	res.Agent = row
	w.infof("agent created: id=%d", row.ID)

	// Stage 5: posting schedule. Failure is logged only; the agent exists.
	if d.PostingEnabled() {
		if err := w.schedule(ctx, row.ID); err != nil {
			w.logger.Printf("[WARN] %v", &SchedulingError{Err: err})
		} else {
			res.Scheduled = true
		}
	}

	// Stage 6: terminal step, independent of stage 5.
	w.current = StepSuccess
	return res, nil
}

func (w *Wizard) record(id store.Identity, imageURL, credsJSON *string) store.AgentRecord {
	d := w.draft
	questions := make([]store.SampleQuestion, 0, len(d.QAList))
	for _, qa := range d.QAList {
		questions = append(questions, store.SampleQuestion{Question: qa.Question, Answer: qa.Answer})
	}
	return store.AgentRecord{
		Name:            d.Name,
		Description:     d.Description,
		Prompt:          d.Prompt,
		Image:           imageURL,
		UserID:          id.UserID,
		DataSources:     d.SelectedSources,
		Activities:      d.SelectedActivities,
		SampleQuestions: questions,
		SamplePosts:     d.PostList,
		PostConfiguration: store.PostConfiguration{
			Clients:  d.PostingClients,
			Interval: d.PostingInterval,
			Topics:   d.PostingTopics,
			Enabled:  d.PostingEnabled(),
		},
		ChatConfiguration: store.ChatConfiguration{
			Clients:          d.ChatClients,
			ReplyToUsernames: d.ReplyToUsernames,
			ReplyToReplies:   d.ReplyToReplies,
			Enabled:          len(d.ChatClients) > 0,
		},
		TwitterCredentials: credsJSON,
		Model:              d.SelectedModel,
	}
}

func (w *Wizard) schedule(ctx context.Context, agentID int64) error {
	if w.collab.Sched == nil {
		return errNotConfigured
	}
	d := w.draft
	return w.collab.Sched.Schedule(ctx, scheduler.Request{
		UserID:       agentID,
		Interval:     d.PostingInterval,
		Query:        scheduler.BuildQuery(d.PostingTopics, d.SelectedSources),
		SystemPrompt: scheduler.BuildSystemPrompt(d.Prompt, d.PostList),
	})
}

func imageKey(name string, now time.Time) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("agent-images/%d.%s", now.UnixMilli(), ext)
}

func imageContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
