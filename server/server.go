// Package server exposes the wizard as HTTP sessions plus the chat, feed and
// news endpoints the host UI consumes.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"

	"agentk/assistant"
	"agentk/store"
	"agentk/wizard"
)

// chatSubstitute is surfaced when the inference service is unreachable; the
// session continues.
const chatSubstitute = "idk, chainweb's wild. the brain is unreachable right now, try again in a bit."

// defaultFeedAgent is shown when the host asks for the feed without picking
// an agent.
const defaultFeedAgent = 38

// Backend is the slice of the hosted store the server needs.
type Backend interface {
	wizard.AssetStore
	wizard.AgentStore
	ListAgents(ctx context.Context, id store.Identity) ([]store.AgentRow, error)
	AgentMessages(ctx context.Context, id store.Identity, agentID int64) ([]store.Message, error)
}

// NewsSource fetches one news blurb.
type NewsSource interface {
	Latest(ctx context.Context) (string, error)
}

// ChatSource answers one chat query.
type ChatSource interface {
	Analyze(ctx context.Context, query, systemPrompt string) (string, error)
}

// Server wires the wizard and its collaborators behind an HTTP mux. Any
// collaborator may be nil; the matching endpoints then fail per request.
type Server struct {
	backend  Backend
	chat     ChatSource
	news     NewsSource
	improver wizard.PromptImprover
	sched    wizard.Scheduler

	sessions *sessionStore
	verbose  bool
	logger   *log.Logger
}

// Options carries the collaborators for New.
type Options struct {
	Backend  Backend
	Chat     ChatSource
	News     NewsSource
	Improver wizard.PromptImprover
	Sched    wizard.Scheduler
	Verbose  bool
	Logger   *log.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		backend:  opts.Backend,
		chat:     opts.Chat,
		news:     opts.News,
		improver: opts.Improver,
		sched:    opts.Sched,
		sessions: newStore(),
		verbose:  opts.Verbose,
		logger:   logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/wizards", s.handleWizardCreate)
	mux.HandleFunc("/api/wizards/", s.handleWizardByID)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/feed", s.handleFeed)
	mux.HandleFunc("/api/news", s.handleNews)
	return s.logMiddleware(mux)
}

// --- session store ---

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*wizard.Wizard
}

func newStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*wizard.Wizard)}
}

func (s *sessionStore) set(id string, w *wizard.Wizard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = w
}

func (s *sessionStore) get(id string) (*wizard.Wizard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.sessions[id]
	return w, ok
}

func (s *sessionStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) collaborators() wizard.Collaborators {
	c := wizard.Collaborators{Improver: s.improver, Sched: s.sched}
	if s.backend != nil {
		c.Assets = s.backend
		c.Records = s.backend
	}
	return c
}

func newSessionID() string { return uuid.NewString() }

// identityFrom reads the authenticated caller from the request headers. The
// wallet/identity provider sits in front of this service; the server only
// threads the identity through.
func identityFrom(r *http.Request) store.Identity {
	id := store.Identity{UserID: r.Header.Get("X-User-ID")}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		id.AccessToken = strings.TrimPrefix(auth, "Bearer ")
	}
	return id
}

// --- chat / feed / news ---

type chatReq struct {
	Query        string `json:"query"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

type chatResp struct {
	Reply string `json:"reply"`
	OK    bool   `json:"ok"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chatReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query required", http.StatusBadRequest)
		return
	}
	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = chatPersona(req.Query)
	}
	if s.chat == nil {
		writeJSON(w, chatResp{Reply: chatSubstitute})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	reply, err := s.chat.Analyze(ctx, req.Query, systemPrompt)
	if err != nil {
		s.logger.Printf("[WARN] chat: %v", err)
		writeJSON(w, chatResp{Reply: chatSubstitute})
		return
	}
	writeJSON(w, chatResp{Reply: reply, OK: true})
}

func chatPersona(query string) string {
	return "You are Xade AI's response agent where the user query was " + query +
		" and your character prompt is " + assistant.Persona
}

type feedMessage struct {
	AgentID   int64     `json:"agent_id"`
	Content   string    `json:"content"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}

type feedResp struct {
	AgentID   int64         `json:"agent_id"`
	AgentName string        `json:"agent_name,omitempty"`
	Messages  []feedMessage `json:"messages"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.backend == nil {
		http.Error(w, "store not configured", http.StatusBadGateway)
		return
	}
	agentID := int64(defaultFeedAgent)
	if raw := r.URL.Query().Get("agent_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid agent_id", http.StatusBadRequest)
			return
		}
		agentID = parsed
	}
	id := identityFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var (
		rows []store.AgentRow
		msgs []store.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.backend.ListAgents(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		msgs, err = s.backend.AgentMessages(gctx, id, agentID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Printf("[WARN] feed: %v", err)
		http.Error(w, "feed unavailable", http.StatusBadGateway)
		return
	}

	resp := feedResp{AgentID: agentID, Messages: make([]feedMessage, 0, len(msgs))}
	for _, row := range rows {
		if row.ID == agentID {
			resp.AgentName = row.Name
			break
		}
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, feedMessage{
			AgentID:   m.AgentID,
			Content:   m.Content,
			HTML:      renderMarkdown(m.Content),
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, resp)
}

func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return md
	}
	return strings.TrimSpace(buf.String())
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.news == nil {
		http.Error(w, "news not configured", http.StatusBadGateway)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	blurb, err := s.news.Latest(ctx)
	if err != nil {
		s.logger.Printf("[WARN] news: %v", err)
		http.Error(w, "news unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"news": blurb})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeWizardError maps the wizard error kinds onto HTTP statuses.
func writeWizardError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		ve *wizard.ValidationError
		ae *wizard.AssetError
		pe *wizard.PersistenceError
		re *wizard.RemoteServiceError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, wizard.ErrSubmitInFlight):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &ae):
		status = http.StatusBadRequest
	case errors.As(err, &pe), errors.As(err, &re):
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.verbose {
			s.logger.Printf("[INFO] %s %s %s", r.Method, r.URL.Path, time.Since(start))
		}
	})
}
