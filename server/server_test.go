package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentk/scheduler"
	"agentk/store"
	"agentk/wizard"
)

type fakeBackend struct {
	uploadErr error
	insertErr error
	agents    []store.AgentRow
	msgs      []store.Message

	lastRecord store.AgentRecord
	lastID     store.Identity
}

func (f *fakeBackend) UploadPublic(_ context.Context, id store.Identity, key string, _ []byte, _ string) (string, error) {
	f.lastID = id
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "https://cdn.example/" + key, nil
}

func (f *fakeBackend) InsertAgent(_ context.Context, id store.Identity, rec store.AgentRecord) (store.AgentRow, error) {
	f.lastID = id
	f.lastRecord = rec
	if f.insertErr != nil {
		return store.AgentRow{}, f.insertErr
	}
	return store.AgentRow{ID: 42, Name: rec.Name}, nil
}

func (f *fakeBackend) ListAgents(context.Context, store.Identity) ([]store.AgentRow, error) {
	return f.agents, nil
}

func (f *fakeBackend) AgentMessages(context.Context, store.Identity, int64) ([]store.Message, error) {
	return f.msgs, nil
}

type fakeChat struct {
	reply string
	err   error
}

func (f fakeChat) Analyze(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

type fakeNews struct {
	blurb string
	err   error
}

func (f fakeNews) Latest(context.Context) (string, error) { return f.blurb, f.err }

type fakeSched struct{ last scheduler.Request }

func (f *fakeSched) Schedule(_ context.Context, r scheduler.Request) error {
	f.last = r
	return nil
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var fields map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, fields := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/wizards", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var id string
	require.NoError(t, json.Unmarshal(fields["session_id"], &id))
	require.NotEmpty(t, id)
	return id
}

func sessionDraft(t *testing.T, fields map[string]json.RawMessage) draftView {
	t.Helper()
	var v draftView
	require.NoError(t, json.Unmarshal(fields["draft"], &v))
	return v
}

func TestWizardLifecycle(t *testing.T) {
	backend := &fakeBackend{}
	sched := &fakeSched{}
	srv := newTestServer(t, Options{Backend: backend, Sched: sched})
	id := createSession(t, srv)
	base := srv.URL + "/api/wizards/" + id

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, base+"/draft", map[string]any{
		"name":             "kda-bot",
		"posting_interval": 5,
		"posting_topics":   "kadena",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "kda-bot", sessionDraft(t, fields).Name)

	resp, _ = doJSON(t, srv.Client(), http.MethodPost, base+"/sources", map[string]string{"tag": "Market data"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv.Client(), http.MethodPost, base+"/posting-clients", map[string]string{"tag": "telegram"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, fields = doJSON(t, srv.Client(), http.MethodPost, base+"/usernames", map[string]string{"username": "@alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"alice"}, sessionDraft(t, fields).ReplyToUsernames)

	resp, fields = doJSON(t, srv.Client(), http.MethodPost, base+"/qa",
		map[string]string{"question": "gm", "answer": "gm ser"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Q: gm\nA: gm ser", sessionDraft(t, fields).ExampleQueries)

	resp, fields = doJSON(t, srv.Client(), http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var step wizard.Step
	require.NoError(t, json.Unmarshal(fields["step"], &step))
	assert.Equal(t, 1, step.Index)

	resp, fields = doJSON(t, srv.Client(), http.MethodPost, base+"/back", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["step"], &step))
	assert.Equal(t, 0, step.Index)

	resp, fields = doJSON(t, srv.Client(), http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agentID int64
	require.NoError(t, json.Unmarshal(fields["agent_id"], &agentID))
	assert.Equal(t, int64(42), agentID)

	assert.Equal(t, "user-1", backend.lastID.UserID)
	assert.Equal(t, "tok", backend.lastID.AccessToken)
	assert.Equal(t, "kda-bot", backend.lastRecord.Name)
	assert.Equal(t, int64(42), sched.last.UserID)
	assert.Contains(t, sched.last.Query, "speak about kadena")

	// The session is now on the terminal step.
	resp, fields = doJSON(t, srv.Client(), http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(fields["step"], &step))
	assert.True(t, step.HasSuccess)
}

func TestSubmitValidationIs422(t *testing.T) {
	srv := newTestServer(t, Options{Backend: &fakeBackend{}})
	id := createSession(t, srv)

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/wizards/"+id+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var msg string
	require.NoError(t, json.Unmarshal(fields["error"], &msg))
	assert.Contains(t, msg, "name")
}

func TestSubmitPersistenceFailureIs502(t *testing.T) {
	backend := &fakeBackend{insertErr: errors.New("row rejected")}
	srv := newTestServer(t, Options{Backend: backend})
	id := createSession(t, srv)
	base := srv.URL + "/api/wizards/" + id

	resp, _ := doJSON(t, srv.Client(), http.MethodPost, base+"/draft", map[string]any{"name": "a"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, srv.Client(), http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestDraftPatchRejectsUnknownModel(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createSession(t, srv)

	resp, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/wizards/"+id+"/draft",
		map[string]string{"selected_model": "gpt-99"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestToggleRejectsUnknownSource(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createSession(t, srv)

	resp, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/wizards/"+id+"/sources",
		map[string]string{"tag": "Astrology"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/wizards/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func postImage(t *testing.T, srv *httptest.Server, id string, size int) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "pic.png")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/wizards/"+id+"/image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestImageUploadAndSizeCap(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createSession(t, srv)

	resp := postImage(t, srv, id, 1024)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state wizardResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.Draft.HasImage)
	assert.Equal(t, "pic.png", state.Draft.ImageName)

	resp = postImage(t, srv, id, wizard.MaxImageBytes+1)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCredentialsNeverLeaveTheServer(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createSession(t, srv)

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/wizards/"+id+"/draft",
		map[string]string{"twitter_username": "u", "twitter_password": "hunter2", "twitter_email": "e@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, sessionDraft(t, fields).XConfigured)
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
}

func TestCloseReturnsNavigationAndDropsSession(t *testing.T) {
	srv := newTestServer(t, Options{})
	id := createSession(t, srv)
	base := srv.URL + "/api/wizards/" + id

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, base+"/close", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var target string
	require.NoError(t, json.Unmarshal(fields["navigate_to"], &target))
	assert.Equal(t, "", target)

	resp, _ = doJSON(t, srv.Client(), http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChatFallsBackToSubstitute(t *testing.T) {
	srv := newTestServer(t, Options{Chat: fakeChat{err: errors.New("inference down")}})

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/chat",
		map[string]string{"query": "what is kadena"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply string
	require.NoError(t, json.Unmarshal(fields["reply"], &reply))
	assert.Equal(t, chatSubstitute, reply)
}

func TestChatSuccess(t *testing.T) {
	srv := newTestServer(t, Options{Chat: fakeChat{reply: "chainweb hums"}})

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/chat",
		map[string]string{"query": "gm"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out chatResp
	require.NoError(t, json.Unmarshal(fields["reply"], &out.Reply))
	require.NoError(t, json.Unmarshal(fields["ok"], &out.OK))
	assert.Equal(t, "chainweb hums", out.Reply)
	assert.True(t, out.OK)
}

func TestChatRequiresQuery(t *testing.T) {
	srv := newTestServer(t, Options{Chat: fakeChat{reply: "x"}})
	resp, _ := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/chat",
		map[string]string{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeedRendersMarkdown(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	backend := &fakeBackend{
		agents: []store.AgentRow{{ID: 7, Name: "kda-bot"}},
		msgs:   []store.Message{{AgentID: 7, Content: "**gm** ser", CreatedAt: created}},
	}
	srv := newTestServer(t, Options{Backend: backend})

	resp, fields := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/feed?agent_id=7", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out feedResp
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, int64(7), out.AgentID)
	assert.Equal(t, "kda-bot", out.AgentName)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "**gm** ser", out.Messages[0].Content)
	assert.True(t, strings.Contains(out.Messages[0].HTML, "<strong>gm</strong>"))
}

func TestFeedDefaultsAgent(t *testing.T) {
	backend := &fakeBackend{agents: []store.AgentRow{{ID: defaultFeedAgent, Name: "default"}}}
	srv := newTestServer(t, Options{Backend: backend})

	resp, fields := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/feed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var agentID int64
	require.NoError(t, json.Unmarshal(fields["agent_id"], &agentID))
	assert.Equal(t, int64(defaultFeedAgent), agentID)
}

func TestFeedRejectsBadAgentID(t *testing.T) {
	srv := newTestServer(t, Options{Backend: &fakeBackend{}})
	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/feed?agent_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{News: fakeNews{blurb: "BTC ripping"}})
	resp, fields := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/news", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var blurb string
	require.NoError(t, json.Unmarshal(fields["news"], &blurb))
	assert.Equal(t, "BTC ripping", blurb)
}

func TestNewsNotConfiguredIs502(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/news", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestImprovePromptEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{Improver: staticImprover("better prompt")})
	id := createSession(t, srv)
	base := srv.URL + "/api/wizards/" + id

	resp, _ := doJSON(t, srv.Client(), http.MethodPost, base+"/draft", map[string]string{"prompt": "be cool"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, base+"/improve-prompt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "better prompt", sessionDraft(t, fields).Prompt)
}

func TestImprovePromptFailureIs502(t *testing.T) {
	srv := newTestServer(t, Options{Improver: failingImprover{}})
	id := createSession(t, srv)
	base := srv.URL + "/api/wizards/" + id

	resp, _ := doJSON(t, srv.Client(), http.MethodPost, base+"/draft", map[string]string{"prompt": "p"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, fields := doJSON(t, srv.Client(), http.MethodPost, base+"/improve-prompt", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var msg string
	require.NoError(t, json.Unmarshal(fields["error"], &msg))
	assert.NotEmpty(t, msg)

	resp, fields = doJSON(t, srv.Client(), http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "p", sessionDraft(t, fields).Prompt)
}

type staticImprover string

func (s staticImprover) Improve(context.Context, string) (string, error) {
	return string(s), nil
}

type failingImprover struct{}

func (failingImprover) Improve(context.Context, string) (string, error) {
	return "", fmt.Errorf("model offline")
}
