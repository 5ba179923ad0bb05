package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	agentsTable   = "agents2"
	terminalTable = "terminal2"
)

// SampleQuestion is one persisted example interaction.
type SampleQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// PostConfiguration is the persisted posting setup.
type PostConfiguration struct {
	Clients  []string `json:"clients"`
	Interval int      `json:"interval"`
	Topics   string   `json:"topics"`
	Enabled  bool     `json:"enabled"`
}

// ChatConfiguration is the persisted chat setup.
type ChatConfiguration struct {
	Clients          []string `json:"clients"`
	ReplyToUsernames []string `json:"reply_to_usernames"`
	ReplyToReplies   bool     `json:"reply_to_replies"`
	Enabled          bool     `json:"enabled"`
}

// AgentRecord is one row of the agents table. TwitterCredentials carries an
// opaque JSON string, or nil when no X client is configured.
type AgentRecord struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Prompt             string            `json:"prompt"`
	Image              *string           `json:"image"`
	UserID             string            `json:"user_id"`
	DataSources        []string          `json:"data_sources"`
	Activities         []string          `json:"activities"`
	SampleQuestions    []SampleQuestion  `json:"sample_questions"`
	SamplePosts        []string          `json:"sample_posts"`
	PostConfiguration  PostConfiguration `json:"post_configuration"`
	ChatConfiguration  ChatConfiguration `json:"chat_configuration"`
	TwitterCredentials *string           `json:"twitter_credentials"`
	Model              string            `json:"model"`
}

// AgentRow is a created or listed agent.
type AgentRow struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Message is one entry of the terminal feed.
type Message struct {
	AgentID   int64     `json:"agent_id"`
	Content   string    `json:"tweet_content"`
	CreatedAt time.Time `json:"created_at"`
}

// InsertAgent persists one agent record and returns the created row. An
// accepted insert that returns no row is an error.
func (c *Client) InsertAgent(ctx context.Context, id Identity, rec AgentRecord) (AgentRow, error) {
	body, err := json.Marshal([]AgentRecord{rec})
	if err != nil {
		return AgentRow{}, err
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, agentsTable)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return AgentRow{}, err
	}
	c.authorize(req, id)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.client.Do(req)
	if err != nil {
		return AgentRow{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return AgentRow{}, fmt.Errorf("agent insert rejected: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var rows []AgentRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return AgentRow{}, fmt.Errorf("agent insert: decode response: %w", err)
	}
	if len(rows) == 0 {
		return AgentRow{}, fmt.Errorf("agent insert returned no row")
	}
	c.infof("created agent id=%d name=%q", rows[0].ID, rows[0].Name)
	return rows[0], nil
}

// ListAgents returns id and name of every visible agent.
func (c *Client) ListAgents(ctx context.Context, id Identity) ([]AgentRow, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=id,name", c.baseURL, agentsTable)
	var rows []AgentRow
	if err := c.getJSON(ctx, id, endpoint, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// AgentMessages returns the terminal feed for one agent, newest first.
func (c *Client) AgentMessages(ctx context.Context, id Identity, agentID int64) ([]Message, error) {
	q := url.Values{}
	q.Set("select", "agent_id,tweet_content,created_at")
	q.Set("agent_id", fmt.Sprintf("eq.%d", agentID))
	q.Set("order", "created_at.desc")
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, terminalTable, q.Encode())

	var msgs []Message
	if err := c.getJSON(ctx, id, endpoint, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) getJSON(ctx context.Context, id Identity, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req, id)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("query rejected: %d %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
