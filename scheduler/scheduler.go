// Package scheduler calls the external posting-schedule endpoint and builds
// the query/system-prompt strings it expects.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Request is the schedule-creation payload. UserID carries the created
// agent's identifier, which the endpoint keys schedules on.
type Request struct {
	UserID       int64  `json:"userId"`
	Interval     int    `json:"interval"`
	Query        string `json:"query"`
	SystemPrompt string `json:"systemPrompt"`
}

// Client posts schedule requests. Any 2xx response is success regardless of
// whether the body parses; there are no retries.
type Client struct {
	endpoint string
	client   *http.Client
	verbose  bool
	logger   *log.Logger
}

// New creates a Client. The endpoint gets a deliberately long timeout when
// no http.Client is supplied; the upstream can be slow to acknowledge.
func New(endpoint string, client *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("scheduler endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{endpoint: endpoint, client: client, verbose: verbose, logger: logger}, nil
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

// Schedule issues one schedule-creation call.
func (c *Client) Schedule(ctx context.Context, r Request) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("schedule create failed: %d %s", resp.StatusCode, bytes.TrimSpace(text))
	}

	// The body is optionally JSON; log it either way.
	var parsed map[string]interface{}
	if len(bytes.TrimSpace(text)) > 0 && json.Unmarshal(text, &parsed) == nil {
		c.infof("schedule created for agent %d: %v", r.UserID, parsed)
	} else {
		c.infof("schedule created for agent %d: status %d", r.UserID, resp.StatusCode)
	}
	return nil
}

// BuildQuery assembles the topic query sent to the scheduler from the
// configured topics and data sources.
func BuildQuery(topics string, sources []string) string {
	t := collapse(topics)
	if t == "" {
		return "speak about general topics"
	}
	return fmt.Sprintf("speak about %s while you have access to access to these data sources: %s",
		t, strings.Join(sources, ", "))
}

// BuildSystemPrompt assembles the posting persona from the agent prompt and
// its example posts.
func BuildSystemPrompt(prompt string, posts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI agent who tweets. %s Keep all tweets under 260 characters.", collapse(prompt))
	b.WriteString(" Here are some example posts to guide your style and tone:\n")
	for i, post := range posts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %q", post)
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
