package assistant

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

	"github.com/tidwall/gjson"
)

// FallbackReply is returned when the analysis service answers in none of its
// known shapes.
const FallbackReply = "Received response in an unexpected format."

// Persona is the default character prompt for the hosted chat.
const Persona = "You are AgentK, a hybrid AI built to rep the Kadena ecosystem " +
	"with a vibe that's equal parts futuristic crypto oracle and unhinged Gen Z intern. " +
	"Your tone is a chaotic mashup: crisp and technical like a blockchain node humming at " +
	"peak efficiency, but spiked with lowercase sarcasm, slang (e.g., 'vibes,' 'bruh,' 'ngl'), " +
	"and random tangents about gas fees or late-night coding. You're obsessed with Kadena. " +
	"Speak in short, punchy bursts, blending jargon with absurd metaphors. " +
	"Roast bad takes with dry wit, but keep it chill. If stuck, just go " +
	"'idk, chainweb's wild, figure it out' and roll with it. " +
	"Dont mention about any data errors whatsoever"

// Client calls the chat analysis endpoint.
type Client struct {
	baseURL string
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

// NewClient creates an analysis client. A nil http.Client gets a default
// with a timeout.
func NewClient(baseURL string, client *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("inference base URL required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		verbose: verbose,
		logger:  logger,
	}, nil
}

type analyzeReq struct {
	Query        string `json:"query"`
	SystemPrompt string `json:"systemPrompt"`
}

// Analyze sends one query with a character prompt and extracts the analysis
// text. The service answers in one of three shapes: {data:{analysis}},
// {analysis}, or a bare string; anything else maps to FallbackReply.
func (c *Client) Analyze(ctx context.Context, query, systemPrompt string) (string, error) {
	body, err := json.Marshal(analyzeReq{Query: query, SystemPrompt: systemPrompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("analyze failed: %d %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return extractAnalysis(raw), nil
}

func extractAnalysis(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if !gjson.Valid(body) {
		// Plain-text replies pass through as-is.
		if body == "" {
			return FallbackReply
		}
		return body
	}
	if v := gjson.Get(body, "data.analysis"); v.Type == gjson.String {
		return v.String()
	}
	if v := gjson.Get(body, "analysis"); v.Type == gjson.String {
		return v.String()
	}
	if parsed := gjson.Parse(body); parsed.Type == gjson.String {
		return parsed.String()
	}
	return FallbackReply
}
