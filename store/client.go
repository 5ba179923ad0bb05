// Package store talks to the hosted Supabase-style backend: object storage
// for agent pictures, PostgREST tables for agent records and the terminal
// message feed.
package store

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// Identity is the authenticated caller, threaded explicitly into every
// persistence call instead of living in ambient session state.
type Identity struct {
	UserID      string
	AccessToken string
}

// Client is a thin REST client for one Supabase project.
type Client struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

// New creates a Client. A nil http.Client gets a default with a timeout.
func New(baseURL, apiKey, bucket string, client *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("store requires base URL and api key")
	}
	if bucket == "" {
		bucket = "images"
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		client:  client,
		verbose: verbose,
		logger:  logger,
	}, nil
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

func (c *Client) authorize(req *http.Request, id Identity) {
	req.Header.Set("apikey", c.apiKey)
	token := id.AccessToken
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
