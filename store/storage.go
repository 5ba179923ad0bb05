package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// UploadPublic stores data under key in the public bucket and returns the
// public URL. The backend enforces its own size/type limits; a rejection
// surfaces as an error with the response body.
func (c *Client) UploadPublic(ctx context.Context, id Identity, key string, data []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	c.authorize(req, id)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "max-age=3600")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("storage upload rejected: %d %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, key)
	c.infof("uploaded %s -> %s", key, publicURL)
	return publicURL, nil
}
