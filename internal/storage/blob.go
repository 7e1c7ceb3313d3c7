// Package storage uploads user media to the external blob service.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("blob storage not configured")

// Client talks to the signed-upload endpoint. All three credentials must
// be set; otherwise every call returns ErrNotConfigured and handlers fall
// back to rejecting uploads.
type Client struct {
	endpoint  string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewClient(endpoint, apiKey, apiSecret string) *Client {
	return &Client{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) configured() bool {
	return c.endpoint != "" && c.apiKey != "" && c.apiSecret != ""
}

// Upload sends a base64 data URI and returns the public URL. The publicID
// keys the blob so re-uploads replace instead of accumulate.
func (c *Client) Upload(ctx context.Context, dataURI, publicID string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	if dataURI == "" {
		return "", errors.New("empty upload payload")
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form := url.Values{}
	form.Set("file", dataURI)
	form.Set("api_key", c.apiKey)
	form.Set("public_id", publicID)
	form.Set("timestamp", timestamp)
	form.Set("signature", c.sign(publicID, timestamp))

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
		Error     struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.post(ctx, c.endpoint+"/image/upload", form, &result); err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("blob upload: %s", result.Error.Message)
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	if result.URL != "" {
		return result.URL, nil
	}
	return "", errors.New("blob upload: no url in response")
}

// Delete removes a previously uploaded blob by its public URL.
func (c *Client) Delete(ctx context.Context, blobURL string) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	parts := strings.Split(blobURL, "/")
	last := parts[len(parts)-1]
	publicID := strings.SplitN(last, ".", 2)[0]
	if publicID == "" {
		return fmt.Errorf("cannot derive public id from %q", blobURL)
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("api_key", c.apiKey)
	form.Set("timestamp", timestamp)
	form.Set("signature", c.sign(publicID, timestamp))

	var result struct {
		Result string `json:"result"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.post(ctx, c.endpoint+"/image/destroy", form, &result); err != nil {
		return err
	}
	if result.Error.Message != "" {
		return fmt.Errorf("blob delete: %s", result.Error.Message)
	}
	if result.Result != "ok" {
		return fmt.Errorf("blob delete: result %q", result.Result)
	}
	return nil
}

func (c *Client) sign(publicID, timestamp string) string {
	payload := fmt.Sprintf("public_id=%s&timestamp=%s%s", publicID, timestamp, c.apiSecret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(payload)))
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("blob service status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
