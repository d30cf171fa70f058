// Package voiceagent performs the signed-URL handshake with the hosted voice
// agent. The realtime audio session runs directly between the browser and the
// provider.
package voiceagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io"
	defaultHTTPTimeout = 10 * time.Second
	signedURLPath      = "/v1/convai/conversation/get-signed-url"
	maxErrorBody       = 512
)

// ErrNotConfigured is returned when no API key or agent id was provided.
var ErrNotConfigured = errors.New("voiceagent: not configured")

// UpstreamError is returned when the provider answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("voiceagent: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client requests short-lived conversation URLs.
type Client struct {
	apiKey     string
	agentID    string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects the public API.
func NewClient(apiKey, agentID, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		agentID:    agentID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// Configured reports whether the handshake can be attempted.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.agentID != ""
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// SignedURL asks the provider for a conversation URL bound to the configured agent.
func (c *Client) SignedURL(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	endpoint := c.baseURL + signedURLPath + "?agent_id=" + url.QueryEscape(c.agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("voiceagent: create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voiceagent: request signed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("voiceagent: decode response: %w", err)
	}
	if parsed.SignedURL == "" {
		return "", errors.New("voiceagent: response missing signed_url")
	}
	return parsed.SignedURL, nil
}
