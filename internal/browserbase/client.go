// Package browserbase is a minimal client for the hosted browser session API.
package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.browserbase.com"
	apiKeyHeader   = "X-BB-API-Key"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// SessionStatus is the lifecycle state reported by the API.
type SessionStatus string

const (
	StatusRunning        SessionStatus = "RUNNING"
	StatusCompleted      SessionStatus = "COMPLETED"
	StatusError          SessionStatus = "ERROR"
	StatusTimedOut       SessionStatus = "TIMED_OUT"
	StatusRequestRelease SessionStatus = "REQUEST_RELEASE"
)

// Ended reports whether a session in this state can no longer be used.
func (s SessionStatus) Ended() bool {
	switch s {
	case StatusCompleted, StatusError, StatusTimedOut:
		return true
	}
	return false
}

// Session is a remote browser instance.
type Session struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"projectId"`
	Status     SessionStatus `json:"status"`
	Region     string        `json:"region,omitempty"`
	ConnectURL string        `json:"connectUrl"`
	StartedAt  time.Time     `json:"startedAt"`
	ExpiresAt  time.Time     `json:"expiresAt"`
}

// CreateSessionRequest is the payload for creating a session.
type CreateSessionRequest struct {
	ProjectID string `json:"projectId"`
	Region    string `json:"region,omitempty"`
	Timeout   int    `json:"timeout,omitempty"`
	KeepAlive bool   `json:"keepAlive,omitempty"`

	UserMetadata map[string]string `json:"userMetadata,omitempty"`
}

type updateSessionRequest struct {
	ProjectID string        `json:"projectId"`
	Status    SessionStatus `json:"status"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserbase error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the session API with a single API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds configuration for the client.
type Config struct {
	APIKey  string
	BaseURL string        // Optional, defaults to https://api.browserbase.com
	Timeout time.Duration // Optional, defaults to 30s
	Logger  *slog.Logger
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// CreateSession starts a new remote browser session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	var sess Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if sess.ID == "" || sess.ConnectURL == "" {
		return nil, fmt.Errorf("create session: response missing id or connectUrl")
	}

	c.logger.Info("Browserbase session created", "session_id", sess.ID, "region", sess.Region)
	return &sess, nil
}

// GetSession fetches the current state of a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &sess); err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// ReleaseSession asks the API to terminate a session.
func (c *Client) ReleaseSession(ctx context.Context, projectID, sessionID string) error {
	body := updateSessionRequest{ProjectID: projectID, Status: StatusRequestRelease}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID, body, nil); err != nil {
		return fmt.Errorf("release session %s: %w", sessionID, err)
	}
	c.logger.Info("Browserbase session released", "session_id", sessionID)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty response"
	}
	return msg
}
