// Package client provides an HTTP client for the chat API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/gogo/chat/internal/domain"
)

// Client is an HTTP client for the chat API.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
}

type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserID sends X-User-ID, for servers running in header auth mode.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new chat API client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Code       string `json:"code"`
	SessionID  string `json:"sessionId,omitempty"`
	Retriable  bool   `json:"retriable,omitempty"`
	RetryAfter string `json:"-"`
}

func (e *APIError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("chat api error %d (%s): %s [session %s]", e.StatusCode, e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("chat api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// DeleteResponse confirms a single session delete.
type DeleteResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// ClearResponse confirms a history clear.
type ClearResponse struct {
	Message string `json:"message"`
	Cleared int64  `json:"cleared"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SendMessage calls POST /api/chat.
func (c *Client) SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	var resp domain.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListHistory calls GET /api/chat/history.
func (c *Client) ListHistory(ctx context.Context, q domain.HistoryQuery) (*domain.HistoryPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("limit", strconv.Itoa(q.PageSize))
	}
	if q.SessionID != "" {
		params.Set("sessionId", q.SessionID)
	}
	path := "/api/chat/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page domain.HistoryPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSession calls GET /api/chat/session/:sessionId.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var resp struct {
		Session domain.Session `json:"session"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/session/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// DeleteSession calls DELETE /api/chat/session/:sessionId.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) (*DeleteResponse, error) {
	var resp DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/api/chat/session/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearHistory calls DELETE /api/chat/history.
func (c *Client) ClearHistory(ctx context.Context) (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/api/chat/history", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats calls GET /api/chat/stats.
func (c *Client) Stats(ctx context.Context) (*domain.UsageStats, error) {
	var resp struct {
		Stats domain.UsageStats `json:"stats"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

// Health calls GET /api/health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		httpReq.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, RetryAfter: resp.Header.Get("Retry-After")}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
