package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Client talks to any OpenAI-compatible endpoint (OpenAI, LiteLLM, ...).
type Client struct {
	api     *openai.Client
	baseURL string
}

// NewClient creates a client. An empty baseURL keeps the OpenAI default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		baseURL: cfg.BaseURL,
	}
}

// BaseURL returns the resolved endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateChatCompletion sends a chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return c.api.CreateChatCompletion(ctx, req)
}
