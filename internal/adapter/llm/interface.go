// Package llm provides an abstraction for OpenAI-compatible chat clients.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// LLMClient defines the chat completion call the gateway depends on.
type LLMClient interface {
	// CreateChatCompletion sends a non-streaming chat completion request.
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)
