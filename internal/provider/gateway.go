// Package provider invokes the text generation provider and classifies its failures.
package provider

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/xiaot623/gogo/chat/internal/adapter/llm"
	"github.com/xiaot623/gogo/chat/internal/contextwindow"
)

const DefaultTimeout = 30 * time.Second

// ErrMissingAPIKey marks a gateway configured without credentials.
var ErrMissingAPIKey = errors.New("provider api key is not configured")

// Params are the generation parameters sent with every request.
type Params struct {
	Model            string
	MaxTokens        int
	Temperature      float32
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// DefaultParams returns the stock generation settings.
func DefaultParams() Params {
	return Params{
		Model:            "gpt-3.5-turbo",
		MaxTokens:        1000,
		Temperature:      0.7,
		TopP:             1,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.1,
	}
}

// Generation is a successful provider reply.
type Generation struct {
	Text             string
	Model            string
	TokenCount       int
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int64
	// Estimated is set when the provider omitted usage and tokens were counted locally.
	Estimated bool
}

type Gateway struct {
	client  llm.LLMClient
	params  Params
	timeout time.Duration

	// credentialsMissing short-circuits every call with AuthConfigurationError.
	credentialsMissing bool
}

type Option func(*Gateway)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMissingCredentials marks the gateway as misconfigured.
func WithMissingCredentials() Option {
	return func(g *Gateway) { g.credentialsMissing = true }
}

func NewGateway(client llm.LLMClient, params Params, opts ...Option) *Gateway {
	defaults := DefaultParams()
	if params.Model == "" {
		params.Model = defaults.Model
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = defaults.MaxTokens
	}
	g := &Gateway{client: client, params: params, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the configured model identifier.
func (g *Gateway) Model() string { return g.params.Model }

// Generate sends the context window to the provider. The call is detached from
// ctx cancellation and bounded by the gateway timeout. Failures are *Failure.
func (g *Gateway) Generate(ctx context.Context, messages []contextwindow.Message) (*Generation, error) {
	if g.credentialsMissing {
		return nil, &Failure{Kind: KindAuthConfigurationError, Err: ErrMissingAPIKey}
	}

	temperature := g.params.Temperature
	if temperature == 0 {
		// go-openai omits a zero temperature; this value reaches the provider as 0.
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model:            g.params.Model,
		Messages:         toChatMessages(messages),
		MaxTokens:        g.params.MaxTokens,
		Temperature:      temperature,
		TopP:             g.params.TopP,
		FrequencyPenalty: g.params.FrequencyPenalty,
		PresencePenalty:  g.params.PresencePenalty,
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(callCtx, req)
	latencyMs := time.Since(start).Milliseconds()

	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		f := classify(err)
		f.LatencyMs = latencyMs
		log.Warn().
			Err(err).
			Str("kind", string(f.Kind)).
			Int("status", f.StatusCode).
			Int64("latency_ms", latencyMs).
			Msg("provider call failed")
		return nil, f
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &Failure{
			Kind:      KindEmptyGeneration,
			LatencyMs: latencyMs,
			Err:       errors.New("no response generated"),
		}
	}

	text := resp.Choices[0].Message.Content
	gen := &Generation{
		Text:             text,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TokenCount:       resp.Usage.TotalTokens,
		LatencyMs:        latencyMs,
	}
	if gen.Model == "" {
		gen.Model = g.params.Model
	}
	if gen.TokenCount == 0 {
		gen.PromptTokens = llm.CountMessageTokens(req.Messages)
		gen.CompletionTokens = llm.CountTokens(text)
		gen.TokenCount = gen.PromptTokens + gen.CompletionTokens
		gen.Estimated = true
	}

	log.Debug().
		Str("model", gen.Model).
		Int("tokens", gen.TokenCount).
		Int64("latency_ms", latencyMs).
		Msg("provider call done")
	return gen, nil
}

func toChatMessages(messages []contextwindow.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
