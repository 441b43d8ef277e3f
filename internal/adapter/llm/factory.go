package llm

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// EnvGogoMode is the environment variable name for mode selection.
	EnvGogoMode = "GOGO_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates an LLM client based on the GOGO_MODE environment variable.
// If GOGO_MODE=MOCK, returns a MockClient; otherwise returns a real Client.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration) LLMClient {
	if os.Getenv(EnvGogoMode) == ModeMock {
		log.Info().Msg("GOGO_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	client := NewClient(baseURL, apiKey, timeout)
	log.Info().Str("base_url", client.BaseURL()).Msg("using OpenAI-compatible LLM client")
	return client
}
