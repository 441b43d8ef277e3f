package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// perMessageOverhead approximates the role/separator tokens of the chat format.
const perMessageOverhead = 4

var (
	encoding     *tiktoken.Tiktoken
	encodingOnce sync.Once
	encodingErr  error
)

func getEncoding() (*tiktoken.Tiktoken, error) {
	encodingOnce.Do(func() {
		encoding, encodingErr = tiktoken.GetEncoding("cl100k_base")
		if encodingErr != nil {
			log.Warn().Err(encodingErr).Msg("tiktoken unavailable, falling back to rough token estimate")
		}
	})
	return encoding, encodingErr
}

// CountTokens estimates the cl100k token count of text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := getEncoding()
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessageTokens estimates the prompt size of a chat request.
func CountMessageTokens(messages []openai.ChatCompletionMessage) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead + CountTokens(m.Content)
	}
	return total
}
