// Package contextwindow assembles the bounded prompt sent to the provider.
package contextwindow

import "github.com/xiaot623/gogo/chat/internal/domain"

const (
	DefaultWindowSize = 10

	DefaultSystemPrompt = "You are a helpful and friendly AI assistant. Provide informative, accurate, and engaging responses. Keep responses concise but comprehensive."
)

// Message is a turn reduced to what the provider sees.
type Message struct {
	Role    domain.Role
	Content string
}

type Builder struct {
	systemPrompt string
	windowSize   int
}

// NewBuilder falls back to the defaults for an empty prompt or a non-positive size.
func NewBuilder(systemPrompt string, windowSize int) *Builder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Builder{systemPrompt: systemPrompt, windowSize: windowSize}
}

func (b *Builder) WindowSize() int { return b.windowSize }

// Build returns the system instruction followed by the last K turns in order.
func (b *Builder) Build(session *domain.Session) []Message {
	var turns []domain.Turn
	if session != nil {
		turns = session.LastTurns(b.windowSize)
	}
	out := make([]Message, 0, len(turns)+1)
	out = append(out, Message{Role: domain.RoleSystem, Content: b.systemPrompt})
	for _, t := range turns {
		out = append(out, Message{Role: t.Role, Content: t.Content})
	}
	return out
}
