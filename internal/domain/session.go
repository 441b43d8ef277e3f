package domain

import (
	"time"
	"unicode/utf8"
)

// TurnMetadata carries provider details recorded with a turn.
type TurnMetadata struct {
	ProviderModel string `json:"providerModel,omitempty"`
	TokenCount    int    `json:"tokenCount,omitempty"`
	LatencyMs     int64  `json:"latencyMs,omitempty"`
	ErrorFlag     bool   `json:"errorFlag,omitempty"`
	ErrorType     string `json:"errorType,omitempty"`
}

// Turn is one role-tagged message within a session.
type Turn struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Metadata  *TurnMetadata `json:"metadata,omitempty"`
}

// Session is one multi-turn conversation scoped to (owner, session id).
type Session struct {
	OwnerID   string    `json:"ownerId"`
	SessionID string    `json:"sessionId"`
	Turns     []Turn    `json:"messages"`
	TurnCount int       `json:"totalMessages"`
	Active    bool      `json:"isActive"`
	Tags      []string  `json:"tags,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version is bumped on every write and used for compare-and-swap updates.
	Version int64 `json:"-"`
}

// NewSession returns an empty active session.
func NewSession(ownerID, sessionID string, now time.Time) *Session {
	return &Session{
		OwnerID:   ownerID,
		SessionID: sessionID,
		Turns:     []Turn{},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// State maps the active flag onto the session state machine.
func (s *Session) State() SessionState {
	if s.Active {
		return SessionStateActive
	}
	return SessionStateDeleted
}

// Clone returns a deep copy so callers can mutate it without touching s.
func (s *Session) Clone() *Session {
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		c.Turns[i] = t
		if t.Metadata != nil {
			md := *t.Metadata
			c.Turns[i].Metadata = &md
		}
	}
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	return &c
}

// WithTurn returns a copy of s with t appended and the derived fields updated.
func (s *Session) WithTurn(t Turn) *Session {
	c := s.Clone()
	c.Turns = append(c.Turns, t)
	c.TurnCount = len(c.Turns)
	c.UpdatedAt = t.Timestamp
	if c.Summary == "" && t.Role == RoleUser {
		c.Summary = Truncate(t.Content, SummaryPreviewLength)
	}
	return c
}

// LastTurns returns the trailing n turns (all of them when n >= len).
func (s *Session) LastTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ContentLength counts characters the way content limits are enforced.
func ContentLength(s string) int {
	return utf8.RuneCountInString(s)
}
