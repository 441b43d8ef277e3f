package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTurnDoesNotMutateReceiver(t *testing.T) {
	now := time.Now()
	s := NewSession("u1", "s1", now)

	next := s.WithTurn(Turn{Role: RoleUser, Content: "Hello", Timestamp: now.Add(time.Second)})

	assert.Empty(t, s.Turns)
	assert.Equal(t, 0, s.TurnCount)
	assert.Equal(t, 1, next.TurnCount)
	assert.Equal(t, len(next.Turns), next.TurnCount)
	assert.Equal(t, now.Add(time.Second), next.UpdatedAt)
	assert.Equal(t, "Hello", next.Summary)
}

func TestWithTurnSummaryFromFirstUserTurn(t *testing.T) {
	s := NewSession("u1", "s1", time.Now())
	s = s.WithTurn(Turn{Role: RoleAssistant, Content: "greeting", Timestamp: time.Now()})
	assert.Empty(t, s.Summary)

	long := strings.Repeat("x", 150)
	s = s.WithTurn(Turn{Role: RoleUser, Content: long, Timestamp: time.Now()})
	assert.Len(t, s.Summary, SummaryPreviewLength)

	s = s.WithTurn(Turn{Role: RoleUser, Content: "later", Timestamp: time.Now()})
	assert.Len(t, s.Summary, SummaryPreviewLength)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("u1", "s1", time.Now())
	s = s.WithTurn(Turn{Role: RoleAssistant, Content: "a", Metadata: &TurnMetadata{TokenCount: 1}})
	s.Tags = []string{"t"}

	c := s.Clone()
	c.Turns[0].Metadata.TokenCount = 9
	c.Tags[0] = "changed"

	assert.Equal(t, 1, s.Turns[0].Metadata.TokenCount)
	assert.Equal(t, "t", s.Tags[0])
}

func TestLastTurns(t *testing.T) {
	s := NewSession("u1", "s1", time.Now())
	for _, c := range []string{"1", "2", "3"} {
		s = s.WithTurn(Turn{Role: RoleUser, Content: c})
	}

	assert.Len(t, s.LastTurns(10), 3)
	last := s.LastTurns(2)
	require.Len(t, last, 2)
	assert.Equal(t, "2", last[0].Content)
	assert.Nil(t, s.LastTurns(0))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, 5, ContentLength("héllo"))
}

func TestErrorKinds(t *testing.T) {
	err := NewRateLimitedError("slow down", time.Minute)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.True(t, err.Retriable)

	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.True(t, IsNotFound(NewNotFoundError("gone")))
}

func TestValidateOwnerID(t *testing.T) {
	assert.NoError(t, ValidateOwnerID("user-42"))
	assert.Error(t, ValidateOwnerID(""))
	assert.Error(t, ValidateOwnerID("a b"))
	assert.Error(t, ValidateOwnerID("bad\x00id"))
	assert.Error(t, ValidateOwnerID(strings.Repeat("x", MaxOwnerIDLength+1)))
	assert.NoError(t, ValidateOwnerID(strings.Repeat("é", MaxOwnerIDLength)))
	assert.Error(t, ValidateOwnerID(strings.Repeat("é", MaxOwnerIDLength+1)))
	assert.Error(t, ValidateSessionID("  "))
}
