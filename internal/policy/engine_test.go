package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	d, err := engine.Evaluate(ctx, Input{OwnerID: "u1", Message: "hello", Length: 5, MaxLength: 2000})
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	d, err = engine.Evaluate(ctx, Input{OwnerID: "u1", Length: 2000, MaxLength: 2000})
	require.NoError(t, err)
	assert.True(t, d.Allowed(), "boundary length is allowed")

	d, err = engine.Evaluate(ctx, Input{OwnerID: "u1", Length: 2001, MaxLength: 2000})
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.Equal(t, "Message is too long (max 2000 characters)", d.Reason)
}

func TestStringDecisionPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, `
package message_policy

default decision = "allow"

decision = "reject" {
	contains(input.message, "forbidden")
}
`)
	require.NoError(t, err)

	d, err := engine.Evaluate(ctx, Input{Message: "a forbidden word"})
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, d.Decision)

	d, err = engine.Evaluate(ctx, Input{Message: "fine"})
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestNewEngineFromFile(t *testing.T) {
	ctx := context.Background()

	engine, err := NewEngineFromFile(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, engine)

	path := filepath.Join(t.TempDir(), "policy.rego")
	require.NoError(t, os.WriteFile(path, []byte("package message_policy\n\ndecision = \"reject\"\n"), 0o600))
	engine, err = NewEngineFromFile(ctx, path)
	require.NoError(t, err)
	d, err := engine.Evaluate(ctx, Input{})
	require.NoError(t, err)
	assert.False(t, d.Allowed())

	_, err = NewEngineFromFile(ctx, filepath.Join(t.TempDir(), "missing.rego"))
	assert.Error(t, err)

	_, err = NewEngine(ctx, "not rego")
	assert.Error(t, err)
}
