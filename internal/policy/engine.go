// Package policy evaluates inbound chat messages against a Rego policy.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

const (
	DecisionAllow  = "allow"
	DecisionReject = "reject"
)

// Input is the document exposed to the policy as `input`.
type Input struct {
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Length    int    `json:"length"`
	MaxLength int    `json:"max_length"`
}

// Decision is the evaluated policy outcome.
type Decision struct {
	Decision string
	Reason   string
}

// Allowed reports whether the message may proceed.
func (d Decision) Allowed() bool { return d.Decision != DecisionReject }

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.message_policy.decision"),
		rego.Module("message_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile loads the policy from path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks a message. The rule may return a bare decision string or
// an object {decision, reason}. No result means allow.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionAllow, Reason: "default"}, nil
	}

	switch v := results[0].Expressions[0].Value.(type) {
	case string:
		return Decision{Decision: v}, nil
	case map[string]interface{}:
		d := Decision{Decision: DecisionAllow}
		if s, ok := v["decision"].(string); ok {
			d.Decision = s
		}
		if s, ok := v["reason"].(string); ok {
			d.Reason = s
		}
		return d, nil
	default:
		return Decision{}, fmt.Errorf("unexpected policy result type %T", v)
	}
}

// DefaultPolicy rejects messages longer than the configured maximum.
const DefaultPolicy = `
package message_policy

default decision = {"decision": "allow", "reason": ""}

decision = {"decision": "reject", "reason": msg} {
	input.length > input.max_length
	msg := sprintf("Message is too long (max %d characters)", [input.max_length])
}
`
