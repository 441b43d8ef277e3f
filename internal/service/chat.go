package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xiaot623/gogo/chat/internal/domain"
	"github.com/xiaot623/gogo/chat/internal/policy"
	"github.com/xiaot623/gogo/chat/internal/provider"
	"github.com/xiaot623/gogo/chat/internal/ratelimit"
)

var rateLimitMessages = map[ratelimit.Scope]string{
	ratelimit.ScopeGlobal: "Too many requests from this user, please try again later.",
	ratelimit.ScopeChat:   "Too many chat requests, please slow down.",
}

// SendMessage runs one conversation turn: admit, validate, record the user
// turn (creating the session with it), call the provider and record the
// reply or a fallback on failure.
func (s *Service) SendMessage(ctx context.Context, ownerID string, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return nil, domain.NewAuthError("invalid owner", err)
	}

	if err := s.admit(ctx, ownerID, ratelimit.ScopeGlobal, ratelimit.ScopeChat); err != nil {
		return nil, err
	}

	message, err := s.validate(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newSessionID()
	}
	logger := log.With().Str("owner_id", ownerID).Str("session_id", sessionID).Logger()

	sess, err := s.sessions.StartTurn(ctx, ownerID, sessionID, domain.RoleUser, message, nil)
	if err != nil {
		if domain.KindOf(err) != domain.KindInternal {
			return nil, err
		}
		logger.Error().Err(err).Msg("failed to append user turn")
		return nil, withSession(err, sessionID)
	}

	messages := s.window.Build(sess)
	gen, genErr := s.gateway.Generate(ctx, messages)

	// The user turn is durable; finish the pair even if the caller went away.
	persistCtx := context.WithoutCancel(ctx)

	if genErr != nil {
		failure, ok := provider.AsFailure(genErr)
		if !ok {
			failure = &provider.Failure{Kind: provider.KindUpstreamError, Err: genErr}
		}
		fallback := failure.FallbackText()
		metadata := &domain.TurnMetadata{
			ProviderModel: s.gateway.Model(),
			LatencyMs:     failure.LatencyMs,
			ErrorFlag:     true,
			ErrorType:     string(failure.Kind),
		}
		if err := s.sessions.AppendTurn(persistCtx, sess, domain.RoleAssistant, fallback, metadata); err != nil {
			logger.Error().Err(err).Msg("failed to append fallback turn")
			return nil, withSession(err, sessionID)
		}
		logger.Warn().Err(genErr).Str("failure", string(failure.Kind)).Msg("provider failed, fallback recorded")
		return nil, &domain.Error{
			Kind:        domain.KindProvider,
			Message:     fallback,
			SessionID:   sessionID,
			Retriable:   failure.Retriable(),
			FailureType: string(failure.Kind),
			Err:         genErr,
		}
	}

	reply := domain.Truncate(gen.Text, domain.MaxTurnContentLength)
	metadata := &domain.TurnMetadata{
		ProviderModel: gen.Model,
		TokenCount:    gen.TokenCount,
		LatencyMs:     gen.LatencyMs,
	}
	if err := s.sessions.AppendTurn(persistCtx, sess, domain.RoleAssistant, reply, metadata); err != nil {
		logger.Error().Err(err).Msg("failed to append assistant turn")
		return nil, withSession(err, sessionID)
	}

	logger.Info().
		Int("turns", sess.TurnCount).
		Int("tokens", gen.TokenCount).
		Int64("latency_ms", gen.LatencyMs).
		Msg("message handled")

	return &domain.SendMessageResponse{
		Message:   reply,
		SessionID: sessionID,
		Metadata: domain.ResponseMetadata{
			TokenCount: gen.TokenCount,
			LatencyMs:  gen.LatencyMs,
			Model:      gen.Model,
		},
	}, nil
}

func (s *Service) admit(ctx context.Context, ownerID string, scopes ...ratelimit.Scope) error {
	d, err := s.limiter.Admit(ctx, ownerID, scopes...)
	if err != nil {
		return domain.NewInternalError("rate limiter unavailable", err)
	}
	if !d.Allowed {
		log.Info().Str("owner_id", ownerID).Str("scope", string(d.Scope)).Dur("retry_after", d.RetryAfter).Msg("request throttled")
		return domain.NewRateLimitedError(rateLimitMessages[d.Scope], d.RetryAfter)
	}
	return nil
}

// validate returns the trimmed message or a ValidationError.
func (s *Service) validate(ctx context.Context, ownerID string, req domain.SendMessageRequest) (string, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", domain.NewValidationError("Message content is required")
	}
	if req.SessionID != "" {
		if err := domain.ValidateSessionID(req.SessionID); err != nil {
			return "", err
		}
	}

	length := domain.ContentLength(message)
	if s.policyEngine != nil {
		d, err := s.policyEngine.Evaluate(ctx, policy.Input{
			OwnerID:   ownerID,
			SessionID: req.SessionID,
			Message:   message,
			Length:    length,
			MaxLength: s.maxMessageLength,
		})
		if err != nil {
			return "", domain.NewInternalError("failed to evaluate message policy", err)
		}
		if !d.Allowed() {
			reason := d.Reason
			if reason == "" {
				reason = "Message rejected by policy"
			}
			return "", domain.NewValidationError("%s", reason)
		}
	}
	// The stored turn limit holds regardless of the loaded policy.
	if length > s.maxMessageLength || length > domain.MaxTurnContentLength {
		return "", domain.NewValidationError("Message is too long (max %d characters)", min(s.maxMessageLength, domain.MaxTurnContentLength))
	}
	return message, nil
}

// withSession attaches the session id to a typed error so callers can resume.
func withSession(err error, sessionID string) error {
	if e, ok := domain.AsError(err); ok {
		if e.SessionID == "" {
			c := *e
			c.SessionID = sessionID
			return &c
		}
		return e
	}
	return &domain.Error{Kind: domain.KindInternal, Message: "internal error", SessionID: sessionID, Err: err}
}
