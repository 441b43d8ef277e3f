// Package auth turns request credentials into a verified owner id.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/pkg/errors"

	"github.com/xiaot623/gogo/chat/internal/domain"
)

const (
	ModeJWT    = "jwt"
	ModeHeader = "header"

	// HeaderUserID carries the trusted owner id in header mode.
	HeaderUserID = "X-User-ID"

	// ContextKeyOwnerID is where the middleware stores the verified owner.
	ContextKeyOwnerID = "owner_id"
)

var ErrMissingCredential = errors.New("missing credential")

// Authenticator verifies a credential taken from the request.
type Authenticator interface {
	// Credential extracts the raw credential from the request.
	Credential(r *http.Request) string
	// Authenticate returns the owner id the credential belongs to.
	Authenticate(ctx context.Context, credential string) (string, error)
}

// JWTAuthenticator verifies HS256 bearer tokens.
type JWTAuthenticator struct {
	key []byte
}

func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTAuthenticator{key: []byte(secret)}, nil
}

func (a *JWTAuthenticator) Credential(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate validates signature and expiry. The owner is the "id" claim,
// falling back to "sub".
func (a *JWTAuthenticator) Authenticate(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	tok, err := jwt.ParseString(credential, jwt.WithKey(jwa.HS256(), a.key), jwt.WithValidate(true))
	if err != nil {
		return "", errors.Wrap(err, "invalid token")
	}

	var raw any
	if err := tok.Get("id", &raw); err == nil && raw != nil {
		if id := fmt.Sprint(raw); id != "" {
			return id, nil
		}
	}
	if sub, ok := tok.Subject(); ok && sub != "" {
		return sub, nil
	}
	return "", errors.New("token has no subject")
}

// Sign issues a token for ownerID. Used by the CLI and tests.
func (a *JWTAuthenticator) Sign(ownerID string, claims map[string]any) (string, error) {
	b := jwt.NewBuilder().Subject(ownerID).Claim("id", ownerID)
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	if err != nil {
		return "", errors.Wrap(err, "build token")
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), a.key))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return string(signed), nil
}

// HeaderAuthenticator trusts X-User-ID. Only for development behind a trusted proxy.
type HeaderAuthenticator struct{}

func NewHeaderAuthenticator() *HeaderAuthenticator { return &HeaderAuthenticator{} }

func (HeaderAuthenticator) Credential(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}

func (HeaderAuthenticator) Authenticate(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}
	return credential, nil
}

// New builds the authenticator for mode.
func New(mode, secret string) (Authenticator, error) {
	switch mode {
	case "", ModeJWT:
		return NewJWTAuthenticator(secret)
	case ModeHeader:
		return NewHeaderAuthenticator(), nil
	default:
		return nil, errors.Errorf("unknown auth mode %q", mode)
	}
}

// Middleware rejects unauthenticated requests and stores the owner id on the context.
func Middleware(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ownerID, err := a.Authenticate(req.Context(), a.Credential(req))
			if err != nil {
				return domain.NewAuthError("Access denied. Invalid or missing credentials.", err)
			}
			if err := domain.ValidateOwnerID(ownerID); err != nil {
				return domain.NewAuthError("Access denied. Invalid identity.", err)
			}
			c.Set(ContextKeyOwnerID, ownerID)
			return next(c)
		}
	}
}

// OwnerID returns the id stored by Middleware.
func OwnerID(c echo.Context) string {
	id, _ := c.Get(ContextKeyOwnerID).(string)
	return id
}
