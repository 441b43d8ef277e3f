package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chat/internal/adapter/llm"
	"github.com/xiaot623/gogo/chat/internal/auth"
	"github.com/xiaot623/gogo/chat/internal/contextwindow"
	"github.com/xiaot623/gogo/chat/internal/history"
	"github.com/xiaot623/gogo/chat/internal/policy"
	"github.com/xiaot623/gogo/chat/internal/provider"
	"github.com/xiaot623/gogo/chat/internal/ratelimit"
	"github.com/xiaot623/gogo/chat/internal/service"
	"github.com/xiaot623/gogo/chat/internal/session"
	"github.com/xiaot623/gogo/chat/tests/helpers"
)

func newTestServer(t *testing.T, limits ratelimit.Limits) *echo.Echo {
	t.Helper()
	repo := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	limiter := ratelimit.NewMemoryLimiter(limits)
	svc := service.New(
		session.NewStore(repo),
		history.NewPaginator(repo),
		contextwindow.NewBuilder("", 10),
		provider.NewGateway(llm.NewMockClient(), provider.DefaultParams()),
		limiter,
		engine,
		2000,
	)
	return NewServer(svc, auth.NewHeaderAuthenticator(), limiter, Options{CORSOrigins: []string{"*"}})
}

func do(e *echo.Echo, method, path, body, user string) *httptest.ResponseRecorder {
	var req *nethttp.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(auth.HeaderUserID, user)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	e := newTestServer(t, ratelimit.DefaultLimits())
	rec := do(e, nethttp.MethodGet, "/api/health", "", "")
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
}

func TestChatRoutesRequireIdentity(t *testing.T) {
	e := newTestServer(t, ratelimit.DefaultLimits())
	rec := do(e, nethttp.MethodGet, "/api/chat/history", "", "")
	assert.Equal(t, nethttp.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"auth_error"`)
}

func TestConversationFlow(t *testing.T) {
	e := newTestServer(t, ratelimit.DefaultLimits())

	rec := do(e, nethttp.MethodPost, "/api/chat", `{"message":"Hello"}`, "u1")
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	var sent struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))

	rec = do(e, nethttp.MethodGet, "/api/chat/session/"+sent.SessionID, "", "u1")
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalMessages":2`)

	rec = do(e, nethttp.MethodGet, "/api/chat/stats", "", "u1")
	assert.JSONEq(t, `{"stats":{"totalSessions":1,"totalMessages":2,"averageMessagesPerSession":2}}`, rec.Body.String())

	rec = do(e, nethttp.MethodDelete, "/api/chat/session/"+sent.SessionID, "", "u1")
	assert.Equal(t, nethttp.StatusOK, rec.Code)

	rec = do(e, nethttp.MethodGet, "/api/chat/session/"+sent.SessionID, "", "u1")
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)

	rec = do(e, nethttp.MethodPost, "/api/chat", `{"message":""}`, "u1")
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Message content is required")
}

func TestSendRateLimited(t *testing.T) {
	e := newTestServer(t, ratelimit.Limits{
		ratelimit.ScopeGlobal: {Window: time.Hour, Max: 100},
		ratelimit.ScopeChat:   {Window: time.Minute, Max: 2},
	})

	for i := 0; i < 2; i++ {
		rec := do(e, nethttp.MethodPost, "/api/chat", `{"message":"hi"}`, "u1")
		require.Equal(t, nethttp.StatusOK, rec.Code)
	}
	rec := do(e, nethttp.MethodPost, "/api/chat", `{"message":"hi"}`, "u1")
	assert.Equal(t, nethttp.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many chat requests")
}

func TestGlobalRateLimitOnReadRoutes(t *testing.T) {
	e := newTestServer(t, ratelimit.Limits{
		ratelimit.ScopeGlobal: {Window: 15 * time.Minute, Max: 2},
		ratelimit.ScopeChat:   {Window: time.Minute, Max: 20},
	})

	for i := 0; i < 2; i++ {
		rec := do(e, nethttp.MethodGet, "/api/chat/stats", "", "u1")
		require.Equal(t, nethttp.StatusOK, rec.Code)
	}
	rec := do(e, nethttp.MethodGet, "/api/chat/history", "", "u1")
	assert.Equal(t, nethttp.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))

	// Send shares the global scope and is rejected too.
	rec = do(e, nethttp.MethodPost, "/api/chat", `{"message":"hi"}`, "u1")
	assert.Equal(t, nethttp.StatusTooManyRequests, rec.Code)

	rec = do(e, nethttp.MethodGet, "/api/chat/stats", "", "u2")
	assert.Equal(t, nethttp.StatusOK, rec.Code)
}
