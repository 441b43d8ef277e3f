package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/chat/internal/adapter/llm"
	"github.com/xiaot623/gogo/chat/internal/auth"
	"github.com/xiaot623/gogo/chat/internal/contextwindow"
	"github.com/xiaot623/gogo/chat/internal/history"
	"github.com/xiaot623/gogo/chat/internal/provider"
	"github.com/xiaot623/gogo/chat/internal/ratelimit"
	"github.com/xiaot623/gogo/chat/internal/service"
	"github.com/xiaot623/gogo/chat/internal/session"
	transport "github.com/xiaot623/gogo/chat/internal/transport/http"
	"github.com/xiaot623/gogo/chat/tests/helpers"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	repo := helpers.NewTestSQLiteStore(t)
	limiter := ratelimit.NewMemoryLimiter(ratelimit.DefaultLimits())
	svc := service.New(
		session.NewStore(repo),
		history.NewPaginator(repo),
		contextwindow.NewBuilder("", 10),
		provider.NewGateway(llm.NewMockClient(), provider.DefaultParams()),
		limiter,
		nil,
		0,
	)
	srv := httptest.NewServer(transport.NewServer(svc, auth.NewHeaderAuthenticator(), limiter, transport.Options{}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClientCommands(t *testing.T) {
	srv := newTestAPI(t)
	base := []string{"--url", srv.URL, "--user", "u1"}

	out, err := run(t, "", append([]string{"send", "Hello"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "[MOCK]")

	out, err = run(t, "", append([]string{"history"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "page 1/1, 1 sessions")

	out, err = run(t, "", append([]string{"stats"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"totalMessages": 2`)

	out, err = run(t, "", append([]string{"clear"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "(1 sessions)")

	_, err = run(t, "", append([]string{"session", "missing"}, base...)...)
	assert.Error(t, err)
}

func TestSendREPL(t *testing.T) {
	srv := newTestAPI(t)

	out, err := run(t, "first\n\nsecond\n/quit\n", "send", "--url", srv.URL, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, `"first"`)
	assert.Contains(t, out, `"second"`)

	out, err = run(t, "", "stats", "--url", srv.URL, "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, `"totalSessions": 1`, "REPL keeps one session")
	assert.Contains(t, out, `"totalMessages": 4`)
}
