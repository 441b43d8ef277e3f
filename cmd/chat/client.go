package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/chat/internal/client"
	"github.com/xiaot623/gogo/chat/internal/domain"
)

type clientFlags struct {
	url     string
	token   string
	user    string
	timeout time.Duration
}

func (f *clientFlags) client() *client.Client {
	opts := []client.Option{}
	if f.token != "" {
		opts = append(opts, client.WithToken(f.token))
	}
	if f.user != "" {
		opts = append(opts, client.WithUserID(f.user))
	}
	return client.NewClient(f.url, opts...)
}

func (f *clientFlags) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), f.timeout)
}

func addClientCommands(root *cobra.Command) {
	flags := &clientFlags{}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.url, "url", envOr("CHAT_URL", "http://localhost:5000"), "chat API base URL")
	pf.StringVar(&flags.token, "token", os.Getenv("CHAT_TOKEN"), "bearer token")
	pf.StringVar(&flags.user, "user", os.Getenv("CHAT_USER"), "user id sent as X-User-ID (header auth mode)")
	pf.DurationVar(&flags.timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(
		newSendCommand(flags),
		newHistoryCommand(flags),
		newSessionCommand(flags),
		newDeleteCommand(flags),
		newClearCommand(flags),
		newStatsCommand(flags),
	)
}

func newSendCommand(flags *clientFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message and print the reply",
		Long:  "Send a message. With no argument, read lines from stdin and keep the conversation going.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				resp, err := send(cmd, flags, sessionID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				fmt.Fprintf(cmd.ErrOrStderr(), "session=%s tokens=%d latency=%dms model=%s\n",
					resp.SessionID, resp.Metadata.TokenCount, resp.Metadata.LatencyMs, resp.Metadata.Model)
				return nil
			}
			return repl(cmd, flags, sessionID, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "continue an existing session")
	return cmd
}

func send(cmd *cobra.Command, flags *clientFlags, sessionID, message string) (*domain.SendMessageResponse, error) {
	ctx, cancel := flags.context(cmd)
	defer cancel()
	return flags.client().SendMessage(ctx, domain.SendMessageRequest{Message: message, SessionID: sessionID})
}

func repl(cmd *cobra.Command, flags *clientFlags, sessionID string, in io.Reader) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		resp, err := send(cmd, flags, sessionID, line)
		if err != nil {
			// Provider failures still carry the session so the conversation continues.
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.SessionID != "" {
				sessionID = apiErr.SessionID
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			continue
		}
		sessionID = resp.SessionID
		fmt.Fprintln(out, resp.Message)
	}
}

func newHistoryCommand(flags *clientFlags) *cobra.Command {
	var (
		page, limit int
		sessionID   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List conversation sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.context(cmd)
			defer cancel()
			result, err := flags.client().ListHistory(ctx, domain.HistoryQuery{Page: page, PageSize: limit, SessionID: sessionID})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range result.Sessions {
				fmt.Fprintf(out, "%s  %3d msgs  %s  %s\n", s.SessionID, s.TurnCount, s.UpdatedAt.Format(time.RFC3339), s.Summary)
			}
			p := result.Pagination
			fmt.Fprintf(out, "page %d/%d, %d sessions\n", p.CurrentPage, p.TotalPages, p.TotalSessions)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "sessions per page (1-50)")
	cmd.Flags().StringVar(&sessionID, "session", "", "only this session")
	return cmd
}

func newSessionCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.context(cmd)
			defer cancel()
			s, err := flags.client().GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
}

func newDeleteCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.context(cmd)
			defer cancel()
			resp, err := flags.client().DeleteSession(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newClearCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.context(cmd)
			defer cancel()
			resp, err := flags.client().ClearHistory(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d sessions)\n", resp.Message, resp.Cleared)
			return nil
		},
	}
}

func newStatsCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := flags.context(cmd)
			defer cancel()
			stats, err := flags.client().Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
