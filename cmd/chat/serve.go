package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/chat/internal/adapter/llm"
	"github.com/xiaot623/gogo/chat/internal/auth"
	"github.com/xiaot623/gogo/chat/internal/config"
	"github.com/xiaot623/gogo/chat/internal/contextwindow"
	"github.com/xiaot623/gogo/chat/internal/history"
	"github.com/xiaot623/gogo/chat/internal/logging"
	"github.com/xiaot623/gogo/chat/internal/policy"
	"github.com/xiaot623/gogo/chat/internal/provider"
	"github.com/xiaot623/gogo/chat/internal/ratelimit"
	"github.com/xiaot623/gogo/chat/internal/repository"
	"github.com/xiaot623/gogo/chat/internal/service"
	"github.com/xiaot623/gogo/chat/internal/session"
	transport "github.com/xiaot623/gogo/chat/internal/transport/http"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel, cfg.LogFormat)
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "failed to initialize store")
	}
	defer repo.Close()
	log.Info().Str("database", cfg.DatabaseURL).Msg("database initialized")

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return errors.Wrap(err, "failed to initialize policy engine")
	}

	authn, err := auth.New(cfg.AuthMode, cfg.JWTSecret)
	if err != nil {
		return errors.Wrap(err, "failed to initialize authenticator")
	}
	if cfg.AuthMode == auth.ModeHeader {
		log.Warn().Msg("AUTH_MODE=header trusts X-User-ID; do not expose this server directly")
	}

	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	var gatewayOpts []provider.Option
	gatewayOpts = append(gatewayOpts, provider.WithTimeout(cfg.LLMTimeout))
	if _, mock := llmClient.(*llm.MockClient); !mock && cfg.LLMAPIKey == "" {
		log.Warn().Msg("LLM_API_KEY is not set, every send will fail with a configuration error")
		gatewayOpts = append(gatewayOpts, provider.WithMissingCredentials())
	}
	params := provider.DefaultParams()
	params.Model = cfg.LLMModel
	params.MaxTokens = cfg.LLMMaxTokens
	params.Temperature = float32(cfg.LLMTemperature)
	gateway := provider.NewGateway(llmClient, params, gatewayOpts...)

	svc := service.New(
		session.NewStore(repo),
		history.NewPaginator(repo),
		contextwindow.NewBuilder(cfg.SystemPrompt, cfg.ContextWindow),
		gateway,
		limiter,
		policyEngine,
		cfg.MaxMessageLength,
	)

	e := transport.NewServer(svc, authn, limiter, transport.Options{
		CORSOrigins: cfg.CORSOrigins,
		Version:     version,
	})

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		addr := ":" + strconv.Itoa(cfg.HTTPPort)
		log.Info().Str("addr", addr).Str("model", gateway.Model()).Msg("starting chat server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server listen error")
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), transport.ShutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	return eg.Wait()
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func(), error) {
	limits := ratelimit.Limits{
		ratelimit.ScopeGlobal: {Window: cfg.GlobalRateWindow, Max: cfg.GlobalRateMax},
		ratelimit.ScopeChat:   {Window: cfg.ChatRateWindow, Max: cfg.ChatRateMax},
	}

	if cfg.RateLimitBackend != "redis" {
		return ratelimit.NewMemoryLimiter(limits), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := ratelimit.NewRedisLimiter(client, limits, "")
	if err := limiter.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.RedisAddr)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis rate limiter")
	return limiter, func() { _ = client.Close() }, nil
}
