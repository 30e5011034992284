package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/timed-quiz/internal/config"
	"github.com/gokatarajesh/timed-quiz/internal/logging"
	"github.com/gokatarajesh/timed-quiz/internal/metrics"
	"github.com/gokatarajesh/timed-quiz/internal/question"
	"github.com/gokatarajesh/timed-quiz/internal/question/external"
	"github.com/gokatarajesh/timed-quiz/internal/results"
	"github.com/gokatarajesh/timed-quiz/internal/server"
	"github.com/gokatarajesh/timed-quiz/internal/session"
	"github.com/gokatarajesh/timed-quiz/internal/token"
	ws "github.com/gokatarajesh/timed-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (cache, result store, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis    *redis.Client
	http     *http.Server
	sessions *session.Service
	warmer   *question.Warmer
}

// New bootstraps the logger, optional Redis, the question source and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Msg("starting application bootstrap")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		redisClient *redis.Client
		cache       question.BatchCache
		store       results.Store
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache = question.NewCache(redisClient, cfg.Questions.CacheTTL)
		store = results.NewRedisStore(redisClient, cfg.Quiz.ResultTTL, logger)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
	} else {
		store = results.NewMemoryStore(cfg.Quiz.ResultTTL)
		logger.Warn().Msg("REDIS_ADDR not set; using in-memory result store without question cache")
	}

	source := question.NewSource(
		external.NewOpenTDBClient(cfg.Questions.BaseURL, nil),
		cache,
		question.Options{
			Category:     cfg.Questions.Category,
			Difficulty:   cfg.Questions.Difficulty,
			Type:         cfg.Questions.Type,
			MaxRetries:   cfg.Questions.MaxRetries,
			RetryDelay:   cfg.Questions.RetryDelay,
			FetchTimeout: cfg.Questions.FetchTimeout,
		},
		m,
		logger,
	)

	var warmer *question.Warmer
	if cache != nil {
		warmer = question.NewWarmer(source, logger, cfg.Questions.FetchTimeout)
	}

	tokens := token.NewManager(token.Config{
		Secret: []byte(cfg.Security.SessionTokenSecret),
		TTL:    cfg.Quiz.ResultTTL,
		Issuer: cfg.Name,
	})
	hub := ws.NewHub(logger)

	sessions := session.NewService(source, store, tokens, hub, m, session.ServiceOptions{
		QuestionCount:   cfg.Quiz.QuestionCount,
		DurationSeconds: cfg.Quiz.DurationSeconds,
		FetchTimeout:    cfg.Questions.FetchTimeout,
		Retention:       cfg.Quiz.SessionRetention,
	}, logger)

	auth := token.RequireSession(tokens)
	httpHandlers := session.NewHTTPHandlers(sessions, logger)
	wsHandler := session.NewHandler(sessions, hub, server.NewWSUpgrader(cfg.CORS.AllowedOrigins), logger)

	apiServer := server.NewHTTPServer(cfg, logger, redisClient, reg, func(mux *http.ServeMux) {
		httpHandlers.Register(mux, auth)
		wsHandler.Register(mux, auth)
	})

	return &Application{
		cfg:      cfg,
		logger:   logger,
		redis:    redisClient,
		http:     apiServer,
		sessions: sessions,
		warmer:   warmer,
	}, nil
}

// Run starts the HTTP server and background workers and waits for a
// termination signal or a fatal error.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if a.warmer != nil {
		a.warmer.Enqueue(a.cfg.Quiz.QuestionCount)
		g.Go(func() error {
			a.warmer.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutdown signal received")
		a.shutdown()
		return nil
	})

	err := g.Wait()
	a.logger.Info().Msg("shutdown complete")
	return err
}

func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.sessions.Shutdown()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}
