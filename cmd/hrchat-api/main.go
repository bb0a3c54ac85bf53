package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hrchat/hrchat/internal/api"
	"github.com/hrchat/hrchat/internal/api/uistatic"
	"github.com/hrchat/hrchat/internal/auth"
	"github.com/hrchat/hrchat/internal/chat"
	"github.com/hrchat/hrchat/internal/config"
	"github.com/hrchat/hrchat/internal/datenorm"
	"github.com/hrchat/hrchat/internal/guard"
	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/llm"
	"github.com/hrchat/hrchat/internal/narrator"
	"github.com/hrchat/hrchat/internal/nl2sql"
	"github.com/hrchat/hrchat/internal/observability"
	"github.com/hrchat/hrchat/internal/session"
	sessionredis "github.com/hrchat/hrchat/internal/session/redis"
	"github.com/hrchat/hrchat/internal/store"
	"github.com/hrchat/hrchat/internal/store/sqlstore"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("hrchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	db, err := store.Open(startupCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to open hr store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	hrStore := sqlstore.New(db)

	model, err := llm.New(startupCtx, cfg.AI)
	if err != nil {
		logger.Error("failed to initialize language model", slog.Any("error", err))
		os.Exit(1)
	}

	sessions, closeSessions, err := openSessions(startupCtx, cfg)
	if err != nil {
		logger.Error("failed to initialize session store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeSessions()

	service := &chat.Service{
		Guard:      guard.New(),
		Translator: nl2sql.NewLLMTranslator(model),
		Executor:   hrquery.NewExecutor(hrStore, datenorm.New(cfg.Chat.CorrectStaleYear, logger), logger),
		Names:      hrStore,
		Narrator:   narrator.New(model, cfg.Chat.NarratorMaxRows),
		Model:      model,
		Logger:     logger,
	}

	deps := api.Dependencies{
		Logger:   logger,
		Chat:     service,
		Roster:   hrStore,
		Sessions: sessions,
		UI:       uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			api.CheckStore(hrStore),
			api.CheckModelConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
	if err != nil {
		logger.Error("failed to parse static auth keys", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.Auth.Required {
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	} else if cfg.Auth.StaticKeys != "" {
		deps.AuthMiddleware = auth.Optional(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_driver", cfg.Store.Driver),
			slog.String("ai_provider", cfg.AI.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openSessions(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	policy := session.Policy{
		InitialCredits: cfg.Session.InitialCredits,
		TTL:            cfg.Session.TTL,
		MaxActive:      cfg.Session.MaxActive,
	}
	if cfg.Session.RedisURL == "" {
		return session.NewMemoryStore(policy), func() {}, nil
	}
	client, err := sessionredis.NewClient(ctx, cfg.Session.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return sessionredis.New(client, policy), func() { _ = client.Close() }, nil
}
