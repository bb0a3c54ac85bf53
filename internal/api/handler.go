package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrchat/hrchat/internal/chat"
	"github.com/hrchat/hrchat/internal/config"
	"github.com/hrchat/hrchat/internal/llm"
	"github.com/hrchat/hrchat/internal/observability"
	"github.com/hrchat/hrchat/internal/session"
	"github.com/hrchat/hrchat/internal/store/sqlstore"
)

type ReadinessCheck func(ctx context.Context) error

type ChatService interface {
	AskDatabase(ctx context.Context, req chat.Request) (chat.Answer, error)
	Chat(ctx context.Context, message string, history []llm.Message) (string, error)
}

type RosterLister interface {
	ListEmployees(ctx context.Context) ([]sqlstore.RosterEntry, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Chat              ChatService
	Roster            RosterLister
	Sessions          session.Store
	UI                http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/chat/db", func(w http.ResponseWriter, r *http.Request) {
		handleDatabaseChat(cfg, deps, w, r)
	})
	protected.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		handleChat(cfg, deps, w, r)
	})
	protected.HandleFunc("GET /v1/employees", func(w http.ResponseWriter, r *http.Request) {
		handleListEmployees(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		handleCreateSession(deps, w, r)
	})
	protected.HandleFunc("GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSession(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleDeleteSession(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	switch {
	case deps.AuthMiddleware != nil:
		protectedHandler = deps.AuthMiddleware(protectedHandler)
	case cfg.Auth.Required:
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
	mux.Handle("POST /v1/chat/db", protectedHandler)
	mux.Handle("POST /v1/chat", protectedHandler)
	mux.Handle("GET /v1/employees", protectedHandler)
	mux.Handle("POST /v1/sessions", protectedHandler)
	mux.Handle("GET /v1/sessions/{id}", protectedHandler)
	mux.Handle("DELETE /v1/sessions/{id}", protectedHandler)
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckStore pings the HR store.
func CheckStore(store interface{ HealthCheck(context.Context) error }) ReadinessCheck {
	return func(ctx context.Context) error {
		if store == nil {
			return errors.New("hr store is not configured")
		}
		return store.HealthCheck(ctx)
	}
}

func CheckModelConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("model api key is not configured")
		}
		if cfg.AI.Model == "" {
			return errors.New("model name is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error":      message,
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
