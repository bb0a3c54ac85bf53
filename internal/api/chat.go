package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hrchat/hrchat/internal/auth"
	"github.com/hrchat/hrchat/internal/chat"
	"github.com/hrchat/hrchat/internal/config"
	"github.com/hrchat/hrchat/internal/hrquery"
	"github.com/hrchat/hrchat/internal/llm"
	"github.com/hrchat/hrchat/internal/observability"
	"github.com/hrchat/hrchat/internal/session"
)

const sessionHeader = "X-Session-ID"

type databaseChatRequest struct {
	Message    string `json:"message"`
	EmployeeID *int64 `json:"employeeId"`
}

type databaseChatResponse struct {
	Reply            string         `json:"reply"`
	QueryStructure   *hrquery.Query `json:"queryStructure,omitempty"`
	ResultsCount     int            `json:"resultsCount"`
	Personalized     bool           `json:"personalized"`
	Restricted       bool           `json:"restricted,omitempty"`
	CreditsRemaining *int           `json:"creditsRemaining,omitempty"`
}

type chatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

func handleDatabaseChat(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat pipeline is not configured", false, nil)
		return
	}

	var request databaseChatRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	employeeID, scope, err := resolveEmployee(r.Context(), request.EmployeeID)
	if err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	current, ok := spendCredit(deps, w, r)
	if !ok {
		return
	}
	if employeeID == nil && current != nil {
		employeeID = current.EmployeeID
	}

	ctx, cancel := chatContext(r.Context(), cfg)
	defer cancel()
	answer, err := deps.Chat.AskDatabase(ctx, chat.Request{
		Question:   request.Message,
		EmployeeID: employeeID,
		Scope:      scope,
	})
	if err != nil {
		writeChatError(r.Context(), deps.Logger, w, err)
		return
	}

	response := databaseChatResponse{
		Reply:        answer.Reply,
		Restricted:   answer.Restricted,
		ResultsCount: answer.ResultsCount,
		Personalized: answer.Personalized,
	}
	if !answer.Restricted {
		response.QueryStructure = answer.Query
	}
	if current != nil {
		credits := current.Credits
		response.CreditsRemaining = &credits
	}
	writeJSON(w, http.StatusOK, response)
}

func handleChat(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat is not configured", false, nil)
		return
	}

	var request chatRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}
	for _, message := range request.History {
		if message.Role != llm.RoleUser && message.Role != llm.RoleAssistant {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_HISTORY", "history roles must be user or assistant", false, map[string]any{"role": message.Role})
			return
		}
	}

	if _, ok := spendCredit(deps, w, r); !ok {
		return
	}

	ctx, cancel := chatContext(r.Context(), cfg)
	defer cancel()
	reply, err := deps.Chat.Chat(ctx, request.Message, request.History)
	if err != nil {
		writeChatError(r.Context(), deps.Logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func chatContext(ctx context.Context, cfg config.Config) (context.Context, context.CancelFunc) {
	if cfg.Chat.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Chat.Timeout)
}

// spendCredit charges the session named by X-Session-ID. Requests without the
// header are not metered. It reports false after writing an error response.
func spendCredit(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sessionID == "" || deps.Sessions == nil {
		return nil, true
	}
	current, err := deps.Sessions.Consume(r.Context(), sessionID)
	switch {
	case err == nil:
		return &current, true
	case errors.Is(err, session.ErrNotFound):
		observability.IncrementSessionRejection("not_found")
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired", false, nil)
	case errors.Is(err, session.ErrNoCredits):
		observability.IncrementSessionRejection("no_credits")
		writeError(r.Context(), w, http.StatusTooManyRequests, "CREDITS_EXHAUSTED", "ขออภัยค่ะ เครดิตการใช้งานของเซสชันนี้หมดแล้ว", false, map[string]any{"session_id": sessionID})
	default:
		logError(r.Context(), deps.Logger, "consume session credit failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_STORE_FAILED", "failed to charge session credit", true, nil)
	}
	return nil, false
}

// resolveEmployee reconciles the requested employee with the caller's
// identity. A caller bound to one employee may only act as that employee.
func resolveEmployee(ctx context.Context, requested *int64) (*int64, hrquery.Scope, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return requested, hrquery.Scope{}, nil
	}
	scope := identity.Scope()
	if !scope.Restricted() {
		return requested, scope, nil
	}
	if requested != nil && *requested != *scope.EmployeeID {
		return nil, hrquery.Scope{}, errors.New("api key may only act for its own employee")
	}
	id := *scope.EmployeeID
	return &id, scope, nil
}

func logError(ctx context.Context, logger *slog.Logger, message string, err error) {
	if logger == nil {
		return
	}
	logger.ErrorContext(ctx, message,
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.Any("error", err),
	)
}
