package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/hrchat/hrchat/internal/session"
)

type createSessionRequest struct {
	EmployeeID *int64 `json:"employeeId"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "sessions are not configured", false, nil)
		return
	}

	var request createSessionRequest
	if err := decodeJSON(w, r, &request); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid session request body", false, map[string]any{"details": err.Error()})
		return
	}
	employeeID, _, err := resolveEmployee(r.Context(), request.EmployeeID)
	if err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	created, err := deps.Sessions.Create(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, session.ErrCapacity) {
			writeError(r.Context(), w, http.StatusTooManyRequests, "TOO_MANY_SESSIONS", "ขออภัยค่ะ ขณะนี้มีผู้ใช้งานเต็มจำนวน กรุณาลองใหม่ภายหลัง", true, nil)
			return
		}
		logError(r.Context(), deps.Logger, "create session failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_STORE_FAILED", "failed to create session", true, nil)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "sessions are not configured", false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	current, err := deps.Sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found or expired", false, nil)
			return
		}
		logError(r.Context(), deps.Logger, "get session failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_STORE_FAILED", "failed to load session", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "sessions are not configured", false, nil)
		return
	}
	if err := deps.Sessions.Delete(r.Context(), strings.TrimSpace(r.PathValue("id"))); err != nil {
		logError(r.Context(), deps.Logger, "delete session failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_STORE_FAILED", "failed to end session", true, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
