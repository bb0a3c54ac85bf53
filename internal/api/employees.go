package api

import (
	"net/http"
)

func handleListEmployees(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Roster == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ROSTER_NOT_CONFIGURED", "employee roster is not configured", false, nil)
		return
	}
	employees, err := deps.Roster.ListEmployees(r.Context())
	if err != nil {
		logError(r.Context(), deps.Logger, "list employees failed", err)
		writeError(r.Context(), w, http.StatusInternalServerError, "ROSTER_FETCH_FAILED", "failed to list employees", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": employees, "count": len(employees)})
}
