package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"voltmesh.io/internal/audit"
	"voltmesh.io/internal/auth"
)

// Admin directory surface. All routes here sit behind RequireRole(admin).

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "listing users failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "deactivate" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID := parts[0]
	if err := a.auth.DeactivateUser(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "user not found")
		default:
			writeError(w, r, http.StatusInternalServerError, "deactivation failed")
		}
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.user.deactivate", map[string]any{
		"target_user_id": userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminSessionResource force-terminates a session by id: the owner's
// next request fails with SESSION_TERMINATED even though their token is
// still cryptographically valid.
func (a *API) handleAdminSessionResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/sessions/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "revoke" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	sessionID := parts[0]
	if err := a.auth.RevokeSession(r.Context(), sessionID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "revocation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "admin.session.revoke", map[string]any{
		"target_session_id": sessionID,
	})
	w.WriteHeader(http.StatusNoContent)
}
