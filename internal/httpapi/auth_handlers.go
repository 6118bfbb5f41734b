package httpapi

import (
	"errors"
	"net/http"

	"voltmesh.io/internal/audit"
	"voltmesh.io/internal/auth"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// loginResponse is the contract the dashboard client consumes.
type loginResponse struct {
	User      *auth.User     `json:"user"`
	Tokens    auth.TokenPair `json:"tokens"`
	SessionID string         `json:"sessionId"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		CompanyID: req.CompanyID,
	})
	if err != nil {
		handleCredentialError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id":    result.User.ID,
		"email":      result.User.Email,
		"role":       result.User.Role,
		"session_id": result.SessionID,
	})
	writeJSON(w, http.StatusCreated, loginResponse{
		User:      result.User,
		Tokens:    result.Tokens,
		SessionID: result.SessionID,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleCredentialError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":    result.User.ID,
		"session_id": result.SessionID,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		User:      result.User,
		Tokens:    result.Tokens,
		SessionID: result.SessionID,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refreshToken is required")
		return
	}
	result, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id":    result.User.ID,
		"session_id": result.SessionID,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		User:      result.User,
		Tokens:    result.Tokens,
		SessionID: result.SessionID,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, _ := auth.IdentityFromContext(r.Context())
	if err := a.auth.Logout(r.Context(), id.SessionID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "logout failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func handleCredentialError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "email is already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrAccountDeactivated):
		respondAuthError(w, r, err)
	default:
		writeError(w, r, http.StatusInternalServerError, "authentication failed")
	}
}
