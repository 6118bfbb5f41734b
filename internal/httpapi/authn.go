package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"voltmesh.io/internal/auth"
	"voltmesh.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// authenticate runs the shared request path: extract bearer token, verify
// it, check session liveness, resolve the user. Authorization is layered
// on top by the gate variants.
func (a *API) authenticate(r *http.Request) (*auth.User, *auth.AccessClaims, error) {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return nil, nil, err
	}
	user, claims, err := a.auth.Authenticate(r.Context(), token)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// RequireAuth admits any authenticated user with a live session.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := a.authenticate(r)
		if err != nil {
			respondAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r, user, claims)))
	})
}

// RequireRole admits authenticated users whose role is in the allowed
// set. Admins pass every role gate.
func (a *API) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := a.authenticate(r)
			if err != nil {
				respondAuthError(w, r, err)
				return
			}
			if err := auth.AuthorizeRole(user, roles...); err != nil {
				respondAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r, user, claims)))
		})
	}
}

// RequirePermissions admits authenticated users holding every listed
// permission. Admins and wildcard holders pass every permission gate.
func (a *API) RequirePermissions(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := a.authenticate(r)
			if err != nil {
				respondAuthError(w, r, err)
				return
			}
			if err := auth.AuthorizePermissions(user, perms...); err != nil {
				respondAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r, user, claims)))
		})
	}
}

// OptionalAuth attaches identity when a valid token is presented and
// proceeds anonymously otherwise. It never fails the request, which is
// what endpoints with mixed public/authenticated behavior need.
func (a *API) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := a.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r, user, claims)))
	})
}

// ensurePermissions is the in-handler variant for endpoints that gate
// per method rather than per route. The caller must already be
// authenticated.
func (a *API) ensurePermissions(w http.ResponseWriter, r *http.Request, user *auth.User, perms ...string) bool {
	if err := auth.AuthorizePermissions(user, perms...); err != nil {
		respondAuthError(w, r, err)
		return false
	}
	return true
}

// currentUser re-resolves the authenticated user from the identity the
// gate attached.
func (a *API) currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondAuthError(w, r, auth.ErrNoToken)
		return nil, false
	}
	user, err := a.auth.User(r.Context(), id.UserID)
	if err != nil {
		respondAuthError(w, r, err)
		return nil, false
	}
	return user, true
}

func withIdentity(r *http.Request, user *auth.User, claims *auth.AccessClaims) context.Context {
	ctx := auth.ContextWithIdentity(r.Context(), auth.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: claims.SessionID,
	})
	if token, err := extractBearerToken(r.Header.Get(authHeader)); err == nil {
		ctx = auth.ContextWithToken(ctx, token)
	}
	return ctx
}

// respondAuthError maps a failure to 401 or 403, includes the taxonomy
// code, and for authorization failures the required vs current sets.
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	code := auth.Code(err)
	obs.AuthFailure(code)

	payload := map[string]any{
		"error": err.Error(),
		"code":  code,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}

	status := http.StatusUnauthorized
	if auth.IsAuthorizationError(err) {
		status = http.StatusForbidden
		var roleErr *auth.RoleError
		var permErr *auth.PermissionError
		switch {
		case errors.As(err, &roleErr):
			payload["required"] = roleErr.Required
			payload["current"] = roleErr.Current
		case errors.As(err, &permErr):
			payload["required"] = permErr.Required
			payload["current"] = permErr.Current
		}
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="voltmesh"`)
	writeJSON(w, status, payload)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.ErrNoToken
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", auth.ErrNoToken
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", auth.ErrNoToken
	}
	return token, nil
}
