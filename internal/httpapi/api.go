package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"voltmesh.io/internal/auth"
	"voltmesh.io/internal/obs"
)

// ReadyProbe pings backing stores for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	devices    *DeviceInventory
	readyProbe ReadyProbe
	version    string
}

func New(authSvc *auth.Service, devices *DeviceInventory, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		devices:    devices,
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/v1/info", a.OptionalAuth(http.HandlerFunc(a.Info)))

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth endpoints; logout and me require a live session
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.Handle("/v1/auth/logout", a.RequireAuth(http.HandlerFunc(a.handleLogout)))
	a.mux.Handle("/v1/auth/me", a.RequireAuth(http.HandlerFunc(a.handleMe)))

	// device inventory; per-method permission checks live in the handlers
	a.mux.Handle("/v1/devices", a.RequireAuth(http.HandlerFunc(a.handleDevicesCollection)))
	a.mux.Handle("/v1/devices/", a.RequireAuth(http.HandlerFunc(a.handleDeviceResource)))

	// admin directory
	a.mux.Handle("/v1/admin/users", a.RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleAdminUsers)))
	a.mux.Handle("/v1/admin/users/", a.RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleAdminUserResource)))
	a.mux.Handle("/v1/admin/sessions/", a.RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleAdminSessionResource)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "voltmesh-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// Info is public but identity-aware: behind OptionalAuth it reports who is
// asking when a valid token is presented and stays anonymous otherwise.
func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"name":    "voltmesh-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		resp["authenticated"] = true
		resp["userId"] = id.UserID
		resp["role"] = id.Role
	} else {
		resp["authenticated"] = false
	}
	writeJSON(w, http.StatusOK, resp)
}
