package httpapi

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"voltmesh.io/internal/audit"
	"voltmesh.io/internal/auth"
	"voltmesh.io/internal/ids"
)

// Device is a dashboard device card: a metered unit reporting status and
// cumulative energy use.
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CompanyID string    `json:"companyId"`
	Status    string    `json:"status"`
	EnergyKWH float64   `json:"energyKwh"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeviceInventory is an in-memory device catalog. It exists to give the
// role and permission gates a real resource to protect; a production
// install swaps it for the platform's device service.
type DeviceInventory struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

func NewDeviceInventory() *DeviceInventory {
	return &DeviceInventory{devices: make(map[string]*Device)}
}

// Seed loads devices without going through the HTTP layer.
func (inv *DeviceInventory) Seed(devices ...Device) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for i := range devices {
		d := devices[i]
		if d.ID == "" {
			d.ID = ids.New()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		inv.devices[d.ID] = &d
	}
}

func (inv *DeviceInventory) list(companyID string) []Device {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]Device, 0, len(inv.devices))
	for _, d := range inv.devices {
		if companyID != "" && d.CompanyID != companyID {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (inv *DeviceInventory) get(id string) (Device, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	d, ok := inv.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

func (inv *DeviceInventory) add(d Device) Device {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if d.ID == "" {
		d.ID = ids.New()
	}
	d.CreatedAt = time.Now().UTC()
	inv.devices[d.ID] = &d
	return d
}

type createDeviceRequest struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	CompanyID string `json:"companyId,omitempty"`
	Status    string `json:"status,omitempty"`
}

func (a *API) handleDevicesCollection(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listDevices(w, r, user)
	case http.MethodPost:
		a.createDevice(w, r, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// listDevices requires devices.read. Non-admins only see their own
// company's fleet.
func (a *API) listDevices(w http.ResponseWriter, r *http.Request, user *auth.User) {
	if !a.ensurePermissions(w, r, user, auth.PermDevicesRead) {
		return
	}
	scope := user.CompanyID
	if user.Role == auth.RoleAdmin {
		scope = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": a.devices.list(scope),
	})
}

// createDevice requires devices.write; the device lands in the caller's
// company unless an admin names another.
func (a *API) createDevice(w http.ResponseWriter, r *http.Request, user *auth.User) {
	if !a.ensurePermissions(w, r, user, auth.PermDevicesWrite) {
		return
	}
	var req createDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	companyID := user.CompanyID
	if user.Role == auth.RoleAdmin && req.CompanyID != "" {
		companyID = req.CompanyID
	}
	status := req.Status
	if status == "" {
		status = "offline"
	}
	device := a.devices.add(Device{
		Name:      req.Name,
		Type:      req.Type,
		CompanyID: companyID,
		Status:    status,
	})
	_ = audit.LogEvent(r.Context(), "devices.create", map[string]any{
		"device_id":  device.ID,
		"company_id": device.CompanyID,
	})
	writeJSON(w, http.StatusCreated, device)
}

func (a *API) handleDeviceResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if !a.ensurePermissions(w, r, user, auth.PermDevicesRead) {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/devices/"), "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "device not found")
		return
	}
	device, found := a.devices.get(id)
	if !found {
		writeError(w, r, http.StatusNotFound, "device not found")
		return
	}
	if user.Role != auth.RoleAdmin && device.CompanyID != user.CompanyID {
		writeError(w, r, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, device)
}
