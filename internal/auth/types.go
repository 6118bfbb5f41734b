package auth

import "time"

// Roles understood by the platform. Admins operate the whole platform,
// company accounts manage their own fleet, consumers see their own devices.
const (
	RoleAdmin    = "admin"
	RoleCompany  = "company"
	RoleConsumer = "consumer"
)

// PermissionWildcard grants every permission. Reserved for admin accounts.
const PermissionWildcard = "*"

// Built-in permission keys for dashboard resources.
const (
	PermDevicesRead     = "devices.read"
	PermDevicesWrite    = "devices.write"
	PermDashboardsRead  = "dashboards.read"
	PermDashboardsWrite = "dashboards.write"
	PermEnergyRead      = "energy.read"
	PermUsersManage     = "users.manage"
)

// User is an identity record. The auth subsystem reads users and only ever
// writes the last-login timestamp and the active flag (admin deactivation).
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	CompanyID     string     `json:"companyId,omitempty"`
	Permissions   []string   `json:"permissions"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"emailVerified"`
	PasswordHash  string     `json:"-"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// TokenPair is issued on every successful authentication. ExpiresAt is the
// access token expiry in epoch seconds; TokenType is always "Bearer".
// Field names follow the dashboard client contract.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	TokenType    string `json:"tokenType"`
}

// DefaultPermissions returns the permission set granted to a freshly
// registered user of the given role.
func DefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{PermissionWildcard}
	case RoleCompany:
		return []string{
			PermDevicesRead, PermDevicesWrite,
			PermDashboardsRead, PermDashboardsWrite,
			PermEnergyRead, PermUsersManage,
		}
	default:
		return []string{PermDevicesRead, PermDashboardsRead, PermEnergyRead}
	}
}
