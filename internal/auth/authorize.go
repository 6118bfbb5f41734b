package auth

// The admin bypass lives in these two functions and nowhere else, so the
// privileged path stays auditable in one place.

// AuthorizeRole checks that the user's role is in the allowed set. Admins
// pass unconditionally.
func AuthorizeRole(u *User, allowed ...string) error {
	if u.Role == RoleAdmin {
		return nil
	}
	for _, role := range allowed {
		if u.Role == role {
			return nil
		}
	}
	return &RoleError{Required: allowed, Current: u.Role}
}

// AuthorizePermissions checks that the user holds every required
// permission. Admins and wildcard holders pass unconditionally.
func AuthorizePermissions(u *User, required ...string) error {
	if u.Role == RoleAdmin {
		return nil
	}
	held := make(map[string]struct{}, len(u.Permissions))
	for _, p := range u.Permissions {
		if p == PermissionWildcard {
			return nil
		}
		held[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := held[p]; !ok {
			return &PermissionError{Required: required, Current: u.Permissions}
		}
	}
	return nil
}
