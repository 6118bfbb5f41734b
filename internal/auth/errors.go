package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Failure codes surfaced in response bodies and metrics labels.
const (
	CodeNoToken                 = "NO_TOKEN"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeExpiredToken            = "EXPIRED_TOKEN"
	CodeSessionTerminated       = "SESSION_TERMINATED"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeAccountDeactivated      = "ACCOUNT_DEACTIVATED"
	CodeInsufficientRole        = "INSUFFICIENT_ROLE"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
)

var (
	ErrNoToken            = errors.New("auth: missing bearer token")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrExpiredToken       = errors.New("auth: token expired")
	ErrSessionTerminated  = errors.New("auth: session terminated")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrAccountDeactivated = errors.New("auth: account deactivated")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)

// RoleError reports a role gate failure with the roles the operation
// accepts and the role the caller holds.
type RoleError struct {
	Required []string
	Current  string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("auth: role %q not in allowed set [%s]", e.Current, strings.Join(e.Required, ", "))
}

// PermissionError reports a permission gate failure with the full required
// set and the caller's current set, for debuggability on the client side.
type PermissionError struct {
	Required []string
	Current  []string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("auth: missing permissions, required [%s], current [%s]",
		strings.Join(e.Required, ", "), strings.Join(e.Current, ", "))
}

// Code maps an auth failure to its taxonomy code. Unknown errors map to
// INVALID_TOKEN so nothing leaks internals through the failure channel.
func Code(err error) string {
	var roleErr *RoleError
	var permErr *PermissionError
	switch {
	case errors.Is(err, ErrNoToken):
		return CodeNoToken
	case errors.Is(err, ErrExpiredToken):
		return CodeExpiredToken
	case errors.Is(err, ErrSessionTerminated):
		return CodeSessionTerminated
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, ErrAccountDeactivated):
		return CodeAccountDeactivated
	case errors.As(err, &roleErr):
		return CodeInsufficientRole
	case errors.As(err, &permErr):
		return CodeInsufficientPermissions
	default:
		return CodeInvalidToken
	}
}

// IsAuthorizationError reports whether err is a role or permission gate
// failure (HTTP 403) as opposed to an authentication failure (HTTP 401).
func IsAuthorizationError(err error) bool {
	var roleErr *RoleError
	var permErr *PermissionError
	return errors.As(err, &roleErr) || errors.As(err, &permErr)
}
