package auth

import (
	"context"
	"time"
)

// UserStore is the credential-store boundary. Lookups are what the auth
// path needs; Create, SetActive, and List serve registration and the
// admin directory surface.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context) ([]*User, error)
}
