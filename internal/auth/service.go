package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voltmesh.io/internal/ids"
	"voltmesh.io/internal/obs"
	"voltmesh.io/internal/session"
)

// Service orchestrates credential validation, token issuance, session
// lifecycle, and the per-request authentication path the middleware runs.
type Service struct {
	codec    *Codec
	users    UserStore
	sessions session.Registry
	now      func() time.Time
}

// NewService wires the codec, credential store, and session registry.
func NewService(codec *Codec, users UserStore, sessions session.Registry) (*Service, error) {
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if sessions == nil {
		return nil, errors.New("auth: session registry is required")
	}
	return &Service{codec: codec, users: users, sessions: sessions, now: time.Now}, nil
}

// Codec exposes the underlying token codec, used by the HTTP layer to
// report the access TTL and by tests.
func (s *Service) Codec() *Codec { return s.codec }

// LoginResult is what register, login, and refresh hand back: the user,
// a fresh token pair, and the session id the pair is bound to.
type LoginResult struct {
	User      *User
	Tokens    TokenPair
	SessionID string
}

// RegisterInput carries registration fields. Role defaults to consumer;
// permissions default per role.
type RegisterInput struct {
	Email     string
	Password  string
	Role      string
	CompanyID string
}

// Register creates a user and signs it in, issuing a fresh session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	role := in.Role
	switch role {
	case "":
		role = RoleConsumer
	case RoleAdmin, RoleCompany, RoleConsumer:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Email:        email,
		Role:         role,
		CompanyID:    strings.TrimSpace(in.CompanyID),
		Permissions:  DefaultPermissions(role),
		Active:       true,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

// Login validates credentials and issues a token pair plus session id.
// Unknown emails and bad passwords fail identically so the endpoint does
// not leak which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountDeactivated
	}
	if err := s.users.TouchLastLogin(ctx, user.ID, s.now()); err == nil {
		at := s.now().UTC()
		user.LastLoginAt = &at
	}
	return s.startSession(ctx, user)
}

// Refresh exchanges a refresh token for a new pair bound to the same
// session. A deactivated session cuts off refresh as well as access.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.SessionID != "" {
		active, err := s.sessions.IsActive(ctx, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrSessionTerminated
		}
	}
	user, err := s.resolveUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	tokens, err := s.codec.IssueTokenPair(user, claims.SessionID)
	if err != nil {
		return nil, err
	}
	obs.TokenIssued("access")
	obs.TokenIssued("refresh")
	return &LoginResult{User: user, Tokens: tokens, SessionID: claims.SessionID}, nil
}

// Logout deactivates the session. Idempotent; unknown ids are a no-op.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	obs.SessionClosed()
	return nil
}

// RevokeSession force-terminates a session without the owner's
// cooperation (admin action).
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	return s.Logout(ctx, sessionID)
}

// Authenticate runs the per-request path: verify, session liveness,
// user resolution, active flag. Authorization is the caller's step.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, *AccessClaims, error) {
	claims, err := s.codec.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.sessions.IsActive(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if !active {
		return nil, nil, ErrSessionTerminated
	}
	user, err := s.resolveUser(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// User returns the stored user by id, mapping store errors to the
// taxonomy. Used by the /me handler and the admin surface.
func (s *Service) User(ctx context.Context, id string) (*User, error) {
	return s.resolveUser(ctx, id)
}

// ListUsers returns every stored user, for the admin directory.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// DeactivateUser flips the active flag off. The account fails the
// middleware's active check immediately; no token revocation needed.
func (s *Service) DeactivateUser(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.users.SetActive(ctx, id, false)
}

func (s *Service) resolveUser(ctx context.Context, id string) (*User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDeactivated
	}
	return user, nil
}

func (s *Service) startSession(ctx context.Context, user *User) (*LoginResult, error) {
	sessionID := ids.New()
	tokens, err := s.codec.IssueTokenPair(user, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Activate(ctx, sessionID); err != nil {
		return nil, err
	}
	obs.SessionOpened()
	obs.TokenIssued("access")
	obs.TokenIssued("refresh")
	return &LoginResult{User: user, Tokens: tokens, SessionID: sessionID}, nil
}
