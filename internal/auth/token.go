package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	// MinSecretLen is the minimum accepted signing secret length. Shorter
	// secrets are refused at construction time rather than silently used.
	MinSecretLen = 32

	refreshTokenType = "refresh"
)

// AccessClaims is the access token payload: identity plus authorization
// claims, and the session id the middleware checks against the registry.
type AccessClaims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	CompanyID   string   `json:"companyId,omitempty"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"sessionId"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh token payload. TokenType is always
// "refresh"; its absence is what stops an access token being replayed
// against the refresh endpoint.
type RefreshClaims struct {
	TokenType string `json:"type"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// Codec issues and verifies the two token kinds. Access and refresh
// tokens are signed with independent secrets, so compromising one cannot
// forge the other.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithAccessTTL configures the access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithIssuer sets the token issuer claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. Both secrets are required, must meet the
// minimum length, and must differ from each other.
func NewCodec(accessSecret, refreshSecret string, opts ...CodecOption) (*Codec, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if len(accessSecret) < MinSecretLen {
		return nil, fmt.Errorf("access secret must be at least %d characters", MinSecretLen)
	}
	if len(refreshSecret) < MinSecretLen {
		return nil, fmt.Errorf("refresh secret must be at least %d characters", MinSecretLen)
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	c := &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// IssueAccessToken signs an access token carrying the user's identity and
// authorization claims, bound to the given session.
func (c *Codec) IssueAccessToken(u *User, sessionID string) (string, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	now := c.now().UTC()
	claims := AccessClaims{
		Email:       u.Email,
		Role:        u.Role,
		CompanyID:   u.CompanyID,
		Permissions: u.Permissions,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a refresh token for the user bound to the given
// session, carrying the type discriminator.
func (c *Codec) IssueRefreshToken(userID, sessionID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := c.now().UTC()
	claims := RefreshClaims{
		TokenType: refreshTokenType,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// IssueTokenPair composes the two issue calls; ExpiresAt is the access
// token expiry in epoch seconds.
func (c *Codec) IssueTokenPair(u *User, sessionID string) (TokenPair, error) {
	access, err := c.IssueAccessToken(u, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := c.IssueRefreshToken(u.ID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    c.now().UTC().Add(c.accessTTL).Unix(),
		TokenType:    "Bearer",
	}, nil
}

// VerifyAccessToken validates signature, expiry, and required claim shape.
// Expired tokens fail with ErrExpiredToken, everything else with
// ErrInvalidToken; the distinction feeds logging and metrics.
func (c *Codec) VerifyAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(token, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token, additionally rejecting
// any token without the refresh type discriminator.
func (c *Codec) VerifyRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != refreshTokenType {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuedAt())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	if c.issuer != "" {
		iss, err := parsed.Claims.GetIssuer()
		if err != nil || iss != c.issuer {
			return ErrInvalidToken
		}
	}
	return nil
}
