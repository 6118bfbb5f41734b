// Package client is a Go client for the VoltMesh auth API. It holds the
// current token pair and keeps the access token fresh by refreshing a
// fixed margin before expiry, the same cycle the dashboard runs in the
// browser.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"voltmesh.io/internal/auth"
)

const defaultRefreshMargin = 5 * time.Minute

// ErrNotAuthenticated is returned when an operation needs tokens the
// client does not hold.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// Client talks to the auth endpoints and injects bearer credentials into
// outgoing requests.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	refreshMargin time.Duration
	now           func() time.Time

	mu        sync.Mutex
	tokens    auth.TokenPair
	sessionID string
	user      *auth.User
	timer     *time.Timer
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRefreshMargin sets how long before expiry the background refresh
// fires.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshMargin = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Client) {
		if fn != nil {
			c.now = fn
		}
	}
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		refreshMargin: defaultRefreshMargin,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionResponse struct {
	User      *auth.User     `json:"user"`
	Tokens    auth.TokenPair `json:"tokens"`
	SessionID string         `json:"sessionId"`
}

// Login exchanges credentials for a token pair and starts the refresh
// cycle.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.User, error) {
	var resp sessionResponse
	err := c.post(ctx, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "", &resp)
	if err != nil {
		return nil, err
	}
	c.store(resp)
	return resp.User, nil
}

// Refresh exchanges the held refresh token for a new pair. On failure the
// client drops its credentials: the session is gone and the caller must
// log in again.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.tokens.RefreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return ErrNotAuthenticated
	}
	var resp sessionResponse
	err := c.post(ctx, "/v1/auth/refresh", map[string]string{
		"refreshToken": refreshToken,
	}, "", &resp)
	if err != nil {
		c.clear()
		return err
	}
	c.store(resp)
	return nil
}

// Logout terminates the session server-side and drops local credentials.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	access := c.tokens.AccessToken
	c.mu.Unlock()
	if access == "" {
		return ErrNotAuthenticated
	}
	err := c.post(ctx, "/v1/auth/logout", nil, access, nil)
	c.clear()
	return err
}

// AccessToken returns the current access token, empty when logged out.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.AccessToken
}

// SessionID returns the current session id, empty when logged out.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Do sends req with the bearer token attached.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.httpClient.Do(req)
}

// Close stops the background refresh timer.
func (c *Client) Close() {
	c.clear()
}

func (c *Client) store(resp sessionResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = resp.Tokens
	c.user = resp.User
	if resp.SessionID != "" {
		c.sessionID = resp.SessionID
	}
	c.scheduleRefreshLocked()
}

func (c *Client) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = auth.TokenPair{}
	c.sessionID = ""
	c.user = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// scheduleRefreshLocked arms the one timer per session that drives the
// refresh cycle. The caller holds c.mu.
func (c *Client) scheduleRefreshLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	delay := c.refreshIn(c.tokens.ExpiresAt)
	if delay <= 0 {
		return
	}
	c.timer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.Refresh(ctx)
	})
}

// refreshIn computes how long to wait before refreshing a token that
// expires at the given epoch second. Tokens already inside the margin
// refresh immediately on the next cycle; zero means do not schedule.
func (c *Client) refreshIn(expiresAt int64) time.Duration {
	if expiresAt <= 0 {
		return 0
	}
	until := time.Unix(expiresAt, 0).Sub(c.now())
	if until <= 0 {
		return 0
	}
	delay := until - c.refreshMargin
	if delay < time.Second {
		delay = time.Second
	}
	return delay
}

func (c *Client) post(ctx context.Context, path string, body any, bearerToken string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Code != "" {
			return fmt.Errorf("client: %s: %s", apiErr.Code, apiErr.Error)
		}
		return fmt.Errorf("client: unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
