// Package session tracks revocable session liveness, decoupled from token
// cryptographic validity. A structurally valid token whose session id is
// not in the registry is rejected, which is how forced logout works.
package session

import (
	"context"
	"sync"
	"time"
)

// Registry is the liveness store. Activate and Deactivate are idempotent;
// deactivating an unknown id is a no-op, and unknown ids read as inactive.
type Registry interface {
	Activate(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) error
	IsActive(ctx context.Context, sessionID string) (bool, error)
}

var _ Registry = (*Memory)(nil)

// Memory is a mutex-guarded in-process registry. With a zero TTL sessions
// live until explicit deactivation; a positive TTL expires them, swept
// lazily on read and by a background janitor.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	expires map[string]time.Time
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-memory registry. ttl <= 0 disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		ttl:     ttl,
		expires: make(map[string]time.Time),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go m.janitor()
	}
	return m
}

func (m *Memory) Activate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if m.ttl > 0 {
		exp = m.now().Add(m.ttl)
	}
	m.expires[sessionID] = exp
	return nil
}

func (m *Memory) Deactivate(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, sessionID)
	return nil
}

func (m *Memory) IsActive(ctx context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	exp, ok := m.expires[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && m.now().After(exp) {
		m.mu.Lock()
		delete(m.expires, sessionID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Len reports the number of tracked sessions, expired entries included
// until the next sweep.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.expires)
}

// Close stops the janitor goroutine.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for id, exp := range m.expires {
				if !exp.IsZero() && now.After(exp) {
					delete(m.expires, id)
				}
			}
			m.mu.Unlock()
		}
	}
}
