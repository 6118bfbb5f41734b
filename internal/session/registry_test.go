package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	active, err := m.IsActive(ctx, "unknown")
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if active {
		t.Fatal("unknown session reported active")
	}

	if err := m.Activate(ctx, "sess-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if active, _ := m.IsActive(ctx, "sess-1"); !active {
		t.Fatal("session should be active")
	}

	if err := m.Deactivate(ctx, "sess-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if active, _ := m.IsActive(ctx, "sess-1"); active {
		t.Fatal("session should be inactive after deactivation")
	}

	// Deactivating again or an unknown id is a no-op.
	if err := m.Deactivate(ctx, "sess-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if err := m.Deactivate(ctx, "never-seen"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
}

func TestMemoryEmptyIDIsIgnored(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	if err := m.Activate(ctx, ""); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("empty id should not be tracked, len=%d", m.Len())
	}
	if active, _ := m.IsActive(ctx, ""); active {
		t.Fatal("empty id reported active")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if err := m.Activate(ctx, "sess-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if active, _ := m.IsActive(ctx, "sess-1"); !active {
		t.Fatal("session should be active within TTL")
	}

	m.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	if active, _ := m.IsActive(ctx, "sess-1"); !active {
		t.Fatal("session should still be active just before expiry")
	}

	m.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	if active, _ := m.IsActive(ctx, "sess-1"); active {
		t.Fatal("session should expire after TTL")
	}
	if m.Len() != 0 {
		t.Fatalf("expired session should be swept on read, len=%d", m.Len())
	}
}

func TestMemoryActivateRefreshesTTL(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	if err := m.Activate(ctx, "sess-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	m.now = func() time.Time { return base.Add(50 * time.Minute) }
	if err := m.Activate(ctx, "sess-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	m.now = func() time.Time { return base.Add(100 * time.Minute) }
	if active, _ := m.IsActive(ctx, "sess-1"); !active {
		t.Fatal("re-activation should extend the expiry")
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				_ = m.Activate(ctx, id)
				_, _ = m.IsActive(ctx, id)
				_ = m.Deactivate(ctx, id)
			}
		}(i)
	}
	wg.Wait()
	if m.Len() != 0 {
		t.Fatalf("all sessions deactivated, len=%d", m.Len())
	}
}
