package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestMemory_PutAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("value: got %q, want v", got)
	}
}

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("Get missing: got %v, want ErrNotFound", err)
	}
}

func TestMemory_PutOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "k", []byte("one"))
	m.Put(ctx, "k", []byte("two"))

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("value: got %q, want two", got)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	base := time.Now()
	m := NewMemory()
	ctx := context.Background()

	m.now = fixedClock(base)
	if err := m.PutTTL(ctx, "session", []byte("x"), time.Hour); err != nil {
		t.Fatalf("PutTTL: %v", err)
	}

	// Still live just before the deadline.
	m.now = fixedClock(base.Add(59 * time.Minute))
	if _, err := m.Get(ctx, "session"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	// Expired entries are absent from Get even before eviction runs.
	m.now = fixedClock(base.Add(61 * time.Minute))
	if _, err := m.Get(ctx, "session"); err != ErrNotFound {
		t.Errorf("Get after expiry: got %v, want ErrNotFound", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count before evict: got %d, want 1", m.Count())
	}
}

func TestMemory_PutTTLOverwriteResetsExpiry(t *testing.T) {
	base := time.Now()
	m := NewMemory()
	ctx := context.Background()

	m.now = fixedClock(base)
	m.PutTTL(ctx, "k", []byte("ttl"), time.Minute)
	m.Put(ctx, "k", []byte("forever"))

	m.now = fixedClock(base.Add(time.Hour))
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "forever" {
		t.Errorf("value: got %q, want forever", got)
	}
}

func TestMemory_Evict(t *testing.T) {
	base := time.Now()
	m := NewMemory()
	ctx := context.Background()

	m.now = fixedClock(base)
	m.PutTTL(ctx, "old1", []byte("x"), time.Minute)
	m.PutTTL(ctx, "old2", []byte("x"), time.Minute)
	m.Put(ctx, "keep", []byte("x"))

	removed := m.Evict(base.Add(2 * time.Minute))
	if removed != 2 {
		t.Errorf("Evict: removed %d, want 2", removed)
	}
	if m.Count() != 1 {
		t.Errorf("Count after evict: got %d, want 1", m.Count())
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Put(ctx, "k", []byte("v"))
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "k"); err != ErrNotFound {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
	// Deleting an absent key is not an error.
	if err := m.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestMemory_ConcurrentOps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Put(ctx, "k", []byte("v"))
		}()
		go func() {
			defer wg.Done()
			m.Get(ctx, "k") //nolint:errcheck
		}()
	}
	wg.Wait()
}
