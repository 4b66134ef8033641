package cache

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spyglass-sh/spyglass/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, clock *fakeClock) (*Cache, *sql.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c := New(db)
	c.now = clock.Now
	return c, db
}

func TestGetHitBeforeTTL(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	c, _ := newTestCache(t, clock)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.Advance(30 * time.Second)
	value, age, ok := c.Get(ctx, "fp1")
	if !ok {
		t.Fatal("expected hit before TTL elapsed")
	}
	if !bytes.Equal(value, []byte(`{"a":1}`)) {
		t.Errorf("value: got %q", value)
	}
	if age != 30*time.Second {
		t.Errorf("age: got %v, want 30s", age)
	}
}

func TestGetMissAfterTTL(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	c, db := newTestCache(t, clock)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.Advance(time.Minute)
	if _, _, ok := c.Get(ctx, "fp1"); ok {
		t.Fatal("expected miss once TTL elapsed")
	}

	// Expired entries are removed opportunistically on read.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expired entry not evicted: %d rows remain", n)
	}
}

func TestZeroTTLIsImmediateMiss(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	c, _ := newTestCache(t, clock)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", []byte("v"), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, _, ok := c.Get(ctx, "fp1"); ok {
		t.Fatal("ttl 0 must never be a hit")
	}
}

func TestPutOverwrites(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	c, _ := newTestCache(t, clock)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", []byte("old"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	clock.Advance(50 * time.Second)
	if err := c.Put(ctx, "fp1", []byte("new"), time.Minute); err != nil {
		t.Fatalf("second put: %v", err)
	}

	clock.Advance(30 * time.Second)
	value, age, ok := c.Get(ctx, "fp1")
	if !ok {
		t.Fatal("expected hit: overwrite should reset fetched_at")
	}
	if string(value) != "new" {
		t.Errorf("value: got %q, want new", value)
	}
	if age != 30*time.Second {
		t.Errorf("age: got %v, want 30s from overwrite", age)
	}
}

func TestClear(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	c, _ := newTestCache(t, clock)
	ctx := context.Background()

	for _, fp := range []string{"a", "b", "c"} {
		if err := c.Put(ctx, fp, []byte("v"), time.Hour); err != nil {
			t.Fatalf("put %s: %v", fp, err)
		}
	}

	n, err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 3 {
		t.Errorf("cleared: got %d, want 3", n)
	}
	if _, _, ok := c.Get(ctx, "a"); ok {
		t.Error("entry survived clear")
	}
}

func TestFingerprintOrderIndependent(t *testing.T) {
	a := Fingerprint("search", map[string]string{"query": "golang", "limit": "20", "sort": "recent"})
	b := Fingerprint("search", map[string]string{"sort": "recent", "limit": "20", "query": "golang"})
	if a != b {
		t.Error("fingerprints differ for identical params in different order")
	}
}

func TestFingerprintDistinguishes(t *testing.T) {
	base := Fingerprint("search", map[string]string{"query": "golang"})

	if got := Fingerprint("profile", map[string]string{"query": "golang"}); got == base {
		t.Error("different kinds must not collide")
	}
	if got := Fingerprint("search", map[string]string{"query": "rust"}); got == base {
		t.Error("different values must not collide")
	}
	if got := Fingerprint("search", map[string]string{"query": "golang", "limit": "20"}); got == base {
		t.Error("extra params must not collide")
	}
	// Key/value boundaries are delimited, not concatenated.
	if Fingerprint("k", map[string]string{"ab": "c"}) == Fingerprint("k", map[string]string{"a": "bc"}) {
		t.Error("ambiguous key/value split must not collide")
	}
}
