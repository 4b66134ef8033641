package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	var attempts int
	var delivered []gateway.Item

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		var item gateway.Item
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		delivered = append(delivered, item)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(time.Second, 3, time.Millisecond)
	d.sleep = noSleep

	item := gateway.Item{ID: 42, Author: "someone", Text: "hello"}
	if err := d.Deliver(context.Background(), item, srv.URL); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Errorf("attempts: got %d, want 2", attempts)
	}
	if len(delivered) != 1 || delivered[0].ID != 42 {
		t.Errorf("delivered: %+v, want exactly one item with ID 42", delivered)
	}
}

func TestDeliverGivesUpAfterRetries(t *testing.T) {
	var mu sync.Mutex
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := New(time.Second, 2, time.Millisecond)
	d.sleep = noSleep

	err := d.Deliver(context.Background(), gateway.Item{ID: 1}, srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts: got %d, want 3 (1 + 2 retries)", attempts)
	}
}

func TestDeliverBackoffDoubles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var slept []time.Duration
	d := New(time.Second, 3, 100*time.Millisecond)
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		slept = append(slept, dur)
		return nil
	}

	_ = d.Deliver(context.Background(), gateway.Item{ID: 1}, srv.URL)

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("sleeps: got %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d: got %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestDeliverStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(time.Second, 5, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(ctx context.Context, dur time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if err := d.Deliver(ctx, gateway.Item{ID: 1}, srv.URL); err == nil {
		t.Fatal("expected context error")
	}
}
