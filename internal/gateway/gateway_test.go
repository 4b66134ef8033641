package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spyglass-sh/spyglass/internal/budget"
	"github.com/spyglass-sh/spyglass/internal/cache"
	"github.com/spyglass-sh/spyglass/internal/store"
)

// fakeTransport returns a scripted result and counts invocations.
type fakeTransport struct {
	calls  int
	result *Result
	err    error
}

func (f *fakeTransport) Do(ctx context.Context, req Request) (*Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestGateway(t *testing.T, limit float64, transport Transport) (*Gateway, *budget.Ledger) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledger := budget.NewLedger(budget.NewStore(db), limit)
	return New(ledger, cache.New(db), transport), ledger
}

func TestExecuteSuccessCommitsActualCost(t *testing.T) {
	transport := &fakeTransport{result: &Result{
		Payload: json.RawMessage(`{"tweets":[]}`),
		Cost:    0.03,
	}}
	gw, ledger := newTestGateway(t, 1.00, transport)
	ctx := context.Background()

	resp, err := gw.Execute(ctx, Request{
		Kind:          "search",
		Params:        map[string]string{"query": "golang"},
		EstimatedCost: 0.05,
		CacheTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Cached {
		t.Error("fresh fetch reported as cached")
	}
	if resp.Cost != 0.03 {
		t.Errorf("cost: got %v, want actual 0.03", resp.Cost)
	}

	spent, err := ledger.CurrentSpend(ctx, budget.PeriodToday)
	if err != nil {
		t.Fatalf("current spend: %v", err)
	}
	if spent != 0.03 {
		t.Errorf("committed spend: got %v, want actual 0.03 (not estimate 0.05)", spent)
	}
}

func TestExecuteCacheHitSkipsLedgerAndTransport(t *testing.T) {
	transport := &fakeTransport{result: &Result{
		Payload: json.RawMessage(`{"n":1}`),
		Items:   []Item{{ID: 7, Author: "a", Text: "t"}},
		Cost:    0.05,
	}}
	gw, ledger := newTestGateway(t, 0.05, transport)
	ctx := context.Background()

	req := Request{
		Kind:          "search",
		Params:        map[string]string{"query": "golang"},
		EstimatedCost: 0.05,
		CacheTTL:      time.Minute,
	}

	// First call consumes the entire budget.
	if _, err := gw.Execute(ctx, req); err != nil {
		t.Fatalf("first execute: %v", err)
	}

	// Second identical call must be served from cache even though the budget
	// is now exhausted.
	resp, err := gw.Execute(ctx, req)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if !resp.Cached {
		t.Fatal("expected cache hit")
	}
	if transport.calls != 1 {
		t.Errorf("transport calls: got %d, want 1", transport.calls)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != 7 {
		t.Errorf("cached items lost: %+v", resp.Items)
	}

	spent, err := ledger.CurrentSpend(ctx, budget.PeriodToday)
	if err != nil {
		t.Fatalf("current spend: %v", err)
	}
	if spent != 0.05 {
		t.Errorf("cache hit changed spend: got %v", spent)
	}
}

func TestExecuteBudgetDeniedBeforeTransport(t *testing.T) {
	transport := &fakeTransport{result: &Result{Payload: json.RawMessage(`{}`), Cost: 0.05}}
	gw, _ := newTestGateway(t, 0.01, transport)

	_, err := gw.Execute(context.Background(), Request{
		Kind:          "search",
		Params:        map[string]string{"query": "golang"},
		EstimatedCost: 0.05,
	})
	var exceeded *budget.ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected ExceededError, got %v", err)
	}
	if transport.calls != 0 {
		t.Errorf("transport invoked despite denial: %d calls", transport.calls)
	}
}

func TestExecuteTransportFailureCommitsNothing(t *testing.T) {
	transport := &fakeTransport{err: fmt.Errorf("connection reset")}
	gw, ledger := newTestGateway(t, 0.05, transport)
	ctx := context.Background()

	_, err := gw.Execute(ctx, Request{
		Kind:          "search",
		Params:        map[string]string{"query": "golang"},
		EstimatedCost: 0.05,
	})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	spent, err := ledger.CurrentSpend(ctx, budget.PeriodToday)
	if err != nil {
		t.Fatalf("current spend: %v", err)
	}
	if spent != 0 {
		t.Errorf("spend committed for failed call: %v", spent)
	}

	// The reservation was released, so the full budget is still available.
	if err := ledger.CheckAndReserve(ctx, 0.05); err != nil {
		t.Errorf("reservation leaked after transport failure: %v", err)
	}
}

func TestExecuteNoCacheBypassesCache(t *testing.T) {
	transport := &fakeTransport{result: &Result{Payload: json.RawMessage(`{}`), Cost: 0.01}}
	gw, _ := newTestGateway(t, 1.00, transport)
	ctx := context.Background()

	req := Request{
		Kind:          "search",
		Params:        map[string]string{"query": "golang"},
		EstimatedCost: 0.01,
		CacheTTL:      time.Minute,
		NoCache:       true,
	}
	for i := 0; i < 3; i++ {
		if _, err := gw.Execute(ctx, req); err != nil {
			t.Fatalf("execute %d: %v", i+1, err)
		}
	}
	if transport.calls != 3 {
		t.Errorf("transport calls: got %d, want 3 (no caching)", transport.calls)
	}
}

func TestMuxRoutesByKind(t *testing.T) {
	a := &fakeTransport{result: &Result{Payload: json.RawMessage(`"a"`)}}
	b := &fakeTransport{result: &Result{Payload: json.RawMessage(`"b"`)}}
	mux := Mux{"search": a, "analyze": b}

	res, err := mux.Do(context.Background(), Request{Kind: "analyze"})
	if err != nil {
		t.Fatalf("mux do: %v", err)
	}
	if string(res.Payload) != `"b"` {
		t.Errorf("routed to wrong transport: %s", res.Payload)
	}
	if a.calls != 0 || b.calls != 1 {
		t.Errorf("call counts: a=%d b=%d", a.calls, b.calls)
	}

	if _, err := mux.Do(context.Background(), Request{Kind: "unknown"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
