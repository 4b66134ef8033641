// Package gateway is the single choke point every spend-incurring operation
// passes through. Execute consults the cache first, asks the ledger for
// admission on a miss, invokes the transport, commits the actual cost, and
// populates the cache — in that order, so no spend is ever recorded for a
// failed call and no paid call ever happens unchecked.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spyglass-sh/spyglass/internal/budget"
	"github.com/spyglass-sh/spyglass/internal/cache"
)

// Item is the unit of content flowing through watch sessions. Only ID is
// interpreted by the core (for dedup and high-water marks); the rest is
// opaque payload for sinks.
type Item struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Request describes one outbound API call.
type Request struct {
	Kind          string            // request category, e.g. "search", "trends", "analyze"
	Params        map[string]string // normalized parameters; part of the cache fingerprint
	EstimatedCost float64           // dollars, used for admission control
	CacheTTL      time.Duration     // TTL for the cached response; <= 0 disables caching
	NoCache       bool              // bypass the cache entirely (watch polls must see fresh data)
}

func (r Request) cacheEligible() bool {
	return !r.NoCache && r.CacheTTL > 0
}

// Result is what a transport returns for a successful call. Cost is the cost
// actually incurred, which may differ from the estimate.
type Result struct {
	Payload json.RawMessage `json:"payload"`
	Items   []Item          `json:"items,omitempty"`
	Cost    float64         `json:"cost"`
}

// Response is the gateway outcome for one request.
type Response struct {
	Payload  json.RawMessage
	Items    []Item
	Cost     float64       // 0 for cache hits
	Cached   bool
	CacheAge time.Duration
}

// Transport executes the outbound call for a request. It is an external
// collaborator: the gateway never constructs HTTP requests itself.
type Transport interface {
	Do(ctx context.Context, req Request) (*Result, error)
}

// Mux routes requests to transports by kind.
type Mux map[string]Transport

func (m Mux) Do(ctx context.Context, req Request) (*Result, error) {
	t, ok := m[req.Kind]
	if !ok {
		return nil, fmt.Errorf("no transport for request kind %q", req.Kind)
	}
	return t.Do(ctx, req)
}

// Pacer throttles outbound calls per request kind.
type Pacer interface {
	Wait(ctx context.Context, kind string) error
}

// Ledger is the admission-control interface the gateway needs.
type Ledger interface {
	CheckAndReserve(ctx context.Context, estimate float64) error
	Release(estimate float64)
	Commit(ctx context.Context, category string, estimate, actual float64) error
}

// MetricsRecorder is an optional interface for recording gateway metrics.
type MetricsRecorder interface {
	IncRequest(kind, outcome string)
	ObserveUpstreamDuration(kind string, seconds float64)
	IncCacheHit(kind string)
	IncCacheMiss(kind string)
	IncBudgetRejection()
	AddSpend(amount float64)
	IncTransportError(kind, errorType string)
}

// Gateway composes the ledger, cache, and a transport.
type Gateway struct {
	ledger    Ledger
	cache     *cache.Cache
	transport Transport
	pacer     Pacer
	metrics   MetricsRecorder
}

// New creates a Gateway.
func New(ledger Ledger, cch *cache.Cache, transport Transport) *Gateway {
	return &Gateway{ledger: ledger, cache: cch, transport: transport}
}

// SetPacer sets the optional outbound request pacer.
func (g *Gateway) SetPacer(p Pacer) {
	g.pacer = p
}

// SetMetrics sets the optional metrics recorder.
func (g *Gateway) SetMetrics(m MetricsRecorder) {
	g.metrics = m
}

// Execute runs one request through cache, admission control, and transport.
// Outcomes are typed: *budget.ExceededError means the daily cap denies the
// call, *TransportError means the upstream failed and no spend was committed,
// *budget.PersistenceError means a ledger or cache write failed and the
// operation must be treated as fatally broken.
func (g *Gateway) Execute(ctx context.Context, req Request) (*Response, error) {
	fp := cache.Fingerprint(req.Kind, req.Params)

	if req.cacheEligible() {
		if value, age, ok := g.cache.Get(ctx, fp); ok {
			var res Result
			if err := json.Unmarshal(value, &res); err == nil {
				if g.metrics != nil {
					g.metrics.IncCacheHit(req.Kind)
					g.metrics.IncRequest(req.Kind, "hit")
				}
				return &Response{
					Payload:  res.Payload,
					Items:    res.Items,
					Cached:   true,
					CacheAge: age,
				}, nil
			}
			// Undecodable entry: fall through to a fresh fetch, which
			// overwrites it.
		}
		if g.metrics != nil {
			g.metrics.IncCacheMiss(req.Kind)
		}
	}

	if g.pacer != nil {
		if err := g.pacer.Wait(ctx, req.Kind); err != nil {
			return nil, &TransportError{Kind: req.Kind, Err: err}
		}
	}

	if err := g.ledger.CheckAndReserve(ctx, req.EstimatedCost); err != nil {
		var exceeded *budget.ExceededError
		if errors.As(err, &exceeded) && g.metrics != nil {
			g.metrics.IncBudgetRejection()
			g.metrics.IncRequest(req.Kind, "budget_denied")
		}
		return nil, err
	}

	start := time.Now()
	res, err := g.transport.Do(ctx, req)
	if g.metrics != nil {
		g.metrics.ObserveUpstreamDuration(req.Kind, time.Since(start).Seconds())
	}
	if err != nil {
		g.ledger.Release(req.EstimatedCost)
		if g.metrics != nil {
			g.metrics.IncTransportError(req.Kind, classifyError(err))
			g.metrics.IncRequest(req.Kind, "transport_error")
		}
		var te *TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TransportError{Kind: req.Kind, Err: err}
	}

	if err := g.ledger.Commit(ctx, req.Kind, req.EstimatedCost, res.Cost); err != nil {
		if g.metrics != nil {
			g.metrics.IncRequest(req.Kind, "persistence_error")
		}
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.AddSpend(res.Cost)
		g.metrics.IncRequest(req.Kind, "success")
	}

	if req.cacheEligible() {
		value, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encoding cache entry: %w", err)
		}
		if err := g.cache.Put(ctx, fp, value, req.CacheTTL); err != nil {
			return nil, &budget.PersistenceError{Op: "cache put", Err: err}
		}
	}

	return &Response{
		Payload: res.Payload,
		Items:   res.Items,
		Cost:    res.Cost,
	}, nil
}
