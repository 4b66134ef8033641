// Package watch runs unattended polling sessions. A session repeatedly drives
// the gateway with the query, deduplicates returned items against a bounded
// window of recently seen IDs, and forwards each new item to its sinks
// exactly once. Sessions do not survive process restarts: the high-water mark
// and dedup window start fresh every run.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/spyglass-sh/spyglass/internal/budget"
	"github.com/spyglass-sh/spyglass/internal/gateway"
)

// State is the poller's lifecycle position.
type State int

const (
	StateIdle State = iota
	StatePolling
	StateSleeping
	StateStopped
)

// StopReason explains why a session ended.
type StopReason string

const (
	StopManual         StopReason = "manual"
	StopBudgetExceeded StopReason = "budget_exceeded"
	StopErrorThreshold StopReason = "error_threshold"
	// StopFailure covers unrecoverable faults outside the transport path,
	// such as a ledger write failing mid-session.
	StopFailure StopReason = "failure"
)

// Executor is the gateway surface the poller drives.
type Executor interface {
	Execute(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// MetricsRecorder is an optional interface for recording session metrics.
type MetricsRecorder interface {
	IncPollTick(outcome string)
	IncItemDelivered(sink string)
	IncSinkFailure(sink string)
}

// Config holds one session's parameters.
type Config struct {
	Query         string
	Interval      time.Duration // sleep between ticks; clamped to MinInterval
	MinInterval   time.Duration // enforced floor for Interval
	MaxFailures   int           // consecutive transport failures before giving up
	WindowSize    int           // recent-ID dedup window bound
	EstimatedCost float64       // per-poll admission estimate
	BackoffBase   time.Duration // transport-failure backoff base
	BackoffMax    time.Duration // transport-failure backoff cap
}

// Poller is a single watch session. Not safe for concurrent use; each session
// owns its state exclusively.
type Poller struct {
	gw      Executor
	cfg     Config
	sinks   []Sink
	metrics MetricsRecorder

	state     State
	reason    StopReason
	highWater int64
	window    *idWindow
	failures  int

	sleep func(ctx context.Context, d time.Duration) error // injectable for testing
}

// NewPoller creates a session over the given gateway and sinks.
func NewPoller(gw Executor, cfg Config, sinks ...Sink) *Poller {
	if cfg.Interval < cfg.MinInterval {
		cfg.Interval = cfg.MinInterval
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Minute
	}
	return &Poller{
		gw:     gw,
		cfg:    cfg,
		sinks:  sinks,
		state:  StateIdle,
		window: newIDWindow(cfg.WindowSize),
		sleep:  sleepCtx,
	}
}

// SetMetrics sets the optional metrics recorder.
func (p *Poller) SetMetrics(m MetricsRecorder) {
	p.metrics = m
}

// State returns the current lifecycle state.
func (p *Poller) State() State { return p.state }

// StopReason returns why the session stopped; meaningful only once State is
// StateStopped.
func (p *Poller) StopReason() StopReason { return p.reason }

// HighWater returns the largest item ID observed so far.
func (p *Poller) HighWater() int64 { return p.highWater }

// Interval returns the effective polling interval after clamping.
func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the session until it stops. Cancelling ctx requests a manual
// stop, observed between ticks: an in-flight gateway call and its ledger
// commit always complete before the session exits, so persisted state stays
// consistent. The returned error is non-nil for budget_exceeded and failure
// stops and carries the typed cause.
func (p *Poller) Run(ctx context.Context) (StopReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return p.stop(StopManual), nil
		}

		p.state = StatePolling
		// The tick itself is shielded from cancellation; interrupts take
		// effect at the next loop boundary.
		tickCtx := context.WithoutCancel(ctx)
		resp, err := p.gw.Execute(tickCtx, p.buildRequest())

		switch {
		case err == nil:
			p.failures = 0
			p.deliver(tickCtx, resp.Items)
			p.tick("success")

		case isBudgetExceeded(err):
			p.tick("budget_exceeded")
			slog.Info("watch stopped: daily budget exhausted", "query", p.cfg.Query, "error", err)
			return p.stop(StopBudgetExceeded), err

		case isTransportError(err):
			p.failures++
			p.tick("transport_error")
			if p.failures > p.cfg.MaxFailures {
				slog.Error("watch stopped: too many consecutive failures",
					"query", p.cfg.Query, "failures", p.failures, "error", err)
				return p.stop(StopErrorThreshold), err
			}
			backoff := p.backoff()
			slog.Warn("poll failed, backing off",
				"query", p.cfg.Query, "failures", p.failures, "backoff", backoff, "error", err)
			p.state = StateSleeping
			if err := p.sleep(ctx, backoff); err != nil {
				return p.stop(StopManual), nil
			}
			continue

		default:
			// Persistence failures and unknown faults are fatal: retrying
			// could silently lose spend records.
			p.tick("failure")
			slog.Error("watch stopped: unrecoverable error", "query", p.cfg.Query, "error", err)
			return p.stop(StopFailure), err
		}

		p.state = StateSleeping
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return p.stop(StopManual), nil
		}
	}
}

func (p *Poller) stop(reason StopReason) StopReason {
	p.state = StateStopped
	p.reason = reason
	return reason
}

// buildRequest uses the high-water mark as the lower bound so only items
// newer than previously observed come back. Polls always bypass the cache.
func (p *Poller) buildRequest() gateway.Request {
	params := map[string]string{"query": p.cfg.Query}
	if p.highWater > 0 {
		params["since_id"] = strconv.FormatInt(p.highWater, 10)
	}
	return gateway.Request{
		Kind:          "search",
		Params:        params,
		EstimatedCost: p.cfg.EstimatedCost,
		NoCache:       true,
	}
}

// deliver forwards unseen items to every sink in ascending ID order, then
// records them as seen and advances the high-water mark. A sink failure is
// reported but never aborts the session or blocks other items.
func (p *Poller) deliver(ctx context.Context, items []gateway.Item) {
	sorted := make([]gateway.Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, item := range sorted {
		if p.window.Contains(item.ID) {
			continue
		}
		for _, sink := range p.sinks {
			if err := sink.Deliver(ctx, item); err != nil {
				slog.Warn("sink delivery failed", "sink", sink.Name(), "item", item.ID, "error", err)
				if p.metrics != nil {
					p.metrics.IncSinkFailure(sink.Name())
				}
				continue
			}
			if p.metrics != nil {
				p.metrics.IncItemDelivered(sink.Name())
			}
		}
		p.window.Add(item.ID)
		if item.ID > p.highWater {
			p.highWater = item.ID
		}
	}
}

func (p *Poller) backoff() time.Duration {
	d := p.cfg.BackoffBase
	for i := 1; i < p.failures; i++ {
		d *= 2
		if d >= p.cfg.BackoffMax {
			return p.cfg.BackoffMax
		}
	}
	if d > p.cfg.BackoffMax {
		d = p.cfg.BackoffMax
	}
	return d
}

func (p *Poller) tick(outcome string) {
	if p.metrics != nil {
		p.metrics.IncPollTick(outcome)
	}
}

func isBudgetExceeded(err error) bool {
	var exceeded *budget.ExceededError
	return errors.As(err, &exceeded)
}

func isTransportError(err error) bool {
	var te *gateway.TransportError
	return errors.As(err, &te)
}
