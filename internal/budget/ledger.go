// Package budget enforces a persistent daily spending cap. Admission control
// is two-phase: CheckAndReserve holds an in-process reservation against the
// estimated cost before any external call, and Commit records the cost
// actually incurred afterwards. The reserve-on-estimate / commit-on-actual
// split prevents both false denials and budget overrun when response sizes
// vary.
package budget

import (
	"context"
	"sync"
	"time"
)

// costEpsilon absorbs float64 accumulation error when comparing sums of
// dollar amounts against the limit.
const costEpsilon = 1e-9

const dayFormat = "2006-01-02"

// Ledger tracks daily spend and admits or denies operations before they incur
// cost. Safe for concurrent use within one process; cross-process safety
// comes from the store's transactional writes.
type Ledger struct {
	store        *Store
	defaultLimit float64

	mu      sync.Mutex
	pending float64 // reserved but not yet committed or released

	now func() time.Time // injectable clock for testing
}

// NewLedger creates a Ledger. defaultLimit applies until a limit has been set
// explicitly at least once.
func NewLedger(store *Store, defaultLimit float64) *Ledger {
	return &Ledger{
		store:        store,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// CheckAndReserve admits an operation with the given estimated cost, holding
// a reservation so overlapping checks cannot jointly overrun the limit. On
// denial it returns *ExceededError with the remaining budget. Every accepted
// reservation must be balanced by exactly one Commit or Release.
func (l *Ledger) CheckAndReserve(ctx context.Context, estimate float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day, err := l.today(ctx)
	if err != nil {
		return err
	}

	if day.Spent+l.pending+estimate > day.Limit+costEpsilon {
		remaining := day.Limit - day.Spent - l.pending
		if remaining < 0 {
			remaining = 0
		}
		return &ExceededError{Remaining: remaining, Limit: day.Limit}
	}

	l.pending += estimate
	return nil
}

// Release drops a reservation made by CheckAndReserve. Called when the
// external call failed and no cost was incurred.
func (l *Ledger) Release(estimate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending -= estimate
	if l.pending < 0 {
		l.pending = 0
	}
}

// Commit replaces the reservation for estimate with the cost actually
// incurred, appending a cost event and updating today's spent. A failed write
// is returned as *PersistenceError and must be treated as fatal by the
// caller.
func (l *Ledger) Commit(ctx context.Context, category string, estimate, actual float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending -= estimate
	if l.pending < 0 {
		l.pending = 0
	}

	now := l.now().UTC()
	day, err := l.today(ctx)
	if err != nil {
		return err
	}

	ev := CostEvent{Timestamp: now, Category: category, Amount: actual}
	if err := l.store.Commit(ctx, now.Format(dayFormat), day.Limit, ev); err != nil {
		return &PersistenceError{Op: "ledger commit", Err: err}
	}
	return nil
}

// CurrentSpend sums committed cost events over the given period.
func (l *Ledger) CurrentSpend(ctx context.Context, p Period) (float64, error) {
	return l.store.SumSince(ctx, l.periodStart(p))
}

// Summary aggregates committed cost events over the given period by category.
func (l *Ledger) Summary(ctx context.Context, p Period) (*Summary, error) {
	total, events, byCategory, err := l.store.SummarySince(ctx, l.periodStart(p))
	if err != nil {
		return nil, err
	}
	return &Summary{Period: p, Total: total, Events: events, ByCategory: byCategory}, nil
}

// SetLimit sets the daily limit, effective immediately for the current day.
// Already-committed spend is left untouched.
func (l *Ledger) SetLimit(ctx context.Context, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	if err := l.store.SetLimit(ctx, now.Format(dayFormat), amount); err != nil {
		return &PersistenceError{Op: "set limit", Err: err}
	}
	return nil
}

// Today returns the current day's record, synthesizing a fresh one when no
// spend has been recorded yet today.
func (l *Ledger) Today(ctx context.Context) (*Day, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.today(ctx)
}

// today loads or synthesizes the current day's record. Must be called with
// l.mu held. A day with no record reads as spent = 0 with the limit carried
// forward from the most recent explicit setting.
func (l *Ledger) today(ctx context.Context) (*Day, error) {
	date := l.now().UTC().Format(dayFormat)

	day, err := l.store.Day(ctx, date)
	if err != nil {
		return nil, &PersistenceError{Op: "ledger read", Err: err}
	}
	if day != nil {
		return day, nil
	}

	limit, ok, err := l.store.LastLimit(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "ledger read", Err: err}
	}
	if !ok {
		limit = l.defaultLimit
	}
	return &Day{Date: date, Spent: 0, Limit: limit}, nil
}

// periodStart returns the inclusive lower bound for a spend period.
func (l *Ledger) periodStart(p Period) time.Time {
	now := l.now().UTC()
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, 0, -30)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
