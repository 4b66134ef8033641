package budget

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store provides database operations for budget days and cost events.
type Store struct {
	db *sql.DB
}

// NewStore creates a budget store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Day returns the record for the given UTC date, or nil when no record exists
// yet for that day.
func (s *Store) Day(ctx context.Context, date string) (*Day, error) {
	d := &Day{}
	err := s.db.QueryRowContext(ctx,
		`SELECT day, spent, day_limit FROM budget_days WHERE day = ?`,
		date,
	).Scan(&d.Date, &d.Spent, &d.Limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting budget day: %w", err)
	}
	return d, nil
}

// LastLimit returns the limit of the most recent recorded day, carrying the
// last explicit setting across day rollovers. ok is false when no day has
// ever been recorded.
func (s *Store) LastLimit(ctx context.Context) (limit float64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT day_limit FROM budget_days ORDER BY day DESC LIMIT 1`,
	).Scan(&limit)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting last limit: %w", err)
	}
	return limit, true, nil
}

// SetLimit upserts the limit for the given day without touching spent.
func (s *Store) SetLimit(ctx context.Context, date string, limit float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_days (day, spent, day_limit) VALUES (?, 0, ?)
		 ON CONFLICT(day) DO UPDATE SET day_limit = excluded.day_limit`,
		date, limit,
	)
	if err != nil {
		return fmt.Errorf("setting limit: %w", err)
	}
	return nil
}

// Commit appends a cost event and adds its amount to the day's spent, in one
// transaction. limit is only used when the day record does not exist yet.
func (s *Store) Commit(ctx context.Context, date string, limit float64, ev CostEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cost_events (ts, category, amount) VALUES (?, ?, ?)`,
		ev.Timestamp.UnixNano(), ev.Category, ev.Amount,
	)
	if err != nil {
		return fmt.Errorf("inserting cost event: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO budget_days (day, spent, day_limit) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET spent = budget_days.spent + excluded.spent`,
		date, ev.Amount, limit,
	)
	if err != nil {
		return fmt.Errorf("updating budget day: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// SumSince returns the total of all cost events at or after from.
func (s *Store) SumSince(ctx context.Context, from time.Time) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM cost_events WHERE ts >= ?`,
		from.UnixNano(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing cost events: %w", err)
	}
	return total, nil
}

// SummarySince aggregates cost events at or after from, broken out by
// category.
func (s *Store) SummarySince(ctx context.Context, from time.Time) (total float64, events int64, byCategory map[string]float64, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*), COALESCE(SUM(amount), 0)
		 FROM cost_events WHERE ts >= ? GROUP BY category`,
		from.UnixNano(),
	)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("querying cost summary: %w", err)
	}
	defer rows.Close()

	byCategory = make(map[string]float64)
	for rows.Next() {
		var category string
		var count int64
		var sum float64
		if err := rows.Scan(&category, &count, &sum); err != nil {
			return 0, 0, nil, fmt.Errorf("scanning cost summary row: %w", err)
		}
		byCategory[category] = sum
		total += sum
		events += count
	}
	if err := rows.Err(); err != nil {
		return 0, 0, nil, fmt.Errorf("iterating cost summary rows: %w", err)
	}
	return total, events, byCategory, nil
}
