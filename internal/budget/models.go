package budget

import "time"

// Day is one UTC calendar day's budget record. Spent only ever grows within a
// day; a new day starts at zero with the limit carried forward.
type Day struct {
	Date  string  `json:"date"` // "2006-01-02", UTC
	Spent float64 `json:"spent"`
	Limit float64 `json:"limit"`
}

// CostEvent is a single append-only spend record. Events are never mutated
// after creation and are sufficient to reconstruct Spent for auditing.
type CostEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
}

// Period selects a spend aggregation window for CurrentSpend.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"  // last 7 days
	PeriodMonth Period = "month" // last 30 days
)

// Summary is an aggregated spend report for one period.
type Summary struct {
	Period     Period             `json:"period"`
	Total      float64            `json:"total"`
	Events     int64              `json:"events"`
	ByCategory map[string]float64 `json:"by_category,omitempty"`
}
