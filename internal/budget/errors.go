package budget

import "fmt"

// ExceededError is returned by CheckAndReserve when admitting the estimated
// cost would push today's spend over the limit. It is not retryable: callers
// must stop the operation rather than back off.
type ExceededError struct {
	Remaining float64
	Limit     float64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("daily budget exceeded: $%.4f remaining of $%.2f limit", e.Remaining, e.Limit)
}

// PersistenceError marks a failed ledger or cache write. It is fatal to the
// operation in progress: swallowing it would let spend happen without being
// recorded.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
