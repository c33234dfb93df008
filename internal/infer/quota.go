package infer

import (
	"errors"
	"fmt"
)

// DefaultMaxIterations bounds the module-level fixpoint.
const DefaultMaxIterations = 32

// IterationQuota counts fixpoint rounds and enforces a maximum.
//
// Types only move up the lattice, so a well-formed module converges long
// before the limit.
type IterationQuota struct {
	max     int
	current int
}

// NewIterationQuota creates a quota allowing limit rounds.
func NewIterationQuota(limit int) *IterationQuota {
	return &IterationQuota{max: limit}
}

// Check counts one round and reports QuotaExceededError past the limit.
func (q *IterationQuota) Check(module string) error {
	q.current++
	if q.current > q.max {
		return &QuotaExceededError{
			Module:     module,
			Iterations: q.current,
			Limit:      q.max,
		}
	}
	return nil
}

// Current returns the number of rounds counted so far.
func (q *IterationQuota) Current() int {
	return q.current
}

// Max returns the limit.
func (q *IterationQuota) Max() int {
	return q.max
}

// QuotaExceededError is returned when inference did not converge within the
// quota. Inference still finalizes the types it has.
type QuotaExceededError struct {
	Module     string
	Iterations int
	Limit      int
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("module %s did not converge: %d iterations > %d limit",
		e.Module, e.Iterations, e.Limit)
}

// IsQuotaExceededError returns true if the error is a QuotaExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaExceededError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
