/*
errors.go - Error taxonomy for the disbursement engine

CATEGORIES:
  Validation     Bad input shape or value. User corrects and retries.
  LimitExceeded  Quarter or balance limit. User reduces amount or waits.
  Persistence    Storage/commit failure. Retry permitted; no partial
                 commit is ever left behind.

PIN-related errors (authentication, setup-required, lockout) live in the
pin package next to the state machine that produces them.

Every error carries a specific, user-facing message with the relevant
amounts. Persistence is the one class that stays generic, since its root
cause is opaque to this engine.
*/
package grant

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the class of bad-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrLimitExceeded is the class of balance/quarter limit errors.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrPersistence is the class of storage failures.
	ErrPersistence = errors.New("storage failure")

	// ErrGrantNotFound is returned when a principal has no grant record.
	ErrGrantNotFound = errors.New("grant not found")

	// ErrWithdrawalNotFound is returned when a withdrawal lookup misses.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a bad input value on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LimitScope says which ceiling a withdrawal hit.
type LimitScope string

const (
	LimitBalance LimitScope = "balance"
	LimitQuarter LimitScope = "quarter"
)

// LimitExceededError reports an inadmissible withdrawal amount together
// with what is actually available, so callers can render an actionable
// message.
type LimitExceededError struct {
	Scope     LimitScope
	Quarter   string // "Q1".."Q4", set when Scope == LimitQuarter
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	if e.Scope == LimitBalance {
		return fmt.Sprintf("insufficient balance. Available: %s", FormatUSD(e.Available))
	}
	return fmt.Sprintf("exceeds %s limit. Available this quarter: %s", e.Quarter, FormatUSD(e.Available))
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// PersistenceError wraps a storage failure. The commit paths guarantee
// that when one of these surfaces, no partial write happened.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return ErrPersistence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// and retrying the same request cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrLimitExceeded)
}

// IsRetryable returns true if the same request might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}
