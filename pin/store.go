/*
store.go - Credential persistence contract

The failed-attempt counter and lock timestamp are shared mutable state:
RecordFailure must be atomic per principal (a locked transaction or
compare-and-set in the implementation), otherwise two parallel wrong
attempts can each read attempts=2 and neither triggers the lock at
exactly 3. The lockout is wall-clock based and persisted; it survives
process restarts.
*/
package pin

import (
	"context"
	"time"
)

// Credential is the stored PIN record, one row per principal.
type Credential struct {
	PrincipalID    string
	Hash           string
	FailedAttempts int
	LockedUntil    *time.Time // nil when not locked
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store persists credentials. Implementations: store/sqlite, store/memory.
type Store interface {
	// Credential returns the principal's row, or (nil, nil) if absent.
	Credential(ctx context.Context, principalID string) (*Credential, error)

	// Upsert creates or replaces the row, resetting attempts and lock.
	Upsert(ctx context.Context, cred Credential) error

	// RecordFailure atomically increments the failed-attempt counter and,
	// when the new count reaches threshold, sets the lock to now+lockFor.
	// Returns the updated row.
	RecordFailure(ctx context.Context, principalID string, threshold int, lockFor time.Duration, now time.Time) (*Credential, error)

	// ResetAttempts zeroes the counter and clears the lock.
	ResetAttempts(ctx context.Context, principalID string) error

	// Delete removes the row. Deleting a missing row is not an error.
	Delete(ctx context.Context, principalID string) error
}
