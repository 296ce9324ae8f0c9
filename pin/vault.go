/*
Package pin manages the 6-digit transaction PIN that gates every
withdrawal: creation with format/strength rules, salted one-way storage,
and verification with attempt limiting and lockout.

THE LOCKOUT STATE MACHINE:
  unlocked(attempts=0)
    -> unlocked(attempts=n, 0<n<3)   wrong PIN
    -> locked(until=t)               third consecutive wrong PIN
    -> (wall clock passes t)         lock expires, attempts NOT reset
    -> unlocked(attempts=0)          next successful verify

  Lock expiry alone never resets the counter: a wrong attempt after
  expiry increments past the threshold and locks again immediately; only
  a successful verify clears it. The counter and lock timestamp are
  durable per-principal rows with atomic updates, so the lockout survives
  restarts and two parallel wrong attempts cannot both observe
  attempts=2 and dodge the lock.

HASHING:
  bcrypt with cost 12. Deliberately slow - a 6-digit space is tiny, so
  the work factor is the defense. Tests dial the cost down through
  WithCost.
*/
package pin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Lockout policy constants.
const (
	PinLength       = 6
	MaxAttempts     = 3
	LockoutDuration = 30 * time.Minute

	defaultBcryptCost = 12
)

// =============================================================================
// VAULT
// =============================================================================

// Vault manages PIN credentials over a Store.
type Vault struct {
	store Store
	cost  int
	now   func() time.Time
}

type Option func(*Vault)

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(v *Vault) { v.cost = cost }
}

// WithClock overrides the wall clock. Tests use a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

func NewVault(store Store, opts ...Option) *Vault {
	v := &Vault{store: store, cost: defaultBcryptCost, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Set creates or replaces the principal's PIN. The upsert resets the
// failed-attempt counter and clears any lockout.
func (v *Vault) Set(ctx context.Context, principalID, rawPin string) error {
	if err := ValidateFormat(rawPin); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPin), v.cost)
	if err != nil {
		return fmt.Errorf("hashing PIN: %w", err)
	}

	now := v.now().UTC()
	return v.store.Upsert(ctx, Credential{
		PrincipalID: principalID,
		Hash:        string(hash),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// Verify checks a PIN attempt.
//
// Outcomes:
//   - nil:                    match; attempts reset, lock cleared
//   - ErrSetupRequired:       no credential exists; caller redirects to setup
//   - *LockedError:           lock active; hash and counter untouched
//   - *WrongPinError:         mismatch; counter incremented, lock set on
//     the third consecutive failure
func (v *Vault) Verify(ctx context.Context, principalID, rawPin string) error {
	cred, err := v.store.Credential(ctx, principalID)
	if err != nil {
		return err
	}
	if cred == nil {
		return ErrSetupRequired
	}

	now := v.now().UTC()
	if cred.LockedUntil != nil && now.Before(*cred.LockedUntil) {
		return newLockedError(*cred.LockedUntil, now)
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(rawPin)) == nil {
		if err := v.store.ResetAttempts(ctx, principalID); err != nil {
			return err
		}
		return nil
	}

	updated, err := v.store.RecordFailure(ctx, principalID, MaxAttempts, LockoutDuration, now)
	if err != nil {
		return err
	}
	if updated.LockedUntil != nil && now.Before(*updated.LockedUntil) {
		return newLockedError(*updated.LockedUntil, now)
	}
	return &WrongPinError{AttemptsLeft: MaxAttempts - updated.FailedAttempts}
}

// Delete removes the principal's PIN. A new PIN must be set before
// further withdrawals.
func (v *Vault) Delete(ctx context.Context, principalID string) error {
	return v.store.Delete(ctx, principalID)
}

// =============================================================================
// STATUS - For the settings surface
// =============================================================================

type StatusCode string

const (
	StatusNotSet  StatusCode = "not_set"
	StatusLocked  StatusCode = "locked"
	StatusWarning StatusCode = "warning" // failed attempts recorded, not yet locked
	StatusActive  StatusCode = "active"
)

type Status struct {
	Code             StatusCode
	Message          string
	FailedAttempts   int
	AttemptsLeft     int
	MinutesRemaining int
}

// Status reports the credential state without verifying anything.
func (v *Vault) Status(ctx context.Context, principalID string) (Status, error) {
	cred, err := v.store.Credential(ctx, principalID)
	if err != nil {
		return Status{}, err
	}
	if cred == nil {
		return Status{Code: StatusNotSet, Message: "transaction PIN not set up"}, nil
	}

	now := v.now().UTC()
	if cred.LockedUntil != nil && now.Before(*cred.LockedUntil) {
		minutes := minutesRemaining(*cred.LockedUntil, now)
		return Status{
			Code:             StatusLocked,
			Message:          fmt.Sprintf("account locked for %d more minutes", minutes),
			FailedAttempts:   cred.FailedAttempts,
			MinutesRemaining: minutes,
		}, nil
	}
	if cred.FailedAttempts > 0 {
		left := MaxAttempts - cred.FailedAttempts
		if left < 0 {
			left = 0
		}
		return Status{
			Code:           StatusWarning,
			Message:        fmt.Sprintf("%d attempt(s) remaining", left),
			FailedAttempts: cred.FailedAttempts,
			AttemptsLeft:   left,
		}, nil
	}
	return Status{Code: StatusActive, Message: "transaction PIN is active"}, nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAuthentication is the class of wrong-PIN and locked-out errors.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSetupRequired means no PIN is configured. Distinct from a wrong
	// PIN: the caller must redirect to setup, not retry.
	ErrSetupRequired = errors.New("transaction PIN not set up")
)

// WrongPinError reports a mismatch with the attempts left before lockout.
type WrongPinError struct {
	AttemptsLeft int
}

func (e *WrongPinError) Error() string {
	return fmt.Sprintf("incorrect PIN. %d attempt(s) remaining", e.AttemptsLeft)
}

func (e *WrongPinError) Unwrap() error { return ErrAuthentication }

// LockedError reports an active lockout with the wait remaining.
type LockedError struct {
	Until            time.Time
	MinutesRemaining int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked due to multiple failed attempts. Try again in %d minutes", e.MinutesRemaining)
}

func (e *LockedError) Unwrap() error { return ErrAuthentication }

func newLockedError(until, now time.Time) *LockedError {
	return &LockedError{Until: until, MinutesRemaining: minutesRemaining(until, now)}
}

func minutesRemaining(until, now time.Time) int {
	m := int((until.Sub(now) + time.Minute - 1) / time.Minute) // ceil
	if m < 0 {
		m = 0
	}
	return m
}
