/*
store.go - Persistence contract and the atomic commit

The engine talks to storage through the Store interface. Implementations
live in store/sqlite (durable) and store/memory (tests, dev).

THE COMMIT CONTRACT:
  CommitWithdrawal is the ONLY mutation of a grant. It must, inside a
  single storage transaction:
    1. Re-read the grant row
    2. Re-validate the amount against that fresh state (PrepareCommit)
    3. Insert the withdrawal record and apply the balance/usage update
  All three together, or none. Two requests racing past the amount check
  serialize here; the second one re-validates against the first one's
  committed usage and fails cleanly.

PrepareCommit is the shared, storage-agnostic half of step 2 and 3: both
store implementations call it between their read and their writes so the
ledger semantics live in exactly one place.
*/
package grant

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// STORE - Grant and withdrawal persistence
// =============================================================================

// Store handles grant and withdrawal persistence.
type Store interface {
	// Grant returns the principal's grant row. ErrGrantNotFound if absent.
	Grant(ctx context.Context, principalID string) (*Grant, error)

	// SaveGrant creates or replaces a grant row. Used by provisioning,
	// never by the withdrawal path.
	SaveGrant(ctx context.Context, g Grant) error

	// CommitWithdrawal atomically re-validates and applies a withdrawal.
	// See the commit contract above. On success the returned record has
	// its transaction number, status, and ledger snapshot filled in.
	CommitWithdrawal(ctx context.Context, principalID string, req *WithdrawalRequest, now Date) (*WithdrawalRequest, error)

	// Withdrawals returns the principal's withdrawal history, newest first.
	Withdrawals(ctx context.Context, principalID string) ([]WithdrawalRequest, error)
}

// =============================================================================
// PREPARE COMMIT - Shared commit semantics
// =============================================================================

// PrepareCommit re-validates req against the freshly read grant and, on
// success, completes the record (transaction number, status, quarter
// snapshot, expected completion) and applies the balance/usage mutation
// to g in memory. The caller persists both inside its transaction.
func PrepareCommit(g *Grant, req *WithdrawalRequest, now Date) error {
	state := Evaluate(*g, now)
	if err := state.Validate(req.Amount); err != nil {
		return err
	}

	q := state.Quarter.Index
	g.UsageByQuarter[q] = g.UsageByQuarter[q].Add(req.Amount)
	g.CurrentBalance = g.CurrentBalance.Sub(req.Amount)

	createdAt := time.Now().UTC()
	if req.TransactionNumber == "" {
		req.TransactionNumber = fmt.Sprintf("WD-%d", createdAt.UnixNano())
	}
	if req.ID == "" {
		req.ID = req.TransactionNumber
	}
	req.PrincipalID = g.PrincipalID
	req.Status = StatusPending
	req.QuarterPeriod = state.Quarter.Period
	req.QuarterLimit = state.Limit
	req.QuarterUsedBefore = state.Used
	req.QuarterRemainingAfter = state.Remaining.Sub(req.Amount)
	req.ExpectedCompletion = now.AddBusinessDays(5)
	req.CreatedAt = createdAt
	return nil
}
