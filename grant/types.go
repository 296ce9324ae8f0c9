/*
Package grant implements the quarterly disbursement engine: quarter
derivation from a grant's start date, per-quarter spending limits, fee
computation per payout method, and the records produced by authorized
withdrawals.

KEY CONCEPTS:
  - Grant: a fixed total allocation to a principal, disbursed over four
    quarters from its start date
  - Quarter: a derived 3-month window; Q1-Q3 cap at one third of the total,
    Q4 is open-ended up to remaining balance
  - QuarterState: evaluated view of the current quarter (limit, used,
    remaining, admissibility flags)
  - WithdrawalRequest: the immutable record a successful authorization
    commits

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, no floats
  2. Purity: evaluation and validation have no side effects; they are
     re-run inside the commit transaction against fresh state
  3. Errors as values: the taxonomy in errors.go, classified with errors.Is

SEE ALSO:
  - quarter.go: quarter derivation
  - ledger.go:  limit evaluation and admissibility
  - fees.go:    payout-method fee schedule
  - store.go:   persistence contract and the atomic commit helper
*/
package grant

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GRANT - The disbursed allocation
// =============================================================================

// Grant is a principal's fund allocation. Owned by exactly one principal
// and mutated only by successful withdrawal commits.
type Grant struct {
	PrincipalID    string
	TotalAmount    decimal.Decimal
	StartDate      Date
	CurrentBalance decimal.Decimal

	// Cumulative usage per quarter, indexed Q1=0 .. Q4=3.
	UsageByQuarter [4]decimal.Decimal
}

// TotalUsed sums usage across all four quarters.
func (g Grant) TotalUsed() decimal.Decimal {
	total := decimal.Zero
	for _, used := range g.UsageByQuarter {
		total = total.Add(used)
	}
	return total
}

// =============================================================================
// PAYOUT METHOD
// =============================================================================

type Method string

const (
	MethodBankTransfer  Method = "bank_transfer"
	MethodWireTransfer  Method = "wire_transfer"
	MethodDigitalWallet Method = "digital_wallet"
	MethodCheck         Method = "check"
)

// Methods lists every supported payout method.
func Methods() []Method {
	return []Method{MethodBankTransfer, MethodWireTransfer, MethodDigitalWallet, MethodCheck}
}

// ParseMethod validates a raw method string.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	switch m {
	case MethodBankTransfer, MethodWireTransfer, MethodDigitalWallet, MethodCheck:
		return m, nil
	}
	return "", &ValidationError{Field: "method", Message: "unknown payout method: " + s}
}

// =============================================================================
// WITHDRAWAL REQUEST - Committed authorization record
// =============================================================================

type WithdrawalStatus string

const (
	StatusPending    WithdrawalStatus = "pending"
	StatusProcessing WithdrawalStatus = "processing"
	StatusCompleted  WithdrawalStatus = "completed"
	StatusFailed     WithdrawalStatus = "failed"
)

// WithdrawalRequest is created only after PIN verification succeeds.
// Immutable once committed, except status transitions performed by the
// settlement process. Invariant: NetAmount = Amount - Fee, always.
type WithdrawalRequest struct {
	ID                string
	PrincipalID       string
	TransactionNumber string

	Amount        decimal.Decimal
	Method        Method
	MethodDetails json.RawMessage
	Status        WithdrawalStatus
	Fee           decimal.Decimal
	NetAmount     decimal.Decimal

	// Snapshot of ledger state at commit time, for receipts and audit.
	QuarterPeriod         string
	QuarterLimit          decimal.Decimal
	QuarterUsedBefore     decimal.Decimal
	QuarterRemainingAfter decimal.Decimal

	ExpectedCompletion Date
	CreatedAt          time.Time
}
