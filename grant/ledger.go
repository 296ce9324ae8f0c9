/*
ledger.go - Quarter limit evaluation and withdrawal admissibility

Evaluate answers "how much may still leave this grant right now?":
Q1-Q3 cap at one third of the total grant; Q4's limit is whatever balance
remains. Validate is the pure admissibility predicate over that view.
Both are side-effect free and are re-run inside the commit transaction
against freshly read state, so two requests racing past the same check
cannot overdraw a quarter in aggregate.
*/
package grant

import "github.com/shopspring/decimal"

// =============================================================================
// QUARTER STATE - Evaluated view of the current quarter
// =============================================================================

// QuarterBreakdown is one quarter's slice of the grant.
type QuarterBreakdown struct {
	Label     string
	Limit     decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal

	// OpenEnded marks Q4, whose "limit" is the remaining balance rather
	// than a fixed cap.
	OpenEnded bool
}

// QuarterState is the derived ledger view for the quarter "now" falls in.
type QuarterState struct {
	Quarter Quarter

	Limit     decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal

	// PercentUsed is used/limit as a 0-100 figure. In Q4 the denominator
	// is the current balance, so the figure sits near zero until the
	// balance is nearly exhausted. Observed product behavior, kept as-is;
	// see DESIGN.md before "fixing".
	PercentUsed decimal.Decimal

	TotalGrant     decimal.Decimal
	TotalUsed      decimal.Decimal
	CurrentBalance decimal.Decimal

	CanWithdraw  bool
	NearLimit    bool
	LimitReached bool

	Quarters [4]QuarterBreakdown
}

var (
	three      = decimal.NewFromInt(3)
	oneHundred = decimal.NewFromInt(100)

	nearLimitThreshold = MustDecimal("80") // percent
)

// Evaluate computes the current quarter's limits and usage for a grant.
// Pure: the grant is not modified.
func Evaluate(g Grant, now Date) QuarterState {
	q := CurrentQuarter(g.StartDate, now)

	// Q1-Q3 share a fixed cap of a third of the total.
	fixedLimit := g.TotalAmount.Div(three)

	limit := fixedLimit
	if q.Index == 3 {
		limit = g.CurrentBalance
	}

	used := g.UsageByQuarter[q.Index]

	var remaining decimal.Decimal
	if q.Index == 3 {
		remaining = g.CurrentBalance
	} else {
		remaining = decimal.Max(decimal.Zero, limit.Sub(used))
	}

	percentUsed := decimal.Zero
	if limit.IsPositive() {
		percentUsed = used.Div(limit).Mul(oneHundred)
	}

	state := QuarterState{
		Quarter:        q,
		Limit:          limit,
		Used:           used,
		Remaining:      remaining,
		PercentUsed:    percentUsed,
		TotalGrant:     g.TotalAmount,
		TotalUsed:      g.TotalUsed(),
		CurrentBalance: g.CurrentBalance,
		CanWithdraw:    remaining.IsPositive() && g.CurrentBalance.IsPositive(),
		NearLimit:      remaining.IsPositive() && percentUsed.GreaterThanOrEqual(nearLimitThreshold),
		LimitReached:   !remaining.IsPositive(),
	}

	for i := 0; i < 4; i++ {
		b := QuarterBreakdown{
			Label: quarterLabels[i],
			Limit: fixedLimit,
			Used:  g.UsageByQuarter[i],
		}
		if i == 3 {
			b.Limit = g.CurrentBalance
			b.Remaining = g.CurrentBalance
			b.OpenEnded = true
		} else {
			b.Remaining = decimal.Max(decimal.Zero, fixedLimit.Sub(g.UsageByQuarter[i]))
		}
		state.Quarters[i] = b
	}

	return state
}

// =============================================================================
// ADMISSIBILITY
// =============================================================================

// Validate checks whether a withdrawal amount is admissible against this
// state. Pure predicate, no side effects. Commit paths must re-run it
// against freshly read state; a QuarterState captured at amount entry is
// stale by PIN time.
func (s QuarterState) Validate(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "withdrawal amount must be greater than zero"}
	}
	if amount.GreaterThan(s.CurrentBalance) {
		return &LimitExceededError{
			Scope:     LimitBalance,
			Requested: amount,
			Available: s.CurrentBalance,
		}
	}
	if amount.GreaterThan(s.Remaining) {
		return &LimitExceededError{
			Scope:     LimitQuarter,
			Quarter:   s.Quarter.Label,
			Requested: amount,
			Available: s.Remaining,
		}
	}
	return nil
}
