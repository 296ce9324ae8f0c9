/*
Package withdraw sequences a withdrawal authorization:

  Amount -> Method -> Details -> PIN -> Committed

Each transition validates before advancing and leaves the flow on the
same step when it fails, so the caller re-renders that step with the
specific error. Back() walks one step toward Amount; there are no other
backward moves and no skips.

TWO VALIDATION PASSES:
  The amount is validated when entered AND again when the flow moves into
  the PIN step, against a freshly loaded grant. The second pass closes
  the window between the amount check and the commit. The commit itself
  re-validates a third time inside the storage transaction - that one is
  authoritative (grant.Store's commit contract).

NO SIDE EFFECTS BEFORE COMMIT:
  Abandoning the flow at any step before ConfirmPIN leaves nothing
  behind. The single atomic commit happens inside ConfirmPIN after the
  PIN verifies.
*/
package withdraw

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/unseaf/grant-engine/grant"
	"github.com/unseaf/grant-engine/pin"
)

// =============================================================================
// STEPS
// =============================================================================

type Step string

const (
	StepAmount    Step = "amount"
	StepMethod    Step = "method"
	StepDetails   Step = "details"
	StepPin       Step = "pin"
	StepCommitted Step = "committed"
)

// StepError reports a transition attempted from the wrong step.
type StepError struct {
	Current Step
	Wanted  Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("flow is on step %q, expected %q", e.Current, e.Wanted)
}

// =============================================================================
// FLOW
// =============================================================================

// Flow is one principal's in-progress withdrawal authorization. Not safe
// for concurrent use; the flow is driven by a single principal
// sequentially.
type Flow struct {
	grants grant.Store
	vault  *pin.Vault
	now    func() grant.Date

	principalID string
	step        Step

	state   grant.QuarterState
	amount  decimal.Decimal
	quote   grant.FeeQuote
	details grant.MethodDetails
	result  *grant.WithdrawalRequest
}

type Option func(*Flow)

// WithClock overrides the date source. Tests pin the quarter.
func WithClock(now func() grant.Date) Option {
	return func(f *Flow) { f.now = now }
}

func New(grants grant.Store, vault *pin.Vault, principalID string, opts ...Option) *Flow {
	f := &Flow{
		grants:      grants,
		vault:       vault,
		now:         grant.Today,
		principalID: principalID,
		step:        StepAmount,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) Step() Step { return f.step }

// State returns the ledger view captured on the most recent evaluation.
func (f *Flow) State() grant.QuarterState { return f.state }

// Quote returns the fee computation captured at method selection.
func (f *Flow) Quote() grant.FeeQuote { return f.quote }

// Result returns the committed record, nil before commit.
func (f *Flow) Result() *grant.WithdrawalRequest { return f.result }

// EnterAmount validates the requested amount against the current quarter
// and advances to method selection.
func (f *Flow) EnterAmount(ctx context.Context, amount decimal.Decimal) error {
	if f.step != StepAmount {
		return &StepError{Current: f.step, Wanted: StepAmount}
	}

	state, err := f.evaluate(ctx)
	if err != nil {
		return err
	}
	if err := state.Validate(amount); err != nil {
		return err
	}

	f.state = state
	f.amount = amount
	f.step = StepMethod
	return nil
}

// SelectMethod computes the fee for the chosen payout method and
// advances to detail collection.
func (f *Flow) SelectMethod(method grant.Method) (grant.FeeQuote, error) {
	if f.step != StepMethod {
		return grant.FeeQuote{}, &StepError{Current: f.step, Wanted: StepMethod}
	}

	quote, err := grant.ComputeWithdrawalFee(f.amount, method)
	if err != nil {
		return grant.FeeQuote{}, err
	}

	f.quote = quote
	f.step = StepDetails
	return quote, nil
}

// ProvideDetails validates the method's required fields, then re-checks
// the amount against a freshly loaded grant before letting the principal
// at the PIN challenge.
func (f *Flow) ProvideDetails(ctx context.Context, details grant.MethodDetails) error {
	if f.step != StepDetails {
		return &StepError{Current: f.step, Wanted: StepDetails}
	}
	if details.Method() != f.quote.Method {
		return &grant.ValidationError{
			Field:   "methodDetails",
			Message: fmt.Sprintf("details are for %s, flow selected %s", details.Method(), f.quote.Method),
		}
	}
	if err := details.Validate(); err != nil {
		return err
	}

	// Fresh read: the state captured at amount entry is stale by now.
	state, err := f.evaluate(ctx)
	if err != nil {
		return err
	}
	if err := state.Validate(f.amount); err != nil {
		return err
	}

	f.state = state
	f.details = details
	f.step = StepPin
	return nil
}

// ConfirmPIN verifies the PIN and, on success, commits the withdrawal
// atomically. PIN failures and commit failures both leave the flow on
// the PIN step with nothing written.
func (f *Flow) ConfirmPIN(ctx context.Context, rawPin string) (*grant.WithdrawalRequest, error) {
	if f.step != StepPin {
		return nil, &StepError{Current: f.step, Wanted: StepPin}
	}

	if err := f.vault.Verify(ctx, f.principalID, rawPin); err != nil {
		return nil, err
	}

	raw, err := grant.EncodeDetails(f.details)
	if err != nil {
		return nil, err
	}

	req := &grant.WithdrawalRequest{
		Amount:        f.amount,
		Method:        f.quote.Method,
		MethodDetails: raw,
		Fee:           f.quote.Fee,
		NetAmount:     f.quote.NetAmount,
	}

	committed, err := f.grants.CommitWithdrawal(ctx, f.principalID, req, f.now())
	if err != nil {
		return nil, err
	}

	f.result = committed
	f.step = StepCommitted
	return committed, nil
}

// Back returns to the previous step. Captured input for the abandoned
// step is discarded.
func (f *Flow) Back() error {
	switch f.step {
	case StepMethod:
		f.amount = decimal.Zero
		f.step = StepAmount
	case StepDetails:
		f.quote = grant.FeeQuote{}
		f.step = StepMethod
	case StepPin:
		f.details = nil
		f.step = StepDetails
	default:
		return fmt.Errorf("cannot go back from step %q", f.step)
	}
	return nil
}

func (f *Flow) evaluate(ctx context.Context) (grant.QuarterState, error) {
	g, err := f.grants.Grant(ctx, f.principalID)
	if err != nil {
		return grant.QuarterState{}, err
	}
	return grant.Evaluate(*g, f.now()), nil
}
