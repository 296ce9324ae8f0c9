/*
dto.go - Data transfer objects for API requests and responses

These types decouple the engine's domain model from the JSON contract.
Money crosses the wire as float64 for display surfaces only; the engine
itself never computes on floats (amounts are converted to decimal at the
boundary).
*/
package api

import "encoding/json"

// =============================================================================
// QUARTER / LEDGER
// =============================================================================

type QuarterBreakdownDTO struct {
	Label     string  `json:"label"`
	Limit     float64 `json:"limit"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
	OpenEnded bool    `json:"open_ended"`
}

type QuarterStateDTO struct {
	Quarter       string `json:"quarter"`
	Period        string `json:"period"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	DaysRemaining int    `json:"days_remaining"`

	Limit       float64 `json:"limit"`
	Used        float64 `json:"used"`
	Remaining   float64 `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`

	TotalGrant     float64 `json:"total_grant"`
	TotalUsed      float64 `json:"total_used"`
	CurrentBalance float64 `json:"current_balance"`

	CanWithdraw  bool `json:"can_withdraw"`
	NearLimit    bool `json:"near_limit"`
	LimitReached bool `json:"limit_reached"`

	Quarters []QuarterBreakdownDTO `json:"quarters"`
}

// =============================================================================
// GRANTS
// =============================================================================

type SaveGrantRequest struct {
	TotalAmount    float64 `json:"total_amount"`
	StartDate      string  `json:"start_date"` // "2006-01-02"
	CurrentBalance float64 `json:"current_balance"`
	Q1Used         float64 `json:"q1_used"`
	Q2Used         float64 `json:"q2_used"`
	Q3Used         float64 `json:"q3_used"`
	Q4Used         float64 `json:"q4_used"`
}

// =============================================================================
// FEES
// =============================================================================

type FeeQuoteRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

type FeeQuoteDTO struct {
	Amount     float64 `json:"amount"`
	Fee        float64 `json:"fee"`
	NetAmount  float64 `json:"net_amount"`
	FeePercent float64 `json:"fee_percent"`
	FlatFee    float64 `json:"flat_fee"`
	Method     string  `json:"method"`
}

type ProjectFeeQuoteRequest struct {
	Amount float64 `json:"amount"`
}

type ProjectFeeQuoteDTO struct {
	Amount       float64 `json:"amount"`
	Fee          float64 `json:"fee"`
	TotalDebited float64 `json:"total_debited"`
	FeePercent   float64 `json:"fee_percent"`
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

type SubmitWithdrawalRequest struct {
	Amount        float64         `json:"amount"`
	Method        string          `json:"method"`
	MethodDetails json.RawMessage `json:"method_details"`
	Pin           string          `json:"pin"`
}

type WithdrawalDTO struct {
	ID                string          `json:"id"`
	TransactionNumber string          `json:"transaction_number"`
	Amount            float64         `json:"amount"`
	Method            string          `json:"method"`
	MethodDetails     json.RawMessage `json:"method_details,omitempty"`
	Status            string          `json:"status"`
	Fee               float64         `json:"fee"`
	NetAmount         float64         `json:"net_amount"`

	QuarterPeriod         string  `json:"quarter_period"`
	QuarterLimit          float64 `json:"quarter_limit"`
	QuarterUsedBefore     float64 `json:"quarter_used_before"`
	QuarterRemainingAfter float64 `json:"quarter_remaining_after"`

	ExpectedCompletion string `json:"expected_completion"`
	CreatedAt          string `json:"created_at"`
}

// =============================================================================
// PIN
// =============================================================================

type SetPinRequest struct {
	Pin string `json:"pin"`
}

type PinStatusDTO struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	FailedAttempts   int    `json:"failed_attempts,omitempty"`
	AttemptsLeft     int    `json:"attempts_left,omitempty"`
	MinutesRemaining int    `json:"minutes_remaining,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorDTO struct {
	Error            string            `json:"error"`
	Fields           map[string]string `json:"fields,omitempty"`
	AttemptsLeft     *int              `json:"attempts_left,omitempty"`
	MinutesRemaining *int              `json:"minutes_remaining,omitempty"`
	SetupRequired    bool              `json:"setup_required,omitempty"`
}
