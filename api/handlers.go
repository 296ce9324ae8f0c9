/*
handlers.go - HTTP handlers for the disbursement engine

ENDPOINTS:
  Grants:
    PUT    /api/grants/{principalID}               Provision/replace a grant
    GET    /api/grants/{principalID}/quarter       Current quarter ledger view
    GET    /api/grants/{principalID}/withdrawals   Withdrawal history
    POST   /api/grants/{principalID}/withdrawals   Authorize a withdrawal

  Fees:
    POST   /api/fees/quote                         Withdrawal fee preview
    POST   /api/fees/project-quote                 Project-payment (additive) preview

  PIN:
    PUT    /api/principals/{principalID}/pin       Set/replace the PIN
    DELETE /api/principals/{principalID}/pin       Remove the PIN
    GET    /api/principals/{principalID}/pin/status

AUTHENTICATION:
  None here. The engine is handed an already-authenticated principal;
  the identity/session layer in front of this API owns that concern and
  the KYC gate.

ERROR MAPPING:
  400  validation / limit errors (client fixes input)
  401  wrong PIN
  404  no grant for principal
  409  PIN setup required
  423  PIN locked out
  500  persistence failures (generic message, retry permitted)
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/unseaf/grant-engine/grant"
	"github.com/unseaf/grant-engine/logger"
	"github.com/unseaf/grant-engine/pin"
	"github.com/unseaf/grant-engine/withdraw"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Grants grant.Store
	Vault  *pin.Vault

	// Clock for quarter derivation, overridable in tests.
	Now func() grant.Date
}

// NewHandler wires a handler over the given stores.
func NewHandler(grants grant.Store, vault *pin.Vault) *Handler {
	return &Handler{Grants: grants, Vault: vault, Now: grant.Today}
}

// =============================================================================
// GRANT HANDLERS
// =============================================================================

// SaveGrant provisions or replaces a principal's grant.
func (h *Handler) SaveGrant(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	var req SaveGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}

	g := grant.Grant{
		PrincipalID:    principalID,
		TotalAmount:    decimal.NewFromFloat(req.TotalAmount),
		StartDate:      start,
		CurrentBalance: decimal.NewFromFloat(req.CurrentBalance),
		UsageByQuarter: [4]decimal.Decimal{
			decimal.NewFromFloat(req.Q1Used),
			decimal.NewFromFloat(req.Q2Used),
			decimal.NewFromFloat(req.Q3Used),
			decimal.NewFromFloat(req.Q4Used),
		},
	}
	if err := h.Grants.SaveGrant(r.Context(), g); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quarterStateDTO(grant.Evaluate(g, h.Now())))
}

// GetQuarter returns the evaluated ledger view for the current quarter.
func (h *Handler) GetQuarter(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	g, err := h.Grants.Grant(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quarterStateDTO(grant.Evaluate(*g, h.Now())))
}

// ListWithdrawals returns the principal's withdrawal history.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	withdrawals, err := h.Grants.Withdrawals(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]WithdrawalDTO, len(withdrawals))
	for i, wd := range withdrawals {
		dtos[i] = withdrawalDTO(wd)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitWithdrawal drives the full authorization flow in one request:
// amount validation, fee computation, method-detail validation, PIN
// challenge, atomic commit.
func (h *Handler) SubmitWithdrawal(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	var req SubmitWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	method, err := grant.ParseMethod(req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	details, err := grant.DecodeDetails(method, req.MethodDetails)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flow := withdraw.New(h.Grants, h.Vault, principalID, withdraw.WithClock(h.Now))

	if err := flow.EnterAmount(r.Context(), decimal.NewFromFloat(req.Amount)); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := flow.SelectMethod(method); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := flow.ProvideDetails(r.Context(), details); err != nil {
		writeDomainError(w, err)
		return
	}
	committed, err := flow.ConfirmPIN(r.Context(), req.Pin)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, withdrawalDTO(*committed))
}

// =============================================================================
// FEE HANDLERS
// =============================================================================

// QuoteFee previews the fee for a withdrawal amount and method.
func (h *Handler) QuoteFee(w http.ResponseWriter, r *http.Request) {
	var req FeeQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	method, err := grant.ParseMethod(req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	quote, err := grant.ComputeWithdrawalFee(decimal.NewFromFloat(req.Amount), method)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FeeQuoteDTO{
		Amount:     f64(quote.Amount),
		Fee:        f64(quote.Fee),
		NetAmount:  f64(quote.NetAmount),
		FeePercent: f64(quote.FeePercent),
		FlatFee:    f64(quote.FlatFee),
		Method:     string(quote.Method),
	})
}

// QuoteProjectFee previews the additive project-payment fee.
func (h *Handler) QuoteProjectFee(w http.ResponseWriter, r *http.Request) {
	var req ProjectFeeQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	quote := grant.ComputeAdditiveFee(decimal.NewFromFloat(req.Amount))
	writeJSON(w, http.StatusOK, ProjectFeeQuoteDTO{
		Amount:       f64(quote.Amount),
		Fee:          f64(quote.Fee),
		TotalDebited: f64(quote.TotalDebited),
		FeePercent:   f64(quote.FeePercent),
	})
}

// =============================================================================
// PIN HANDLERS
// =============================================================================

// SetPin creates or replaces the principal's transaction PIN.
func (h *Handler) SetPin(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	var req SetPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	if err := h.Vault.Set(r.Context(), principalID, req.Pin); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN created successfully"})
}

// DeletePin removes the principal's PIN.
func (h *Handler) DeletePin(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	if err := h.Vault.Delete(r.Context(), principalID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN deleted"})
}

// PinStatus reports the credential state for the settings surface.
func (h *Handler) PinStatus(w http.ResponseWriter, r *http.Request) {
	principalID := chi.URLParam(r, "principalID")

	status, err := h.Vault.Status(r.Context(), principalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PinStatusDTO{
		Status:           string(status.Code),
		Message:          status.Message,
		FailedAttempts:   status.FailedAttempts,
		AttemptsLeft:     status.AttemptsLeft,
		MinutesRemaining: status.MinutesRemaining,
	})
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func quarterStateDTO(s grant.QuarterState) QuarterStateDTO {
	dto := QuarterStateDTO{
		Quarter:        s.Quarter.Label,
		Period:         s.Quarter.Period,
		StartDate:      s.Quarter.Start.String(),
		EndDate:        s.Quarter.End.String(),
		DaysRemaining:  s.Quarter.DaysRemaining,
		Limit:          f64(s.Limit),
		Used:           f64(s.Used),
		Remaining:      f64(s.Remaining),
		PercentUsed:    f64(s.PercentUsed),
		TotalGrant:     f64(s.TotalGrant),
		TotalUsed:      f64(s.TotalUsed),
		CurrentBalance: f64(s.CurrentBalance),
		CanWithdraw:    s.CanWithdraw,
		NearLimit:      s.NearLimit,
		LimitReached:   s.LimitReached,
	}
	for _, q := range s.Quarters {
		dto.Quarters = append(dto.Quarters, QuarterBreakdownDTO{
			Label:     q.Label,
			Limit:     f64(q.Limit),
			Used:      f64(q.Used),
			Remaining: f64(q.Remaining),
			OpenEnded: q.OpenEnded,
		})
	}
	return dto
}

func withdrawalDTO(wd grant.WithdrawalRequest) WithdrawalDTO {
	return WithdrawalDTO{
		ID:                    wd.ID,
		TransactionNumber:     wd.TransactionNumber,
		Amount:                f64(wd.Amount),
		Method:                string(wd.Method),
		MethodDetails:         wd.MethodDetails,
		Status:                string(wd.Status),
		Fee:                   f64(wd.Fee),
		NetAmount:             f64(wd.NetAmount),
		QuarterPeriod:         wd.QuarterPeriod,
		QuarterLimit:          f64(wd.QuarterLimit),
		QuarterUsedBefore:     f64(wd.QuarterUsedBefore),
		QuarterRemainingAfter: f64(wd.QuarterRemainingAfter),
		ExpectedCompletion:    wd.ExpectedCompletion.String(),
		CreatedAt:             wd.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseDate(s string) (grant.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return grant.Date{}, err
	}
	return grant.DateOf(t), nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		logger.Log.Error(message, zap.Error(err))
	} else {
		logger.Log.Debug(message, zap.Error(err))
	}
	writeJSON(w, status, ErrorDTO{Error: message})
}

// writeDomainError maps engine errors onto status codes and a body that
// carries the specific, actionable message.
func writeDomainError(w http.ResponseWriter, err error) {
	body := ErrorDTO{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		fieldErrs grant.FieldErrors
		wrongPin  *pin.WrongPinError
		locked    *pin.LockedError
	)
	switch {
	case errors.Is(err, grant.ErrGrantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pin.ErrSetupRequired):
		status = http.StatusConflict
		body.SetupRequired = true
		body.Error = "PIN not found. Please set up your transaction PIN first"
	case errors.As(err, &locked):
		status = http.StatusLocked
		body.MinutesRemaining = &locked.MinutesRemaining
	case errors.As(err, &wrongPin):
		status = http.StatusUnauthorized
		body.AttemptsLeft = &wrongPin.AttemptsLeft
	case errors.As(err, &fieldErrs):
		status = http.StatusBadRequest
		body.Fields = fieldErrs
	case grant.IsClientError(err), errors.Is(err, pin.ErrWeakPin):
		status = http.StatusBadRequest
	default:
		// Persistence and unknown failures stay generic; the root cause
		// is opaque to the caller and retry is permitted.
		logger.Log.Error("request failed", zap.Error(err))
		body.Error = "something went wrong, please try again"
	}

	writeJSON(w, status, body)
}
