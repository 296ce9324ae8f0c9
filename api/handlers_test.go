package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unseaf/grant-engine/api"
	"github.com/unseaf/grant-engine/grant"
	"github.com/unseaf/grant-engine/pin"
	"github.com/unseaf/grant-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var august28 = grant.NewDate(2025, time.August, 28)

// newTestServer seeds the canonical $9,000 grant (Q3, $3,000 remaining
// this quarter) with PIN 481930 and serves the full router over it.
func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.SaveGrant(ctx, grant.Grant{
		PrincipalID:    "prin-1",
		TotalAmount:    grant.MustDecimal("9000"),
		StartDate:      grant.NewDate(2025, time.January, 15),
		CurrentBalance: grant.MustDecimal("6000"),
		UsageByQuarter: [4]decimal.Decimal{grant.MustDecimal("3000")},
	}))

	vault := pin.NewVault(store, pin.WithCost(bcrypt.MinCost))
	require.NoError(t, vault.Set(ctx, "prin-1", "481930"))

	handler := api.NewHandler(store, vault)
	handler.Now = func() grant.Date { return august28 }

	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server, store
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func walletPayload() json.RawMessage {
	return json.RawMessage(`{
		"walletProvider": "paypal",
		"walletEmail": "jordan@example.com",
		"verificationStatus": "verified",
		"currency": "USD"
	}`)
}

// =============================================================================
// QUARTER ENDPOINT TESTS
// =============================================================================

func TestGetQuarter(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/grants/prin-1/quarter", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state api.QuarterStateDTO
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, "Q3", state.Quarter)
	assert.Equal(t, "Q3-2025", state.Period)
	assert.InDelta(t, 3000, state.Limit, 0.01)
	assert.InDelta(t, 3000, state.Remaining, 0.01)
	assert.True(t, state.CanWithdraw)
	assert.Len(t, state.Quarters, 4)
}

func TestGetQuarter_UnknownPrincipal(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/grants/nobody/quarter", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveGrant(t *testing.T) {
	server, store := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/grants/prin-2/", api.SaveGrantRequest{
		TotalAmount:    12000,
		StartDate:      "2025-06-01",
		CurrentBalance: 12000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	g, err := store.Grant(context.Background(), "prin-2")
	require.NoError(t, err)
	assert.True(t, g.TotalAmount.Equal(grant.MustDecimal("12000")))
}

// =============================================================================
// WITHDRAWAL ENDPOINT TESTS
// =============================================================================

func TestSubmitWithdrawal_Success(t *testing.T) {
	server, store := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-1/withdrawals", api.SubmitWithdrawalRequest{
		Amount:        2000,
		Method:        "digital_wallet",
		MethodDetails: walletPayload(),
		Pin:           "481930",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", body)

	var wd api.WithdrawalDTO
	require.NoError(t, json.Unmarshal(body, &wd))
	assert.Equal(t, "pending", wd.Status)
	assert.InDelta(t, 30, wd.Fee, 0.001)
	assert.InDelta(t, 1970, wd.NetAmount, 0.001)
	assert.Equal(t, "Q3-2025", wd.QuarterPeriod)
	assert.NotEmpty(t, wd.TransactionNumber)

	g, err := store.Grant(context.Background(), "prin-1")
	require.NoError(t, err)
	assert.True(t, g.CurrentBalance.Equal(grant.MustDecimal("4000")))
}

func TestSubmitWithdrawal_OverQuarterLimit(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-1/withdrawals", api.SubmitWithdrawalRequest{
		Amount:        5000,
		Method:        "digital_wallet",
		MethodDetails: walletPayload(),
		Pin:           "481930",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errDTO api.ErrorDTO
	require.NoError(t, json.Unmarshal(body, &errDTO))
	assert.Contains(t, errDTO.Error, "exceeds Q3 limit")
	assert.Contains(t, errDTO.Error, "$3,000.00")
}

func TestSubmitWithdrawal_IncompleteDetails(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-1/withdrawals", api.SubmitWithdrawalRequest{
		Amount:        1000,
		Method:        "digital_wallet",
		MethodDetails: json.RawMessage(`{"walletProvider": "paypal"}`),
		Pin:           "481930",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errDTO api.ErrorDTO
	require.NoError(t, json.Unmarshal(body, &errDTO))
	assert.Contains(t, errDTO.Fields, "walletEmail")
	assert.Contains(t, errDTO.Fields, "currency")
}

func TestSubmitWithdrawal_WrongPin(t *testing.T) {
	server, store := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-1/withdrawals", api.SubmitWithdrawalRequest{
		Amount:        1000,
		Method:        "digital_wallet",
		MethodDetails: walletPayload(),
		Pin:           "000001",
	})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var errDTO api.ErrorDTO
	require.NoError(t, json.Unmarshal(body, &errDTO))
	require.NotNil(t, errDTO.AttemptsLeft)
	assert.Equal(t, 2, *errDTO.AttemptsLeft)

	// Nothing committed.
	history, err := store.Withdrawals(context.Background(), "prin-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSubmitWithdrawal_LockedAfterThreeWrongPins(t *testing.T) {
	server, _ := newTestServer(t)

	submit := func() (*http.Response, []byte) {
		return doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-1/withdrawals", api.SubmitWithdrawalRequest{
			Amount:        1000,
			Method:        "digital_wallet",
			MethodDetails: walletPayload(),
			Pin:           "000001",
		})
	}

	for i := 0; i < 2; i++ {
		resp, _ := submit()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := submit()
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	var errDTO api.ErrorDTO
	require.NoError(t, json.Unmarshal(body, &errDTO))
	require.NotNil(t, errDTO.MinutesRemaining)
	assert.Equal(t, 30, *errDTO.MinutesRemaining)
}

func TestSubmitWithdrawal_NoPinConfigured(t *testing.T) {
	server, store := newTestServer(t)
	require.NoError(t, store.SaveGrant(context.Background(), grant.Grant{
		PrincipalID:    "prin-3",
		TotalAmount:    grant.MustDecimal("9000"),
		StartDate:      grant.NewDate(2025, time.January, 15),
		CurrentBalance: grant.MustDecimal("9000"),
	}))

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-3/withdrawals", api.SubmitWithdrawalRequest{
		Amount:        100,
		Method:        "check",
		MethodDetails: json.RawMessage(`{"payeeName":"A","addressLine1":"B","city":"C","state":"D","zipCode":"E","country":"F"}`),
		Pin:           "481930",
	})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errDTO api.ErrorDTO
	require.NoError(t, json.Unmarshal(body, &errDTO))
	assert.True(t, errDTO.SetupRequired)
}

func TestListWithdrawals(t *testing.T) {
	server, _ := newTestServer(t)

	for _, amount := range []float64{500, 700} {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/grants/prin-1/withdrawals", api.SubmitWithdrawalRequest{
			Amount:        amount,
			Method:        "check",
			MethodDetails: json.RawMessage(`{"payeeName":"A","addressLine1":"B","city":"C","state":"D","zipCode":"E","country":"F"}`),
			Pin:           "481930",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/grants/prin-1/withdrawals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history []api.WithdrawalDTO
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 2)
	assert.InDelta(t, 700, history[0].Amount, 0.001, "newest first")
	assert.InDelta(t, 500, history[1].Amount, 0.001)
}

// =============================================================================
// FEE ENDPOINT TESTS
// =============================================================================

func TestQuoteFee(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/fees/quote", api.FeeQuoteRequest{
		Amount: 2000,
		Method: "wire_transfer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var quote api.FeeQuoteDTO
	require.NoError(t, json.Unmarshal(body, &quote))
	assert.InDelta(t, 85, quote.Fee, 0.001)
	assert.InDelta(t, 1915, quote.NetAmount, 0.001)
	assert.InDelta(t, 25, quote.FlatFee, 0.001)
}

func TestQuoteFee_UnknownMethod(t *testing.T) {
	server, _ := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/fees/quote", api.FeeQuoteRequest{
		Amount: 2000,
		Method: "cash",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuoteProjectFee(t *testing.T) {
	server, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/fees/project-quote", api.ProjectFeeQuoteRequest{
		Amount: 2000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var quote api.ProjectFeeQuoteDTO
	require.NoError(t, json.Unmarshal(body, &quote))
	assert.InDelta(t, 30, quote.Fee, 0.001)
	assert.InDelta(t, 2030, quote.TotalDebited, 0.001, "fee charged on top")
}

// =============================================================================
// PIN ENDPOINT TESTS
// =============================================================================

func TestPinEndpoints_Lifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	base := server.URL + "/api/principals/prin-9/pin"

	resp, body := doJSON(t, http.MethodGet, base+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status api.PinStatusDTO
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "not_set", status.Status)

	resp, _ = doJSON(t, http.MethodPut, base+"/", api.SetPinRequest{Pin: "481930"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "active", status.Status)

	resp, _ = doJSON(t, http.MethodDelete, base+"/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, base+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "not_set", status.Status)
}

func TestSetPin_RejectsWeakPin(t *testing.T) {
	server, _ := newTestServer(t)

	for _, weak := range []string{"123456", "111111", "12345"} {
		resp, body := doJSON(t, http.MethodPut, server.URL+"/api/principals/prin-9/pin/", api.SetPinRequest{Pin: weak})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("pin %s: %s", weak, body))
	}
}
