/*
fees.go - Payout-method fee schedule

Two fee-direction conventions exist in this system and they are easy to
confuse, so they are separate operations with separate result types:

  ComputeWithdrawalFee  Personal withdrawals. The fee is DEDUCTED from the
                        requested amount; the payee receives amount - fee.

  ComputeAdditiveFee    Project payments. The fee is CHARGED ON TOP of the
                        requested amount; the payer is debited
                        amount + fee and the recipient receives the full
                        amount.

A caller holding a FeeQuote cannot accidentally treat it as an
AdditiveFeeQuote, or vice versa.
*/
package grant

import "github.com/shopspring/decimal"

// Withdrawal fee schedule per method.
var (
	bankTransferPercent  = MustDecimal("0.02")  // 2%, minimum $5
	bankTransferMinimum  = MustDecimal("5")
	wireTransferPercent  = MustDecimal("0.03")  // 3% on top of flat
	wireTransferFlat     = MustDecimal("25")
	digitalWalletPercent = MustDecimal("0.015") // 1.5%
	checkFlat            = MustDecimal("10")

	projectPaymentPercent = MustDecimal("0.015") // additive convention
)

// =============================================================================
// WITHDRAWAL FEES - fee deducted from the requested amount
// =============================================================================

// FeeQuote is the fee computation for a personal withdrawal.
type FeeQuote struct {
	Amount     decimal.Decimal
	Fee        decimal.Decimal
	NetAmount  decimal.Decimal // Amount - Fee, what the payee receives
	FeePercent decimal.Decimal // percentage component, as a percent (2 = 2%)
	FlatFee    decimal.Decimal // flat component
	Method     Method
}

// ComputeWithdrawalFee computes the fee for a withdrawal by payout method.
//
//	bank_transfer   max(amount x 2%, $5)
//	wire_transfer   $25 + amount x 3%
//	digital_wallet  amount x 1.5%
//	check           flat $10
//
// Fees are rounded to cents. NetAmount = Amount - Fee, always.
func ComputeWithdrawalFee(amount decimal.Decimal, method Method) (FeeQuote, error) {
	quote := FeeQuote{Amount: amount, Method: method}

	switch method {
	case MethodBankTransfer:
		quote.FeePercent = bankTransferPercent.Mul(oneHundred)
		quote.Fee = decimal.Max(amount.Mul(bankTransferPercent), bankTransferMinimum)
	case MethodWireTransfer:
		quote.FeePercent = wireTransferPercent.Mul(oneHundred)
		quote.FlatFee = wireTransferFlat
		quote.Fee = wireTransferFlat.Add(amount.Mul(wireTransferPercent))
	case MethodDigitalWallet:
		quote.FeePercent = digitalWalletPercent.Mul(oneHundred)
		quote.Fee = amount.Mul(digitalWalletPercent)
	case MethodCheck:
		quote.FlatFee = checkFlat
		quote.Fee = checkFlat
	default:
		return FeeQuote{}, &ValidationError{Field: "method", Message: "unknown payout method: " + string(method)}
	}

	quote.Fee = quote.Fee.Round(2)
	quote.NetAmount = amount.Sub(quote.Fee)
	return quote, nil
}

// =============================================================================
// PROJECT-PAYMENT FEES - fee charged on top of the requested amount
// =============================================================================

// AdditiveFeeQuote is the fee computation for a project payment. The
// recipient receives Amount in full; the payer's balance is debited
// TotalDebited.
type AdditiveFeeQuote struct {
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	TotalDebited decimal.Decimal // Amount + Fee
	FeePercent   decimal.Decimal
}

// ComputeAdditiveFee computes the project-payment processing fee: 1.5%
// charged on top of the payment amount.
func ComputeAdditiveFee(amount decimal.Decimal) AdditiveFeeQuote {
	fee := amount.Mul(projectPaymentPercent).Round(2)
	return AdditiveFeeQuote{
		Amount:       amount,
		Fee:          fee,
		TotalDebited: amount.Add(fee),
		FeePercent:   projectPaymentPercent.Mul(oneHundred),
	}
}
