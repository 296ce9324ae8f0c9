/*
details.go - Per-method payout details

Each payout method collects its own set of required fields. Rather than
a lookup table of method -> field names, each method is its own struct
with its own Validate, so adding a method without a validator fails to
compile instead of silently accepting anything.
*/
package grant

import (
	"encoding/json"
	"sort"
	"strings"
)

// =============================================================================
// FIELD ERRORS
// =============================================================================

// FieldErrors maps field name -> message for incomplete method details.
// The flow surfaces these per-field so the form can highlight each one.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "method details incomplete: " + strings.Join(fields, ", ")
}

func (e FieldErrors) Unwrap() error { return ErrValidation }

func (e FieldErrors) require(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		e[field] = message
	}
}

func (e FieldErrors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// =============================================================================
// METHOD DETAILS - One variant per payout method
// =============================================================================

// MethodDetails is the payout destination for a withdrawal. Concrete
// types: BankTransferDetails, WireTransferDetails, DigitalWalletDetails,
// CheckDetails.
type MethodDetails interface {
	Method() Method
	Validate() error
}

// BankTransferDetails is the destination for a domestic bank transfer.
type BankTransferDetails struct {
	AccountHolderName  string `json:"accountHolderName"`
	BankName           string `json:"bankName"`
	AccountNumber      string `json:"accountNumber"`
	RoutingNumber      string `json:"routingNumber"`
	AccountType        string `json:"accountType"`
	BankAddress        string `json:"bankAddress"`
	BeneficiaryAddress string `json:"beneficiaryAddress"`
}

func (d BankTransferDetails) Method() Method { return MethodBankTransfer }

func (d BankTransferDetails) Validate() error {
	errs := FieldErrors{}
	d.collect(errs)
	return errs.orNil()
}

func (d BankTransferDetails) collect(errs FieldErrors) {
	errs.require("accountHolderName", d.AccountHolderName, "account holder name is required")
	errs.require("bankName", d.BankName, "bank name is required")
	errs.require("accountNumber", d.AccountNumber, "account number is required")
	errs.require("routingNumber", d.RoutingNumber, "routing number is required")
	errs.require("accountType", d.AccountType, "account type is required")
	errs.require("bankAddress", d.BankAddress, "bank address is required")
	errs.require("beneficiaryAddress", d.BeneficiaryAddress, "beneficiary address is required")
}

// WireTransferDetails extends the bank fields with wire routing data.
type WireTransferDetails struct {
	BankTransferDetails

	SwiftCode        string `json:"swiftCode"`
	WireInstructions string `json:"wireInstructions"`
	BeneficiaryPhone string `json:"beneficiaryPhone"`
}

func (d WireTransferDetails) Method() Method { return MethodWireTransfer }

func (d WireTransferDetails) Validate() error {
	errs := FieldErrors{}
	d.BankTransferDetails.collect(errs)
	errs.require("swiftCode", d.SwiftCode, "SWIFT/BIC code is required")
	errs.require("wireInstructions", d.WireInstructions, "wire instructions are required")
	errs.require("beneficiaryPhone", d.BeneficiaryPhone, "beneficiary phone is required")
	return errs.orNil()
}

// DigitalWalletDetails is the destination for a wallet payout.
type DigitalWalletDetails struct {
	WalletProvider     string `json:"walletProvider"`
	WalletEmail        string `json:"walletEmail"`
	VerificationStatus string `json:"verificationStatus"`
	Currency           string `json:"currency"`
}

func (d DigitalWalletDetails) Method() Method { return MethodDigitalWallet }

func (d DigitalWalletDetails) Validate() error {
	errs := FieldErrors{}
	errs.require("walletProvider", d.WalletProvider, "wallet provider is required")
	errs.require("walletEmail", d.WalletEmail, "wallet email/phone is required")
	errs.require("verificationStatus", d.VerificationStatus, "verification status is required")
	errs.require("currency", d.Currency, "currency is required")
	return errs.orNil()
}

// CheckDetails is the mailing destination for a paper check.
type CheckDetails struct {
	PayeeName    string `json:"payeeName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
}

func (d CheckDetails) Method() Method { return MethodCheck }

func (d CheckDetails) Validate() error {
	errs := FieldErrors{}
	errs.require("payeeName", d.PayeeName, "payee name is required")
	errs.require("addressLine1", d.AddressLine1, "address is required")
	errs.require("city", d.City, "city is required")
	errs.require("state", d.State, "state/province is required")
	errs.require("zipCode", d.ZipCode, "ZIP/postal code is required")
	errs.require("country", d.Country, "country is required")
	return errs.orNil()
}

// =============================================================================
// CODEC
// =============================================================================

// DecodeDetails unmarshals raw JSON into the variant for the method.
// The result is not yet validated; callers run Validate.
func DecodeDetails(method Method, raw json.RawMessage) (MethodDetails, error) {
	var (
		details MethodDetails
		err     error
	)
	switch method {
	case MethodBankTransfer:
		var d BankTransferDetails
		err = json.Unmarshal(raw, &d)
		details = d
	case MethodWireTransfer:
		var d WireTransferDetails
		err = json.Unmarshal(raw, &d)
		details = d
	case MethodDigitalWallet:
		var d DigitalWalletDetails
		err = json.Unmarshal(raw, &d)
		details = d
	case MethodCheck:
		var d CheckDetails
		err = json.Unmarshal(raw, &d)
		details = d
	default:
		return nil, &ValidationError{Field: "method", Message: "unknown payout method: " + string(method)}
	}
	if err != nil {
		return nil, &ValidationError{Field: "methodDetails", Message: "malformed method details: " + err.Error()}
	}
	return details, nil
}

// EncodeDetails marshals a details variant for storage on the withdrawal
// record.
func EncodeDetails(d MethodDetails) (json.RawMessage, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, &ValidationError{Field: "methodDetails", Message: "cannot encode method details: " + err.Error()}
	}
	return raw, nil
}
