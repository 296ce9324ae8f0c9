package pin

import (
	"errors"
	"fmt"
)

// ErrWeakPin is the class of format/strength rejections.
var ErrWeakPin = errors.New("invalid PIN")

// FormatError reports which format rule a candidate PIN broke.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return e.Message }

func (e *FormatError) Unwrap() error { return ErrWeakPin }

// ValidateFormat enforces the PIN rules: exactly six digits, not a run of
// one repeated digit, not the full ascending or descending sequence.
// Each rule has its own message so setup forms can show the exact reason.
func ValidateFormat(pin string) error {
	if len(pin) != PinLength {
		return &FormatError{Message: fmt.Sprintf("PIN must be exactly %d digits", PinLength)}
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return &FormatError{Message: "PIN must contain only numbers"}
		}
	}
	if allSameDigit(pin) {
		return &FormatError{Message: "PIN is too weak. Avoid repeated digits like 111111"}
	}
	if pin == "123456" || pin == "654321" {
		return &FormatError{Message: "PIN is too weak. Avoid sequential digits like 123456"}
	}
	return nil
}

func allSameDigit(pin string) bool {
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			return false
		}
	}
	return true
}
