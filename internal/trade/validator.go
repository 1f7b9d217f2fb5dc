package trade

import (
	"github.com/shopspring/decimal"

	"foresight/internal/quote"
)

// AmountFromText parses a user-entered amount; blank or non-numeric input
// is reported as invalid.
func AmountFromText(raw string) decimal.NullDecimal {
	d, ok := quote.ParseAmount(raw)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// Validate runs every guard in order and returns the first rejection, or
// nil when the trade may proceed:
//
//  1. not connected
//  2. amount missing, non-numeric or not positive
//  3. amount above maxAmount
//  4. balance below amount
func Validate(connected bool, amount decimal.NullDecimal, balance, maxAmount decimal.Decimal) error {
	if err := ValidateStatic(connected, amount, maxAmount); err != nil {
		return err
	}
	return CheckBalance(amount.Decimal, balance)
}

// ValidateStatic runs the guards that need no balance (1-3).
func ValidateStatic(connected bool, amount decimal.NullDecimal, maxAmount decimal.Decimal) error {
	if !connected {
		return &Error{Kind: KindNotConnected}
	}
	if !amount.Valid || !amount.Decimal.IsPositive() {
		return &Error{Kind: KindInvalidAmount}
	}
	if amount.Decimal.GreaterThan(maxAmount) {
		return limitExceeded(amount.Decimal, maxAmount)
	}
	return nil
}

// CheckBalance rejects an amount the observed balance cannot cover.
func CheckBalance(amount, balance decimal.Decimal) error {
	if balance.LessThan(amount) {
		return insufficientBalance(amount, balance)
	}
	return nil
}
