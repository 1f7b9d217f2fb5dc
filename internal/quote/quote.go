// Package quote computes the estimated shares and potential return for a
// stake at a fixed per-share price in cents.
package quote

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Bounds on typed amounts. Decimal arithmetic cost grows with the exponent,
// so anything outside these is rejected before it is computed on.
const (
	maxAmountLen      = 32
	maxAmountExponent = 18
)

// Quote is the display estimate for a stake. Both values are rounded to two
// decimal places.
type Quote struct {
	Shares          decimal.Decimal `json:"shares"`
	PotentialReturn decimal.Decimal `json:"potential_return"`
}

// Zero is the quote for an empty or unusable amount.
var Zero = Quote{Shares: decimal.Zero, PotentialReturn: decimal.Zero}

// Compute returns shares = amount/price*100 and return = shares-amount.
// Non-positive amounts and prices outside [1,100] give Zero.
func Compute(amount decimal.Decimal, priceCents int64) Quote {
	if !amount.IsPositive() || priceCents < 1 || priceCents > 100 {
		return Zero
	}
	// decimal.Round is half away from zero.
	shares := amount.Div(decimal.NewFromInt(priceCents)).Mul(hundred).Round(2)
	return Quote{
		Shares:          shares,
		PotentialReturn: shares.Sub(amount).Round(2),
	}
}

// FromText parses a user-entered amount and quotes it. Blank or unparsable
// input gives Zero.
func FromText(raw string, priceCents int64) Quote {
	amount, ok := ParseAmount(raw)
	if !ok {
		return Zero
	}
	return Compute(amount, priceCents)
}

// ParseAmount parses a decimal amount, reporting false for blank,
// non-numeric or oversized input.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxAmountLen {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp < -maxAmountExponent || exp > maxAmountExponent {
		return decimal.Zero, false
	}
	return d, true
}
