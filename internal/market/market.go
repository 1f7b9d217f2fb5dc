package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a market ID is not in the catalog.
var ErrNotFound = errors.New("market not found")

// ErrBadPrice reports a market whose price for a side is outside [1,100].
var ErrBadPrice = errors.New("market price out of range")

// Side is the outcome a trade backs.
type Side string

const (
	Yes Side = "yes"
	No  Side = "no"
)

// ParseSide accepts "yes"/"no" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Yes:
		return Yes, nil
	case No:
		return No, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Outcome is the upper-case form used by Manifold bet requests.
func (s Side) Outcome() string {
	return strings.ToUpper(string(s))
}

// Market is a read-only catalog entry. Prices are integer cents; yes and no
// are supplied independently and need not sum to 100.
type Market struct {
	ID         string `json:"id" toml:"id"`
	Question   string `json:"question" toml:"question"`
	Category   string `json:"category" toml:"category"`
	YesPrice   int64  `json:"yes_price" toml:"yes_price"`
	NoPrice    int64  `json:"no_price" toml:"no_price"`
	YesPercent string `json:"yes_percentage" toml:"yes_percentage"`
	NoPercent  string `json:"no_percentage" toml:"no_percentage"`
	Volume     string `json:"volume" toml:"volume"`
	EndsIn     string `json:"ends_in" toml:"ends_in"`
}

// Price returns the per-share price in cents for side. A price outside
// [1,100] is a data-integrity violation and yields ErrBadPrice.
func (m Market) Price(side Side) (int64, error) {
	var p int64
	switch side {
	case Yes:
		p = m.YesPrice
	case No:
		p = m.NoPrice
	default:
		return 0, fmt.Errorf("unknown side %q", side)
	}
	if p < 1 || p > 100 {
		return 0, fmt.Errorf("%w: market %s %s price %d", ErrBadPrice, m.ID, side, p)
	}
	return p, nil
}

// AllCategories selects every market.
const AllCategories = "all"

// Filter narrows the catalog. An empty or "all" category matches every
// market; Search is a case-insensitive substring of the question.
type Filter struct {
	Category string
	Search   string
}

// Matches applies the filter to a single market.
func (f Filter) Matches(m Market) bool {
	if f.Category != "" && f.Category != AllCategories && m.Category != f.Category {
		return false
	}
	return strings.Contains(strings.ToLower(m.Question), strings.ToLower(f.Search))
}

// Source supplies a full catalog snapshot.
type Source interface {
	Fetch(ctx context.Context) ([]Market, error)
}
