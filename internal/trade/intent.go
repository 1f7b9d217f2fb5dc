package trade

import (
	"foresight/internal/market"
	"foresight/internal/quote"
)

// Intent is the editable state of a trade dialog: which side to back and
// the amount exactly as typed. Quotes are derived on every read.
type Intent struct {
	Side   market.Side `json:"side"`
	Amount string      `json:"amount"`
}

// Quote prices the intent against m. A market without a valid price for
// the side is an InvalidMarket error.
func (i Intent) Quote(m market.Market) (quote.Quote, error) {
	price, err := m.Price(i.Side)
	if err != nil {
		return quote.Zero, NewError(KindInvalidMarket, err)
	}
	return quote.FromText(i.Amount, price), nil
}
