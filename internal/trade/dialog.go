package trade

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"foresight/internal/market"
	"foresight/internal/metrics"
	"foresight/internal/quote"
)

var (
	// ErrInFlight is returned when Submit is called while a submission is
	// already validating, fetching the balance or submitting.
	ErrInFlight = errors.New("trade: submission already in flight")
	// ErrDialogClosed is returned for a closed dialog, including when it was
	// closed while its submission was awaiting a collaborator.
	ErrDialogClosed = errors.New("trade: dialog closed")
)

// State is the submission state of a dialog.
type State int

const (
	Idle State = iota
	Validating
	FetchingBalance
	Submitting
	Settled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case FetchingBalance:
		return "fetching_balance"
	case Submitting:
		return "submitting"
	case Settled:
		return "settled"
	}
	return "unknown"
}

// InFlight reports whether a submission is running in this state.
func (s State) InFlight() bool {
	return s == Validating || s == FetchingBalance || s == Submitting
}

// Wallet is the acting identity as reported by the caller.
type Wallet struct {
	Address   string
	Connected bool
}

func (w Wallet) connected() bool {
	return w.Connected && w.Address != ""
}

// BalanceSource reports the spendable balance of a wallet. Failures should
// be *Error values (NetworkTimeout, RateLimited, ...); anything else is
// treated as a GenericFailure.
type BalanceSource interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

// Order is what the sink is asked to place.
type Order struct {
	MarketID string
	Side     market.Side
	Amount   decimal.Decimal
	Wallet   string
}

// Receipt is the opaque success token returned by a sink.
type Receipt struct {
	Token string `json:"token"`
}

// Sink places orders. Failures should be *Error values (RejectedBySigner,
// NetworkTimeout, RateLimited, ...).
type Sink interface {
	Submit(ctx context.Context, order Order) (Receipt, error)
}

// Limits bound a single trade.
type Limits struct {
	MaxAmount decimal.Decimal
	Currency  string
}

// Outcome is a settled submission: either a receipt or a failure.
type Outcome struct {
	Receipt     *Receipt
	Failure     *Error
	CloseDialog bool
}

// Dialog is one trade dialog for one market. It owns the intent and allows
// at most one submission in flight. A closed dialog is never reused.
type Dialog struct {
	market   market.Market
	balances BalanceSource
	sink     Sink
	limits   Limits

	mu     sync.Mutex
	state  State
	intent Intent
	closed bool
}

// NewDialog opens a dialog on the yes side, or on the no side when only
// that side has a usable price.
func NewDialog(m market.Market, balances BalanceSource, sink Sink, limits Limits) *Dialog {
	side := market.Yes
	if _, err := m.Price(market.Yes); err != nil {
		if _, err := m.Price(market.No); err == nil {
			side = market.No
		}
	}
	return &Dialog{
		market:   m,
		balances: balances,
		sink:     sink,
		limits:   limits,
		intent:   Intent{Side: side},
	}
}

func (d *Dialog) Market() market.Market { return d.market }

func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dialog) Intent() Intent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.intent
}

func (d *Dialog) SetSide(side market.Side) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intent.Side = side
}

func (d *Dialog) SetAmount(raw string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intent.Amount = raw
}

// Quote prices the current intent.
func (d *Dialog) Quote() (quote.Quote, error) {
	return d.Intent().Quote(d.market)
}

// Close ends the dialog. Results of a submission still in flight are
// discarded when they arrive.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Dialog) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Submit validates the intent, fetches the live balance, checks it and
// places the order. It returns ErrInFlight without side effects when a
// submission is already running, and ErrDialogClosed when the dialog is or
// becomes closed. Every other path settles and returns an Outcome.
func (d *Dialog) Submit(ctx context.Context, w Wallet) (Outcome, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Outcome{}, ErrDialogClosed
	}
	if d.state.InFlight() {
		d.mu.Unlock()
		metrics.SubmissionsIgnored.Inc()
		return Outcome{}, ErrInFlight
	}
	d.state = Validating
	intent := d.intent
	d.mu.Unlock()

	amount := AmountFromText(intent.Amount)

	if err := ValidateStatic(w.connected(), amount, d.limits.MaxAmount); err != nil {
		return d.fail(Classify(err))
	}
	if _, err := d.market.Price(intent.Side); err != nil {
		return d.fail(NewError(KindInvalidMarket, err))
	}

	if !d.advance(FetchingBalance) {
		return d.discard()
	}
	start := time.Now()
	balance, err := d.balances.Balance(ctx, w.Address)
	metrics.BalanceFetchDuration.Observe(time.Since(start).Seconds())
	if d.Closed() {
		return d.discard()
	}
	if err != nil {
		slog.Warn("balance fetch failed", "market", d.market.ID, "wallet", shortAddress(w.Address), "error", err)
		return d.fail(Classify(err))
	}
	if balance.IsNegative() {
		return d.fail(&Error{Kind: KindGeneric, Msg: "balance source returned a negative balance"})
	}
	if err := CheckBalance(amount.Decimal, balance); err != nil {
		return d.fail(Classify(err))
	}

	if !d.advance(Submitting) {
		return d.discard()
	}
	slog.Info("placing bet",
		"market", d.market.ID,
		"side", intent.Side,
		"amount", amount.Decimal,
		"balance", balance,
		"wallet", shortAddress(w.Address),
	)
	start = time.Now()
	receipt, err := d.sink.Submit(ctx, Order{
		MarketID: d.market.ID,
		Side:     intent.Side,
		Amount:   amount.Decimal,
		Wallet:   w.Address,
	})
	metrics.SinkSubmitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("bet failed", "market", d.market.ID, "error", err)
		return d.fail(Classify(err))
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slog.Warn("bet placed after dialog closed", "market", d.market.ID, "token", receipt.Token)
		return d.discard()
	}
	d.state = Settled
	d.intent.Amount = ""
	d.mu.Unlock()
	metrics.SubmissionsSettled.WithLabelValues("success").Inc()

	slog.Info("bet placed successfully",
		"market", d.market.ID,
		"side", intent.Side,
		"amount", amount.Decimal,
		"token", receipt.Token,
	)
	return Outcome{Receipt: &receipt, CloseDialog: true}, nil
}

// advance moves to next unless the dialog was closed meanwhile.
func (d *Dialog) advance(next State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.state = next
	return true
}

// fail settles with e unless the dialog was closed meanwhile.
func (d *Dialog) fail(e *Error) (Outcome, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return d.discard()
	}
	d.state = Settled
	d.mu.Unlock()
	metrics.SubmissionsSettled.WithLabelValues(e.Kind.String()).Inc()
	return Outcome{Failure: e}, nil
}

func (d *Dialog) discard() (Outcome, error) {
	metrics.SubmissionsDiscarded.Inc()
	slog.Info("discarding result for closed dialog", "market", d.market.ID)
	return Outcome{}, ErrDialogClosed
}

func shortAddress(a string) string {
	if len(a) <= 8 {
		return a
	}
	return a[:4] + "..." + a[len(a)-4:]
}
