package trade

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"foresight/internal/market"
)

type fakeBalance struct {
	balance decimal.Decimal
	err     error
	calls   atomic.Int32
}

func (f *fakeBalance) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	f.calls.Add(1)
	return f.balance, f.err
}

// gateBalance blocks until release is closed, signalling entered first.
type gateBalance struct {
	balance decimal.Decimal
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateBalance(balance string) *gateBalance {
	return &gateBalance{
		balance: dec(balance),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gateBalance) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return g.balance, nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

type fakeSink struct {
	err    error
	calls  atomic.Int32
	orders []Order
	mu     sync.Mutex
}

func (f *fakeSink) Submit(ctx context.Context, order Order) (Receipt, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.orders = append(f.orders, order)
	f.mu.Unlock()
	if f.err != nil {
		return Receipt{}, f.err
	}
	return Receipt{Token: "tok-1"}, nil
}

var (
	testMarket = market.Market{ID: "m1", Question: "Will it?", Category: "tech", YesPrice: 65, NoPrice: 35}
	testLimits = Limits{MaxAmount: decimal.NewFromInt(10), Currency: "SOL"}
	connected  = Wallet{Address: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", Connected: true}
)

func TestDialog_QuoteRecomputedOnEdit(t *testing.T) {
	d := NewDialog(testMarket, &fakeBalance{}, &fakeSink{}, testLimits)
	d.SetAmount("10")
	q, err := d.Quote()
	if err != nil {
		t.Fatal(err)
	}
	if !q.Shares.Equal(dec("15.38")) || !q.PotentialReturn.Equal(dec("5.38")) {
		t.Errorf("yes quote = %s / %s, want 15.38 / 5.38", q.Shares, q.PotentialReturn)
	}

	d.SetSide(market.No)
	q, _ = d.Quote()
	// 10 / 35 * 100 = 28.571... -> 28.57
	if !q.Shares.Equal(dec("28.57")) || !q.PotentialReturn.Equal(dec("18.57")) {
		t.Errorf("no quote = %s / %s, want 28.57 / 18.57", q.Shares, q.PotentialReturn)
	}

	d.SetAmount("")
	q, _ = d.Quote()
	if !q.Shares.IsZero() || !q.PotentialReturn.IsZero() {
		t.Errorf("empty amount should quote zero, got %+v", q)
	}
}

func TestDialog_SubmitSuccess(t *testing.T) {
	bal := &fakeBalance{balance: dec("25")}
	sink := &fakeSink{}
	d := NewDialog(testMarket, bal, sink, testLimits)
	d.SetAmount("5")

	out, err := d.Submit(context.Background(), connected)
	if err != nil {
		t.Fatal(err)
	}
	if out.Failure != nil {
		t.Fatalf("unexpected failure %v", out.Failure)
	}
	if out.Receipt == nil || out.Receipt.Token != "tok-1" {
		t.Errorf("expected receipt tok-1, got %+v", out.Receipt)
	}
	if !out.CloseDialog {
		t.Error("success should signal close dialog")
	}
	if d.Intent().Amount != "" {
		t.Errorf("amount should be cleared, got %q", d.Intent().Amount)
	}
	if d.State() != Settled {
		t.Errorf("expected settled, got %s", d.State())
	}
	if len(sink.orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(sink.orders))
	}
	o := sink.orders[0]
	if o.MarketID != "m1" || o.Side != market.Yes || !o.Amount.Equal(dec("5")) || o.Wallet != connected.Address {
		t.Errorf("unexpected order %+v", o)
	}
}

func TestDialog_NotConnectedSkipsCollaborators(t *testing.T) {
	bal := &fakeBalance{balance: dec("25")}
	sink := &fakeSink{}
	d := NewDialog(testMarket, bal, sink, testLimits)
	d.SetAmount("5")

	out, err := d.Submit(context.Background(), Wallet{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Failure == nil || out.Failure.Kind != KindNotConnected {
		t.Fatalf("expected NotConnected, got %+v", out.Failure)
	}
	if bal.calls.Load() != 0 || sink.calls.Load() != 0 {
		t.Errorf("no collaborator should be called, balance=%d sink=%d", bal.calls.Load(), sink.calls.Load())
	}
}

func TestDialog_StaticRejectsBeforeFetch(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "10.01"} {
		bal := &fakeBalance{balance: dec("100")}
		d := NewDialog(testMarket, bal, &fakeSink{}, testLimits)
		d.SetAmount(raw)
		out, _ := d.Submit(context.Background(), connected)
		if out.Failure == nil {
			t.Fatalf("amount %q: expected rejection", raw)
		}
		if bal.calls.Load() != 0 {
			t.Errorf("amount %q: balance fetched before static checks passed", raw)
		}
		if d.Intent().Amount != raw {
			t.Errorf("amount %q: failure must keep the amount", raw)
		}
	}
}

func TestDialog_BalanceTimeoutNeverSubmits(t *testing.T) {
	bal := &fakeBalance{err: NewError(KindNetworkTimeout, errors.New("rpc deadline"))}
	sink := &fakeSink{}
	d := NewDialog(testMarket, bal, sink, testLimits)
	d.SetAmount("5")

	out, err := d.Submit(context.Background(), connected)
	if err != nil {
		t.Fatal(err)
	}
	if out.Failure == nil || out.Failure.Kind != KindNetworkTimeout {
		t.Fatalf("expected NetworkTimeout, got %+v", out.Failure)
	}
	if !out.Failure.Retryable() {
		t.Error("timeout should be retryable")
	}
	if sink.calls.Load() != 0 {
		t.Errorf("sink must not be called, got %d calls", sink.calls.Load())
	}
}

func TestDialog_ContextDeadlineIsTimeout(t *testing.T) {
	bal := newGateBalance("100")
	sink := &fakeSink{}
	d := NewDialog(testMarket, bal, sink, testLimits)
	d.SetAmount("5")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := d.Submit(ctx, connected)
	if err != nil {
		t.Fatal(err)
	}
	if out.Failure == nil || out.Failure.Kind != KindNetworkTimeout {
		t.Fatalf("expected NetworkTimeout, got %+v", out.Failure)
	}
	if sink.calls.Load() != 0 {
		t.Error("sink must not be called")
	}
}

func TestDialog_InsufficientBalanceNeverSubmits(t *testing.T) {
	sink := &fakeSink{}
	d := NewDialog(testMarket, &fakeBalance{balance: dec("2")}, sink, testLimits)
	d.SetAmount("5")

	out, _ := d.Submit(context.Background(), connected)
	if out.Failure == nil || out.Failure.Kind != KindInsufficientBalance {
		t.Fatalf("expected InsufficientBalance, got %+v", out.Failure)
	}
	if !out.Failure.Requested.Equal(dec("5")) || !out.Failure.Observed.Equal(dec("2")) {
		t.Errorf("expected (5, 2), got (%s, %s)", out.Failure.Requested, out.Failure.Observed)
	}
	if sink.calls.Load() != 0 {
		t.Errorf("sink must not be called, got %d", sink.calls.Load())
	}
}

func TestDialog_SinkRejectionKeepsDialogUsable(t *testing.T) {
	sink := &fakeSink{err: NewError(KindRejectedBySigner, errors.New("user declined"))}
	d := NewDialog(testMarket, &fakeBalance{balance: dec("25")}, sink, testLimits)
	d.SetAmount("5")

	out, err := d.Submit(context.Background(), connected)
	if err != nil {
		t.Fatal(err)
	}
	if out.Failure == nil || out.Failure.Kind != KindRejectedBySigner {
		t.Fatalf("expected RejectedBySigner, got %+v", out.Failure)
	}
	if out.Failure.Retryable() {
		t.Error("signer rejection is not retryable")
	}
	if out.CloseDialog || d.Intent().Amount != "5" {
		t.Error("failure must leave the dialog open with its amount")
	}

	// Retry after the signer changes its mind.
	sink.err = nil
	out, err = d.Submit(context.Background(), connected)
	if err != nil || out.Receipt == nil {
		t.Fatalf("retry should succeed, got %+v, %v", out, err)
	}
}

func TestDialog_UnclassifiedSinkErrorIsGeneric(t *testing.T) {
	sink := &fakeSink{err: errors.New("program error 0x1")}
	d := NewDialog(testMarket, &fakeBalance{balance: dec("25")}, sink, testLimits)
	d.SetAmount("1")

	out, _ := d.Submit(context.Background(), connected)
	if out.Failure == nil || out.Failure.Kind != KindGeneric {
		t.Fatalf("expected GenericFailure, got %+v", out.Failure)
	}
	if out.Failure.Describe("SOL") != "program error 0x1" {
		t.Errorf("generic message should pass through, got %q", out.Failure.Describe("SOL"))
	}
}

func TestDialog_InvalidMarketPrice(t *testing.T) {
	broken := testMarket
	broken.NoPrice = 0
	bal := &fakeBalance{balance: dec("25")}
	d := NewDialog(broken, bal, &fakeSink{}, testLimits)
	d.SetSide(market.No)
	d.SetAmount("1")

	if _, err := d.Quote(); !errors.Is(err, ErrInvalidMarket) {
		t.Errorf("expected InvalidMarket from quote, got %v", err)
	}
	out, _ := d.Submit(context.Background(), connected)
	if out.Failure == nil || out.Failure.Kind != KindInvalidMarket {
		t.Fatalf("expected InvalidMarket, got %+v", out.Failure)
	}
	if bal.calls.Load() != 0 {
		t.Error("balance must not be fetched for an unpriced market")
	}
}

func TestDialog_ReentrantSubmitIgnored(t *testing.T) {
	bal := newGateBalance("100")
	sink := &fakeSink{}
	d := NewDialog(testMarket, bal, sink, testLimits)
	d.SetAmount("5")

	type result struct {
		out Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := d.Submit(context.Background(), connected)
		done <- result{out, err}
	}()

	<-bal.entered
	if d.State() != FetchingBalance {
		t.Errorf("expected fetching_balance, got %s", d.State())
	}
	if _, err := d.Submit(context.Background(), connected); !errors.Is(err, ErrInFlight) {
		t.Errorf("second submit: expected ErrInFlight, got %v", err)
	}

	close(bal.release)
	r := <-done
	if r.err != nil || r.out.Receipt == nil {
		t.Fatalf("first submit should succeed, got %+v, %v", r.out, r.err)
	}
	if n := sink.calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 sink call, got %d", n)
	}
}

// closingSink closes the dialog while the order is being placed.
type closingSink struct {
	dialog *Dialog
	err    error
}

func (c *closingSink) Submit(ctx context.Context, order Order) (Receipt, error) {
	c.dialog.Close()
	if c.err != nil {
		return Receipt{}, c.err
	}
	return Receipt{Token: "tok-late"}, nil
}

func TestDialog_CloseDuringSinkDiscardsResult(t *testing.T) {
	for _, sinkErr := range []error{nil, ErrRejectedBySigner} {
		sink := &closingSink{err: sinkErr}
		d := NewDialog(testMarket, &fakeBalance{balance: dec("25")}, sink, testLimits)
		sink.dialog = d
		d.SetAmount("5")

		out, err := d.Submit(context.Background(), connected)
		if !errors.Is(err, ErrDialogClosed) {
			t.Fatalf("sink error %v: expected ErrDialogClosed, got %v", sinkErr, err)
		}
		if out.Receipt != nil || out.Failure != nil {
			t.Errorf("sink error %v: expected empty outcome, got %+v", sinkErr, out)
		}
		if d.Intent().Amount != "5" {
			t.Errorf("sink error %v: amount cleared on a closed dialog", sinkErr)
		}
		if d.State() == Settled {
			t.Errorf("sink error %v: closed dialog must not settle", sinkErr)
		}
	}
}

func TestNewDialog_StartsOnPricedSide(t *testing.T) {
	noOnly := testMarket
	noOnly.YesPrice = 0
	d := NewDialog(noOnly, &fakeBalance{}, &fakeSink{}, testLimits)
	if d.Intent().Side != market.No {
		t.Fatalf("expected no side, got %s", d.Intent().Side)
	}
	if _, err := d.Quote(); err != nil {
		t.Errorf("expected a usable quote, got %v", err)
	}

	if d := NewDialog(testMarket, &fakeBalance{}, &fakeSink{}, testLimits); d.Intent().Side != market.Yes {
		t.Errorf("expected yes side by default, got %s", d.Intent().Side)
	}

	broken := testMarket
	broken.YesPrice, broken.NoPrice = 0, 0
	if _, err := NewDialog(broken, &fakeBalance{}, &fakeSink{}, testLimits).Quote(); !errors.Is(err, ErrInvalidMarket) {
		t.Errorf("expected InvalidMarket for an unpriced market, got %v", err)
	}
}

func TestDialog_CloseDiscardsLateResult(t *testing.T) {
	bal := newGateBalance("100")
	sink := &fakeSink{}
	d := NewDialog(testMarket, bal, sink, testLimits)
	d.SetAmount("5")

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background(), connected)
		done <- err
	}()

	<-bal.entered
	d.Close()
	close(bal.release)

	if err := <-done; !errors.Is(err, ErrDialogClosed) {
		t.Fatalf("expected ErrDialogClosed, got %v", err)
	}
	if sink.calls.Load() != 0 {
		t.Error("closed dialog must not reach the sink")
	}
	if d.Intent().Amount != "5" {
		t.Error("late result must not mutate the closed dialog")
	}
	if _, err := d.Submit(context.Background(), connected); !errors.Is(err, ErrDialogClosed) {
		t.Errorf("closed dialog: expected ErrDialogClosed, got %v", err)
	}
}
