package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"foresight/internal/config"
	"foresight/internal/market"
	"foresight/internal/trade"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestWallet() *Simulated {
	return NewSimulated(dec("25"), dec("10"), 0)
}

func order(amount string) trade.Order {
	return trade.Order{MarketID: "1", Side: market.Yes, Amount: dec(amount), Wallet: "alice"}
}

func TestSimulated_DefaultBalance(t *testing.T) {
	w := newTestWallet()
	b, err := w.Balance(context.Background(), "anyone")
	if err != nil {
		t.Fatal(err)
	}
	if !b.Equal(dec("25")) {
		t.Errorf("expected default 25, got %s", b)
	}
}

func TestSimulated_SubmitDebits(t *testing.T) {
	w := newTestWallet()
	r, err := w.Submit(context.Background(), order("7.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.Token, "sim_") {
		t.Errorf("unexpected token %q", r.Token)
	}
	b, _ := w.Balance(context.Background(), "alice")
	if !b.Equal(dec("17.5")) {
		t.Errorf("expected 17.5 after debit, got %s", b)
	}
}

func TestSimulated_EnforcesBounds(t *testing.T) {
	w := newTestWallet()
	if _, err := w.Submit(context.Background(), order("0")); !errors.Is(err, trade.ErrInvalidAmount) {
		t.Errorf("expected InvalidAmount, got %v", err)
	}
	if _, err := w.Submit(context.Background(), order("10.5")); !errors.Is(err, trade.ErrLimitExceeded) {
		t.Errorf("expected LimitExceeded, got %v", err)
	}
	w.SetBalance("alice", dec("1"))
	if _, err := w.Submit(context.Background(), order("2")); !errors.Is(err, trade.ErrInsufficientBalance) {
		t.Errorf("expected InsufficientBalance, got %v", err)
	}
}

func TestSimulated_FaultHook(t *testing.T) {
	w := newTestWallet()
	w.SetFaultHook(func(op Op, o *trade.Order) error {
		if op == OpSubmit {
			return trade.NewError(trade.KindRejectedBySigner, nil)
		}
		return nil
	})
	if _, err := w.Balance(context.Background(), "alice"); err != nil {
		t.Errorf("balance should not be faulted, got %v", err)
	}
	if _, err := w.Submit(context.Background(), order("1")); !errors.Is(err, trade.ErrRejectedBySigner) {
		t.Errorf("expected RejectedBySigner, got %v", err)
	}

	w.SetFaultHook(nil)
	if _, err := w.Submit(context.Background(), order("1")); err != nil {
		t.Errorf("expected success after clearing hook, got %v", err)
	}
}

func TestSimulated_LatencyHonoursContext(t *testing.T) {
	w := NewSimulated(dec("25"), dec("10"), time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := w.Balance(ctx, "alice")
	if trade.Classify(err).Kind != trade.KindNetworkTimeout {
		t.Errorf("expected timeout classification, got %v", err)
	}
}

func TestFaultsFromConfig(t *testing.T) {
	h, err := FaultsFromConfig(config.FaultsConfig{})
	if err != nil || h != nil {
		t.Fatalf("expected no hook, got %v, %v", h != nil, err)
	}

	h, err = FaultsFromConfig(config.FaultsConfig{BalanceError: "rate_limited"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h(OpBalance, nil); !errors.Is(err, trade.ErrRateLimited) {
		t.Errorf("expected RateLimited, got %v", err)
	}
	if err := h(OpSubmit, nil); err != nil {
		t.Errorf("submit should not fail, got %v", err)
	}

	if _, err := FaultsFromConfig(config.FaultsConfig{SubmitError: "meteor"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestManifold_RateLimitedBeforeCall(t *testing.T) {
	// A zero limiter never grants, so the nil client is never touched.
	m := &Manifold{limiter: rate.NewLimiter(0, 0)}
	if _, err := m.Balance(context.Background(), "u1"); !errors.Is(err, trade.ErrRateLimited) {
		t.Errorf("expected RateLimited, got %v", err)
	}
	if _, err := m.Submit(context.Background(), order("1")); !errors.Is(err, trade.ErrRateLimited) {
		t.Errorf("expected RateLimited, got %v", err)
	}
}

func TestCall_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	_, err := call(context.Background(), 10*time.Millisecond, func() (int, error) {
		<-block
		return 1, nil
	})
	if !errors.Is(err, trade.ErrNetworkTimeout) {
		t.Errorf("expected NetworkTimeout, got %v", err)
	}
}

func TestCall_ReturnsResult(t *testing.T) {
	v, err := call(context.Background(), time.Second, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Errorf("expected 42, got %d, %v", v, err)
	}
}
