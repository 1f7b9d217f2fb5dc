package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"foresight/internal/config"
	"foresight/internal/trade"
)

// Op names the simulated wallet operation a fault hook is consulted for.
type Op string

const (
	OpBalance Op = "balance"
	OpSubmit  Op = "submit"
)

// FaultHook lets tests force failures. A non-nil return aborts the
// operation with that error. order is nil for OpBalance.
type FaultHook func(op Op, order *trade.Order) error

// Simulated is an in-memory wallet and sink. It is deterministic unless a
// FaultHook is set: balances start at the default, successful orders debit
// them, and each order gets a fresh receipt token.
type Simulated struct {
	mu             sync.Mutex
	balances       map[string]decimal.Decimal
	defaultBalance decimal.Decimal
	maxAmount      decimal.Decimal
	latency        time.Duration
	hook           FaultHook
}

func NewSimulated(defaultBalance, maxAmount decimal.Decimal, latency time.Duration) *Simulated {
	return &Simulated{
		balances:       make(map[string]decimal.Decimal),
		defaultBalance: defaultBalance,
		maxAmount:      maxAmount,
		latency:        latency,
	}
}

// SetFaultHook installs (or with nil, removes) the fault hook.
func (s *Simulated) SetFaultHook(h FaultHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// SetBalance overrides the balance of one address.
func (s *Simulated) SetBalance(address string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[address] = balance
}

func (s *Simulated) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := s.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	if err := s.fault(OpBalance, nil); err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(address), nil
}

// Submit re-checks the amount bounds and the balance itself, then debits
// the wallet.
func (s *Simulated) Submit(ctx context.Context, order trade.Order) (trade.Receipt, error) {
	if err := s.wait(ctx); err != nil {
		return trade.Receipt{}, err
	}
	if err := s.fault(OpSubmit, &order); err != nil {
		return trade.Receipt{}, err
	}
	if !order.Amount.IsPositive() {
		return trade.Receipt{}, &trade.Error{Kind: trade.KindInvalidAmount, Msg: "amount must be greater than 0"}
	}
	if order.Amount.GreaterThan(s.maxAmount) {
		return trade.Receipt{}, &trade.Error{Kind: trade.KindLimitExceeded, Requested: order.Amount, Observed: s.maxAmount}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.balanceLocked(order.Wallet)
	if bal.LessThan(order.Amount) {
		return trade.Receipt{}, &trade.Error{Kind: trade.KindInsufficientBalance, Requested: order.Amount, Observed: bal}
	}
	s.balances[order.Wallet] = bal.Sub(order.Amount)

	token := "sim_" + uuid.NewString()
	slog.Info("simulated bet placed",
		"market", order.MarketID,
		"side", order.Side,
		"amount", order.Amount,
		"token", token,
	)
	return trade.Receipt{Token: token}, nil
}

func (s *Simulated) balanceLocked(address string) decimal.Decimal {
	if b, ok := s.balances[address]; ok {
		return b
	}
	return s.defaultBalance
}

func (s *Simulated) fault(op Op, order *trade.Order) error {
	s.mu.Lock()
	h := s.hook
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(op, order)
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FaultsFromConfig builds a hook that fails the configured operations with
// the configured kinds. It returns nil when no fault is configured.
func FaultsFromConfig(cfg config.FaultsConfig) (FaultHook, error) {
	if cfg.BalanceError == "" && cfg.SubmitError == "" {
		return nil, nil
	}
	kinds := make(map[Op]trade.Kind)
	for op, name := range map[Op]string{OpBalance: cfg.BalanceError, OpSubmit: cfg.SubmitError} {
		if name == "" {
			continue
		}
		k, err := trade.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("wallet.faults: %w", err)
		}
		kinds[op] = k
	}
	return func(op Op, _ *trade.Order) error {
		if k, ok := kinds[op]; ok {
			return trade.NewError(k, errors.New("injected fault"))
		}
		return nil
	}, nil
}
