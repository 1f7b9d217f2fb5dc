package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonnyspicer/mango"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"foresight/internal/trade"
)

// Manifold uses the authenticated Manifold account as both balance source
// and sink. The address of a trade must be that account's user ID.
type Manifold struct {
	client  *mango.Client
	timeout time.Duration
	limiter *rate.Limiter
}

func NewManifold(client *mango.Client, timeout time.Duration, rps float64) *Manifold {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Manifold{
		client:  client,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (m *Manifold) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := m.allow(); err != nil {
		return decimal.Zero, err
	}
	user, err := call(ctx, m.timeout, m.client.GetAuthenticatedUser)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getting authenticated user: %w", err)
	}
	if user == nil {
		return decimal.Zero, fmt.Errorf("authenticated user returned nil")
	}
	if address != user.Id {
		return decimal.Zero, &trade.Error{Kind: trade.KindNotConnected, Msg: "wallet is not the authenticated Manifold account"}
	}
	return decimal.NewFromFloat(user.Balance), nil
}

func (m *Manifold) Submit(ctx context.Context, order trade.Order) (trade.Receipt, error) {
	if err := m.allow(); err != nil {
		return trade.Receipt{}, err
	}
	amount, _ := order.Amount.Float64()
	req := mango.PostBetRequest{
		Amount:     amount,
		ContractId: order.MarketID,
		Outcome:    order.Side.Outcome(),
	}
	_, err := call(ctx, m.timeout, func() (struct{}, error) {
		_, err := m.client.PostBet(req)
		return struct{}{}, err
	})
	if err != nil {
		return trade.Receipt{}, fmt.Errorf("posting bet: %w", err)
	}

	token := "manifold_" + uuid.NewString()
	slog.Info("manifold bet posted", "market", order.MarketID, "outcome", req.Outcome, "amount", amount, "token", token)
	return trade.Receipt{Token: token}, nil
}

func (m *Manifold) allow() error {
	if !m.limiter.Allow() {
		return &trade.Error{Kind: trade.KindRateLimited, Msg: "manifold request budget exhausted"}
	}
	return nil
}

// call runs fn, which cannot be cancelled, and stops waiting for it when ctx
// ends or timeout passes. An expired wait surfaces as a NetworkTimeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, trade.NewError(trade.KindNetworkTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	}
}
