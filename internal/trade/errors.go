package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies why a trade was rejected or failed.
type Kind int

const (
	KindGeneric Kind = iota
	KindNotConnected
	KindInvalidAmount
	KindLimitExceeded
	KindInsufficientBalance
	KindNetworkTimeout
	KindRateLimited
	KindRejectedBySigner
	KindInvalidMarket
)

var kindNames = map[Kind]string{
	KindGeneric:             "generic_failure",
	KindNotConnected:        "not_connected",
	KindInvalidAmount:       "invalid_amount",
	KindLimitExceeded:       "limit_exceeded",
	KindInsufficientBalance: "insufficient_balance",
	KindNetworkTimeout:      "network_timeout",
	KindRateLimited:         "rate_limited",
	KindRejectedBySigner:    "rejected_by_signer",
	KindInvalidMarket:       "invalid_market",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindGeneric, fmt.Errorf("unknown error kind %q", s)
}

// Error is a classified trade failure. Requested and Observed are set for
// InsufficientBalance (amount, balance) and LimitExceeded (amount, ceiling).
type Error struct {
	Kind      Kind
	Requested decimal.Decimal
	Observed  decimal.Decimal
	Msg       string
	Err       error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrNotConnected        = &Error{Kind: KindNotConnected}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrLimitExceeded       = &Error{Kind: KindLimitExceeded}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
	ErrNetworkTimeout      = &Error{Kind: KindNetworkTimeout}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrRejectedBySigner    = &Error{Kind: KindRejectedBySigner}
	ErrGenericFailure      = &Error{Kind: KindGeneric}
	ErrInvalidMarket       = &Error{Kind: KindInvalidMarket}
)

func (e *Error) Error() string {
	msg := "trade: " + e.Kind.String()
	switch e.Kind {
	case KindInsufficientBalance:
		msg += fmt.Sprintf(": requested %s, observed %s", e.Requested, e.Observed)
	case KindLimitExceeded:
		msg += fmt.Sprintf(": requested %s, max %s", e.Requested, e.Observed)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the failure is transient transport trouble the
// user may simply retry.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetworkTimeout || e.Kind == KindRateLimited
}

// Describe renders the failure for display, amounts in currency units.
func (e *Error) Describe(currency string) string {
	switch e.Kind {
	case KindNotConnected:
		return "Please connect your wallet to place a bet"
	case KindInvalidAmount:
		return "Please enter a valid amount"
	case KindLimitExceeded:
		return fmt.Sprintf("Amount exceeds maximum bet limit of %s %s", e.Observed, currency)
	case KindInsufficientBalance:
		return fmt.Sprintf("You need %s %s but only have %s %s",
			e.Requested, currency, e.Observed.StringFixed(4), currency)
	case KindNetworkTimeout:
		return "Network timeout. Please check your connection and try again."
	case KindRateLimited:
		return "Rate limited. Please wait a moment and try again."
	case KindRejectedBySigner:
		return "Transaction was rejected by wallet"
	case KindInvalidMarket:
		return "This market is not available for trading"
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "Failed to place bet. Please try again."
}

// NewError builds a classified error for collaborators.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func insufficientBalance(requested, observed decimal.Decimal) *Error {
	return &Error{Kind: KindInsufficientBalance, Requested: requested, Observed: observed}
}

func limitExceeded(requested, ceiling decimal.Decimal) *Error {
	return &Error{Kind: KindLimitExceeded, Requested: requested, Observed: ceiling}
}

// Classify maps a collaborator error onto a *Error. Errors already
// classified pass through; an expired context is a NetworkTimeout;
// anything else is a GenericFailure carrying the original message.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetworkTimeout, Err: err}
	}
	return &Error{Kind: KindGeneric, Err: err}
}
