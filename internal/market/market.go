// Package market holds the HTTP collaborators the keeper trades through: a
// price feed, a swap aggregator and a wallet balance API. The rest of the
// system depends on the interfaces, not the clients.
package market

import (
	"context"
	"errors"
)

// ErrPriceUnavailable means the feed had no quote for the token. Callers skip
// the item and retry next tick.
var ErrPriceUnavailable = errors.New("price unavailable")

// SwapResult describes an executed or simulated swap.
type SwapResult struct {
	TxRef      string  `json:"txRef"`
	FillPrice  float64 `json:"fillPrice"`
	Quantity   float64 `json:"quantity"`
	AmountUSDC float64 `json:"amountUsdc"`
}

// PriceSource supplies best-effort token quotes in the quote currency.
type PriceSource interface {
	GetPrice(ctx context.Context, address string) (float64, error)
}

// SwapExecutor executes buys and sells through the aggregator. Sell with a
// non-positive quantity sells the full wallet balance of the token.
type SwapExecutor interface {
	Buy(ctx context.Context, address string, quoteAmount float64) (*SwapResult, error)
	Sell(ctx context.Context, address string, quantity float64) (*SwapResult, error)
}

// BalanceReader reads wallet balances used for entry gating and sizing.
type BalanceReader interface {
	GetNativeBalance(ctx context.Context) (float64, error)
	GetQuoteBalance(ctx context.Context) (float64, error)
}
