// internal/market/swap.go
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SwapClientConfig configures the swap aggregator client.
type SwapClientConfig struct {
	BaseURL         string
	WalletAddress   string
	QuoteMint       string
	SlippagePercent float64
	Timeout         time.Duration
	DryRun          bool
}

// SwapClient submits swaps to the aggregator. In dry-run mode fills are
// simulated at the current feed price and nothing is submitted.
type SwapClient struct {
	client *resty.Client
	config *SwapClientConfig
	prices PriceSource
	logger *zap.Logger
}

// NewSwapClient creates an aggregator client. The price source is only used
// for dry-run fills.
func NewSwapClient(config *SwapClientConfig, prices PriceSource, logger *zap.Logger) *SwapClient {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout)

	return &SwapClient{
		client: client,
		config: config,
		prices: prices,
		logger: logger,
	}
}

type swapRequest struct {
	ClientRef       string  `json:"clientRef"`
	Wallet          string  `json:"wallet"`
	InputMint       string  `json:"inputMint"`
	OutputMint      string  `json:"outputMint"`
	Side            string  `json:"side"`
	Amount          float64 `json:"amount"`
	SlippagePercent float64 `json:"slippagePercent"`
}

// Buy spends quoteAmount USDC on the token.
func (sc *SwapClient) Buy(ctx context.Context, address string, quoteAmount float64) (*SwapResult, error) {
	if quoteAmount <= 0 {
		return nil, fmt.Errorf("buy amount must be positive, got %f", quoteAmount)
	}

	if sc.config.DryRun {
		return sc.simulate(ctx, address, "buy", quoteAmount)
	}

	result, err := sc.submit(ctx, &swapRequest{
		ClientRef:       uuid.New().String(),
		Wallet:          sc.config.WalletAddress,
		InputMint:       sc.config.QuoteMint,
		OutputMint:      address,
		Side:            "buy",
		Amount:          quoteAmount,
		SlippagePercent: sc.config.SlippagePercent,
	})
	if err != nil {
		return nil, err
	}

	sc.logger.Info("💰 Buy executed",
		zap.String("token", address),
		zap.Float64("amount_usdc", quoteAmount),
		zap.Float64("fill_price", result.FillPrice),
		zap.String("tx_ref", result.TxRef))
	return result, nil
}

// Sell swaps the token back to USDC. A non-positive quantity sells the full
// wallet balance.
func (sc *SwapClient) Sell(ctx context.Context, address string, quantity float64) (*SwapResult, error) {
	if sc.config.DryRun {
		return sc.simulate(ctx, address, "sell", quantity)
	}

	amount := quantity
	if amount < 0 {
		amount = 0
	}
	result, err := sc.submit(ctx, &swapRequest{
		ClientRef:       uuid.New().String(),
		Wallet:          sc.config.WalletAddress,
		InputMint:       address,
		OutputMint:      sc.config.QuoteMint,
		Side:            "sell",
		Amount:          amount,
		SlippagePercent: sc.config.SlippagePercent,
	})
	if err != nil {
		return nil, err
	}

	sc.logger.Info("💰 Sell executed",
		zap.String("token", address),
		zap.Float64("quantity", result.Quantity),
		zap.Float64("proceeds_usdc", result.AmountUSDC),
		zap.String("tx_ref", result.TxRef))
	return result, nil
}

// submit posts the swap with exponential backoff. The client reference makes
// retried submissions idempotent on the aggregator side; 4xx responses are
// not retried.
func (sc *SwapClient) submit(ctx context.Context, req *swapRequest) (*SwapResult, error) {
	op := func() (*SwapResult, error) {
		var result SwapResult
		resp, err := sc.client.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&result).
			Post("/swap")
		if err != nil {
			return nil, fmt.Errorf("swap request failed: %w", err)
		}
		if resp.IsError() {
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
				return nil, backoff.Permanent(fmt.Errorf("swap rejected with status %d: %s", resp.StatusCode(), resp.String()))
			}
			return nil, fmt.Errorf("swap failed with status %d", resp.StatusCode())
		}
		if result.TxRef == "" {
			return nil, backoff.Permanent(fmt.Errorf("swap response missing transaction reference"))
		}
		return &result, nil
	}

	return backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(15*time.Second),
	)
}

func (sc *SwapClient) simulate(ctx context.Context, address, side string, amount float64) (*SwapResult, error) {
	price, err := sc.prices.GetPrice(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to price dry-run fill: %w", err)
	}

	result := &SwapResult{
		TxRef:     "dry-" + uuid.New().String(),
		FillPrice: price,
	}
	switch side {
	case "buy":
		result.AmountUSDC = amount
		result.Quantity = amount / price
	case "sell":
		if amount <= 0 {
			return nil, fmt.Errorf("dry-run sell requires an explicit quantity")
		}
		result.Quantity = amount
		result.AmountUSDC = amount * price
	}

	sc.logger.Info("Dry-run swap simulated",
		zap.String("side", side),
		zap.String("token", address),
		zap.Float64("fill_price", price),
		zap.String("tx_ref", result.TxRef))
	return result, nil
}
