// internal/market/wallet.go
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WalletClientConfig configures the wallet balance client.
type WalletClientConfig struct {
	BaseURL       string
	WalletAddress string
	NativeMint    string
	QuoteMint     string
	Timeout       time.Duration
	Retries       int
}

// WalletClient reads balances from the wallet API.
type WalletClient struct {
	client *resty.Client
	config *WalletClientConfig
	logger *zap.Logger
}

func NewWalletClient(config *WalletClientConfig, logger *zap.Logger) *WalletClient {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WalletClient{
		client: client,
		config: config,
		logger: logger,
	}
}

type balanceResponse struct {
	Mint   string  `json:"mint"`
	Amount float64 `json:"amount"`
}

func (wc *WalletClient) getBalance(ctx context.Context, mint string) (float64, error) {
	var result balanceResponse
	resp, err := wc.client.R().
		SetContext(ctx).
		SetQueryParam("wallet", wc.config.WalletAddress).
		SetQueryParam("mint", mint).
		SetResult(&result).
		Get("/balance")
	if err != nil {
		return 0, fmt.Errorf("balance request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("wallet API returned status %d", resp.StatusCode())
	}

	wc.logger.Debug("Balance fetched",
		zap.String("mint", mint),
		zap.Float64("amount", result.Amount))
	return result.Amount, nil
}

// GetNativeBalance returns the SOL balance used for the gas floor check.
func (wc *WalletClient) GetNativeBalance(ctx context.Context) (float64, error) {
	return wc.getBalance(ctx, wc.config.NativeMint)
}

// GetQuoteBalance returns the USDC balance available for buys.
func (wc *WalletClient) GetQuoteBalance(ctx context.Context) (float64, error) {
	return wc.getBalance(ctx, wc.config.QuoteMint)
}
