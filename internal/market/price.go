// internal/market/price.go
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PriceClientConfig configures the price feed client.
type PriceClientConfig struct {
	BaseURL   string
	QuoteMint string
	Timeout   time.Duration
	Retries   int
}

// PriceClient fetches token quotes from the price feed.
type PriceClient struct {
	client *resty.Client
	config *PriceClientConfig
	logger *zap.Logger
}

// NewPriceClient creates a price feed client. Transient failures and 429
// throttling are retried inside the client.
func NewPriceClient(config *PriceClientConfig, logger *zap.Logger) *PriceClient {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 5 * time.Second, nil
			}
			return 0, nil
		})

	return &PriceClient{
		client: client,
		config: config,
		logger: logger,
	}
}

type priceResponse struct {
	Data map[string]struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

// GetPrice returns the current quote for the token in the quote currency.
func (pc *PriceClient) GetPrice(ctx context.Context, address string) (float64, error) {
	var result priceResponse
	resp, err := pc.client.R().
		SetContext(ctx).
		SetQueryParam("ids", address).
		SetQueryParam("vsToken", pc.config.QuoteMint).
		SetResult(&result).
		Get("/price")
	if err != nil {
		return 0, fmt.Errorf("price request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("price feed returned status %d", resp.StatusCode())
	}

	quote, ok := result.Data[address]
	if !ok || quote.Price <= 0 {
		return 0, fmt.Errorf("%w for token %s", ErrPriceUnavailable, address)
	}

	pc.logger.Debug("Price fetched",
		zap.String("token", address),
		zap.Float64("price", quote.Price))
	return quote.Price, nil
}
