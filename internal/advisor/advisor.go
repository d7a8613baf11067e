// Package advisor calls an optional external review endpoint with the current
// holdings and maps its answers onto keeper actions. The advisor is strictly
// fail-open: when it is down, slow or incoherent the keeper just keeps
// running its rule set.
package advisor

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Action is what the advisor recommends for one holding.
type Action string

const (
	ActionHold    Action = "hold"
	ActionSell    Action = "sell"
	ActionTighten Action = "tighten"
)

// Holding is the portfolio slice sent for review.
type Holding struct {
	Address       string  `json:"address"`
	Symbol        string  `json:"symbol"`
	EntryPrice    float64 `json:"entryPrice"`
	CurrentPrice  float64 `json:"currentPrice"`
	ProfitPercent float64 `json:"profitPercent"`
	InvestedUSDC  float64 `json:"investedUsdc"`
}

// Recommendation is the advisor's verdict for one holding.
type Recommendation struct {
	Address string `json:"address"`
	Action  Action `json:"action"`
	Note    string `json:"note,omitempty"`
}

// Client talks to the advisory endpoint.
type Client struct {
	client *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &Client{
		client: client,
		logger: logger,
	}
}

type reviewRequest struct {
	Holdings []Holding `json:"holdings"`
}

type reviewResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

// Review submits the holdings and returns whatever recommendations came
// back. Every failure mode returns an empty list.
func (c *Client) Review(ctx context.Context, holdings []Holding) []Recommendation {
	if len(holdings) == 0 {
		return nil
	}

	var result reviewResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&reviewRequest{Holdings: holdings}).
		SetResult(&result).
		Post("/review")
	if err != nil {
		c.logger.Warn("⚠️ Advisor unavailable, falling back to rules", zap.Error(err))
		return nil
	}
	if resp.IsError() {
		c.logger.Warn("⚠️ Advisor returned error, falling back to rules",
			zap.Int("status", resp.StatusCode()))
		return nil
	}

	c.logger.Debug("Advisor review complete",
		zap.Int("holdings", len(holdings)),
		zap.Int("recommendations", len(result.Recommendations)))
	return result.Recommendations
}
