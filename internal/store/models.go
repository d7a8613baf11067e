// internal/store/models.go
package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/rules"
)

// PolicyKind discriminates the strategy variants a monitor can carry.
type PolicyKind string

const (
	PolicyTrailing PolicyKind = "trailing"
	PolicyFlat     PolicyKind = "flat"
	PolicyNotify   PolicyKind = "notify"
	PolicyBuyback  PolicyKind = "buyback"
)

// Exit and entry reasons recorded in trade history.
const (
	ReasonTrailingStop = "trailing-stop"
	ReasonStopLoss     = "stop-loss"
	ReasonTakeProfit   = "take-profit"
	ReasonManual       = "manual"
	ReasonAdvisory     = "advisory"
	ReasonBuyback      = "buyback"
)

// TrailingPolicy exits through a peak-relative stop that tightens as profit
// grows. Tiers must be sorted by MinProfitPercent descending.
type TrailingPolicy struct {
	EntryPrice          float64           `json:"entry_price"`
	Tiers               []rules.TrailTier `json:"tiers,omitempty"`
	DefaultTrailPercent float64           `json:"default_trail_percent"`
}

// FlatPolicy exits at fixed distances from the entry price. StopLossPrice
// takes precedence over StopLossPercent when both are set.
type FlatPolicy struct {
	EntryPrice        float64 `json:"entry_price"`
	StopLossPrice     float64 `json:"stop_loss_price,omitempty"`
	StopLossPercent   float64 `json:"stop_loss_percent,omitempty"`
	TakeProfitPercent float64 `json:"take_profit_percent,omitempty"`
	CooldownSeconds   int     `json:"cooldown_seconds,omitempty"`
}

// StopLossPercentOf resolves the effective stop-loss percent against the
// policy's entry price.
func (f *FlatPolicy) StopLossPercentOf() float64 {
	if f.StopLossPrice > 0 && f.EntryPrice > 0 {
		return (f.EntryPrice - f.StopLossPrice) / f.EntryPrice * 100
	}
	return f.StopLossPercent
}

// NotifyPolicy alerts on a breached floor price without selling on its own.
type NotifyPolicy struct {
	StopLossPrice float64 `json:"stop_loss_price"`
}

// BuybackPolicy buys fixed USDC amounts as the price steps down a ladder of
// drop levels, against a capped budget. Spent, LastLevel and LastNotifiedDrop
// are runtime state persisted with the policy.
type BuybackPolicy struct {
	EntryPrice       float64 `json:"entry_price"`
	NotifyPercent    float64 `json:"notify_percent,omitempty"`
	BuybackPercent   float64 `json:"buyback_percent"`
	USDCPerBuy       float64 `json:"usdc_per_buy"`
	TotalBudget      float64 `json:"total_budget"`
	Spent            float64 `json:"spent"`
	LastLevel        int     `json:"last_level"`
	LastNotifiedDrop float64 `json:"last_notified_drop,omitempty"`
}

// Remaining returns the unspent part of the buyback budget.
func (b *BuybackPolicy) Remaining() float64 {
	remaining := b.TotalBudget - b.Spent
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Policy is a tagged union: Kind selects which variant struct is populated.
type Policy struct {
	Kind     PolicyKind      `json:"kind"`
	Trailing *TrailingPolicy `json:"trailing,omitempty"`
	Flat     *FlatPolicy     `json:"flat,omitempty"`
	Notify   *NotifyPolicy   `json:"notify,omitempty"`
	Buyback  *BuybackPolicy  `json:"buyback,omitempty"`
}

// Validate checks that exactly the variant named by Kind is populated and
// that its parameters are usable. Checks that need a live price belong to the
// command layer.
func (p *Policy) Validate() error {
	switch p.Kind {
	case PolicyTrailing:
		if p.Trailing == nil {
			return errors.New("trailing policy data missing")
		}
		if p.Trailing.EntryPrice <= 0 {
			return errors.New("trailing policy requires a positive entry price")
		}
		if p.Trailing.DefaultTrailPercent <= 0 || p.Trailing.DefaultTrailPercent >= 100 {
			return errors.New("trailing policy default trail percent must be in (0, 100)")
		}
		for _, tier := range p.Trailing.Tiers {
			if tier.MinProfitPercent < 0 {
				return errors.New("trail tier min profit percent must be >= 0")
			}
			if tier.TrailPercent <= 0 || tier.TrailPercent >= 100 {
				return errors.New("trail tier trail percent must be in (0, 100)")
			}
		}
	case PolicyFlat:
		if p.Flat == nil {
			return errors.New("flat policy data missing")
		}
		if p.Flat.EntryPrice <= 0 {
			return errors.New("flat policy requires a positive entry price")
		}
		if p.Flat.StopLossPrice <= 0 && p.Flat.StopLossPercent <= 0 && p.Flat.TakeProfitPercent <= 0 {
			return errors.New("flat policy requires at least one exit threshold")
		}
		if p.Flat.StopLossPercent < 0 || p.Flat.StopLossPercent >= 100 {
			return errors.New("flat policy stop loss percent must be in [0, 100)")
		}
		if p.Flat.TakeProfitPercent < 0 {
			return errors.New("flat policy take profit percent must be >= 0")
		}
		if p.Flat.CooldownSeconds < 0 {
			return errors.New("flat policy cooldown must be >= 0")
		}
	case PolicyNotify:
		if p.Notify == nil {
			return errors.New("notify policy data missing")
		}
		if p.Notify.StopLossPrice <= 0 {
			return errors.New("notify policy requires a positive stop price")
		}
	case PolicyBuyback:
		if p.Buyback == nil {
			return errors.New("buyback policy data missing")
		}
		if p.Buyback.EntryPrice <= 0 {
			return errors.New("buyback policy requires a positive entry price")
		}
		if p.Buyback.BuybackPercent <= 0 {
			return errors.New("buyback policy requires a positive buyback percent")
		}
		if p.Buyback.USDCPerBuy <= 0 {
			return errors.New("buyback policy requires a positive per-buy amount")
		}
		if p.Buyback.TotalBudget <= 0 {
			return errors.New("buyback policy requires a positive budget")
		}
		if p.Buyback.Spent < 0 || p.Buyback.LastLevel < 0 {
			return errors.New("buyback policy runtime state out of range")
		}
	default:
		return fmt.Errorf("unknown policy kind: %q", p.Kind)
	}
	return nil
}

// Clone deep-copies the policy so callers can mutate variant structs without
// touching the stored one.
func (p Policy) Clone() Policy {
	out := Policy{Kind: p.Kind}
	if p.Trailing != nil {
		trailing := *p.Trailing
		trailing.Tiers = append([]rules.TrailTier(nil), p.Trailing.Tiers...)
		out.Trailing = &trailing
	}
	if p.Flat != nil {
		flat := *p.Flat
		out.Flat = &flat
	}
	if p.Notify != nil {
		notify := *p.Notify
		out.Notify = &notify
	}
	if p.Buyback != nil {
		buyback := *p.Buyback
		out.Buyback = &buyback
	}
	return out
}

// MonitoredAsset is one tracked token under one strategy variant.
type MonitoredAsset struct {
	Address       string    `json:"address"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Policy        Policy    `json:"policy"`
	HighestPrice  float64   `json:"highest_price"`
	LastMilestone float64   `json:"last_milestone"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Clone returns a deep copy safe for the caller to mutate.
func (m *MonitoredAsset) Clone() *MonitoredAsset {
	clone := *m
	clone.Policy = m.Policy.Clone()
	return &clone
}

// Position is an actually-held balance resulting from an executed buy.
type Position struct {
	Address      string    `json:"address"`
	Symbol       string    `json:"symbol"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	HighestPrice float64   `json:"highest_price"`
	Quantity     float64   `json:"quantity"`
	InvestedUSDC float64   `json:"invested_usdc"`
	OpenedAt     time.Time `json:"opened_at"`
	BuyTxRef     string    `json:"buy_tx_ref,omitempty"`
}

// ProfitPercent returns the current PnL relative to the entry price, floored
// to two decimals.
func (p *Position) ProfitPercent() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	pnl := (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
	return math.Floor(pnl*100) / 100
}

// TradeKind distinguishes history entries.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// TradeRecord is one executed buy or sell, append-only once recorded.
type TradeRecord struct {
	Kind          TradeKind `json:"kind"`
	Address       string    `json:"address"`
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	AmountUSDC    float64   `json:"amount_usdc"`
	TxRef         string    `json:"tx_ref,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ProfitPercent float64   `json:"profit_percent,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// TradeCSVHeader returns the column names for the CSV trade mirror.
func TradeCSVHeader() []string {
	return []string{"timestamp", "action", "token", "symbol", "price", "quantity", "amount_usdc", "pnl_percent", "reason", "tx_ref"}
}

// ToCSV renders the record as a row matching TradeCSVHeader.
func (t *TradeRecord) ToCSV() []string {
	return []string{
		t.Timestamp.UTC().Format(time.RFC3339),
		string(t.Kind),
		t.Address,
		t.Symbol,
		formatFloat(t.Price),
		formatFloat(t.Quantity),
		formatFloat(t.AmountUSDC),
		formatFloat(t.ProfitPercent),
		t.Reason,
		t.TxRef,
	}
}

// formatFloat keeps zero values out of the CSV so empty cells stay empty.
func formatFloat(value float64) string {
	if value == 0 {
		return ""
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NormalizeAddress lowercases an address for identity comparisons. Stored
// records keep the original casing for display and API calls.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
