// Package rules holds the pure decision functions behind every exit and
// re-entry the keeper makes. Nothing here touches the network or the store;
// callers supply prices and persist whatever state the verdicts tell them to.
package rules

import "math"

// TrailTier binds a trailing-stop percent to the minimum peak profit that
// activates it.
type TrailTier struct {
	MinProfitPercent float64 `mapstructure:"min_profit_percent" json:"min_profit_percent"`
	TrailPercent     float64 `mapstructure:"trail_percent" json:"trail_percent"`
}

// TrailStop is the verdict of ComputeTrailStop.
type TrailStop struct {
	StopPrice     float64
	TrailPercent  float64
	ProfitPercent float64
}

// FlatAction is the verdict of CheckFlatExit.
type FlatAction string

const (
	ActionHold       FlatAction = "hold"
	ActionStopLoss   FlatAction = "stop-loss"
	ActionTakeProfit FlatAction = "take-profit"
)

// ComputeTrailStop derives the current stop price from the peak price and the
// tier table. Tiers must be sorted by MinProfitPercent descending; the first
// tier at or below the peak profit wins, defaultTrail applies when none match.
// The stop is recomputed from the peak every call, so it only ever rises.
func ComputeTrailStop(entryPrice, highestPrice float64, tiers []TrailTier, defaultTrail float64) TrailStop {
	profitPercent := 0.0
	if entryPrice > 0 {
		profitPercent = (highestPrice - entryPrice) / entryPrice * 100
	}

	trail := defaultTrail
	for _, tier := range tiers {
		if profitPercent >= tier.MinProfitPercent {
			trail = tier.TrailPercent
			break
		}
	}

	return TrailStop{
		StopPrice:     highestPrice * (1 - trail/100),
		TrailPercent:  trail,
		ProfitPercent: profitPercent,
	}
}

// CheckFlatExit compares the current price against fixed stop-loss and
// take-profit thresholds. Take-profit is evaluated first, so a degenerate
// config where both thresholds are crossed resolves as a take-profit.
func CheckFlatExit(entryPrice, stopLossPercent, takeProfitPercent, currentPrice float64) FlatAction {
	if entryPrice <= 0 {
		return ActionHold
	}
	if takeProfitPercent > 0 && currentPrice >= entryPrice*(1+takeProfitPercent/100) {
		return ActionTakeProfit
	}
	if stopLossPercent > 0 && currentPrice <= entryPrice*(1-stopLossPercent/100) {
		return ActionStopLoss
	}
	return ActionHold
}

// NextMilestone reports the gain milestone reached by currentPrice, if it is
// above the last one already notified. Levels are multiples of stepPercent; a
// price that jumps several levels fires only the highest, and an already
// notified level never fires again.
func NextMilestone(entryPrice, currentPrice, lastNotified, stepPercent float64) (float64, bool) {
	if stepPercent <= 0 || entryPrice <= 0 {
		return 0, false
	}
	gain := (currentPrice - entryPrice) / entryPrice * 100
	level := math.Floor(gain/stepPercent) * stepPercent
	if level > 0 && level > lastNotified {
		return level, true
	}
	return 0, false
}

// NextDropAlert is the drawdown mirror of NextMilestone: it reports the drop
// milestone reached below the entry price, if deeper than the last notified
// one.
func NextDropAlert(entryPrice, currentPrice, lastNotified, stepPercent float64) (float64, bool) {
	if stepPercent <= 0 || entryPrice <= 0 {
		return 0, false
	}
	drop := (entryPrice - currentPrice) / entryPrice * 100
	level := math.Floor(drop/stepPercent) * stepPercent
	if level > 0 && level > lastNotified {
		return level, true
	}
	return 0, false
}

// NextBuybackLevel reports which rung of the buyback ladder the current price
// has reached. Rungs are counted in whole multiples of buybackPercent below
// the entry price; a rung fires once, and deeper rungs skip the ones a fast
// drop jumped over. Budget checks belong to the caller.
func NextBuybackLevel(entryPrice, currentPrice float64, lastLevel int, buybackPercent float64) (int, bool) {
	if buybackPercent <= 0 || entryPrice <= 0 || currentPrice >= entryPrice {
		return 0, false
	}
	drop := (entryPrice - currentPrice) / entryPrice * 100
	level := int(math.Floor(drop / buybackPercent))
	if level > lastLevel {
		return level, true
	}
	return 0, false
}
