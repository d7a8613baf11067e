package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rovshanmuradov/solana-keeper/internal/advisor"
	"github.com/rovshanmuradov/solana-keeper/internal/market"
	"github.com/rovshanmuradov/solana-keeper/internal/metrics"
	"github.com/rovshanmuradov/solana-keeper/internal/rules"
	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
)

// Trader executes the trades the tick decides on. Implemented by the
// trading service.
type Trader interface {
	// ExecuteExit sells the full position and retires its monitor.
	ExecuteExit(ctx context.Context, address, reason string) error
	// ExecuteBuyback spends the next ladder rung on the asset.
	ExecuteBuyback(ctx context.Context, address string, level int) error
}

// Advisor reviews current holdings and recommends actions.
type Advisor interface {
	Review(ctx context.Context, holdings []advisor.Holding) []advisor.Recommendation
}

// KeeperConfig holds the tick-level tunables.
type KeeperConfig struct {
	DefaultTrailPercent float64
	TrailTiers          []rules.TrailTier
	MilestoneStep       float64
	BalanceCheckEvery   int
	AdvisoryEvery       int
}

// Keeper walks every monitored asset and open position once per tick,
// applies the exit rules and fires the periodic side tasks.
type Keeper struct {
	config    KeeperConfig
	store     *store.Store
	prices    market.PriceSource
	trader    Trader
	advisor   Advisor
	coord     *Coordinator
	alerts    *AlertManager
	collector *metrics.Collector
	logger    *zap.Logger

	tickSeq atomic.Uint64
}

// NewKeeper creates a keeper. advisor may be nil when no advisory
// endpoint is configured.
func NewKeeper(config KeeperConfig, st *store.Store, prices market.PriceSource, trader Trader, adv Advisor, coord *Coordinator, alerts *AlertManager, collector *metrics.Collector, logger *zap.Logger) *Keeper {
	return &Keeper{
		config:    config,
		store:     st,
		prices:    prices,
		trader:    trader,
		advisor:   adv,
		coord:     coord,
		alerts:    alerts,
		collector: collector,
		logger:    logger,
	}
}

// Tick runs one full management pass. The scheduler serializes calls,
// so the body never runs concurrently with itself or a manual
// operation. A failure on one asset never blocks the rest of the pass.
func (k *Keeper) Tick(ctx context.Context) {
	seq := k.tickSeq.Add(1)

	// Active monitors claim their address; positions they cover are
	// handled inside the monitor pass.
	covered := make(map[string]bool)

	for _, m := range k.store.Monitors() {
		if !m.Active {
			continue
		}
		covered[store.NormalizeAddress(m.Address)] = true
		if err := k.processMonitor(ctx, m); err != nil {
			k.logger.Warn("⚠️ Monitor pass failed",
				zap.String("token", m.Address),
				zap.Error(err))
		}
	}

	// Positions without an active monitor fall back to the configured
	// default trailing stop.
	for _, pos := range k.store.Positions() {
		if covered[store.NormalizeAddress(pos.Address)] {
			continue
		}
		if err := k.processBarePosition(ctx, pos); err != nil {
			k.logger.Warn("⚠️ Position pass failed",
				zap.String("token", pos.Address),
				zap.Error(err))
		}
	}

	if k.collector != nil {
		k.collector.SetOpenPositions(k.store.PositionCount())
		k.collector.SetMonitoredAssets(len(k.store.Monitors()))
	}

	if k.config.BalanceCheckEvery > 0 && seq%uint64(k.config.BalanceCheckEvery) == 0 {
		k.coord.CheckBalance(ctx)
	}
	if k.config.AdvisoryEvery > 0 && seq%uint64(k.config.AdvisoryEvery) == 0 {
		k.reviewHoldings(ctx)
	}
}

func (k *Keeper) processMonitor(ctx context.Context, m *store.MonitoredAsset) error {
	price, err := k.prices.GetPrice(ctx, m.Address)
	if err != nil {
		if k.collector != nil {
			k.collector.RecordPriceError()
		}
		return err
	}

	patch := store.MonitorPatch{}
	highest := m.HighestPrice
	if price > highest {
		highest = price
		patch.HighestPrice = &highest
	}

	pos, hasPos := k.store.GetPosition(m.Address)
	if hasPos {
		k.refreshPosition(pos, price)
	}

	var exited bool
	switch m.Policy.Kind {
	case store.PolicyTrailing:
		exited, err = k.applyTrailing(ctx, m, price, highest, pos)
	case store.PolicyFlat:
		exited, err = k.applyFlat(ctx, m, price, pos)
	case store.PolicyNotify:
		exited, err = k.applyNotify(ctx, m, price, pos)
	case store.PolicyBuyback:
		err = k.applyBuyback(ctx, m, price)
	}
	if exited {
		return err
	}

	k.notifyMilestone(m, price, &patch)

	if patch.HighestPrice != nil || patch.LastMilestone != nil {
		if uerr := k.store.UpdateMonitor(m.Address, patch); uerr != nil && !errors.Is(uerr, store.ErrNotFound) {
			k.logger.Warn("⚠️ Monitor state save failed",
				zap.String("token", m.Address),
				zap.Error(uerr))
		}
	}
	return err
}

func (k *Keeper) processBarePosition(ctx context.Context, pos *store.Position) error {
	price, err := k.prices.GetPrice(ctx, pos.Address)
	if err != nil {
		if k.collector != nil {
			k.collector.RecordPriceError()
		}
		return err
	}

	k.refreshPosition(pos, price)

	stop := rules.ComputeTrailStop(pos.EntryPrice, pos.HighestPrice, k.config.TrailTiers, k.config.DefaultTrailPercent)
	if price > stop.StopPrice {
		return nil
	}
	k.logger.Info("🛑 Trailing stop hit",
		zap.String("token", pos.Symbol),
		zap.Float64("price", price),
		zap.Float64("stop", stop.StopPrice),
		zap.Float64("trail_percent", stop.TrailPercent))
	if err := k.trader.ExecuteExit(ctx, pos.Address, store.ReasonTrailingStop); err != nil {
		return fmt.Errorf("trailing stop exit: %w", err)
	}
	return nil
}

// refreshPosition pins the latest price onto the position and ratchets
// its own high-water mark.
func (k *Keeper) refreshPosition(pos *store.Position, price float64) {
	pos.CurrentPrice = price
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}
	if err := k.store.UpdatePosition(pos); err != nil && !errors.Is(err, store.ErrNotFound) {
		k.logger.Warn("⚠️ Position state save failed",
			zap.String("token", pos.Address),
			zap.Error(err))
	}
}

func (k *Keeper) applyTrailing(ctx context.Context, m *store.MonitoredAsset, price, highest float64, pos *store.Position) (bool, error) {
	pol := m.Policy.Trailing
	defaultTrail := pol.DefaultTrailPercent
	if defaultTrail <= 0 {
		defaultTrail = k.config.DefaultTrailPercent
	}
	stop := rules.ComputeTrailStop(pol.EntryPrice, highest, pol.Tiers, defaultTrail)
	if pos == nil || price > stop.StopPrice {
		return false, nil
	}
	k.logger.Info("🛑 Trailing stop hit",
		zap.String("token", m.Symbol),
		zap.Float64("price", price),
		zap.Float64("stop", stop.StopPrice),
		zap.Float64("trail_percent", stop.TrailPercent))
	if err := k.trader.ExecuteExit(ctx, m.Address, store.ReasonTrailingStop); err != nil {
		return false, fmt.Errorf("trailing stop exit: %w", err)
	}
	return true, nil
}

func (k *Keeper) applyFlat(ctx context.Context, m *store.MonitoredAsset, price float64, pos *store.Position) (bool, error) {
	pol := m.Policy.Flat
	action := rules.CheckFlatExit(pol.EntryPrice, pol.StopLossPercentOf(), pol.TakeProfitPercent, price)
	if action == rules.ActionHold || pos == nil {
		return false, nil
	}
	reason := store.ReasonStopLoss
	if action == rules.ActionTakeProfit {
		reason = store.ReasonTakeProfit
	}
	k.logger.Info("🛑 Flat exit threshold hit",
		zap.String("token", m.Symbol),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("entry", pol.EntryPrice))
	if err := k.trader.ExecuteExit(ctx, m.Address, reason); err != nil {
		return false, fmt.Errorf("flat exit: %w", err)
	}
	return true, nil
}

func (k *Keeper) applyNotify(ctx context.Context, m *store.MonitoredAsset, price float64, pos *store.Position) (bool, error) {
	pol := m.Policy.Notify
	if pol.StopLossPrice <= 0 || price > pol.StopLossPrice {
		return false, nil
	}
	k.alerts.Trigger(Alert{
		Type:         AlertTypeStopBreach,
		Severity:     "warning",
		TokenMint:    m.Address,
		TokenSymbol:  m.Symbol,
		CurrentPrice: price,
		Level:        pol.StopLossPrice,
		Message:      fmt.Sprintf("%s broke stop %.6f (now %.6f)", m.Symbol, pol.StopLossPrice, price),
	})
	if pos == nil {
		return false, nil
	}
	if err := k.trader.ExecuteExit(ctx, m.Address, store.ReasonStopLoss); err != nil {
		return false, fmt.Errorf("stop breach exit: %w", err)
	}
	return true, nil
}

func (k *Keeper) applyBuyback(ctx context.Context, m *store.MonitoredAsset, price float64) error {
	pol := m.Policy.Buyback

	// Drawdown notifications mirror the milestone ladder below entry.
	// The state write happens before the buy so a buyback updating the
	// same policy never loses it.
	if pol.NotifyPercent > 0 {
		if level, fired := rules.NextDropAlert(pol.EntryPrice, price, pol.LastNotifiedDrop, pol.NotifyPercent); fired {
			k.alerts.Trigger(Alert{
				Type:         AlertTypeDrop,
				Severity:     "warning",
				TokenMint:    m.Address,
				TokenSymbol:  m.Symbol,
				CurrentPrice: price,
				Level:        level,
				Message:      fmt.Sprintf("%s down %.0f%% from entry (now %.6f)", m.Symbol, level, price),
			})
			updated := m.Policy.Clone()
			updated.Buyback.LastNotifiedDrop = level
			if err := k.store.UpdateMonitor(m.Address, store.MonitorPatch{Policy: &updated}); err != nil {
				k.logger.Warn("⚠️ Monitor state save failed",
					zap.String("token", m.Address),
					zap.Error(err))
			}
		}
	}

	if pol.BuybackPercent <= 0 || pol.USDCPerBuy <= 0 {
		return nil
	}
	level, fired := rules.NextBuybackLevel(pol.EntryPrice, price, pol.LastLevel, pol.BuybackPercent)
	if !fired {
		return nil
	}
	if pol.Remaining() <= 0 {
		k.logger.Debug("Buyback budget exhausted",
			zap.String("token", m.Symbol),
			zap.Int("level", level))
		return nil
	}
	k.logger.Info("📉 Buyback level reached",
		zap.String("token", m.Symbol),
		zap.Int("level", level),
		zap.Float64("price", price))
	if err := k.trader.ExecuteBuyback(ctx, m.Address, level); err != nil {
		return fmt.Errorf("buyback level %d: %w", level, err)
	}
	return nil
}

// notifyMilestone fires the next profit milestone for entry-bearing
// policies and records it in the pending patch.
func (k *Keeper) notifyMilestone(m *store.MonitoredAsset, price float64, patch *store.MonitorPatch) {
	if k.config.MilestoneStep <= 0 {
		return
	}
	entry := policyEntryPrice(m)
	if entry <= 0 {
		return
	}
	level, fired := rules.NextMilestone(entry, price, m.LastMilestone, k.config.MilestoneStep)
	if !fired {
		return
	}
	k.alerts.Trigger(Alert{
		Type:         AlertTypeMilestone,
		Severity:     "info",
		TokenMint:    m.Address,
		TokenSymbol:  m.Symbol,
		CurrentPrice: price,
		Level:        level,
		Message:      fmt.Sprintf("%s up %.0f%% from entry (now %.6f)", m.Symbol, level, price),
	})
	patch.LastMilestone = &level
}

func policyEntryPrice(m *store.MonitoredAsset) float64 {
	switch m.Policy.Kind {
	case store.PolicyTrailing:
		return m.Policy.Trailing.EntryPrice
	case store.PolicyFlat:
		return m.Policy.Flat.EntryPrice
	case store.PolicyBuyback:
		return m.Policy.Buyback.EntryPrice
	default:
		return 0
	}
}

// reviewHoldings sends the open positions to the advisor and acts on
// sell recommendations only.
func (k *Keeper) reviewHoldings(ctx context.Context) {
	if k.advisor == nil {
		return
	}
	positions := k.store.Positions()
	if len(positions) == 0 {
		return
	}
	holdings := make([]advisor.Holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, advisor.Holding{
			Address:       p.Address,
			Symbol:        p.Symbol,
			EntryPrice:    p.EntryPrice,
			CurrentPrice:  p.CurrentPrice,
			ProfitPercent: p.ProfitPercent(),
			InvestedUSDC:  p.InvestedUSDC,
		})
	}
	for _, rec := range k.advisor.Review(ctx, holdings) {
		if rec.Action != advisor.ActionSell {
			continue
		}
		if _, ok := k.store.GetPosition(rec.Address); !ok {
			continue
		}
		k.logger.Info("📊 Advisory sell",
			zap.String("token", rec.Address),
			zap.String("note", rec.Note))
		if err := k.trader.ExecuteExit(ctx, rec.Address, store.ReasonAdvisory); err != nil {
			k.logger.Warn("⚠️ Advisory exit failed",
				zap.String("token", rec.Address),
				zap.Error(err))
		}
	}
}
