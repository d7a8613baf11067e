// internal/bot/trading_service.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/logger"
	"github.com/rovshanmuradov/solana-keeper/internal/market"
	"github.com/rovshanmuradov/solana-keeper/internal/metrics"
	"github.com/rovshanmuradov/solana-keeper/internal/monitor"
	"github.com/rovshanmuradov/solana-keeper/internal/notify"
	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
)

// TradingService executes every buy and sell in the keeper: automatic exits
// and buybacks on behalf of the tick loop, and manual operations arriving
// through the command bus. Manual operations take the tick gate so they never
// interleave with a running tick.
type TradingService struct {
	commandBus *CommandBus
	eventBus   *EventBus
	store      *store.Store
	prices     market.PriceSource
	swaps      market.SwapExecutor
	balances   market.BalanceReader
	coord      *monitor.Coordinator
	scheduler  *monitor.Scheduler
	collector  *metrics.Collector
	notifier   notify.Notifier
	tradeLog   *logger.SafeCSVWriter
	logger     *zap.Logger
}

// TradingServiceConfig wires the collaborators for NewTradingService.
// Scheduler, Collector, Notifier and TradeLog are optional.
type TradingServiceConfig struct {
	CommandBus  *CommandBus
	EventBus    *EventBus
	Store       *store.Store
	Prices      market.PriceSource
	Swaps       market.SwapExecutor
	Balances    market.BalanceReader
	Coordinator *monitor.Coordinator
	Scheduler   *monitor.Scheduler
	Collector   *metrics.Collector
	Notifier    notify.Notifier
	TradeLog    *logger.SafeCSVWriter
	Logger      *zap.Logger
}

// NewTradingService creates the service and registers its command handlers.
func NewTradingService(config TradingServiceConfig) *TradingService {
	notifier := config.Notifier
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}

	service := &TradingService{
		commandBus: config.CommandBus,
		eventBus:   config.EventBus,
		store:      config.Store,
		prices:     config.Prices,
		swaps:      config.Swaps,
		balances:   config.Balances,
		coord:      config.Coordinator,
		scheduler:  config.Scheduler,
		collector:  config.Collector,
		notifier:   notifier,
		tradeLog:   config.TradeLog,
		logger:     config.Logger.Named("trading_service"),
	}

	service.registerCommandHandlers()
	return service
}

func (s *TradingService) registerCommandHandlers() {
	s.commandBus.RegisterHandler(AddMonitorCommand{}, &AddMonitorHandler{service: s})
	s.commandBus.RegisterHandler(StopTrackingCommand{}, &StopTrackingHandler{service: s})
	s.commandBus.RegisterHandler(ForceSellCommand{}, &ForceSellHandler{service: s})
	s.commandBus.RegisterHandler(ManualBuyCommand{}, &ManualBuyHandler{service: s})
	s.commandBus.RegisterHandler(PauseTradingCommand{}, &PauseTradingHandler{service: s})
	s.commandBus.RegisterHandler(ResumeTradingCommand{}, &ResumeTradingHandler{service: s})
	s.commandBus.RegisterHandler(BlacklistTokenCommand{}, &BlacklistTokenHandler{service: s})

	s.logger.Info("✅ Command handlers registered",
		zap.Strings("commands", s.commandBus.GetRegisteredHandlers()))
}

// exclusive runs fn holding the tick gate so manual mutations never race a
// tick. Without a scheduler it runs fn directly.
func (s *TradingService) exclusive(ctx context.Context, fn func(context.Context) error) error {
	if s.scheduler == nil {
		return fn(ctx)
	}
	return s.scheduler.RunExclusive(ctx, fn)
}

// ExecuteExit sells the full position, retires its monitor and starts the
// re-entry cooldown. The caller must hold the tick gate.
func (s *TradingService) ExecuteExit(ctx context.Context, address, reason string) error {
	pos, ok := s.store.GetPosition(address)
	if !ok {
		return fmt.Errorf("no open position for %s", address)
	}

	result, err := s.swaps.Sell(ctx, address, pos.Quantity)
	if err != nil {
		return fmt.Errorf("sell failed: %w", err)
	}

	pos.CurrentPrice = result.FillPrice
	profit := pos.ProfitPercent()

	if err := s.store.RemovePosition(address); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("⚠️ Position removal failed",
			zap.String("token", pos.Symbol), zap.Error(err))
	}

	cooldown := s.coord.DefaultCooldown()
	if m, found := s.store.GetMonitor(address); found {
		if m.Policy.Kind == store.PolicyFlat && m.Policy.Flat != nil && m.Policy.Flat.CooldownSeconds > 0 {
			cooldown = time.Duration(m.Policy.Flat.CooldownSeconds) * time.Second
		}
		if err := s.store.RemoveMonitor(address); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("⚠️ Monitor removal failed",
				zap.String("token", pos.Symbol), zap.Error(err))
		}
		s.publishMonitorRemoved(address, reason)
	}

	s.recordTrade(&store.TradeRecord{
		Kind:          store.TradeSell,
		Address:       pos.Address,
		Symbol:        pos.Symbol,
		Price:         result.FillPrice,
		Quantity:      result.Quantity,
		AmountUSDC:    result.AmountUSDC,
		TxRef:         result.TxRef,
		Reason:        reason,
		ProfitPercent: profit,
		Timestamp:     time.Now().UTC(),
	})

	s.coord.SetCooldown(address, cooldown)

	if s.collector != nil {
		s.collector.RecordExit(reason)
	}
	s.notifier.Notify(fmt.Sprintf("✅ Sold %s at %.6f (%+.2f%%) [%s]",
		pos.Symbol, result.FillPrice, profit, reason))

	s.eventBus.Publish(PositionClosedEvent{
		TokenMint:     pos.Address,
		TokenSymbol:   pos.Symbol,
		ExitPrice:     result.FillPrice,
		Quantity:      result.Quantity,
		ProceedsUSDC:  result.AmountUSDC,
		ProfitPercent: profit,
		Reason:        reason,
		TxRef:         result.TxRef,
		Timestamp:     time.Now(),
	})

	s.logger.Info("✅ Position closed",
		zap.String("token", pos.Symbol),
		zap.Float64("exit_price", result.FillPrice),
		zap.Float64("pnl_percent", profit),
		zap.String("reason", reason))
	return nil
}

// ExecuteBuyback buys one ladder level for a buyback monitor. State is
// re-read from the store so a fill is sized against the budget left right
// now, not the one the tick saw. The caller must hold the tick gate.
func (s *TradingService) ExecuteBuyback(ctx context.Context, address string, level int) error {
	m, ok := s.store.GetMonitor(address)
	if !ok || m.Policy.Kind != store.PolicyBuyback || m.Policy.Buyback == nil {
		return fmt.Errorf("no buyback policy for %s", address)
	}
	pol := m.Policy.Buyback

	if s.store.IsBlacklisted(address) {
		return fmt.Errorf("%s is blacklisted", address)
	}

	_, hasPos := s.store.GetPosition(address)
	if err := s.coord.CheckEntry(ctx, address, !hasPos, s.store.PositionCount()); err != nil {
		if isEntryRefusal(err) {
			s.logger.Debug("Buyback gated",
				zap.String("token", m.Symbol), zap.Error(err))
			return nil
		}
		return fmt.Errorf("entry gate check failed: %w", err)
	}

	spend := pol.USDCPerBuy
	if remaining := pol.Remaining(); spend > remaining {
		spend = remaining
	}
	if spend <= 0 {
		return nil
	}

	quote, err := s.balances.GetQuoteBalance(ctx)
	if err != nil {
		return fmt.Errorf("quote balance check failed: %w", err)
	}
	if quote < spend {
		s.logger.Warn("⚠️ Skipping buyback, quote balance too low",
			zap.String("token", m.Symbol),
			zap.Float64("needed", spend),
			zap.Float64("available", quote))
		return nil
	}

	result, err := s.swaps.Buy(ctx, address, spend)
	if err != nil {
		return fmt.Errorf("buyback buy failed: %w", err)
	}

	updated := m.Policy.Clone()
	updated.Buyback.Spent += result.AmountUSDC
	updated.Buyback.LastLevel = level
	if err := s.store.UpdateMonitor(address, store.MonitorPatch{Policy: &updated}); err != nil {
		s.logger.Warn("⚠️ Buyback state save failed",
			zap.String("token", m.Symbol), zap.Error(err))
	}

	s.applyFill(address, m.Symbol, result)

	s.recordTrade(&store.TradeRecord{
		Kind:       store.TradeBuy,
		Address:    address,
		Symbol:     m.Symbol,
		Price:      result.FillPrice,
		Quantity:   result.Quantity,
		AmountUSDC: result.AmountUSDC,
		TxRef:      result.TxRef,
		Reason:     store.ReasonBuyback,
		Timestamp:  time.Now().UTC(),
	})

	if s.collector != nil {
		s.collector.RecordBuy("buyback")
	}
	s.notifier.Notify(fmt.Sprintf("📉 Buyback L%d: %.2f USDC of %s at %.6f",
		level, result.AmountUSDC, m.Symbol, result.FillPrice))

	s.eventBus.Publish(BuybackExecutedEvent{
		TokenMint:   address,
		TokenSymbol: m.Symbol,
		Level:       level,
		FillPrice:   result.FillPrice,
		SpentUSDC:   result.AmountUSDC,
		BudgetLeft:  updated.Buyback.Remaining(),
		TxRef:       result.TxRef,
		Timestamp:   time.Now(),
	})

	s.logger.Info("📉 Buyback executed",
		zap.String("token", m.Symbol),
		zap.Int("level", level),
		zap.Float64("spent_usdc", result.AmountUSDC),
		zap.Float64("budget_left", updated.Buyback.Remaining()))
	return nil
}

// Status returns a point-in-time view of the keeper for the dashboard.
func (s *TradingService) Status() StatusSnapshot {
	snap := StatusSnapshot{
		Paused:        s.coord.IsPaused(),
		OpenPositions: s.store.PositionCount(),
		Monitors:      len(s.store.Monitors()),
		Blacklisted:   len(s.store.Blacklist()),
		Cooldowns:     len(s.coord.Cooldowns()),
	}
	if s.scheduler != nil {
		snap.SchedulerState = s.scheduler.State()
		snap.Ticks, snap.TicksSkipped = s.scheduler.Stats()
		snap.LastTickAt = s.scheduler.LastTickAt()
	}
	return snap
}

// StatusSnapshot summarizes the keeper's runtime state.
type StatusSnapshot struct {
	Paused         bool      `json:"paused"`
	SchedulerState string    `json:"scheduler_state,omitempty"`
	Ticks          uint64    `json:"ticks"`
	TicksSkipped   uint64    `json:"ticks_skipped"`
	LastTickAt     time.Time `json:"last_tick_at"`
	OpenPositions  int       `json:"open_positions"`
	Monitors       int       `json:"monitors"`
	Blacklisted    int       `json:"blacklisted"`
	Cooldowns      int       `json:"cooldowns"`
}

func (s *TradingService) addMonitor(ctx context.Context, cmd AddMonitorCommand) error {
	return s.exclusive(ctx, func(ctx context.Context) error {
		symbol := cmd.TokenSymbol
		if symbol == "" {
			symbol = getTokenSymbol(cmd.TokenMint)
		}

		price, err := s.prices.GetPrice(ctx, cmd.TokenMint)
		if err != nil {
			s.logger.Warn("⚠️ No live price, skipping stop sanity check",
				zap.String("token", symbol), zap.Error(err))
			price = 0
		}
		if price > 0 {
			if stop := immediateStopPrice(cmd.Policy); stop > 0 && stop >= price {
				return fmt.Errorf("stop price %.6f would fire immediately at current price %.6f", stop, price)
			}
		}

		asset := &store.MonitoredAsset{
			Address:   cmd.TokenMint,
			Symbol:    symbol,
			Name:      cmd.Name,
			Policy:    cmd.Policy,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		asset.HighestPrice = policyEntry(cmd.Policy)
		if price > asset.HighestPrice {
			asset.HighestPrice = price
		}

		if err := s.store.AddMonitor(asset); err != nil {
			return fmt.Errorf("monitor save failed: %w", err)
		}

		s.logger.Info("👀 Monitor added",
			zap.String("token", symbol),
			zap.String("policy", string(cmd.Policy.Kind)))
		s.publishMonitorAdded(asset)
		return nil
	})
}

func (s *TradingService) stopTracking(ctx context.Context, cmd StopTrackingCommand) error {
	return s.exclusive(ctx, func(ctx context.Context) error {
		m, ok := s.store.GetMonitor(cmd.TokenMint)
		if !ok {
			return fmt.Errorf("no monitor for %s", cmd.TokenMint)
		}
		if err := s.store.RemoveMonitor(cmd.TokenMint); err != nil {
			return fmt.Errorf("monitor removal failed: %w", err)
		}

		s.logger.Info("🗑️ Monitor removed", zap.String("token", m.Symbol))
		s.publishMonitorRemoved(m.Address, "manual")
		return nil
	})
}

func (s *TradingService) forceSell(ctx context.Context, cmd ForceSellCommand) error {
	return s.exclusive(ctx, func(ctx context.Context) error {
		if cmd.Percentage >= 100 {
			return s.ExecuteExit(ctx, cmd.TokenMint, store.ReasonManual)
		}
		return s.sellPartial(ctx, cmd.TokenMint, cmd.Percentage)
	})
}

// sellPartial sells a fraction of the position and keeps the rest open. The
// monitor stays in place, partial sells do not start a cooldown.
func (s *TradingService) sellPartial(ctx context.Context, address string, percentage float64) error {
	pos, ok := s.store.GetPosition(address)
	if !ok {
		return fmt.Errorf("no open position for %s", address)
	}

	quantity := pos.Quantity * percentage / 100
	result, err := s.swaps.Sell(ctx, address, quantity)
	if err != nil {
		return fmt.Errorf("sell failed: %w", err)
	}

	pos.CurrentPrice = result.FillPrice
	profit := pos.ProfitPercent()

	sold := result.Quantity
	if sold <= 0 || sold > pos.Quantity {
		sold = quantity
	}
	fraction := sold / pos.Quantity
	pos.Quantity -= sold
	pos.InvestedUSDC *= 1 - fraction

	if pos.Quantity > 0 {
		if err := s.store.UpdatePosition(pos); err != nil {
			s.logger.Warn("⚠️ Position update failed",
				zap.String("token", pos.Symbol), zap.Error(err))
		}
	} else if err := s.store.RemovePosition(address); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("⚠️ Position removal failed",
			zap.String("token", pos.Symbol), zap.Error(err))
	}

	s.recordTrade(&store.TradeRecord{
		Kind:          store.TradeSell,
		Address:       pos.Address,
		Symbol:        pos.Symbol,
		Price:         result.FillPrice,
		Quantity:      result.Quantity,
		AmountUSDC:    result.AmountUSDC,
		TxRef:         result.TxRef,
		Reason:        store.ReasonManual,
		ProfitPercent: profit,
		Timestamp:     time.Now().UTC(),
	})

	if s.collector != nil {
		s.collector.RecordExit(store.ReasonManual)
	}
	s.notifier.Notify(fmt.Sprintf("✅ Sold %.0f%% of %s at %.6f (%+.2f%%)",
		percentage, pos.Symbol, result.FillPrice, profit))

	s.logger.Info("✅ Partial sell filled",
		zap.String("token", pos.Symbol),
		zap.Float64("percentage", percentage),
		zap.Float64("quantity_left", pos.Quantity))
	return nil
}

func (s *TradingService) manualBuy(ctx context.Context, cmd ManualBuyCommand) error {
	return s.exclusive(ctx, func(ctx context.Context) error {
		address := cmd.TokenMint
		if s.store.IsBlacklisted(address) {
			return fmt.Errorf("%s is blacklisted", address)
		}

		_, hasPos := s.store.GetPosition(address)
		if err := s.coord.CheckEntry(ctx, address, !hasPos, s.store.PositionCount()); err != nil {
			return err
		}

		amount := cmd.AmountUSDC
		if amount <= 0 {
			sized, err := s.coord.InvestableAmount(ctx)
			if err != nil {
				return err
			}
			amount = sized
		} else {
			quote, err := s.balances.GetQuoteBalance(ctx)
			if err != nil {
				return fmt.Errorf("quote balance check failed: %w", err)
			}
			if quote < amount {
				return fmt.Errorf("quote balance %.2f USDC is below the requested %.2f", quote, amount)
			}
		}

		symbol := cmd.TokenSymbol
		if symbol == "" {
			symbol = getTokenSymbol(address)
		}

		result, err := s.swaps.Buy(ctx, address, amount)
		if err != nil {
			return fmt.Errorf("buy failed: %w", err)
		}

		s.applyFill(address, symbol, result)

		s.recordTrade(&store.TradeRecord{
			Kind:       store.TradeBuy,
			Address:    address,
			Symbol:     symbol,
			Price:      result.FillPrice,
			Quantity:   result.Quantity,
			AmountUSDC: result.AmountUSDC,
			TxRef:      result.TxRef,
			Reason:     store.ReasonManual,
			Timestamp:  time.Now().UTC(),
		})

		if s.collector != nil {
			s.collector.RecordBuy("manual")
		}
		s.notifier.Notify(fmt.Sprintf("🛒 Bought %.2f USDC of %s at %.6f",
			result.AmountUSDC, symbol, result.FillPrice))

		s.logger.Info("🛒 Manual buy filled",
			zap.String("token", symbol),
			zap.Float64("amount_usdc", result.AmountUSDC),
			zap.Float64("fill_price", result.FillPrice))
		return nil
	})
}

// pauseTrading flips the pause flag immediately, bypassing the tick gate so
// a slow tick cannot delay it.
func (s *TradingService) pauseTrading() error {
	s.coord.Pause()
	s.notifier.Notify("⏸️ Trading paused")
	s.eventBus.Publish(TradingPausedEvent{Timestamp: time.Now()})
	return nil
}

func (s *TradingService) resumeTrading() error {
	s.coord.Resume()
	s.notifier.Notify("▶️ Trading resumed")
	s.eventBus.Publish(TradingResumedEvent{Timestamp: time.Now()})
	return nil
}

func (s *TradingService) blacklistToken(ctx context.Context, cmd BlacklistTokenCommand) error {
	return s.exclusive(ctx, func(ctx context.Context) error {
		if err := s.store.AddToBlacklist(cmd.TokenMint); err != nil {
			return fmt.Errorf("blacklist update failed: %w", err)
		}
		s.logger.Info("🚫 Token blacklisted", zap.String("token", cmd.TokenMint))
		return nil
	})
}

// applyFill folds an executed buy into the position book, creating the
// position or merging into it with a weighted average entry.
func (s *TradingService) applyFill(address, symbol string, result *market.SwapResult) {
	if pos, ok := s.store.GetPosition(address); ok {
		totalQty := pos.Quantity + result.Quantity
		if totalQty > 0 {
			pos.EntryPrice = (pos.EntryPrice*pos.Quantity + result.FillPrice*result.Quantity) / totalQty
		}
		pos.Quantity = totalQty
		pos.InvestedUSDC += result.AmountUSDC
		pos.CurrentPrice = result.FillPrice
		if result.FillPrice > pos.HighestPrice {
			pos.HighestPrice = result.FillPrice
		}
		if err := s.store.UpdatePosition(pos); err != nil {
			s.logger.Warn("⚠️ Position merge failed",
				zap.String("token", symbol), zap.Error(err))
		}
		return
	}

	pos := &store.Position{
		Address:      address,
		Symbol:       symbol,
		EntryPrice:   result.FillPrice,
		CurrentPrice: result.FillPrice,
		HighestPrice: result.FillPrice,
		Quantity:     result.Quantity,
		InvestedUSDC: result.AmountUSDC,
		OpenedAt:     time.Now().UTC(),
		BuyTxRef:     result.TxRef,
	}
	if err := s.store.AddPosition(pos); err != nil {
		s.logger.Warn("⚠️ Position create failed",
			zap.String("token", symbol), zap.Error(err))
		return
	}

	s.eventBus.Publish(PositionOpenedEvent{
		TokenMint:    address,
		TokenSymbol:  symbol,
		EntryPrice:   result.FillPrice,
		Quantity:     result.Quantity,
		InvestedUSDC: result.AmountUSDC,
		TxRef:        result.TxRef,
		Timestamp:    time.Now(),
	})
}

// recordTrade appends to the JSON history and mirrors the row to the CSV
// trade log when one is configured.
func (s *TradingService) recordTrade(record *store.TradeRecord) {
	if err := s.store.AppendHistory(record); err != nil {
		s.logger.Warn("⚠️ History append failed", zap.Error(err))
	}
	if s.tradeLog != nil {
		if err := s.tradeLog.WriteRecord(record.ToCSV()); err != nil {
			s.logger.Warn("⚠️ Trade CSV write failed", zap.Error(err))
		}
	}
}

func (s *TradingService) publishMonitorAdded(asset *store.MonitoredAsset) {
	s.eventBus.Publish(MonitorAddedEvent{
		TokenMint:   asset.Address,
		TokenSymbol: asset.Symbol,
		PolicyKind:  string(asset.Policy.Kind),
		Timestamp:   time.Now(),
	})
}

func (s *TradingService) publishMonitorRemoved(address, reason string) {
	s.eventBus.Publish(MonitorRemovedEvent{
		TokenMint: address,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// isEntryRefusal reports whether the entry gate said no, as opposed to the
// check itself failing.
func isEntryRefusal(err error) bool {
	return errors.Is(err, monitor.ErrTradingPaused) ||
		errors.Is(err, monitor.ErrCooldownActive) ||
		errors.Is(err, monitor.ErrLowNativeBalance) ||
		errors.Is(err, monitor.ErrMaxPositions)
}

// immediateStopPrice returns the price at which the policy's stop would fire,
// or 0 when the policy has no absolute stop to sanity-check.
func immediateStopPrice(p store.Policy) float64 {
	switch p.Kind {
	case store.PolicyNotify:
		if p.Notify != nil {
			return p.Notify.StopLossPrice
		}
	case store.PolicyFlat:
		if p.Flat != nil {
			if p.Flat.StopLossPrice > 0 {
				return p.Flat.StopLossPrice
			}
			if p.Flat.EntryPrice > 0 && p.Flat.StopLossPercent > 0 {
				return p.Flat.EntryPrice * (1 - p.Flat.StopLossPercent/100)
			}
		}
	}
	return 0
}

// policyEntry returns the entry price carried by the policy variant, or 0.
func policyEntry(p store.Policy) float64 {
	switch p.Kind {
	case store.PolicyTrailing:
		if p.Trailing != nil {
			return p.Trailing.EntryPrice
		}
	case store.PolicyFlat:
		if p.Flat != nil {
			return p.Flat.EntryPrice
		}
	case store.PolicyBuyback:
		if p.Buyback != nil {
			return p.Buyback.EntryPrice
		}
	}
	return 0
}

// getTokenSymbol derives a short display symbol from the mint address.
func getTokenSymbol(tokenMint string) string {
	if len(tokenMint) >= 8 {
		return tokenMint[:4] + "..." + tokenMint[len(tokenMint)-4:]
	}
	return "TOKEN"
}

// AddMonitorHandler handles AddMonitorCommand.
type AddMonitorHandler struct {
	service *TradingService
}

func (h *AddMonitorHandler) Handle(ctx context.Context, command TradingCommand) error {
	cmd, ok := command.(AddMonitorCommand)
	if !ok {
		return fmt.Errorf("invalid command type for AddMonitorHandler")
	}
	return h.service.addMonitor(ctx, cmd)
}

func (h *AddMonitorHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(AddMonitorCommand{})
}

// StopTrackingHandler handles StopTrackingCommand.
type StopTrackingHandler struct {
	service *TradingService
}

func (h *StopTrackingHandler) Handle(ctx context.Context, command TradingCommand) error {
	cmd, ok := command.(StopTrackingCommand)
	if !ok {
		return fmt.Errorf("invalid command type for StopTrackingHandler")
	}
	return h.service.stopTracking(ctx, cmd)
}

func (h *StopTrackingHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(StopTrackingCommand{})
}

// ForceSellHandler handles ForceSellCommand.
type ForceSellHandler struct {
	service *TradingService
}

func (h *ForceSellHandler) Handle(ctx context.Context, command TradingCommand) error {
	cmd, ok := command.(ForceSellCommand)
	if !ok {
		return fmt.Errorf("invalid command type for ForceSellHandler")
	}
	return h.service.forceSell(ctx, cmd)
}

func (h *ForceSellHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(ForceSellCommand{})
}

// ManualBuyHandler handles ManualBuyCommand.
type ManualBuyHandler struct {
	service *TradingService
}

func (h *ManualBuyHandler) Handle(ctx context.Context, command TradingCommand) error {
	cmd, ok := command.(ManualBuyCommand)
	if !ok {
		return fmt.Errorf("invalid command type for ManualBuyHandler")
	}
	return h.service.manualBuy(ctx, cmd)
}

func (h *ManualBuyHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(ManualBuyCommand{})
}

// PauseTradingHandler handles PauseTradingCommand.
type PauseTradingHandler struct {
	service *TradingService
}

func (h *PauseTradingHandler) Handle(ctx context.Context, command TradingCommand) error {
	if _, ok := command.(PauseTradingCommand); !ok {
		return fmt.Errorf("invalid command type for PauseTradingHandler")
	}
	return h.service.pauseTrading()
}

func (h *PauseTradingHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(PauseTradingCommand{})
}

// ResumeTradingHandler handles ResumeTradingCommand.
type ResumeTradingHandler struct {
	service *TradingService
}

func (h *ResumeTradingHandler) Handle(ctx context.Context, command TradingCommand) error {
	if _, ok := command.(ResumeTradingCommand); !ok {
		return fmt.Errorf("invalid command type for ResumeTradingHandler")
	}
	return h.service.resumeTrading()
}

func (h *ResumeTradingHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(ResumeTradingCommand{})
}

// BlacklistTokenHandler handles BlacklistTokenCommand.
type BlacklistTokenHandler struct {
	service *TradingService
}

func (h *BlacklistTokenHandler) Handle(ctx context.Context, command TradingCommand) error {
	cmd, ok := command.(BlacklistTokenCommand)
	if !ok {
		return fmt.Errorf("invalid command type for BlacklistTokenHandler")
	}
	return h.service.blacklistToken(ctx, cmd)
}

func (h *BlacklistTokenHandler) CanHandle(commandType reflect.Type) bool {
	return commandType == reflect.TypeOf(BlacklistTokenCommand{})
}
