// internal/bot/runner.go
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/advisor"
	"github.com/rovshanmuradov/solana-keeper/internal/config"
	"github.com/rovshanmuradov/solana-keeper/internal/dashboard"
	"github.com/rovshanmuradov/solana-keeper/internal/export"
	"github.com/rovshanmuradov/solana-keeper/internal/logger"
	"github.com/rovshanmuradov/solana-keeper/internal/market"
	"github.com/rovshanmuradov/solana-keeper/internal/metrics"
	"github.com/rovshanmuradov/solana-keeper/internal/monitor"
	"github.com/rovshanmuradov/solana-keeper/internal/notify"
	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner assembles the keeper and runs it until a shutdown signal.
type Runner struct {
	logger     *logger.Logger
	config     *config.Config
	store      *store.Store
	collector  *metrics.Collector
	notifier   notify.Notifier
	alerts     *monitor.AlertManager
	coord      *monitor.Coordinator
	keeper     *monitor.Keeper
	scheduler  *monitor.Scheduler
	eventBus   *EventBus
	commandBus *CommandBus
	service    *TradingService
	dashboard  *dashboard.Server
	audit      *eventAuditWriter
	tradeLog   *logger.SafeCSVWriter
	shutdown   *ShutdownHandler
	shutdownCh chan os.Signal
}

// NewRunner wires every component from the configuration. Nothing starts
// running until Run.
func NewRunner(cfg *config.Config, log *logger.Logger) (*Runner, error) {
	httpTimeout := time.Duration(cfg.HTTPTimeoutMs) * time.Millisecond

	collector := metrics.NewCollector()
	st := store.New(cfg.DataDir, cfg.HistoryMaxEntries, log.WithComponent("store"))

	prices := market.NewPriceClient(&market.PriceClientConfig{
		BaseURL:   cfg.PriceFeedURL,
		QuoteMint: cfg.QuoteMint,
		Timeout:   httpTimeout,
		Retries:   cfg.Retries,
	}, log.WithComponent("price_feed"))

	wallet := market.NewWalletClient(&market.WalletClientConfig{
		BaseURL:       cfg.WalletAPIURL,
		WalletAddress: cfg.WalletAddress,
		NativeMint:    cfg.NativeMint,
		QuoteMint:     cfg.QuoteMint,
		Timeout:       httpTimeout,
		Retries:       cfg.Retries,
	}, log.WithComponent("wallet_api"))

	swaps := market.NewSwapClient(&market.SwapClientConfig{
		BaseURL:         cfg.SwapURL,
		WalletAddress:   cfg.WalletAddress,
		QuoteMint:       cfg.QuoteMint,
		SlippagePercent: cfg.SlippagePercent,
		Timeout:         httpTimeout,
		DryRun:          cfg.DryRun,
	}, prices, log.WithComponent("swap"))

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL, httpTimeout, collector, log.WithComponent("notify"))
	}

	alertCfg := monitor.DefaultAlertConfig()
	alertCfg.CooldownDuration = time.Duration(cfg.AlertCooldownMinutes) * time.Minute
	alerts := monitor.NewAlertManager(alertCfg, log.WithComponent("alerts"))

	coord := monitor.NewCoordinator(monitor.CoordinatorConfig{
		MaxPositions:        cfg.MaxPositions,
		TradePercent:        cfg.TradePercent,
		MinNativeBalance:    cfg.MinNativeBalanceSol,
		LowBalanceWarnEvery: time.Duration(cfg.LowBalanceWarnMinutes) * time.Minute,
		DefaultCooldown:     time.Duration(cfg.CooldownSeconds) * time.Second,
	}, wallet, alerts, log.WithComponent("coordinator"))

	var adv monitor.Advisor
	if cfg.AdvisorURL != "" {
		adv = advisor.NewClient(cfg.AdvisorURL, httpTimeout, log.WithComponent("advisor"))
	}

	tradeLogName := fmt.Sprintf("trades_%s.csv", time.Now().Format("20060102_150405"))
	tradeLog, err := logger.NewSafeCSVWriter(
		filepath.Join(filepath.Dir(cfg.LogFile), "trades", tradeLogName),
		store.TradeCSVHeader(),
		5*time.Second,
		log.WithComponent("trade_log"),
	)
	if err != nil {
		return nil, fmt.Errorf("trade log open failed: %w", err)
	}

	audit, err := newEventAuditWriter(
		filepath.Join(filepath.Dir(cfg.LogFile), "events.log"),
		log.WithComponent("event_audit"),
	)
	if err != nil {
		return nil, fmt.Errorf("event audit open failed: %w", err)
	}

	r := &Runner{
		logger:     log,
		config:     cfg,
		store:      st,
		collector:  collector,
		notifier:   notifier,
		alerts:     alerts,
		coord:      coord,
		eventBus:   NewEventBus(log.Logger),
		commandBus: NewCommandBus(log.Logger),
		audit:      audit,
		tradeLog:   tradeLog,
		shutdown:   NewShutdownHandler(log.WithComponent("shutdown"), 30*time.Second),
		shutdownCh: make(chan os.Signal, 1),
	}

	// The tick closure reads r.keeper so the scheduler can be built before
	// the keeper and the keeper before the service that feeds it.
	r.scheduler = monitor.NewScheduler(
		time.Duration(cfg.TickIntervalMs)*time.Millisecond,
		func(ctx context.Context) { r.keeper.Tick(ctx) },
		collector,
		log.WithComponent("scheduler"),
	)

	r.service = NewTradingService(TradingServiceConfig{
		CommandBus:  r.commandBus,
		EventBus:    r.eventBus,
		Store:       st,
		Prices:      prices,
		Swaps:       swaps,
		Balances:    wallet,
		Coordinator: coord,
		Scheduler:   r.scheduler,
		Collector:   collector,
		Notifier:    notifier,
		TradeLog:    tradeLog,
		Logger:      log.Logger,
	})

	r.keeper = monitor.NewKeeper(monitor.KeeperConfig{
		DefaultTrailPercent: cfg.DefaultTrailPercent,
		TrailTiers:          cfg.TrailTiers,
		MilestoneStep:       cfg.MilestoneStepPercent,
		BalanceCheckEvery:   cfg.BalanceCheckEvery,
		AdvisoryEvery:       cfg.AdvisoryEvery,
	}, st, prices, r.service, adv, coord, alerts, collector, log.WithComponent("keeper"))

	if cfg.DashboardAddr != "" {
		exporter := export.NewTradeExporter(log.WithComponent("export"))
		r.dashboard = dashboard.NewServer(dashboard.Config{
			Addr:      cfg.DashboardAddr,
			ExportDir: filepath.Join(cfg.DataDir, "exports"),
		}, st, alerts,
			func() interface{} { return r.service.Status() },
			exporter,
			log.Buffer(),
			log.WithComponent("dashboard"))
	}

	r.alerts.AddHandler(r.handleAlert)
	r.subscribeEventAudit()

	return r, nil
}

// CommandBus exposes the bus manual operations are sent through.
func (r *Runner) CommandBus() *CommandBus {
	return r.commandBus
}

// Run loads state, starts the tick loop and the dashboard, and blocks until
// a signal or a fatal component error. Shutdown is LIFO: the scheduler stops
// first so the final store flush sees a quiet world.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("📡 Signal received: " + sig.String())
		cancel()
	}()

	if err := r.store.Load(); err != nil {
		return fmt.Errorf("store load failed: %w", err)
	}
	r.logger.Info(fmt.Sprintf("📋 Loaded %d positions, %d monitors, %d history entries",
		r.store.PositionCount(), len(r.store.Monitors()), len(r.store.History(0))))

	r.registerShutdownOrder()

	if r.config.DryRun {
		r.logger.Info("🧪 Dry-run mode, swaps are simulated")
	}

	r.scheduler.Start(runCtx)
	r.logger.Info("🚀 Keeper running",
		zap.Duration("tick_interval", time.Duration(r.config.TickIntervalMs)*time.Millisecond))

	g, gctx := errgroup.WithContext(runCtx)
	if r.dashboard != nil {
		g.Go(func() error {
			return r.dashboard.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), r.shutdown.Timeout())
	defer cancelShutdown()
	r.shutdown.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// registerShutdownOrder queues the closers. Registration is FIFO, close is
// LIFO, so the scheduler added last stops first.
func (r *Runner) registerShutdownOrder() {
	r.shutdown.Add("event_audit", r.audit)
	r.shutdown.AddFunc("store", r.store.SaveAll)
	r.shutdown.Add("trade_log", r.tradeLog)
	r.shutdown.AddFunc("scheduler", func() error {
		r.scheduler.Stop()
		return nil
	})
}

// Shutdown flushes the logger after Run returns.
func (r *Runner) Shutdown() {
	r.logger.Info("👋 Keeper shutting down gracefully")

	if err := r.logger.Sync(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}

// handleAlert forwards every alert to the notifier and turns the structured
// ones into bus events.
func (r *Runner) handleAlert(alert monitor.Alert) {
	r.notifier.Notify(alert.Message)

	switch alert.Type {
	case monitor.AlertTypeMilestone:
		r.eventBus.Publish(MilestoneReachedEvent{
			TokenMint:    alert.TokenMint,
			TokenSymbol:  alert.TokenSymbol,
			Level:        alert.Level,
			CurrentPrice: alert.CurrentPrice,
			Timestamp:    alert.Timestamp,
		})
	case monitor.AlertTypeLowBalance:
		r.eventBus.Publish(LowBalanceEvent{
			Balance:   alert.CurrentPrice,
			Minimum:   alert.Level,
			Timestamp: alert.Timestamp,
		})
	}
}

func (r *Runner) subscribeEventAudit() {
	for _, eventType := range []string{
		"position_opened",
		"position_closed",
		"milestone_reached",
		"buyback_executed",
		"monitor_added",
		"monitor_removed",
		"trading_paused",
		"trading_resumed",
		"low_balance",
	} {
		r.eventBus.Subscribe(eventType, r.audit)
	}
}

// eventAuditWriter appends every published event as a JSON line, giving the
// operator a replayable record alongside the trade history.
type eventAuditWriter struct {
	writer *logger.SafeFileWriter
	logger *zap.Logger
}

func newEventAuditWriter(path string, log *zap.Logger) (*eventAuditWriter, error) {
	writer, err := logger.NewSafeFileWriter(path, 5*time.Second, log)
	if err != nil {
		return nil, err
	}
	return &eventAuditWriter{writer: writer, logger: log}, nil
}

func (w *eventAuditWriter) OnEvent(event TradingEvent) {
	payload := struct {
		Type  string       `json:"type"`
		Event TradingEvent `json:"event"`
	}{event.GetType(), event}

	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Warn("⚠️ Event serialization failed",
			zap.String("event_type", event.GetType()), zap.Error(err))
		return
	}
	if err := w.writer.WriteLine(string(data)); err != nil {
		w.logger.Warn("⚠️ Event audit write failed", zap.Error(err))
	}
}

func (w *eventAuditWriter) Close() error {
	return w.writer.Close()
}
