package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/market"
	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
)

// Entry gate refusals. Callers match with errors.Is to decide between a
// quiet skip and a surfaced error.
var (
	ErrTradingPaused    = errors.New("trading is paused")
	ErrCooldownActive   = errors.New("re-entry cooldown active")
	ErrLowNativeBalance = errors.New("native balance below minimum")
	ErrMaxPositions     = errors.New("position capacity reached")
)

// CoordinatorConfig holds the account-level trading limits.
type CoordinatorConfig struct {
	MaxPositions        int
	TradePercent        float64
	MinNativeBalance    float64
	LowBalanceWarnEvery time.Duration
	DefaultCooldown     time.Duration
}

// Coordinator owns the account-level trading state: the pause switch,
// per-asset re-entry cooldowns and the native gas balance watchdog.
type Coordinator struct {
	config   CoordinatorConfig
	balances market.BalanceReader
	alerts   *AlertManager
	logger   *zap.Logger

	mu          sync.Mutex
	paused      bool
	cooldowns   map[string]time.Time // normalized address -> expiry
	lastLowWarn time.Time
}

// NewCoordinator creates a coordinator with no cooldowns and trading
// enabled.
func NewCoordinator(config CoordinatorConfig, balances market.BalanceReader, alerts *AlertManager, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		config:    config,
		balances:  balances,
		alerts:    alerts,
		logger:    logger,
		cooldowns: make(map[string]time.Time),
	}
}

// Pause suspends all automatic and manual buying. Exits keep working.
func (c *Coordinator) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return
	}
	c.paused = true
	c.logger.Info("⏸️ Trading paused")
}

// Resume lifts the pause.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return
	}
	c.paused = false
	c.logger.Info("▶️ Trading resumed")
}

// IsPaused reports whether buying is suspended.
func (c *Coordinator) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetCooldown refuses new entries for the asset until d elapses.
func (c *Coordinator) SetCooldown(address string, d time.Duration) {
	if d <= 0 {
		return
	}
	key := store.NormalizeAddress(address)
	c.mu.Lock()
	c.cooldowns[key] = time.Now().Add(d)
	c.mu.Unlock()
	c.logger.Info("⏳ Re-entry cooldown set",
		zap.String("token", key),
		zap.Duration("duration", d))
}

// CooldownRemaining returns how long the asset stays locked out, or
// zero when no cooldown is active. Expired entries are dropped here.
func (c *Coordinator) CooldownRemaining(address string) time.Duration {
	key := store.NormalizeAddress(address)
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.cooldowns[key]
	if !ok {
		return 0
	}
	remaining := time.Until(until)
	if remaining <= 0 {
		delete(c.cooldowns, key)
		return 0
	}
	return remaining
}

// Cooldowns returns the active cooldowns keyed by normalized address.
func (c *Coordinator) Cooldowns() map[string]time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	out := make(map[string]time.Time, len(c.cooldowns))
	for addr, until := range c.cooldowns {
		if until.After(now) {
			out[addr] = until
		}
	}
	return out
}

// DefaultCooldown is the lockout applied to exits whose policy does not
// carry its own duration.
func (c *Coordinator) DefaultCooldown() time.Duration {
	return c.config.DefaultCooldown
}

// CheckEntry runs the entry gate in order: pause, cooldown, native gas
// floor, capacity. needsSlot is false when the buy adds to an already
// open position, which never consumes a new slot.
func (c *Coordinator) CheckEntry(ctx context.Context, address string, needsSlot bool, openPositions int) error {
	if c.IsPaused() {
		return ErrTradingPaused
	}
	if remaining := c.CooldownRemaining(address); remaining > 0 {
		return fmt.Errorf("%w for %s: %s left", ErrCooldownActive, address, remaining.Round(time.Second))
	}
	native, err := c.balances.GetNativeBalance(ctx)
	if err != nil {
		return fmt.Errorf("native balance check failed: %w", err)
	}
	if native < c.config.MinNativeBalance {
		return fmt.Errorf("%w: %.4f SOL < %.4f SOL", ErrLowNativeBalance, native, c.config.MinNativeBalance)
	}
	if needsSlot && openPositions >= c.config.MaxPositions {
		return fmt.Errorf("%w: %d of %d in use", ErrMaxPositions, openPositions, c.config.MaxPositions)
	}
	return nil
}

// InvestableAmount sizes the next buy from the live quote balance. It
// is read immediately before each buy, so consecutive buys in one tick
// see the balance the previous one left behind.
func (c *Coordinator) InvestableAmount(ctx context.Context) (float64, error) {
	quote, err := c.balances.GetQuoteBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("quote balance check failed: %w", err)
	}
	amount := quote * c.config.TradePercent / 100
	if amount <= 0 {
		return 0, fmt.Errorf("no investable quote balance (%.2f USDC held)", quote)
	}
	return amount, nil
}

// CheckBalance verifies the native gas balance and raises a low balance
// alert at most once per warn window.
func (c *Coordinator) CheckBalance(ctx context.Context) {
	native, err := c.balances.GetNativeBalance(ctx)
	if err != nil {
		c.logger.Warn("⚠️ Balance check failed", zap.Error(err))
		return
	}
	if native >= c.config.MinNativeBalance {
		return
	}

	c.mu.Lock()
	now := time.Now()
	if !c.lastLowWarn.IsZero() && now.Sub(c.lastLowWarn) < c.config.LowBalanceWarnEvery {
		c.mu.Unlock()
		return
	}
	c.lastLowWarn = now
	c.mu.Unlock()

	c.alerts.Trigger(Alert{
		Type:         AlertTypeLowBalance,
		Severity:     "warning",
		Message:      fmt.Sprintf("Low SOL balance: %.4f (minimum %.4f)", native, c.config.MinNativeBalance),
		CurrentPrice: native,
		Level:        c.config.MinNativeBalance,
	})
}
