// internal/bot/commands.go
package bot

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
)

// TradingCommand is a validated request for a manual keeper operation.
type TradingCommand interface {
	GetType() string
	Validate() error
}

// AddMonitorCommand puts a token under management with the given policy.
type AddMonitorCommand struct {
	TokenMint   string       `json:"token_mint"`
	TokenSymbol string       `json:"token_symbol,omitempty"`
	Name        string       `json:"name,omitempty"`
	Policy      store.Policy `json:"policy"`
	Timestamp   time.Time    `json:"timestamp"`
}

func (c AddMonitorCommand) GetType() string {
	return "add_monitor"
}

func (c AddMonitorCommand) Validate() error {
	if c.TokenMint == "" {
		return fmt.Errorf("token_mint cannot be empty")
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	return nil
}

// StopTrackingCommand removes a token from management. Any open position
// stays open and falls back to the default trailing stop.
type StopTrackingCommand struct {
	TokenMint string    `json:"token_mint"`
	Timestamp time.Time `json:"timestamp"`
}

func (c StopTrackingCommand) GetType() string {
	return "stop_tracking"
}

func (c StopTrackingCommand) Validate() error {
	if c.TokenMint == "" {
		return fmt.Errorf("token_mint cannot be empty")
	}
	return nil
}

// ForceSellCommand sells part or all of an open position immediately.
type ForceSellCommand struct {
	TokenMint  string    `json:"token_mint"`
	Percentage float64   `json:"percentage"`
	Timestamp  time.Time `json:"timestamp"`
}

func (c ForceSellCommand) GetType() string {
	return "force_sell"
}

func (c ForceSellCommand) Validate() error {
	if c.TokenMint == "" {
		return fmt.Errorf("token_mint cannot be empty")
	}
	if c.Percentage <= 0 || c.Percentage > 100 {
		return fmt.Errorf("percentage must be between 0 and 100, got: %.2f", c.Percentage)
	}
	return nil
}

// ManualBuyCommand buys a token through the normal entry gate. A zero
// amount means size the buy from the configured trade percent.
type ManualBuyCommand struct {
	TokenMint   string    `json:"token_mint"`
	TokenSymbol string    `json:"token_symbol,omitempty"`
	AmountUSDC  float64   `json:"amount_usdc"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c ManualBuyCommand) GetType() string {
	return "manual_buy"
}

func (c ManualBuyCommand) Validate() error {
	if c.TokenMint == "" {
		return fmt.Errorf("token_mint cannot be empty")
	}
	if c.AmountUSDC < 0 {
		return fmt.Errorf("amount_usdc cannot be negative, got: %.2f", c.AmountUSDC)
	}
	return nil
}

// PauseTradingCommand suspends automatic buying.
type PauseTradingCommand struct {
	Timestamp time.Time `json:"timestamp"`
}

func (c PauseTradingCommand) GetType() string {
	return "pause_trading"
}

func (c PauseTradingCommand) Validate() error {
	return nil
}

// ResumeTradingCommand re-enables automatic buying.
type ResumeTradingCommand struct {
	Timestamp time.Time `json:"timestamp"`
}

func (c ResumeTradingCommand) GetType() string {
	return "resume_trading"
}

func (c ResumeTradingCommand) Validate() error {
	return nil
}

// BlacklistTokenCommand excludes a token from all future buys.
type BlacklistTokenCommand struct {
	TokenMint string    `json:"token_mint"`
	Timestamp time.Time `json:"timestamp"`
}

func (c BlacklistTokenCommand) GetType() string {
	return "blacklist_token"
}

func (c BlacklistTokenCommand) Validate() error {
	if c.TokenMint == "" {
		return fmt.Errorf("token_mint cannot be empty")
	}
	return nil
}

// CommandHandler executes one concrete command type.
type CommandHandler interface {
	Handle(ctx context.Context, command TradingCommand) error
	CanHandle(commandType reflect.Type) bool
}

// CommandBus routes commands to their registered handler.
type CommandBus struct {
	handlers map[reflect.Type]CommandHandler
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewCommandBus creates a new command bus.
func NewCommandBus(logger *zap.Logger) *CommandBus {
	return &CommandBus{
		handlers: make(map[reflect.Type]CommandHandler),
		logger:   logger.Named("command_bus"),
	}
}

// RegisterHandler binds a handler to the concrete type of commandType.
func (cb *CommandBus) RegisterHandler(commandType TradingCommand, handler CommandHandler) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	t := reflect.TypeOf(commandType)
	cb.handlers[t] = handler

	cb.logger.Debug("Command handler registered",
		zap.String("command_type", t.String()))
}

// Send validates the command and runs it through its handler.
func (cb *CommandBus) Send(ctx context.Context, command TradingCommand) error {
	if err := command.Validate(); err != nil {
		cb.logger.Warn("Command validation failed",
			zap.String("command_type", command.GetType()),
			zap.Error(err))
		return fmt.Errorf("command validation failed: %w", err)
	}

	cb.mutex.RLock()
	handler, exists := cb.handlers[reflect.TypeOf(command)]
	cb.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for command type: %s", command.GetType())
	}

	cb.logger.Debug("Executing command",
		zap.String("command_type", command.GetType()))

	if err := handler.Handle(ctx, command); err != nil {
		cb.logger.Error("Command execution failed",
			zap.String("command_type", command.GetType()),
			zap.Error(err))
		return fmt.Errorf("command execution failed: %w", err)
	}

	return nil
}

// GetRegisteredHandlers returns the type names with a registered handler.
func (cb *CommandBus) GetRegisteredHandlers() []string {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	types := make([]string, 0, len(cb.handlers))
	for t := range cb.handlers {
		if cmd, ok := reflect.New(t).Elem().Interface().(TradingCommand); ok {
			types = append(types, cmd.GetType())
		}
	}
	return types
}
