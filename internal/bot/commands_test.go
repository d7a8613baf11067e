// internal/bot/commands_test.go
package bot

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap/zaptest"
)

type MockCommandHandler struct {
	handled []TradingCommand
	errors  map[string]error
	mu      sync.Mutex
}

func NewMockCommandHandler() *MockCommandHandler {
	return &MockCommandHandler{
		handled: make([]TradingCommand, 0),
		errors:  make(map[string]error),
	}
}

func (h *MockCommandHandler) Handle(ctx context.Context, cmd TradingCommand) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, cmd)
	if err, exists := h.errors[cmd.GetType()]; exists {
		return err
	}
	return nil
}

func (h *MockCommandHandler) CanHandle(commandType reflect.Type) bool {
	return true
}

func (h *MockCommandHandler) SetError(cmdType string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors[cmdType] = err
}

func (h *MockCommandHandler) GetHandledCommands() []TradingCommand {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TradingCommand(nil), h.handled...)
}

func validTrailingPolicy() store.Policy {
	return store.Policy{
		Kind: store.PolicyTrailing,
		Trailing: &store.TrailingPolicy{
			EntryPrice:          1.0,
			DefaultTrailPercent: 20,
		},
	}
}

func TestAddMonitorCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     AddMonitorCommand
		wantErr bool
	}{
		{
			name: "valid command",
			cmd: AddMonitorCommand{
				TokenMint: "test_token_mint",
				Policy:    validTrailingPolicy(),
				Timestamp: time.Now(),
			},
			wantErr: false,
		},
		{
			name: "empty token_mint",
			cmd: AddMonitorCommand{
				TokenMint: "",
				Policy:    validTrailingPolicy(),
				Timestamp: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "policy without variant data",
			cmd: AddMonitorCommand{
				TokenMint: "test_token_mint",
				Policy:    store.Policy{Kind: store.PolicyTrailing},
				Timestamp: time.Now(),
			},
			wantErr: true,
		},
		{
			name: "unknown policy kind",
			cmd: AddMonitorCommand{
				TokenMint: "test_token_mint",
				Policy:    store.Policy{Kind: "martingale"},
				Timestamp: time.Now(),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("AddMonitorCommand.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestForceSellCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     ForceSellCommand
		wantErr bool
	}{
		{
			name:    "valid full sell",
			cmd:     ForceSellCommand{TokenMint: "test_token_mint", Percentage: 100},
			wantErr: false,
		},
		{
			name:    "valid partial sell",
			cmd:     ForceSellCommand{TokenMint: "test_token_mint", Percentage: 50},
			wantErr: false,
		},
		{
			name:    "empty token_mint",
			cmd:     ForceSellCommand{TokenMint: "", Percentage: 100},
			wantErr: true,
		},
		{
			name:    "zero percentage",
			cmd:     ForceSellCommand{TokenMint: "test_token_mint", Percentage: 0},
			wantErr: true,
		},
		{
			name:    "percentage above 100",
			cmd:     ForceSellCommand{TokenMint: "test_token_mint", Percentage: 150},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ForceSellCommand.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestManualBuyCommand_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cmd     ManualBuyCommand
		wantErr bool
	}{
		{
			name:    "explicit amount",
			cmd:     ManualBuyCommand{TokenMint: "test_token_mint", AmountUSDC: 50},
			wantErr: false,
		},
		{
			name:    "zero amount means auto-size",
			cmd:     ManualBuyCommand{TokenMint: "test_token_mint", AmountUSDC: 0},
			wantErr: false,
		},
		{
			name:    "negative amount",
			cmd:     ManualBuyCommand{TokenMint: "test_token_mint", AmountUSDC: -10},
			wantErr: true,
		},
		{
			name:    "empty token_mint",
			cmd:     ManualBuyCommand{TokenMint: ""},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ManualBuyCommand.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommandBus_Send(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewCommandBus(logger)
	handler := NewMockCommandHandler()

	bus.RegisterHandler(PauseTradingCommand{}, handler)

	if err := bus.Send(context.Background(), PauseTradingCommand{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}

	handled := handler.GetHandledCommands()
	if len(handled) != 1 {
		t.Fatalf("Expected 1 handled command, got %d", len(handled))
	}
	if handled[0].GetType() != "pause_trading" {
		t.Errorf("Expected 'pause_trading', got '%s'", handled[0].GetType())
	}
}

func TestCommandBus_Send_NoHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewCommandBus(logger)

	err := bus.Send(context.Background(), ResumeTradingCommand{Timestamp: time.Now()})
	if err == nil {
		t.Fatal("Expected error for unregistered command type")
	}
	if !strings.Contains(err.Error(), "no handler registered") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestCommandBus_Send_ValidationStopsDispatch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewCommandBus(logger)
	handler := NewMockCommandHandler()

	bus.RegisterHandler(ForceSellCommand{}, handler)

	err := bus.Send(context.Background(), ForceSellCommand{TokenMint: "test_token_mint", Percentage: 250})
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "command validation failed") {
		t.Errorf("Unexpected error: %v", err)
	}
	if len(handler.GetHandledCommands()) != 0 {
		t.Error("Handler must not run for an invalid command")
	}
}

func TestCommandBus_Send_WrapsHandlerError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewCommandBus(logger)
	handler := NewMockCommandHandler()

	boom := errors.New("execution boom")
	handler.SetError("blacklist_token", boom)
	bus.RegisterHandler(BlacklistTokenCommand{}, handler)

	err := bus.Send(context.Background(), BlacklistTokenCommand{TokenMint: "test_token_mint"})
	if err == nil {
		t.Fatal("Expected handler error to propagate")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped handler error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "command execution failed") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestCommandBus_GetRegisteredHandlers(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewCommandBus(logger)
	handler := NewMockCommandHandler()

	bus.RegisterHandler(PauseTradingCommand{}, handler)
	bus.RegisterHandler(ResumeTradingCommand{}, handler)

	registered := bus.GetRegisteredHandlers()
	if len(registered) != 2 {
		t.Fatalf("Expected 2 registered handlers, got %d: %v", len(registered), registered)
	}

	found := make(map[string]bool)
	for _, name := range registered {
		found[name] = true
	}
	for _, want := range []string{"pause_trading", "resume_trading"} {
		if !found[want] {
			t.Errorf("Expected %q in registered handlers, got %v", want, registered)
		}
	}
}
