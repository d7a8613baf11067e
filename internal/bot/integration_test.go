// internal/bot/integration_test.go
package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/monitor"
	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap/zaptest"
)

// TestCommandEventIntegration drives manual commands through the bus into the
// real service and checks that the matching events come out the other side.
func TestCommandEventIntegration(t *testing.T) {
	f := newServiceFixture(t)

	opened := NewMockEventSubscriber()
	closed := NewMockEventSubscriber()
	removed := NewMockEventSubscriber()
	f.events.Subscribe("position_opened", opened)
	f.events.Subscribe("position_closed", closed)
	f.events.Subscribe("monitor_removed", removed)

	handlers := f.commands.GetRegisteredHandlers()
	if len(handlers) != 7 {
		t.Errorf("Expected 7 registered handlers, got %d", len(handlers))
	}

	t.Run("ManualBuyOpensPosition", func(t *testing.T) {
		cmd := ManualBuyCommand{
			TokenMint: "TokenAAA12345678",
			Timestamp: time.Now(),
		}

		if err := f.commands.Send(context.Background(), cmd); err != nil {
			t.Fatalf("Failed to buy: %v", err)
		}

		// Event dispatch is asynchronous.
		time.Sleep(150 * time.Millisecond)

		received := opened.GetReceivedEvents()
		if len(received) != 1 {
			t.Fatalf("Expected 1 position_opened event, got %d", len(received))
		}
		event, ok := received[0].(PositionOpenedEvent)
		if !ok {
			t.Fatalf("Expected PositionOpenedEvent, got %T", received[0])
		}
		if event.TokenMint != "TokenAAA12345678" {
			t.Errorf("Event carries wrong token: %s", event.TokenMint)
		}
		if event.InvestedUSDC != 100 {
			t.Errorf("Expected 25%% of the 400 USDC balance invested, got %.2f", event.InvestedUSDC)
		}
	})

	t.Run("ForceSellClosesAndRetires", func(t *testing.T) {
		f.addTrailingMonitor(t, "TokenAAA12345678", 1.0)
		f.swaps.fillPrice = 1.5

		cmd := ForceSellCommand{
			TokenMint:  "TokenAAA12345678",
			Percentage: 100,
			Timestamp:  time.Now(),
		}

		if err := f.commands.Send(context.Background(), cmd); err != nil {
			t.Fatalf("Failed to sell: %v", err)
		}

		time.Sleep(150 * time.Millisecond)

		if _, ok := f.store.GetPosition("TokenAAA12345678"); ok {
			t.Error("Position should be gone after the sell")
		}

		if got := len(closed.GetReceivedEvents()); got != 1 {
			t.Errorf("Expected 1 position_closed event, got %d", got)
		}
		if got := len(removed.GetReceivedEvents()); got != 1 {
			t.Errorf("Expected 1 monitor_removed event, got %d", got)
		}
	})

	t.Run("PauseBlocksBuying", func(t *testing.T) {
		if err := f.commands.Send(context.Background(), PauseTradingCommand{Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to pause: %v", err)
		}

		err := f.commands.Send(context.Background(), ManualBuyCommand{
			TokenMint: "TokenBBB87654321",
			Timestamp: time.Now(),
		})
		if !errors.Is(err, monitor.ErrTradingPaused) {
			t.Fatalf("Expected ErrTradingPaused, got %v", err)
		}

		if err := f.commands.Send(context.Background(), ResumeTradingCommand{Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to resume: %v", err)
		}
	})

	t.Run("BlacklistStopsRebuy", func(t *testing.T) {
		if err := f.commands.Send(context.Background(), BlacklistTokenCommand{
			TokenMint: "TokenAAA12345678",
			Timestamp: time.Now(),
		}); err != nil {
			t.Fatalf("Failed to blacklist: %v", err)
		}

		err := f.commands.Send(context.Background(), ManualBuyCommand{
			TokenMint: "TokenAAA12345678",
			Timestamp: time.Now(),
		})
		if err == nil {
			t.Fatal("Expected the blacklist to refuse the buy")
		}
	})
}

// TestExitHistoryRoundTrip closes a position and reads the trade back through
// the same store a fresh process would load.
func TestExitHistoryRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	f.addPosition(t, "TokenAAA", 1.0, 100)
	f.swaps.fillPrice = 1.2

	if err := f.service.ExecuteExit(context.Background(), "TokenAAA", store.ReasonTakeProfit); err != nil {
		t.Fatalf("ExecuteExit failed: %v", err)
	}

	reloaded := store.New(f.dataDir, 100, zaptest.NewLogger(t))
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	history := reloaded.History(0)
	if len(history) != 1 {
		t.Fatalf("Expected 1 persisted trade, got %d", len(history))
	}
	if history[0].Reason != store.ReasonTakeProfit {
		t.Errorf("Unexpected persisted reason: %s", history[0].Reason)
	}
	if reloaded.PositionCount() != 0 {
		t.Error("Closed position must not survive a reload")
	}
}

func TestEventBusThroughput(t *testing.T) {
	logger := zaptest.NewLogger(t)
	eventBus := NewEventBus(logger)

	subscribers := make([]*MockEventSubscriber, 5)
	for i := 0; i < 5; i++ {
		subscribers[i] = NewMockEventSubscriber()
		eventBus.Subscribe("milestone_reached", subscribers[i])
	}

	start := time.Now()
	eventCount := 100

	for i := 0; i < eventCount; i++ {
		eventBus.Publish(MilestoneReachedEvent{
			TokenMint:    "TokenAAA",
			TokenSymbol:  "AAA",
			Level:        float64(i),
			CurrentPrice: 1.0 + float64(i)/100,
			Timestamp:    time.Now(),
		})
	}

	// Give the dispatch goroutines time to drain.
	time.Sleep(500 * time.Millisecond)

	duration := time.Since(start)
	t.Logf("Published %d events in %v", eventCount, duration)

	for i, subscriber := range subscribers {
		received := subscriber.GetReceivedEvents()
		if len(received) != eventCount {
			t.Errorf("Subscriber %d received %d events, expected %d", i, len(received), eventCount)
		}
	}
}
