// internal/bot/events_test.go
package bot

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type MockEventHandler struct {
	handled []TradingEvent
	errors  map[string]error
	mu      sync.Mutex
}

func NewMockEventHandler() *MockEventHandler {
	return &MockEventHandler{
		handled: make([]TradingEvent, 0),
		errors:  make(map[string]error),
	}
}

func (h *MockEventHandler) Handle(event TradingEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if err, exists := h.errors[event.GetType()]; exists {
		return err
	}
	return nil
}

func (h *MockEventHandler) SetError(eventType string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors[eventType] = err
}

func (h *MockEventHandler) GetHandledEvents() []TradingEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TradingEvent(nil), h.handled...)
}

type MockEventSubscriber struct {
	received []TradingEvent
	mu       sync.Mutex
}

func NewMockEventSubscriber() *MockEventSubscriber {
	return &MockEventSubscriber{received: make([]TradingEvent, 0)}
}

func (s *MockEventSubscriber) OnEvent(event TradingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, event)
}

func (s *MockEventSubscriber) GetReceivedEvents() []TradingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TradingEvent(nil), s.received...)
}

func TestPositionClosedEvent_Methods(t *testing.T) {
	timestamp := time.Now()
	event := PositionClosedEvent{
		TokenMint:     "test_mint",
		TokenSymbol:   "TEST",
		ExitPrice:     1.5,
		Quantity:      100.0,
		ProceedsUSDC:  150.0,
		ProfitPercent: 50.0,
		Reason:        "trailing-stop",
		Timestamp:     timestamp,
	}

	if event.GetType() != "position_closed" {
		t.Errorf("Expected type 'position_closed', got '%s'", event.GetType())
	}

	if !event.GetTimestamp().Equal(timestamp) {
		t.Errorf("Expected timestamp %v, got %v", timestamp, event.GetTimestamp())
	}
}

func TestEventBus_RegisterHandler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)
	handler := NewMockEventHandler()

	bus.RegisterHandler(PositionClosedEvent{}, handler)

	count := bus.GetHandlerCount(PositionClosedEvent{})
	if count != 1 {
		t.Errorf("Expected 1 registered handler, got %d", count)
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)
	subscriber := NewMockEventSubscriber()

	bus.Subscribe("position_closed", subscriber)
	bus.Subscribe("buyback_executed", subscriber)

	if count := bus.GetSubscriberCount("position_closed"); count != 1 {
		t.Errorf("Expected 1 subscriber for 'position_closed', got %d", count)
	}
	if count := bus.GetSubscriberCount("buyback_executed"); count != 1 {
		t.Errorf("Expected 1 subscriber for 'buyback_executed', got %d", count)
	}
}

func TestEventBus_Publish_Handler(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)
	handler := NewMockEventHandler()

	bus.RegisterHandler(PositionClosedEvent{}, handler)

	bus.Publish(PositionClosedEvent{
		TokenMint:   "test_mint",
		TokenSymbol: "TEST",
		ExitPrice:   1.5,
		Reason:      "manual",
		Timestamp:   time.Now(),
	})

	// Dispatch is asynchronous.
	time.Sleep(100 * time.Millisecond)

	handled := handler.GetHandledEvents()
	if len(handled) != 1 {
		t.Fatalf("Expected 1 handled event, got %d", len(handled))
	}
	if handled[0].GetType() != "position_closed" {
		t.Errorf("Expected 'position_closed' event, got '%s'", handled[0].GetType())
	}
}

func TestEventBus_Publish_Subscriber(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)
	subscriber := NewMockEventSubscriber()

	bus.Subscribe("buyback_executed", subscriber)

	bus.Publish(BuybackExecutedEvent{
		TokenMint:   "test_mint",
		TokenSymbol: "TEST",
		Level:       2,
		FillPrice:   0.8,
		SpentUSDC:   50,
		Timestamp:   time.Now(),
	})

	time.Sleep(100 * time.Millisecond)

	received := subscriber.GetReceivedEvents()
	if len(received) != 1 {
		t.Fatalf("Expected 1 received event, got %d", len(received))
	}
	if received[0].GetType() != "buyback_executed" {
		t.Errorf("Expected 'buyback_executed' event, got '%s'", received[0].GetType())
	}
}

func TestEventBus_Publish_OnlyMatchingSubscribers(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)

	closedSub := NewMockEventSubscriber()
	pausedSub := NewMockEventSubscriber()

	bus.Subscribe("position_closed", closedSub)
	bus.Subscribe("trading_paused", pausedSub)

	bus.Publish(PositionClosedEvent{TokenMint: "test_mint", Timestamp: time.Now()})

	time.Sleep(100 * time.Millisecond)

	if got := len(closedSub.GetReceivedEvents()); got != 1 {
		t.Errorf("Expected 1 event for position_closed subscriber, got %d", got)
	}
	if got := len(pausedSub.GetReceivedEvents()); got != 0 {
		t.Errorf("Expected 0 events for trading_paused subscriber, got %d", got)
	}
}

func TestEventBus_Publish_NoSubscribers(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)

	// Publishing into the void must not panic.
	bus.Publish(TradingPausedEvent{Timestamp: time.Now()})

	if count := bus.GetSubscriberCount("trading_paused"); count != 0 {
		t.Errorf("Expected 0 subscribers, got %d", count)
	}
}

func TestEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)

	failing := NewMockEventHandler()
	failing.SetError("position_closed", errors.New("handler boom"))
	healthy := NewMockEventHandler()

	bus.RegisterHandler(PositionClosedEvent{}, failing)
	bus.RegisterHandler(PositionClosedEvent{}, healthy)

	bus.Publish(PositionClosedEvent{TokenMint: "test_mint", Timestamp: time.Now()})

	time.Sleep(100 * time.Millisecond)

	if got := len(healthy.GetHandledEvents()); got != 1 {
		t.Errorf("Expected healthy handler to run despite failing sibling, got %d events", got)
	}
}

type panickingSubscriber struct{}

func (panickingSubscriber) OnEvent(TradingEvent) {
	panic("subscriber boom")
}

func TestEventBus_SubscriberPanicIsContained(t *testing.T) {
	logger := zaptest.NewLogger(t)
	bus := NewEventBus(logger)

	survivor := NewMockEventSubscriber()
	bus.Subscribe("monitor_added", panickingSubscriber{})
	bus.Subscribe("monitor_added", survivor)

	bus.Publish(MonitorAddedEvent{TokenMint: "test_mint", Timestamp: time.Now()})

	time.Sleep(100 * time.Millisecond)

	if got := len(survivor.GetReceivedEvents()); got != 1 {
		t.Errorf("Expected surviving subscriber to receive the event, got %d", got)
	}
}
