// internal/bot/events.go
package bot

import (
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TradingEvent is anything the keeper announces on the event bus.
type TradingEvent interface {
	GetType() string
	GetTimestamp() time.Time
}

// PositionOpenedEvent fires when a buy creates a new position.
type PositionOpenedEvent struct {
	TokenMint    string    `json:"token_mint"`
	TokenSymbol  string    `json:"token_symbol"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	InvestedUSDC float64   `json:"invested_usdc"`
	TxRef        string    `json:"tx_ref,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e PositionOpenedEvent) GetType() string {
	return "position_opened"
}

func (e PositionOpenedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// PositionClosedEvent fires when an exit sells a position in full.
type PositionClosedEvent struct {
	TokenMint     string    `json:"token_mint"`
	TokenSymbol   string    `json:"token_symbol"`
	ExitPrice     float64   `json:"exit_price"`
	Quantity      float64   `json:"quantity"`
	ProceedsUSDC  float64   `json:"proceeds_usdc"`
	ProfitPercent float64   `json:"profit_percent"`
	Reason        string    `json:"reason"`
	TxRef         string    `json:"tx_ref,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e PositionClosedEvent) GetType() string {
	return "position_closed"
}

func (e PositionClosedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// MilestoneReachedEvent fires when a position crosses a new gain milestone.
type MilestoneReachedEvent struct {
	TokenMint    string    `json:"token_mint"`
	TokenSymbol  string    `json:"token_symbol"`
	Level        float64   `json:"level"`
	CurrentPrice float64   `json:"current_price"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e MilestoneReachedEvent) GetType() string {
	return "milestone_reached"
}

func (e MilestoneReachedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// BuybackExecutedEvent fires after a buyback ladder level is bought.
type BuybackExecutedEvent struct {
	TokenMint   string    `json:"token_mint"`
	TokenSymbol string    `json:"token_symbol"`
	Level       int       `json:"level"`
	FillPrice   float64   `json:"fill_price"`
	SpentUSDC   float64   `json:"spent_usdc"`
	BudgetLeft  float64   `json:"budget_left"`
	TxRef       string    `json:"tx_ref,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BuybackExecutedEvent) GetType() string {
	return "buyback_executed"
}

func (e BuybackExecutedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// MonitorAddedEvent fires when an asset goes under management.
type MonitorAddedEvent struct {
	TokenMint   string    `json:"token_mint"`
	TokenSymbol string    `json:"token_symbol"`
	PolicyKind  string    `json:"policy_kind"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e MonitorAddedEvent) GetType() string {
	return "monitor_added"
}

func (e MonitorAddedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// MonitorRemovedEvent fires when an asset leaves management, either by
// explicit request or because its position exited.
type MonitorRemovedEvent struct {
	TokenMint string    `json:"token_mint"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (e MonitorRemovedEvent) GetType() string {
	return "monitor_removed"
}

func (e MonitorRemovedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// TradingPausedEvent fires when automatic buying is suspended.
type TradingPausedEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e TradingPausedEvent) GetType() string {
	return "trading_paused"
}

func (e TradingPausedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// TradingResumedEvent fires when automatic buying is re-enabled.
type TradingResumedEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e TradingResumedEvent) GetType() string {
	return "trading_resumed"
}

func (e TradingResumedEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// LowBalanceEvent fires when the native balance drops below the floor.
type LowBalanceEvent struct {
	Balance   float64   `json:"balance"`
	Minimum   float64   `json:"minimum"`
	Timestamp time.Time `json:"timestamp"`
}

func (e LowBalanceEvent) GetType() string {
	return "low_balance"
}

func (e LowBalanceEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// EventHandler handles one concrete event type.
type EventHandler interface {
	Handle(event TradingEvent) error
}

// EventSubscriber receives every event of a subscribed type name.
type EventSubscriber interface {
	OnEvent(event TradingEvent)
}

// EventBus fans events out to typed handlers and named subscribers.
// Dispatch is asynchronous, publishers never block on consumers.
type EventBus struct {
	handlers    map[reflect.Type][]EventHandler
	subscribers map[string][]EventSubscriber
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[reflect.Type][]EventHandler),
		subscribers: make(map[string][]EventSubscriber),
		logger:      logger.Named("event_bus"),
	}
}

// RegisterHandler registers a handler for the concrete type of eventType.
func (eb *EventBus) RegisterHandler(eventType TradingEvent, handler EventHandler) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	t := reflect.TypeOf(eventType)
	eb.handlers[t] = append(eb.handlers[t], handler)

	eb.logger.Debug("Event handler registered",
		zap.String("event_type", t.String()))
}

// Subscribe registers a subscriber for events with the given type name.
func (eb *EventBus) Subscribe(eventTypeName string, subscriber EventSubscriber) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	eb.subscribers[eventTypeName] = append(eb.subscribers[eventTypeName], subscriber)

	eb.logger.Debug("Event subscriber registered",
		zap.String("event_type", eventTypeName))
}

// Publish delivers the event to all matching handlers and subscribers.
func (eb *EventBus) Publish(event TradingEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	eventType := reflect.TypeOf(event)

	if handlers, exists := eb.handlers[eventType]; exists {
		for _, handler := range handlers {
			go func(h EventHandler) {
				if err := h.Handle(event); err != nil {
					eb.logger.Error("Event handler failed",
						zap.String("event_type", event.GetType()),
						zap.Error(err))
				}
			}(handler)
		}
	}

	if subscribers, exists := eb.subscribers[event.GetType()]; exists {
		for _, subscriber := range subscribers {
			go func(s EventSubscriber) {
				defer func() {
					if r := recover(); r != nil {
						eb.logger.Error("Event subscriber panicked",
							zap.String("event_type", event.GetType()),
							zap.Any("panic", r))
					}
				}()
				s.OnEvent(event)
			}(subscriber)
		}
	}

	eb.logger.Debug("Event published",
		zap.String("event_type", event.GetType()),
		zap.Time("timestamp", event.GetTimestamp()))
}

// GetSubscriberCount returns the number of subscribers for an event type name.
func (eb *EventBus) GetSubscriberCount(eventTypeName string) int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers[eventTypeName])
}

// GetHandlerCount returns the number of typed handlers for the event's type.
func (eb *EventBus) GetHandlerCount(eventType TradingEvent) int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.handlers[reflect.TypeOf(eventType)])
}
