package monitor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AlertType represents different types of alerts
type AlertType string

const (
	AlertTypeStopBreach AlertType = "stop_breach"
	AlertTypeMilestone  AlertType = "milestone"
	AlertTypeDrop       AlertType = "drop"
	AlertTypeBuyback    AlertType = "buyback"
	AlertTypeLowBalance AlertType = "low_balance"
)

// Alert represents a triggered alert
type Alert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	TokenMint   string    `json:"token_mint"`
	TokenSymbol string    `json:"token_symbol"`
	Message     string    `json:"message"`
	Severity    string    `json:"severity"` // "info", "warning", "critical"

	// Alert-specific data
	CurrentPrice float64 `json:"current_price,omitempty"`
	Level        float64 `json:"level,omitempty"`
}

// key identifies an alert for cooldown purposes. Leveled alerts
// (milestones, drawdowns, buyback rungs) carry the level in the key so
// a new level is never suppressed by the previous one.
func (a Alert) key() string {
	switch a.Type {
	case AlertTypeMilestone, AlertTypeDrop, AlertTypeBuyback:
		return fmt.Sprintf("%s:%s:%.2f", a.Type, a.TokenMint, a.Level)
	default:
		return fmt.Sprintf("%s:%s", a.Type, a.TokenMint)
	}
}

// AlertConfig holds alert configuration
type AlertConfig struct {
	// Alert cooldown to prevent spam
	CooldownDuration time.Duration `json:"cooldown_duration"`

	// Maximum number of alerts kept in memory
	MaxAlerts int `json:"max_alerts"`
}

// DefaultAlertConfig returns default alert configuration
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		CooldownDuration: 5 * time.Minute,
		MaxAlerts:        1000,
	}
}

// AlertManager deduplicates and dispatches alerts
type AlertManager struct {
	mu     sync.RWMutex
	config AlertConfig
	logger *zap.Logger

	// Track alerts
	alerts    []Alert
	alertedAt map[string]time.Time // alert key -> last trigger time

	// Alert handlers
	handlers []AlertHandler
}

// AlertHandler is called when an alert is triggered
type AlertHandler func(alert Alert)

// NewAlertManager creates a new alert manager
func NewAlertManager(config AlertConfig, logger *zap.Logger) *AlertManager {
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = DefaultAlertConfig().MaxAlerts
	}
	return &AlertManager{
		config:    config,
		logger:    logger,
		alerts:    make([]Alert, 0, 100),
		alertedAt: make(map[string]time.Time),
		handlers:  make([]AlertHandler, 0),
	}
}

// AddHandler adds an alert handler
func (am *AlertManager) AddHandler(handler AlertHandler) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Trigger fires an alert unless an identical one fired within the
// cooldown window. Returns false when the alert was suppressed.
func (am *AlertManager) Trigger(alert Alert) bool {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := time.Now()
	if alert.Timestamp.IsZero() {
		alert.Timestamp = now
	}
	if alert.ID == "" {
		alert.ID = fmt.Sprintf("alert_%d", now.UnixNano())
	}

	key := alert.key()
	if lastAlert, exists := am.alertedAt[key]; exists {
		if now.Sub(lastAlert) < am.config.CooldownDuration {
			am.logger.Debug("Alert suppressed by cooldown",
				zap.String("type", string(alert.Type)),
				zap.String("token", alert.TokenSymbol))
			return false
		}
	}
	am.alertedAt[key] = now

	// Add to history
	if len(am.alerts) >= am.config.MaxAlerts {
		am.alerts = am.alerts[1:]
	}
	am.alerts = append(am.alerts, alert)

	// Log alert
	switch alert.Severity {
	case "critical":
		am.logger.Error("Alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("token", alert.TokenSymbol),
			zap.String("message", alert.Message))
	case "warning":
		am.logger.Warn("Alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("token", alert.TokenSymbol),
			zap.String("message", alert.Message))
	default:
		am.logger.Info("Alert triggered",
			zap.String("type", string(alert.Type)),
			zap.String("token", alert.TokenSymbol),
			zap.String("message", alert.Message))
	}

	// Call handlers
	for _, handler := range am.handlers {
		go handler(alert)
	}

	return true
}

// GetRecentAlerts returns recent alerts
func (am *AlertManager) GetRecentAlerts(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}

	start := len(am.alerts) - limit
	if start < 0 {
		start = 0
	}

	result := make([]Alert, limit)
	copy(result, am.alerts[start:])

	return result
}

// GetAlertsByToken returns alerts for a specific token
func (am *AlertManager) GetAlertsByToken(tokenMint string) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var result []Alert
	for _, alert := range am.alerts {
		if alert.TokenMint == tokenMint {
			result = append(result, alert)
		}
	}

	return result
}

// GetConfig returns the current alert configuration
func (am *AlertManager) GetConfig() AlertConfig {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.config
}

// ClearHistory clears the alert cooldown history
func (am *AlertManager) ClearHistory() {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.alertedAt = make(map[string]time.Time)
}
