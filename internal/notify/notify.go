// Package notify delivers short human-facing messages to a webhook. Delivery
// is fire-and-forget: a failed post is logged and dropped, never escalated to
// the caller.
package notify

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-keeper/internal/metrics"
)

// Notifier is the narrow contract the rest of the system sends messages
// through.
type Notifier interface {
	Notify(message string)
}

// WebhookNotifier posts messages to an HTTPS webhook endpoint.
type WebhookNotifier struct {
	client    *resty.Client
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewWebhookNotifier creates a notifier for the given webhook URL. The
// collector may be nil.
func NewWebhookNotifier(webhookURL string, timeout time.Duration, collector *metrics.Collector, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(webhookURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	return &WebhookNotifier{
		client:    client,
		collector: collector,
		logger:    logger,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Notify sends the message asynchronously and returns immediately.
func (n *WebhookNotifier) Notify(message string) {
	go n.send(message)
}

func (n *WebhookNotifier) send(message string) {
	resp, err := n.client.R().
		SetBody(&webhookPayload{Content: message}).
		Post("")
	if err != nil {
		n.recordFailure()
		n.logger.Warn("⚠️ Webhook delivery failed", zap.Error(err))
		return
	}
	if resp.IsError() {
		n.recordFailure()
		n.logger.Warn("⚠️ Webhook rejected message",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return
	}
	n.logger.Debug("Notification delivered", zap.String("message", message))
}

func (n *WebhookNotifier) recordFailure() {
	if n.collector != nil {
		n.collector.RecordNotifyFailure()
	}
}

// NopNotifier drops every message. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}
