// internal/metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solana_keeper",
			Name:      "ticks_total",
			Help:      "Total number of completed scheduler ticks",
		},
	)

	tickSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solana_keeper",
			Name:      "tick_skips_total",
			Help:      "Timer firings skipped because a tick was still running",
		},
	)

	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "solana_keeper",
			Name:      "tick_duration_seconds",
			Help:      "Tick duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solana_keeper",
			Name:      "exits_total",
			Help:      "Positions closed, labeled by exit reason",
		},
		[]string{"reason"},
	)

	buysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solana_keeper",
			Name:      "buys_total",
			Help:      "Buys executed, labeled by trigger kind",
		},
		[]string{"kind"},
	)

	priceErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solana_keeper",
			Name:      "price_errors_total",
			Help:      "Price fetches that failed and skipped their item",
		},
	)

	notifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solana_keeper",
			Name:      "notify_failures_total",
			Help:      "Webhook notifications that could not be delivered",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solana_keeper",
			Name:      "open_positions",
			Help:      "Currently open positions",
		},
	)

	monitoredAssets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solana_keeper",
			Name:      "monitored_assets",
			Help:      "Currently active monitors",
		},
	)
)
