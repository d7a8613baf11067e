// internal/metrics/collector.go
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricType identifies one of the registered metric families.
type MetricType string

const (
	TicksTotalType      MetricType = "ticks_total"
	TickSkipsType       MetricType = "tick_skips"
	TickDurationType    MetricType = "tick_duration"
	ExitsTotalType      MetricType = "exits_total"
	BuysTotalType       MetricType = "buys_total"
	PriceErrorsType     MetricType = "price_errors"
	NotifyFailuresType  MetricType = "notify_failures"
	OpenPositionsType   MetricType = "open_positions"
	MonitoredAssetsType MetricType = "monitored_assets"
)

var registerOnce sync.Once

// Collector manages the keeper's metric families. The underlying metrics are
// registered with the default registry once per process, so promhttp serves
// them without extra wiring.
type Collector struct {
	metrics sync.Map
}

// NewCollector creates a metrics collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		TicksTotalType:      ticksTotal,
		TickSkipsType:       tickSkipsTotal,
		TickDurationType:    tickDuration,
		ExitsTotalType:      exitsTotal,
		BuysTotalType:       buysTotal,
		PriceErrorsType:     priceErrorsTotal,
		NotifyFailuresType:  notifyFailuresTotal,
		OpenPositionsType:   openPositions,
		MonitoredAssetsType: monitoredAssets,
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
	}
	registerOnce.Do(func() {
		for _, metric := range metricsMap {
			prometheus.MustRegister(metric)
		}
	})
}

// Reset clears all vector metrics. Useful for tests.
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

// RecordTick counts one completed tick and its duration.
func (c *Collector) RecordTick(duration time.Duration) {
	ticksTotal.Inc()
	tickDuration.Observe(duration.Seconds())
}

// RecordTickSkip counts a timer firing dropped by the overlap guard.
func (c *Collector) RecordTickSkip() {
	tickSkipsTotal.Inc()
}

// RecordExit counts a closed position by exit reason.
func (c *Collector) RecordExit(reason string) {
	exitsTotal.WithLabelValues(reason).Inc()
}

// RecordBuy counts an executed buy by trigger kind.
func (c *Collector) RecordBuy(kind string) {
	buysTotal.WithLabelValues(kind).Inc()
}

// RecordPriceError counts a failed price fetch.
func (c *Collector) RecordPriceError() {
	priceErrorsTotal.Inc()
}

// RecordNotifyFailure counts an undeliverable notification.
func (c *Collector) RecordNotifyFailure() {
	notifyFailuresTotal.Inc()
}

// SetOpenPositions updates the open-position gauge.
func (c *Collector) SetOpenPositions(count int) {
	openPositions.Set(float64(count))
}

// SetMonitoredAssets updates the active-monitor gauge.
func (c *Collector) SetMonitoredAssets(count int) {
	monitoredAssets.Set(float64(count))
}
