// internal/metrics/collector_test.go
package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// The plain counters are process-wide, so tests assert deltas rather than
// absolute values.

func TestCollectorRecordTick(t *testing.T) {
	c := NewCollector()

	before := testutil.ToFloat64(ticksTotal)
	c.RecordTick(40 * time.Millisecond)
	c.RecordTick(5 * time.Millisecond)

	assert.InDelta(t, before+2, testutil.ToFloat64(ticksTotal), 1e-9, "ticks_total should grow by one per tick")
	assert.Equal(t, 1, testutil.CollectAndCount(tickDuration), "tick duration histogram should be collectable")
}

func TestCollectorRecordTickSkip(t *testing.T) {
	c := NewCollector()

	before := testutil.ToFloat64(tickSkipsTotal)
	c.RecordTickSkip()

	assert.InDelta(t, before+1, testutil.ToFloat64(tickSkipsTotal), 1e-9, "skip counter mismatch")
}

func TestCollectorExitAndBuyLabels(t *testing.T) {
	c := NewCollector()
	c.Reset()

	c.RecordExit("stop_loss")
	c.RecordExit("stop_loss")
	c.RecordExit("take_profit")
	c.RecordBuy("buyback")

	assert.InDelta(t, 2, testutil.ToFloat64(exitsTotal.WithLabelValues("stop_loss")), 1e-9, "stop_loss exits mismatch")
	assert.InDelta(t, 1, testutil.ToFloat64(exitsTotal.WithLabelValues("take_profit")), 1e-9, "take_profit exits mismatch")
	assert.InDelta(t, 1, testutil.ToFloat64(buysTotal.WithLabelValues("buyback")), 1e-9, "buyback buys mismatch")
	assert.InDelta(t, 0, testutil.ToFloat64(buysTotal.WithLabelValues("manual")), 1e-9, "unused label should stay zero")
}

func TestCollectorErrorCounters(t *testing.T) {
	c := NewCollector()

	priceBefore := testutil.ToFloat64(priceErrorsTotal)
	notifyBefore := testutil.ToFloat64(notifyFailuresTotal)

	c.RecordPriceError()
	c.RecordPriceError()
	c.RecordNotifyFailure()

	assert.InDelta(t, priceBefore+2, testutil.ToFloat64(priceErrorsTotal), 1e-9, "price error counter mismatch")
	assert.InDelta(t, notifyBefore+1, testutil.ToFloat64(notifyFailuresTotal), 1e-9, "notify failure counter mismatch")
}

func TestCollectorGauges(t *testing.T) {
	c := NewCollector()

	c.SetOpenPositions(3)
	c.SetMonitoredAssets(7)
	assert.InDelta(t, 3, testutil.ToFloat64(openPositions), 1e-9, "open positions gauge mismatch")
	assert.InDelta(t, 7, testutil.ToFloat64(monitoredAssets), 1e-9, "monitored assets gauge mismatch")

	c.SetOpenPositions(0)
	assert.InDelta(t, 0, testutil.ToFloat64(openPositions), 1e-9, "gauge should drop back to zero")
}

func TestCollectorResetClearsVectors(t *testing.T) {
	c := NewCollector()

	c.RecordExit("trailing_stop")
	c.Reset()

	assert.Equal(t, 0, testutil.CollectAndCount(exitsTotal), "reset should drop all exit label series")
	assert.Equal(t, 0, testutil.CollectAndCount(buysTotal), "reset should drop all buy label series")
}
