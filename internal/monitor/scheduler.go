package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/metrics"
	"go.uber.org/zap"
)

// TickFunc runs a single pass of position management work.
type TickFunc func(ctx context.Context)

// Scheduler drives the keeper loop on a fixed interval. A one-slot busy
// gate guarantees that at most one tick or one exclusive manual
// operation holds the loop at any moment. A timer firing while the gate
// is held is skipped outright, never queued.
type Scheduler struct {
	interval  time.Duration
	tick      TickFunc
	collector *metrics.Collector
	logger    *zap.Logger

	gate chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup

	ticks      atomic.Uint64
	skips      atomic.Uint64
	lastTickNs atomic.Int64
}

// NewScheduler creates a scheduler. The gate exists from construction,
// so RunExclusive works even before Start.
func NewScheduler(interval time.Duration, tick TickFunc, collector *metrics.Collector, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		interval:  interval,
		tick:      tick,
		collector: collector,
		logger:    logger,
		gate:      make(chan struct{}, 1),
	}
}

// Start launches the timer loop. The first tick fires immediately,
// subsequent ones every interval. Starting an already running or
// stopped scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		s.logger.Debug("Scheduler start ignored",
			zap.Bool("running", s.running),
			zap.Bool("stopped", s.stopped))
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.logger.Info("🔄 Scheduler started", zap.Duration("interval", s.interval))

	// The loop watches loopCtx so Stop can halt scheduling, while ticks
	// get the parent ctx and are only interrupted by process shutdown.
	go s.loop(loopCtx, ctx)
}

func (s *Scheduler) loop(loopCtx, tickCtx context.Context) {
	defer close(s.done)

	// First tick does not wait for the interval.
	s.dispatch(tickCtx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatch(tickCtx)
		case <-loopCtx.Done():
			return
		}
	}
}

// dispatch runs one tick behind the gate. When the gate is held the
// firing is dropped on the spot, so a slow tick never builds a backlog.
func (s *Scheduler) dispatch(ctx context.Context) {
	select {
	case s.gate <- struct{}{}:
	default:
		s.skips.Add(1)
		if s.collector != nil {
			s.collector.RecordTickSkip()
		}
		s.logger.Debug("Tick skipped, previous run still in progress")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.gate }()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Tick panicked", zap.Any("panic", r))
			}
		}()

		start := time.Now()
		s.tick(ctx)
		s.ticks.Add(1)
		s.lastTickNs.Store(time.Now().UnixNano())
		if s.collector != nil {
			s.collector.RecordTick(time.Since(start))
		}
	}()
}

// Stop halts the timer and waits for an in-flight tick to finish. The
// scheduler cannot be restarted afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if !wasRunning {
		s.logger.Debug("Scheduler stopped before start")
		return
	}

	cancel()
	<-done

	// Let the tick that is already underway run to completion instead
	// of cutting it off mid-trade.
	doneChan := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		s.logger.Info("🛑 Scheduler stopped")
	case <-time.After(30 * time.Second):
		s.logger.Warn("Timeout waiting for in-flight tick to finish")
	}
}

// RunExclusive executes fn while holding the tick gate, so manual
// operations never interleave with a scheduled tick. It blocks until
// the gate frees up or ctx is done.
func (s *Scheduler) RunExclusive(ctx context.Context, fn func(context.Context) error) error {
	select {
	case s.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.gate }()
	return fn(ctx)
}

// IsRunning reports whether the timer loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// State reports the lifecycle phase for status surfaces.
func (s *Scheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.stopped:
		return "stopped"
	case !s.running:
		return "idle"
	case len(s.gate) > 0:
		return "running"
	default:
		return "idle"
	}
}

// Stats returns completed tick and skipped firing counts.
func (s *Scheduler) Stats() (ticks, skips uint64) {
	return s.ticks.Load(), s.skips.Load()
}

// LastTickAt returns the completion time of the most recent tick, or
// the zero time when no tick has finished yet.
func (s *Scheduler) LastTickAt() time.Time {
	ns := s.lastTickNs.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
