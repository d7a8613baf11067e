package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestSchedulerFirstTickImmediate(t *testing.T) {
	ticked := make(chan struct{}, 1)
	s := NewScheduler(500*time.Millisecond, func(ctx context.Context) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}, nil, zaptest.NewLogger(t))

	start := time.Now()
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ticked:
		if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
			t.Errorf("First tick took %v, expected it before the first interval", elapsed)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("First tick never fired")
	}
}

func TestSchedulerSkipsOverlappingFirings(t *testing.T) {
	s := NewScheduler(20*time.Millisecond, func(ctx context.Context) {
		time.Sleep(90 * time.Millisecond)
	}, nil, zaptest.NewLogger(t))

	s.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	ticks, skips := s.Stats()
	if skips < 2 {
		t.Errorf("Expected skipped firings while a slow tick held the gate, got %d", skips)
	}
	// A 200ms window with 90ms ticks leaves room for at most a few runs.
	// Queued firings would push this far higher.
	if ticks > 4 {
		t.Errorf("Expected at most 4 completed ticks, got %d", ticks)
	}
}

func TestSchedulerStopWaitsForInFlightTick(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s := NewScheduler(time.Hour, func(ctx context.Context) {
		close(started)
		time.Sleep(80 * time.Millisecond)
		finished.Store(true)
	}, nil, zaptest.NewLogger(t))

	s.Start(context.Background())
	<-started
	s.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the in-flight tick finished")
	}
}

func TestSchedulerStartTwiceRunsOneLoop(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(30*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	}, nil, zaptest.NewLogger(t))

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	// One loop produces roughly 4 ticks here; a second loop would
	// double that.
	if n := ticks.Load(); n > 6 {
		t.Errorf("Expected a single timer loop, got %d ticks", n)
	}
}

func TestSchedulerStoppedIsTerminal(t *testing.T) {
	var ticks atomic.Int32
	s := NewScheduler(10*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	}, nil, zaptest.NewLogger(t))

	s.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	s.Stop()
	after := ticks.Load()

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)

	if s.IsRunning() {
		t.Error("Scheduler restarted after Stop")
	}
	if ticks.Load() != after {
		t.Error("Ticks fired after Stop")
	}
	if s.State() != "stopped" {
		t.Errorf("State = %q, want stopped", s.State())
	}
}

func TestRunExclusiveWaitsForGate(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := NewScheduler(time.Hour, func(ctx context.Context) {
		close(started)
		<-release
	}, nil, zaptest.NewLogger(t))

	s.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.RunExclusive(ctx, func(context.Context) error { return nil }); err == nil {
		t.Error("Expected a deadline error while the tick holds the gate")
	}

	close(release)

	ran := false
	if err := s.RunExclusive(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("RunExclusive failed after the gate freed up: %v", err)
	}
	if !ran {
		t.Error("Exclusive operation did not run")
	}
	s.Stop()
}

func TestRunExclusiveWorksBeforeStart(t *testing.T) {
	s := NewScheduler(time.Second, func(context.Context) {}, nil, zaptest.NewLogger(t))

	ran := false
	if err := s.RunExclusive(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("RunExclusive failed: %v", err)
	}
	if !ran {
		t.Error("Exclusive operation did not run")
	}
}
