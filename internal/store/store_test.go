package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s := New(dir, 100, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func testMonitor(address string) *MonitoredAsset {
	return &MonitoredAsset{
		Address: address,
		Symbol:  "TEST",
		Policy: Policy{
			Kind: PolicyTrailing,
			Trailing: &TrailingPolicy{
				EntryPrice:          1.0,
				DefaultTrailPercent: 20,
			},
		},
		HighestPrice: 1.0,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	}
}

func testPosition(address string) *Position {
	return &Position{
		Address:      address,
		Symbol:       "TEST",
		EntryPrice:   1.0,
		CurrentPrice: 1.0,
		HighestPrice: 1.0,
		Quantity:     1000,
		InvestedUSDC: 100,
		OpenedAt:     time.Now().UTC(),
	}
}

func TestStoreLoadEmptyDir(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	if len(s.Positions()) != 0 || len(s.Monitors()) != 0 || len(s.History(0)) != 0 {
		t.Error("Expected empty collections on a fresh data dir")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	if err := s.AddPosition(testPosition("TokenAAA")); err != nil {
		t.Fatalf("AddPosition failed: %v", err)
	}
	if err := s.AddMonitor(testMonitor("TokenBBB")); err != nil {
		t.Fatalf("AddMonitor failed: %v", err)
	}
	if err := s.AddToBlacklist("TokenCCC"); err != nil {
		t.Fatalf("AddToBlacklist failed: %v", err)
	}
	if err := s.AppendHistory(&TradeRecord{
		Kind:      TradeBuy,
		Address:   "TokenAAA",
		Price:     1.0,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	// A second store over the same directory must see the same state.
	reloaded := newTestStore(t, dir)
	if len(reloaded.Positions()) != 1 {
		t.Errorf("Expected 1 position after reload, got %d", len(reloaded.Positions()))
	}
	if _, ok := reloaded.GetMonitor("TokenBBB"); !ok {
		t.Error("Expected monitor to survive reload")
	}
	if !reloaded.IsBlacklisted("tokenccc") {
		t.Error("Expected blacklist lookup to be case-insensitive after reload")
	}
	if len(reloaded.History(0)) != 1 {
		t.Errorf("Expected 1 history entry after reload, got %d", len(reloaded.History(0)))
	}

	// No temp files may be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("Leftover temp file: %s", e.Name())
		}
	}
}

func TestStoreCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, positionsFile), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	s := newTestStore(t, dir)
	if len(s.Positions()) != 0 {
		t.Error("Expected empty positions after corrupt file")
	}

	// The store must still accept writes afterwards.
	if err := s.AddPosition(testPosition("TokenAAA")); err != nil {
		t.Fatalf("AddPosition after corrupt load failed: %v", err)
	}
}

func TestAddMonitorReplacesSameAddress(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	if err := s.AddMonitor(testMonitor("TokenAAA")); err != nil {
		t.Fatalf("AddMonitor failed: %v", err)
	}

	replacement := testMonitor("TOKENaaa")
	replacement.Policy = Policy{
		Kind: PolicyFlat,
		Flat: &FlatPolicy{EntryPrice: 1.0, StopLossPercent: 5, TakeProfitPercent: 20},
	}
	if err := s.AddMonitor(replacement); err != nil {
		t.Fatalf("AddMonitor replacement failed: %v", err)
	}

	monitors := s.Monitors()
	if len(monitors) != 1 {
		t.Fatalf("Expected 1 monitor after replacement, got %d", len(monitors))
	}
	if monitors[0].Policy.Kind != PolicyFlat {
		t.Errorf("Expected replacement policy, got %s", monitors[0].Policy.Kind)
	}
}

func TestUpdateMonitorPatch(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if err := s.AddMonitor(testMonitor("TokenAAA")); err != nil {
		t.Fatalf("AddMonitor failed: %v", err)
	}

	highest := 2.5
	milestone := 50.0
	if err := s.UpdateMonitor("tokenaaa", MonitorPatch{
		HighestPrice:  &highest,
		LastMilestone: &milestone,
	}); err != nil {
		t.Fatalf("UpdateMonitor failed: %v", err)
	}

	m, ok := s.GetMonitor("TokenAAA")
	if !ok {
		t.Fatal("Monitor disappeared after patch")
	}
	if m.HighestPrice != 2.5 || m.LastMilestone != 50 {
		t.Errorf("Patch not applied: highest=%v milestone=%v", m.HighestPrice, m.LastMilestone)
	}
	if !m.Active {
		t.Error("Unpatched field changed")
	}

	if err := s.UpdateMonitor("missing", MonitorPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMonitorSnapshotIsolation(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if err := s.AddMonitor(testMonitor("TokenAAA")); err != nil {
		t.Fatalf("AddMonitor failed: %v", err)
	}

	m, _ := s.GetMonitor("TokenAAA")
	m.Policy.Trailing.EntryPrice = 999
	m.HighestPrice = 999

	fresh, _ := s.GetMonitor("TokenAAA")
	if fresh.Policy.Trailing.EntryPrice == 999 || fresh.HighestPrice == 999 {
		t.Error("Mutating a snapshot leaked into the store")
	}
}

func TestRemovePosition(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if err := s.AddPosition(testPosition("TokenAAA")); err != nil {
		t.Fatalf("AddPosition failed: %v", err)
	}

	if err := s.RemovePosition("TOKENAAA"); err != nil {
		t.Fatalf("RemovePosition failed: %v", err)
	}
	if s.PositionCount() != 0 {
		t.Error("Expected no positions after removal")
	}
	if err := s.RemovePosition("TokenAAA"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHistoryCapDropsOldest(t *testing.T) {
	s := New(t.TempDir(), 5, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 8; i++ {
		err := s.AppendHistory(&TradeRecord{
			Kind:      TradeSell,
			Address:   "TokenAAA",
			Price:     float64(i),
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}

	history := s.History(0)
	if len(history) != 5 {
		t.Fatalf("Expected history capped at 5, got %d", len(history))
	}
	if history[0].Price != 3 {
		t.Errorf("Expected oldest surviving entry price 3, got %v", history[0].Price)
	}

	limited := s.History(2)
	if len(limited) != 2 || limited[1].Price != 7 {
		t.Errorf("Expected last two entries, got %+v", limited)
	}
}

func TestBlacklistIdempotent(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	if err := s.AddToBlacklist("TokenAAA"); err != nil {
		t.Fatalf("AddToBlacklist failed: %v", err)
	}
	if err := s.AddToBlacklist("tokenAAA"); err != nil {
		t.Fatalf("Duplicate AddToBlacklist failed: %v", err)
	}
	if len(s.Blacklist()) != 1 {
		t.Errorf("Expected 1 blacklist entry, got %d", len(s.Blacklist()))
	}
}

func TestSaveAllWritesEveryCollection(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	if err := s.SaveAll(); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	for _, name := range []string{positionsFile, monitorsFile, blacklistFile, historyFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist after SaveAll: %v", name, err)
		}
	}
}
