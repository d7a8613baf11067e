// internal/store/store.go
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a record addressed by token is not in the
// active set.
var ErrNotFound = errors.New("record not found")

const (
	positionsFile = "positions.json"
	monitorsFile  = "monitors.json"
	blacklistFile = "blacklist.json"
	historyFile   = "history.json"
)

// Store owns the in-memory copies of the four persisted collections. Every
// mutation rewrites the affected collection's file in full before returning;
// accessors hand out copies, never internal slices.
type Store struct {
	mu      sync.RWMutex
	dataDir string
	logger  *zap.Logger

	positions  []*Position
	monitors   []*MonitoredAsset
	blacklist  []string
	history    []*TradeRecord
	historyMax int
}

// New creates a Store rooted at dataDir. Call Load before first use.
func New(dataDir string, historyMax int, logger *zap.Logger) *Store {
	return &Store{
		dataDir:    dataDir,
		historyMax: historyMax,
		logger:     logger,
	}
}

// Load reads all collections from disk. Missing or corrupt files leave the
// corresponding collection empty; only an unusable data directory is an
// error.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = nil
	s.monitors = nil
	s.blacklist = nil
	s.history = nil

	s.loadFile(positionsFile, &s.positions)
	s.loadFile(monitorsFile, &s.monitors)
	s.loadFile(blacklistFile, &s.blacklist)
	s.loadFile(historyFile, &s.history)

	if s.historyMax > 0 && len(s.history) > s.historyMax {
		s.history = s.history[len(s.history)-s.historyMax:]
	}

	s.logger.Info("📊 Store loaded",
		zap.Int("positions", len(s.positions)),
		zap.Int("monitors", len(s.monitors)),
		zap.Int("blacklisted", len(s.blacklist)),
		zap.Int("history", len(s.history)))
	return nil
}

func (s *Store) loadFile(name string, out interface{}) {
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read collection file, starting empty",
				zap.String("file", name),
				zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("Corrupt collection file, starting empty",
			zap.String("file", name),
			zap.Error(err))
	}
}

func (s *Store) persist(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dataDir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// SaveAll rewrites every collection. Used on shutdown.
func (s *Store) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, c := range []struct {
		name string
		data interface{}
	}{
		{positionsFile, s.positions},
		{monitorsFile, s.monitors},
		{blacklistFile, s.blacklist},
		{historyFile, s.history},
	} {
		if err := s.persist(c.name, c.data); err != nil {
			s.logger.Error("Failed to save collection", zap.String("file", c.name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		s.logger.Info("💾 All collections saved")
	}
	return firstErr
}

// Positions returns copies of all open positions in insertion order.
func (s *Store) Positions() []*Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Position, 0, len(s.positions))
	for _, p := range s.positions {
		clone := *p
		out = append(out, &clone)
	}
	return out
}

// GetPosition returns a copy of the open position for the address.
func (s *Store) GetPosition(address string) (*Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := NormalizeAddress(address)
	for _, p := range s.positions {
		if NormalizeAddress(p.Address) == key {
			clone := *p
			return &clone, true
		}
	}
	return nil, false
}

// PositionCount returns the number of open positions.
func (s *Store) PositionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// AddPosition stores a new open position. An existing position for the same
// address is replaced in place.
func (s *Store) AddPosition(position *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *position
	key := NormalizeAddress(position.Address)
	replaced := false
	for i, p := range s.positions {
		if NormalizeAddress(p.Address) == key {
			s.positions[i] = &clone
			replaced = true
			break
		}
	}
	if !replaced {
		s.positions = append(s.positions, &clone)
	}

	if err := s.persist(positionsFile, s.positions); err != nil {
		return err
	}
	s.logger.Info("📈 Position stored",
		zap.String("token", position.Address),
		zap.String("symbol", position.Symbol),
		zap.Float64("entry_price", position.EntryPrice),
		zap.Bool("replaced", replaced))
	return nil
}

// UpdatePosition replaces the stored position for the same address.
func (s *Store) UpdatePosition(position *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeAddress(position.Address)
	for i, p := range s.positions {
		if NormalizeAddress(p.Address) == key {
			clone := *position
			s.positions[i] = &clone
			if err := s.persist(positionsFile, s.positions); err != nil {
				return err
			}
			s.logger.Debug("Position updated",
				zap.String("token", position.Address),
				zap.Float64("current_price", position.CurrentPrice),
				zap.Float64("highest_price", position.HighestPrice))
			return nil
		}
	}
	return ErrNotFound
}

// RemovePosition deletes the position for the address.
func (s *Store) RemovePosition(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeAddress(address)
	for i, p := range s.positions {
		if NormalizeAddress(p.Address) == key {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			if err := s.persist(positionsFile, s.positions); err != nil {
				return err
			}
			s.logger.Info("📉 Position removed", zap.String("token", address))
			return nil
		}
	}
	return ErrNotFound
}

// Monitors returns deep copies of all monitors in insertion order.
func (s *Store) Monitors() []*MonitoredAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*MonitoredAsset, 0, len(s.monitors))
	for _, m := range s.monitors {
		out = append(out, m.Clone())
	}
	return out
}

// GetMonitor returns a deep copy of the monitor for the address.
func (s *Store) GetMonitor(address string) (*MonitoredAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := NormalizeAddress(address)
	for _, m := range s.monitors {
		if NormalizeAddress(m.Address) == key {
			return m.Clone(), true
		}
	}
	return nil, false
}

// AddMonitor stores a monitor, replacing any existing one for the same
// address.
func (s *Store) AddMonitor(monitor *MonitoredAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := monitor.Clone()
	key := NormalizeAddress(monitor.Address)
	replaced := false
	for i, m := range s.monitors {
		if NormalizeAddress(m.Address) == key {
			s.monitors[i] = clone
			replaced = true
			break
		}
	}
	if !replaced {
		s.monitors = append(s.monitors, clone)
	}

	if err := s.persist(monitorsFile, s.monitors); err != nil {
		return err
	}
	s.logger.Info("📡 Monitor stored",
		zap.String("token", monitor.Address),
		zap.String("symbol", monitor.Symbol),
		zap.String("policy", string(monitor.Policy.Kind)),
		zap.Bool("replaced", replaced))
	return nil
}

// MonitorPatch carries the fields UpdateMonitor may change. Nil fields are
// left untouched.
type MonitorPatch struct {
	HighestPrice  *float64
	LastMilestone *float64
	Active        *bool
	Policy        *Policy
}

// UpdateMonitor applies a partial update to the monitor for the address.
func (s *Store) UpdateMonitor(address string, patch MonitorPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeAddress(address)
	for _, m := range s.monitors {
		if NormalizeAddress(m.Address) != key {
			continue
		}
		if patch.HighestPrice != nil {
			m.HighestPrice = *patch.HighestPrice
		}
		if patch.LastMilestone != nil {
			m.LastMilestone = *patch.LastMilestone
		}
		if patch.Active != nil {
			m.Active = *patch.Active
		}
		if patch.Policy != nil {
			m.Policy = patch.Policy.Clone()
		}
		if err := s.persist(monitorsFile, s.monitors); err != nil {
			return err
		}
		s.logger.Debug("Monitor updated", zap.String("token", address))
		return nil
	}
	return ErrNotFound
}

// RemoveMonitor deletes the monitor for the address.
func (s *Store) RemoveMonitor(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeAddress(address)
	for i, m := range s.monitors {
		if NormalizeAddress(m.Address) == key {
			s.monitors = append(s.monitors[:i], s.monitors[i+1:]...)
			if err := s.persist(monitorsFile, s.monitors); err != nil {
				return err
			}
			s.logger.Info("📡 Monitor removed", zap.String("token", address))
			return nil
		}
	}
	return ErrNotFound
}

// AddToBlacklist records an address as excluded from automated entry.
// Adding an address twice is a no-op.
func (s *Store) AddToBlacklist(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeAddress(address)
	for _, b := range s.blacklist {
		if b == key {
			return nil
		}
	}
	s.blacklist = append(s.blacklist, key)

	if err := s.persist(blacklistFile, s.blacklist); err != nil {
		return err
	}
	s.logger.Info("🚫 Address blacklisted", zap.String("token", address))
	return nil
}

// IsBlacklisted reports whether the address is excluded from entry.
func (s *Store) IsBlacklisted(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := NormalizeAddress(address)
	for _, b := range s.blacklist {
		if b == key {
			return true
		}
	}
	return false
}

// Blacklist returns a copy of the blacklisted addresses.
func (s *Store) Blacklist() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.blacklist...)
}

// AppendHistory adds a trade record, dropping the oldest entries once the
// collection exceeds its cap.
func (s *Store) AppendHistory(record *TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	if s.historyMax > 0 && len(s.history) >= s.historyMax {
		s.history = s.history[1:]
	}
	s.history = append(s.history, &clone)

	if err := s.persist(historyFile, s.history); err != nil {
		return err
	}
	s.logger.Info("💰 Trade recorded",
		zap.String("kind", string(record.Kind)),
		zap.String("token", record.Address),
		zap.Float64("price", record.Price),
		zap.Float64("amount_usdc", record.AmountUSDC),
		zap.String("reason", record.Reason))
	return nil
}

// History returns copies of the most recent trade records in chronological
// order. A non-positive limit returns everything.
func (s *Store) History(limit int) []*TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.history) > limit {
		start = len(s.history) - limit
	}
	out := make([]*TradeRecord, 0, len(s.history)-start)
	for _, r := range s.history[start:] {
		clone := *r
		out = append(out, &clone)
	}
	return out
}
