package logger

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultBufferSize is the ring capacity used when none is configured.
const DefaultBufferSize = 512

// LogEntry represents a single captured log line
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogBuffer keeps the most recent log entries in a thread-safe ring so the
// dashboard can serve them without reading the log files. Durability stays
// with the rotating file core, the ring only holds the tail.
type LogBuffer struct {
	mu           sync.Mutex
	entries      []LogEntry
	maxSize      int
	currentIndex int
	wrapped      bool
	totalEntries uint64
}

// NewLogBuffer creates a ring holding up to maxSize entries.
func NewLogBuffer(maxSize int) *LogBuffer {
	if maxSize <= 0 {
		maxSize = DefaultBufferSize
	}
	return &LogBuffer{
		entries: make([]LogEntry, maxSize),
		maxSize: maxSize,
	}
}

// Add records an entry, evicting the oldest once the ring is full.
func (lb *LogBuffer) Add(level, message string, fields map[string]interface{}) {
	lb.add(LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
}

// Write implements io.Writer so a zap core can tee into the ring. Each call
// carries one JSON-encoded log line.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	entry := LogEntry{Timestamp: time.Now(), Level: "info"}

	var raw map[string]interface{}
	if err := json.Unmarshal(p, &raw); err != nil {
		entry.Message = strings.TrimSpace(string(p))
	} else {
		if ts, ok := raw["timestamp"].(string); ok {
			if parsed, err := time.Parse("2006-01-02T15:04:05.000Z0700", ts); err == nil {
				entry.Timestamp = parsed
			}
			delete(raw, "timestamp")
		}
		if level, ok := raw["level"].(string); ok {
			entry.Level = level
			delete(raw, "level")
		}
		if msg, ok := raw["msg"].(string); ok {
			entry.Message = msg
			delete(raw, "msg")
		}
		if len(raw) > 0 {
			entry.Fields = raw
		}
	}

	lb.add(entry)
	return len(p), nil
}

func (lb *LogBuffer) add(entry LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.currentIndex] = entry
	lb.currentIndex = (lb.currentIndex + 1) % lb.maxSize
	if lb.currentIndex == 0 {
		lb.wrapped = true
	}
	lb.totalEntries++
}

// GetRecentLogs returns up to limit entries, oldest first. A non-positive
// limit returns everything buffered.
func (lb *LogBuffer) GetRecentLogs(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.currentIndex
	start := 0
	if lb.wrapped {
		count = lb.maxSize
		start = lb.currentIndex
	}

	skip := 0
	if limit > 0 && limit < count {
		skip = count - limit
	}

	logs := make([]LogEntry, 0, count-skip)
	for i := skip; i < count; i++ {
		logs = append(logs, lb.entries[(start+i)%lb.maxSize])
	}
	return logs
}

// TotalEntries returns how many entries the buffer has seen in total.
func (lb *LogBuffer) TotalEntries() uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.totalEntries
}
