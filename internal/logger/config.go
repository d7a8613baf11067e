// internal/logger/config.go
package logger

type Config struct {
	LogFile     string
	MaxSize     int // megabytes
	MaxAge      int // days
	MaxBackups  int // rotated files kept
	BufferSize  int // ring entries kept for the dashboard
	Compress    bool
	Development bool
}

// DefaultConfig returns the logging configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "logs/keeper.log",
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		BufferSize:  DefaultBufferSize,
		Compress:    true,
		Development: false,
	}
}
