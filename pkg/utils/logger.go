// Package utils holds process-wide helpers shared by every package.
package utils

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
)

// InitLogger installs the process logger. level is one of debug, info,
// warn, error; anything else means info.
func InitLogger(level ...string) {
	lvl := slog.LevelInfo
	if len(level) > 0 {
		lvl = ParseLevel(level[0])
	}

	l := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.DateTime,
	}))

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	slog.SetDefault(l)
}

// GetLogger returns the process logger, falling back to slog's default when
// InitLogger has not run (tests).
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
