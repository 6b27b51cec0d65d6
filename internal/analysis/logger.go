// Package analysis wires the dashboard service together: the long running
// realtime mode and the one shot leaderboard, hex map and stats reports.
package analysis

import (
	"log/slog"
	"sync"

	"github.com/qubitrhythm/disensor/internal/conf"
	"github.com/qubitrhythm/disensor/internal/logging"
)

var (
	loggerMu    sync.RWMutex
	logger      = logging.ForService("analysis")
	closeLogger func() error
)

// InitLogger switches the package logger to a rotated file when main.log is
// enabled. The console logger stays in place when the file cannot be opened.
func InitLogger(settings *conf.Settings) {
	logCfg := settings.Main.Log
	if !logCfg.Enabled || logCfg.Path == "" {
		return
	}

	fileLogger, closer, err := logging.NewFileLogger(logCfg.Path, "analysis", logging.ParseLevel(logCfg.Level))
	if err != nil {
		GetLogger().Warn("failed to open log file, using console logging", "path", logCfg.Path, "error", err)
		return
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = fileLogger
	closeLogger = closer
}

// GetLogger returns the package logger.
func GetLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// CloseLogger closes the log file and releases resources.
func CloseLogger() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if closeLogger == nil {
		return nil
	}
	err := closeLogger()
	closeLogger = nil
	logger = logging.ForService("analysis")
	return err
}
