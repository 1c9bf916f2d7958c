// Package logger provides the process-wide structured logger. It wraps a
// zap sugared logger behind package-level functions so call sites stay
// short.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop().Sugar()
)

// Initialize installs the process logger. When debug is true the logger
// uses the human-oriented development encoding at debug level; otherwise it
// emits production JSON at info level.
func Initialize(debug bool) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	built, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap's stock configs only fail on bad output paths
		panic(err)
	}

	mu.Lock()
	defer mu.Unlock()
	log = built.Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = log.Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs at debug level.
func Debug(args ...any) { current().Debug(args...) }

// Info logs at info level.
func Info(args ...any) { current().Info(args...) }

// Warn logs at warn level.
func Warn(args ...any) { current().Warn(args...) }

// Error logs at error level.
func Error(args ...any) { current().Error(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { current().Debugf(format, args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { current().Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { current().Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { current().Errorf(format, args...) }

// Fatalf logs a formatted message and exits.
func Fatalf(format string, args ...any) { current().Fatalf(format, args...) }
