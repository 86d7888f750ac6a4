// Package logger provides the process-wide structured logger, backed by zap.
// It discards everything until Init or Set is called.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger is the global logger instance
	logger = zap.NewNop().Sugar()
	// enabled indicates if logging is enabled
	enabled bool
	// mu protects the logger and enabled flag
	mu sync.RWMutex
)

// Config returns the zap configuration selected by LOG_ENV: production
// (JSON, info level) or development (console, debug level).
func Config(env string) zap.Config {
	if env == "production" {
		return zap.NewProductionConfig()
	}
	return zap.NewDevelopmentConfig()
}

// Init initializes the global logger. If enable is false, logs are discarded.
func Init(enable bool) error {
	if !enable {
		Set(nil)
		return nil
	}
	l, err := Config(os.Getenv("LOG_ENV")).Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the global logger. A nil logger disables logging.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	if l == nil {
		logger = zap.NewNop().Sugar()
		enabled = false
		return
	}
	logger = l.Sugar()
	enabled = true
}

// Enabled returns whether logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// DebugEnabled reports whether debug entries would be written, so callers
// can skip building expensive fields.
func DebugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled && logger.Desugar().Core().Enabled(zapcore.DebugLevel)
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message with key/value pairs.
func Debug(msg string, keysAndValues ...any) {
	current().Debugw(msg, keysAndValues...)
}

// Info logs an info message with key/value pairs.
func Info(msg string, keysAndValues ...any) {
	current().Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key/value pairs.
func Warn(msg string, keysAndValues ...any) {
	current().Warnw(msg, keysAndValues...)
}

// Error logs an error message with key/value pairs.
func Error(msg string, keysAndValues ...any) {
	current().Errorw(msg, keysAndValues...)
}

// With returns a logger with the given key/value pairs attached.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return current().With(keysAndValues...)
}

// Logger returns the underlying sugared logger.
func Logger() *zap.SugaredLogger {
	return current()
}

// Sync flushes buffered entries.
func Sync() error {
	return current().Sync()
}
