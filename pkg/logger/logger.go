// Package logger is the process-wide structured logger. It keeps a small
// printf-style facade over zap so call sites stay terse.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the logger. format is "json" (production encoding) or
// "console" (human readable).
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// Replace swaps the process logger. Tests use it with zap.NewNop or an
// observer core.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
}

// L returns the underlying zap logger, building a console logger at info
// level if Init was never called.
func L() *zap.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
		sugar = l.Sugar()
	}
	return base
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	L()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes buffered entries.
func Sync() error {
	return L().Sync()
}

func Infof(format string, v ...interface{}) {
	S().Infof(format, v...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	S().Infow(msg, keysAndValues...)
}

func Debugf(format string, v ...interface{}) {
	S().Debugf(format, v...)
}

func Warnf(format string, v ...interface{}) {
	S().Warnf(format, v...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	S().Warnw(msg, keysAndValues...)
}

func Errorf(format string, v ...interface{}) {
	S().Errorf(format, v...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	S().Errorw(msg, keysAndValues...)
}
