// Package logger provides the process-wide zap logger.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "civicbudget-api"

var (
	mu    sync.RWMutex
	sugar *zap.SugaredLogger
	level = zap.NewAtomicLevel()
)

// Init builds the global logger for env. Production writes JSON at info,
// "test" discards everything, and any other value writes colored console
// output at debug. LOG_LEVEL overrides the level when set.
func Init(env string) {
	var (
		base *zap.Logger
		err  error
	)
	switch env {
	case "test":
		base = zap.NewNop()
	case "production":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		level.SetLevel(zapcore.InfoLevel)
		cfg.Level = level
		base, err = cfg.Build(zap.Fields(zap.String("service", serviceName)))
	default:
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		level.SetLevel(zapcore.DebugLevel)
		cfg.Level = level
		base, err = cfg.Build()
	}
	if err != nil {
		base = zap.NewNop()
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		_ = SetLevel(lvl)
	}

	mu.Lock()
	sugar = base.Sugar()
	mu.Unlock()
}

// SetLevel changes the minimum level of the running logger, e.g. "warn".
func SetLevel(name string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Get returns the global sugared logger, initializing a development logger on first use.
func Get() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		return s
	}
	Init("development")
	return Get()
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Replace swaps the global logger and returns a func that restores the old one.
// Tests use it with zaptest/observer to assert on log output.
func Replace(l *zap.Logger) (restore func()) {
	mu.Lock()
	prev := sugar
	sugar = l.Sugar()
	mu.Unlock()
	return func() {
		mu.Lock()
		sugar = prev
		mu.Unlock()
	}
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s != nil {
		_ = s.Sync()
	}
}
