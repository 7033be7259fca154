// Package config loads the mockingjay command's settings from the
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/hamchapman/mockingjay/journal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the command's settings.
type Config struct {
	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string `env:"MOCKINGJAY_LOG_LEVEL" envDefault:"info"`

	// Journal is the path of a bbolt journal that records every request.
	// Empty keeps the journal in memory.
	Journal string `env:"MOCKINGJAY_JOURNAL"`
}

// Load reads Config from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Logger builds a production logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// OpenJournal opens the configured journal.
func (c Config) OpenJournal() (journal.Journal, error) {
	if c.Journal == "" {
		return journal.NewMemoryJournal(), nil
	}
	return journal.NewBboltJournal(c.Journal)
}
