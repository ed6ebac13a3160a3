// Package config carries the sync core's tuning knobs. Values come from
// environment variables merged over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the sync engine. Zero values are filled from defaults during
// Load.
type Config struct {
	// ChunkLimit is the remote API's documented per-request item cap; push
	// batches above it are split into chunks of at most this size.
	ChunkLimit int `env:"ICECREAM_CHUNK_LIMIT"`
	// MaxRetries caps how many times one logical operation is rescheduled
	// on server-suggested backoff before the last error surfaces.
	MaxRetries int `env:"ICECREAM_MAX_RETRIES"`
	// DebounceWindow coalesces bursts of local-store registration calls.
	DebounceWindow time.Duration `env:"ICECREAM_DEBOUNCE_WINDOW"`
	// AccountPollInterval drives the account-status observation loop.
	AccountPollInterval time.Duration `env:"ICECREAM_ACCOUNT_POLL_INTERVAL"`
	// QueueDepth is the backlog of the serial local-write queue.
	QueueDepth int `env:"ICECREAM_QUEUE_DEPTH"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChunkLimit:          400,
		MaxRetries:          5,
		DebounceWindow:      300 * time.Millisecond,
		AccountPollInterval: 30 * time.Second,
		QueueDepth:          128,
	}
}

var ErrInvalidConfig = errors.New("invalid config")

func (c Config) validate() error {
	if c.ChunkLimit <= 0 {
		return fmt.Errorf("%w: chunk limit must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("%w: debounce window must not be negative", ErrInvalidConfig)
	}
	if c.AccountPollInterval <= 0 {
		return fmt.Errorf("%w: account poll interval must be positive", ErrInvalidConfig)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("%w: queue depth must be positive", ErrInvalidConfig)
	}
	return nil
}

// Load builds the effective configuration: environment variables win over
// defaults.
func Load() (Config, error) {
	return newConfigBuilder().
		withEnv().
		withDefaults().
		build()
}
