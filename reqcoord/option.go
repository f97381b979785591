package reqcoord

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/mediascout/go-mediascout/metrics"
)

// DefaultMaxConcurrent is the default number of queued fetches allowed to run
// at the same time.
const DefaultMaxConcurrent = 4

type config struct {
	clock         clock.Clock
	maxConcurrent int
	metrics       *metrics.Metrics
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock:         clock.New(),
		maxConcurrent: DefaultMaxConcurrent,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithMaxConcurrent sets the maximum number of queued fetches that execute at
// the same time. Requests that do not use the queue are not counted.
//
// Default is 4.
func WithMaxConcurrent(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return errors.New("max concurrent must be at least 1")
		}
		cfg.maxConcurrent = n
		return nil
	}
}

// WithClock sets the clock used for response timestamps and fetch timing.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}

// WithMetrics records request outcomes, fetch latency and queue depth in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}
