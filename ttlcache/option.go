package ttlcache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mediascout/go-mediascout/metrics"
)

const (
	// DefaultPrefix is the namespace prefix prepended to every cache key.
	DefaultPrefix = "us_cache_"
	// DefaultTTL is used by Set when no positive ttl is given.
	DefaultTTL = 1440 * time.Minute
)

type config struct {
	clock      clock.Clock
	defaultTTL time.Duration
	metrics    *metrics.Metrics
	prefix     string
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock:      clock.New(),
		defaultTTL: DefaultTTL,
		prefix:     DefaultPrefix,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithPrefix sets the namespace prefix for all keys written by the cache.
//
// Default is "us_cache_".
func WithPrefix(prefix string) Option {
	return func(cfg *config) error {
		if prefix == "" {
			return errors.New("prefix must not be empty")
		}
		if strings.ContainsRune(prefix, '/') {
			return errors.New("prefix must not contain '/'")
		}
		cfg.prefix = prefix
		return nil
	}
}

// WithDefaultTTL sets the time-to-live used when Set is called with a ttl
// that is not positive.
//
// Default is 24 hours.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl <= 0 {
			return errors.New("default ttl must be positive")
		}
		cfg.defaultTTL = ttl
		return nil
	}
}

// WithClock sets the clock used to compute and check expiry times. Tests use
// this to move time forward.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.clock = c
		}
		return nil
	}
}

// WithMetrics records hits, misses, sets and purges in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}
