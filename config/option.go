package config

import (
	"fmt"

	"github.com/ipfs/go-datastore"
)

type config struct {
	services map[string]ServiceConfig
	store    datastore.Datastore
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		services: defaults(),
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithService merges sc into the default settings of the named service. Only
// non-zero fields of sc replace defaults.
func WithService(name string, sc ServiceConfig) Option {
	return func(cfg *config) error {
		if name == "" {
			return fmt.Errorf("empty service name")
		}
		cfg.services[name] = cfg.services[name].merge(sc)
		return nil
	}
}

// WithDatastore persists user settings in ds under the "/config" namespace.
// Settings are read by Load and written by Update and Save.
func WithDatastore(ds datastore.Datastore) Option {
	return func(cfg *config) error {
		cfg.store = ds
		return nil
	}
}
