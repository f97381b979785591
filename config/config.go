// Package config holds the per-provider settings that provider clients read
// before making requests: credentials, endpoints and cache lifetimes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-datastore"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("mediascout/config")

// Service names.
const (
	TMDB    = "tmdb"
	Emby    = "emby"
	Bangumi = "bangumi"
	IMDB    = "imdb"
	Nullbr  = "nullbr"
)

var configRoot = datastore.NewKey("/config")

// ServiceConfig holds the settings for one provider.
type ServiceConfig struct {
	APIKey   string        `json:"apiKey,omitempty"`
	AppID    string        `json:"appId,omitempty"`
	BaseURL  string        `json:"baseUrl,omitempty"`
	Server   string        `json:"server,omitempty"`
	Language string        `json:"language,omitempty"`
	CacheTTL time.Duration `json:"cacheTTL,omitempty"`
}

func (sc ServiceConfig) merge(o ServiceConfig) ServiceConfig {
	if o.APIKey != "" {
		sc.APIKey = o.APIKey
	}
	if o.AppID != "" {
		sc.AppID = o.AppID
	}
	if o.BaseURL != "" {
		sc.BaseURL = o.BaseURL
	}
	if o.Server != "" {
		sc.Server = o.Server
	}
	if o.Language != "" {
		sc.Language = o.Language
	}
	if o.CacheTTL != 0 {
		sc.CacheTTL = o.CacheTTL
	}
	return sc
}

func defaults() map[string]ServiceConfig {
	return map[string]ServiceConfig{
		TMDB: {
			BaseURL:  "https://api.themoviedb.org/3",
			Language: "zh-CN",
			CacheTTL: 1440 * time.Minute,
		},
		Emby: {
			CacheTTL: 60 * time.Minute,
		},
		Bangumi: {
			BaseURL:  "https://api.bgm.tv/v0",
			CacheTTL: 1440 * time.Minute,
		},
		IMDB: {
			BaseURL:  "https://www.imdb.com",
			CacheTTL: 7 * 24 * time.Hour,
		},
		Nullbr: {
			BaseURL:  "https://api.nullbr.eu.org",
			CacheTTL: 7 * 24 * time.Hour,
		},
	}
}

// Listener is called after the settings of a service change.
type Listener func(service string, sc ServiceConfig)

// Config holds the settings of all providers. It is safe for concurrent use.
type Config struct {
	mutex    sync.RWMutex
	services map[string]ServiceConfig
	store    datastore.Datastore

	listenMutex sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// Summary describes the configuration state of one service without exposing
// credentials.
type Summary struct {
	Configured bool   `json:"configured"`
	HasAPIKey  bool   `json:"hasApiKey"`
	HasAppID   bool   `json:"hasAppId,omitempty"`
	Server     string `json:"server,omitempty"`
	Language   string `json:"language,omitempty"`
}

// New creates a Config holding the default settings adjusted by options.
func New(options ...Option) (*Config, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	return &Config{
		services:  opts.services,
		store:     opts.store,
		listeners: make(map[int]Listener),
	}, nil
}

// Get returns the settings of the named service. An unknown service returns
// zero settings.
func (c *Config) Get(service string) ServiceConfig {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.services[service]
}

// Validate reports whether the named service has the settings it needs to make
// requests.
func (c *Config) Validate(service string) bool {
	sc := c.Get(service)
	switch service {
	case TMDB, Bangumi:
		return sc.APIKey != ""
	case Emby:
		return sc.Server != "" && sc.APIKey != ""
	case IMDB:
		return true
	case Nullbr:
		return sc.AppID != "" && sc.APIKey != ""
	default:
		return false
	}
}

// Update applies fn to the settings of the named service, persists them if a
// datastore is configured, and notifies listeners. Listeners are notified even
// if persisting fails.
func (c *Config) Update(ctx context.Context, service string, fn func(*ServiceConfig)) error {
	if service == "" {
		return errors.New("empty service name")
	}
	c.mutex.Lock()
	sc := c.services[service]
	fn(&sc)
	c.services[service] = sc
	c.mutex.Unlock()

	var err error
	if c.store != nil {
		err = c.put(ctx, service, sc)
	}
	c.notify(service, sc)
	return err
}

// AddListener registers l to be called after every Update. Calling the
// returned function removes the listener.
func (c *Config) AddListener(l Listener) (remove func()) {
	c.listenMutex.Lock()
	defer c.listenMutex.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	return func() {
		c.listenMutex.Lock()
		delete(c.listeners, id)
		c.listenMutex.Unlock()
	}
}

func (c *Config) notify(service string, sc ServiceConfig) {
	c.listenMutex.Lock()
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = c.listeners[id]
	}
	c.listenMutex.Unlock()

	for _, l := range listeners {
		callListener(l, service, sc)
	}
}

// callListener isolates a panicking listener from the others.
func callListener(l Listener, service string, sc ServiceConfig) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Config listener failed", "service", service, "err", r)
		}
	}()
	l(service, sc)
}

// Summary returns the configuration state of every known service.
func (c *Config) Summary() map[string]Summary {
	c.mutex.RLock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	c.mutex.RUnlock()

	out := make(map[string]Summary, len(names))
	for _, name := range names {
		sc := c.Get(name)
		out[name] = Summary{
			Configured: c.Validate(name),
			HasAPIKey:  sc.APIKey != "",
			HasAppID:   sc.AppID != "",
			Server:     sc.Server,
			Language:   sc.Language,
		}
	}
	return out
}

// Load reads persisted settings from the datastore and merges them over the
// current settings. It does nothing if no datastore is configured.
func (c *Config) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var errs error
	for name, sc := range c.services {
		data, err := c.store.Get(ctx, serviceKey(name))
		if err != nil {
			if !errors.Is(err, datastore.ErrNotFound) {
				errs = multierror.Append(errs, fmt.Errorf("cannot read %s settings: %w", name, err))
			}
			continue
		}
		var stored ServiceConfig
		if err = json.Unmarshal(data, &stored); err != nil {
			log.Warnw("Ignoring unreadable settings", "service", name, "err", err)
			continue
		}
		c.services[name] = sc.merge(stored)
	}
	return errs
}

// Save writes the settings of every service to the datastore.
func (c *Config) Save(ctx context.Context) error {
	if c.store == nil {
		return errors.New("no datastore configured")
	}
	c.mutex.RLock()
	services := make(map[string]ServiceConfig, len(c.services))
	for name, sc := range c.services {
		services[name] = sc
	}
	c.mutex.RUnlock()

	var errs error
	for name, sc := range services {
		if err := c.put(ctx, name, sc); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (c *Config) put(ctx context.Context, service string, sc ServiceConfig) error {
	data, err := json.Marshal(&sc)
	if err != nil {
		return err
	}
	if err = c.store.Put(ctx, serviceKey(service), data); err != nil {
		return fmt.Errorf("cannot write %s settings: %w", service, err)
	}
	return nil
}

func serviceKey(service string) datastore.Key {
	return configRoot.ChildString(service)
}
