// Package provider contains the base client that every data provider
// integration is built on.
//
// A provider client names the provider, builds normalized cache keys, and
// funnels every call through its own request coordinator, so that each
// provider gets deduplication, bounded concurrency and caching without
// touching the network layer directly. Requests for a provider whose settings
// do not validate are answered with an error envelope before reaching the
// cache or the queue.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
)

var log = logging.Logger("mediascout/provider")

// ErrNotConfigured is the cause of responses for providers whose settings are
// missing required values.
var ErrNotConfigured = errors.New("not configured")

// Settings is the configuration read by provider clients. *config.Config
// implements it.
type Settings interface {
	Get(service string) config.ServiceConfig
	Validate(service string) bool
}

// Client is the base of a provider integration.
type Client struct {
	name      string
	service   string
	coord     *reqcoord.Coordinator
	settings  Settings
	http      *http.Client
	userAgent string
}

// New creates a client for the provider whose settings are stored under
// service. The name is reported as the source of every response. The cache
// may be shared with other providers; each client gets its own coordinator.
func New(service, name string, cache *ttlcache.Cache, settings Settings, options ...Option) (*Client, error) {
	if service == "" || name == "" {
		return nil, errors.New("provider service and name are required")
	}
	if settings == nil {
		return nil, errors.New("nil settings")
	}
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	coord, err := reqcoord.New(name, cache, opts.coordOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		name:      name,
		service:   service,
		coord:     coord,
		settings:  settings,
		http:      opts.buildHTTPClient(),
		userAgent: opts.userAgent,
	}, nil
}

// Name returns the provider name used as the response source.
func (c *Client) Name() string {
	return c.name
}

// Service returns the settings key of the provider.
func (c *Client) Service() string {
	return c.service
}

// Config returns the current settings of the provider.
func (c *Client) Config() config.ServiceConfig {
	return c.settings.Get(c.service)
}

// Configured reports whether the provider settings validate.
func (c *Client) Configured() bool {
	return c.settings.Validate(c.service)
}

// Coordinator returns the request coordinator of the provider.
func (c *Client) Coordinator() *reqcoord.Coordinator {
	return c.coord
}

// Request runs req through the provider's coordinator. If the provider is not
// configured an error response is returned without touching the cache or the
// queue.
func Request[T any](ctx context.Context, c *Client, req reqcoord.Request[T]) reqcoord.Response[T] {
	if !c.Configured() {
		log.Debugw("Provider not configured", "provider", c.name, "key", req.Key)
		return reqcoord.Fail[T](c.coord, fmt.Errorf("%s %w", c.name, ErrNotConfigured))
	}
	return reqcoord.Do(ctx, c.coord, req)
}
