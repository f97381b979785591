package provider

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mediascout/go-mediascout/reqcoord"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "go-mediascout/" + Release
)

// Release is the version reported in the default User-Agent header.
const Release = "v0.3.0"

type options struct {
	httpClient   *http.Client
	coordOpts    []reqcoord.Option
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
	userAgent    string
}

// Option is a function that sets a value in options.
type Option func(*options) error

// getOpts creates options and applies Options to it.
func getOpts(opts []Option) (options, error) {
	cfg := options{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return options{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// buildHTTPClient returns the http client described by the options. If retries
// are enabled the client is wrapped by a retrying transport.
func (cfg options) buildHTTPClient() *http.Client {
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.timeout,
		}
	}
	if cfg.retryMax == 0 {
		return httpClient
	}
	rclient := &retryablehttp.Client{
		HTTPClient:   httpClient,
		RetryWaitMin: cfg.retryWaitMin,
		RetryWaitMax: cfg.retryWaitMax,
		RetryMax:     cfg.retryMax,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		// Hand the last response back so its status reaches apierror.
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return rclient.StandardClient()
}

// WithHTTPClient uses an existing http.Client for provider requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *options) error {
		if c != nil {
			cfg.httpClient = c
		}
		return nil
	}
}

// WithHTTPRetry retries transport failures and retryable status codes below
// the request coordinator. The coordinator itself never retries, so this is
// the only retry a request gets.
//
// Default is no retries.
func WithHTTPRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(cfg *options) error {
		if retryMax < 0 {
			return errors.New("retry max must not be negative")
		}
		if waitMin > waitMax {
			return errors.New("retry wait min exceeds wait max")
		}
		cfg.retryMax = retryMax
		cfg.retryWaitMin = waitMin
		cfg.retryWaitMax = waitMax
		return nil
	}
}

// WithTimeout sets the timeout of the default http client. It has no effect
// when WithHTTPClient is used.
//
// Default is 30 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *options) error {
		cfg.timeout = timeout
		return nil
	}
}

// WithUserAgent sets the value used for the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(cfg *options) error {
		cfg.userAgent = userAgent
		return nil
	}
}

// WithCoordinatorOptions passes options to the request coordinator created
// for the provider.
func WithCoordinatorOptions(opts ...reqcoord.Option) Option {
	return func(cfg *options) error {
		cfg.coordOpts = append(cfg.coordOpts, opts...)
		return nil
	}
}
