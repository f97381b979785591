package reqcoord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/channelqueue"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/metrics"
	"github.com/mediascout/go-mediascout/ttlcache"
	"golang.org/x/sync/singleflight"
)

var log = logging.Logger("mediascout/reqcoord")

// Request describes one provider call.
type Request[T any] struct {
	// Key is the cache key of the request. Requests with the same key share
	// cached data and in-flight executions. If empty, the request is neither
	// cached nor deduplicated.
	Key string
	// Fetch performs the provider call.
	Fetch func(context.Context) (T, error)
	// TTL is the cache lifetime of a successful result. Zero means the cache
	// default.
	TTL time.Duration
	// TTLFunc, if set, chooses the cache lifetime from the fetched data. It is
	// given TTL and returns the lifetime to use. A negative lifetime prevents
	// the result from being cached.
	TTLFunc func(data T, ttl time.Duration) time.Duration
	// UseCache enables reading and writing the cache.
	UseCache bool
	// UseQueue admits the fetch through the coordinator's bounded priority
	// queue. Otherwise the fetch starts immediately.
	UseQueue bool
	// Priority orders queued fetches. Higher values run first.
	Priority int
}

// Settled describes one finished fetch execution.
type Settled struct {
	Key      string
	Source   string
	Err      error
	Waited   time.Duration
	Duration time.Duration
	// Cached is true if the result was written to the cache.
	Cached bool
	// TTL is the cache lifetime the result was stored with. Zero means the
	// cache default.
	TTL time.Duration
}

// QueueStats is a snapshot of the coordinator queue.
type QueueStats struct {
	Pending int
	Running int
}

// ErrNoFetch is returned in Meta.Error for a request without a Fetch function.
var ErrNoFetch = errors.New("request has no fetch function")

// Coordinator runs the requests of one provider. It is safe for concurrent
// use.
type Coordinator struct {
	source  string
	cache   *ttlcache.Cache
	clock   clock.Clock
	metrics *metrics.Metrics

	flights singleflight.Group
	queue   *queue

	eventsMutex sync.Mutex
	events      map[chan<- Settled]struct{}
}

// New creates a coordinator for the provider named source. Responses are
// cached in cache, which may be shared by the coordinators of other providers.
func New(source string, cache *ttlcache.Cache, options ...Option) (*Coordinator, error) {
	if source == "" {
		return nil, errors.New("empty source name")
	}
	if cache == nil {
		return nil, errors.New("nil cache")
	}
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		source:  source,
		cache:   cache,
		clock:   opts.clock,
		metrics: opts.metrics,
		events:  make(map[chan<- Settled]struct{}),
	}
	c.queue = newQueue(opts.maxConcurrent, opts.clock, func(pending, running int) {
		c.metrics.Queue(source, pending, running)
	})
	return c, nil
}

// Source returns the provider name reported in Meta.Source.
func (c *Coordinator) Source() string {
	return c.source
}

// Cache returns the cache used by the coordinator.
func (c *Coordinator) Cache() *ttlcache.Cache {
	return c.cache
}

// QueueStats returns the number of waiting and running queued fetches.
func (c *Coordinator) QueueStats() QueueStats {
	pending, running := c.queue.stats()
	return QueueStats{
		Pending: pending,
		Running: running,
	}
}

// OnSettled creates a channel that receives a Settled event each time a fetch
// execution finishes, successfully or not. Cache hits and callers that joined
// an execution in flight do not produce events.
//
// Calling the returned cancel function stops delivery and closes the channel
// once already queued events have been read.
func (c *Coordinator) OnSettled() (<-chan Settled, context.CancelFunc) {
	// Unbounded so that a slow reader never blocks a fetch.
	cq := channelqueue.New[Settled](-1)
	ch := cq.In()

	c.eventsMutex.Lock()
	c.events[ch] = struct{}{}
	c.eventsMutex.Unlock()

	var once sync.Once
	cncl := func() {
		once.Do(func() {
			c.eventsMutex.Lock()
			delete(c.events, ch)
			close(ch)
			c.eventsMutex.Unlock()
		})
	}
	return cq.Out(), cncl
}

func (c *Coordinator) notify(ev Settled) {
	c.eventsMutex.Lock()
	defer c.eventsMutex.Unlock()
	for ch := range c.events {
		ch <- ev
	}
}

// Fail returns an error response from c without doing any work. Providers use
// it to short-circuit requests that cannot be made, such as when credentials
// are missing.
func Fail[T any](c *Coordinator, err error) Response[T] {
	c.metrics.Request(c.source, metrics.OutcomeFailed)
	msg := err.Error()
	if msg == "" {
		msg = fmt.Sprintf("%s request failed", c.source)
	}
	return Response[T]{
		Meta: Meta{
			Source:    c.source,
			Timestamp: c.clock.Now(),
			Error:     msg,
		},
	}
}

// Do runs req through the coordinator c and returns the response envelope.
//
// If the cache holds a live entry for req.Key, it is returned without
// fetching. Otherwise, if a fetch for the same key is already executing, Do
// waits for and returns its result. Otherwise a new fetch is started,
// admitted by the queue when req.UseQueue is set.
//
// If ctx is canceled while waiting, Do returns an error response. The fetch
// itself keeps running and its result is still cached.
func Do[T any](ctx context.Context, c *Coordinator, req Request[T]) Response[T] {
	if req.Fetch == nil {
		return Fail[T](c, ErrNoFetch)
	}

	if req.UseCache && req.Key != "" {
		var data T
		if c.cache.Get(ctx, req.Key, &data) {
			c.metrics.Request(c.source, metrics.OutcomeCached)
			return Response[T]{
				Data: data,
				Meta: Meta{
					Source:    c.source,
					Timestamp: c.clock.Now(),
					Cached:    true,
				},
			}
		}
	}

	// Detach so that the fetch outlives a caller that stops waiting.
	fetchCtx := context.WithoutCancel(ctx)

	if req.Key == "" {
		data, err := execute(fetchCtx, c, req)
		return settle[T](c, data, err, false)
	}

	resCh := c.flights.DoChan(req.Key, func() (any, error) {
		return execute(fetchCtx, c, req)
	})
	select {
	case res := <-resCh:
		return settle[T](c, res.Val, res.Err, res.Shared)
	case <-ctx.Done():
		log.Debugw("Caller stopped waiting", "source", c.source, "key", req.Key)
		return Fail[T](c, ctx.Err())
	}
}

// execute runs one fetch for req and writes a successful result to the cache.
func execute[T any](ctx context.Context, c *Coordinator, req Request[T]) (T, error) {
	var waited time.Duration
	if req.UseQueue {
		waited = c.queue.acquire(req.Key, req.Priority)
		defer c.queue.release()
	}

	start := c.clock.Now()
	data, err := safeFetch(ctx, req.Fetch)
	elapsed := c.clock.Since(start)
	c.metrics.Fetch(c.source, elapsed)

	ev := Settled{
		Key:      req.Key,
		Source:   c.source,
		Err:      err,
		Waited:   waited,
		Duration: elapsed,
	}
	if err != nil {
		log.Warnw("Fetch failed", "source", c.source, "key", req.Key, "err", err)
		c.notify(ev)
		return data, err
	}

	if req.UseCache && req.Key != "" {
		ttl := req.TTL
		if req.TTLFunc != nil {
			var err error
			if ttl, err = safeTTL(req.TTLFunc, data, req.TTL); err != nil {
				log.Errorw("TTL strategy failed, not caching", "source", c.source, "key", req.Key, "err", err)
				ttl = -1
			}
		}
		if ttl >= 0 {
			if err := c.cache.Set(ctx, req.Key, data, ttl); err != nil {
				log.Errorw("Cannot cache response", "source", c.source, "key", req.Key, "err", err)
			} else {
				ev.Cached = true
				ev.TTL = ttl
			}
		}
	}
	log.Debugw("Fetched", "source", c.source, "key", req.Key, "elapsed", elapsed, "cached", ev.Cached)
	c.notify(ev)
	return data, nil
}

// settle converts an execution result into a response envelope. The value v
// comes from an execution that may have been started by another caller.
func settle[T any](c *Coordinator, v any, err error, shared bool) Response[T] {
	if err != nil {
		return Fail[T](c, err)
	}
	data, ok := v.(T)
	if !ok && v != nil {
		return Fail[T](c, fmt.Errorf("result type %T does not match request type", v))
	}
	outcome := metrics.OutcomeFetched
	if shared {
		outcome = metrics.OutcomeShared
	}
	c.metrics.Request(c.source, outcome)
	return Response[T]{
		Data: data,
		Meta: Meta{
			Source:    c.source,
			Timestamp: c.clock.Now(),
		},
	}
}

func safeFetch[T any](ctx context.Context, fetch func(context.Context) (T, error)) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func safeTTL[T any](ttlFunc func(T, time.Duration) time.Duration, data T, ttl time.Duration) (d time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ttl strategy panicked: %v", r)
		}
	}()
	return ttlFunc(data, ttl), nil
}
