package ttlcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/metrics"
)

var log = logging.Logger("mediascout/ttlcache")

// ErrInvalidKey is returned for keys that contain a path separator. Such keys
// would address datastore entries outside the cache namespace.
var ErrInvalidKey = errors.New("invalid cache key")

// Entry is the stored form of a cached value.
type Entry struct {
	Value     json.RawMessage `json:"value"`
	Expire    int64           `json:"expire"`
	CreatedAt int64           `json:"createdAt"`
}

// ExpiresAt returns the time after which the entry is no longer valid.
func (e Entry) ExpiresAt() time.Time {
	return time.UnixMilli(e.Expire)
}

// Created returns the time the entry was written.
func (e Entry) Created() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// TTL returns the lifetime the entry was written with.
func (e Entry) TTL() time.Duration {
	return time.Duration(e.Expire-e.CreatedAt) * time.Millisecond
}

func (e Entry) expired(now time.Time) bool {
	return now.UnixMilli() >= e.Expire
}

// Stats holds running cache counters. Counters only reset on ResetStats.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Sets   uint64 `json:"sets"`
}

// HitRate returns hits / (hits + misses), or 0 if there were no reads.
func (s Stats) HitRate() float64 {
	reads := s.Hits + s.Misses
	if reads == 0 {
		return 0
	}
	return float64(s.Hits) / float64(reads)
}

func (s Stats) String() string {
	return fmt.Sprintf("hits=%d misses=%d sets=%d hitRate=%.2f%%", s.Hits, s.Misses, s.Sets, s.HitRate()*100)
}

// Cache is a namespaced, expiring key/value cache stored in a datastore.
//
// Safe to be used concurrently. Each check-then-act sequence on a key is done
// while holding the cache lock, so a concurrent Set cannot be removed by a Get
// that saw the previous, expired, entry.
type Cache struct {
	store      datastore.Datastore
	prefix     string
	defaultTTL time.Duration
	clock      clock.Clock
	metrics    *metrics.Metrics

	mutex sync.Mutex

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
}

// New creates a cache that stores its entries in store.
func New(store datastore.Datastore, options ...Option) (*Cache, error) {
	if store == nil {
		return nil, errors.New("nil datastore")
	}
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	return &Cache{
		store:      store,
		prefix:     opts.prefix,
		defaultTTL: opts.defaultTTL,
		clock:      opts.clock,
		metrics:    opts.metrics,
	}, nil
}

// Prefix returns the namespace prefix of the cache.
func (c *Cache) Prefix() string {
	return c.prefix
}

// Get reads the entry for key and, if it is present and not expired, decodes
// its value into value and returns true. Expired and undecodable entries are
// deleted and reported as a miss. If value is nil, the stored value is not
// decoded.
func (c *Cache) Get(ctx context.Context, key string, value any) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	dsKey, err := c.dsKey(key)
	if err != nil {
		log.Warnw("Rejected cache read", "err", err)
		c.miss()
		return false
	}
	data, err := c.store.Get(ctx, dsKey)
	if err != nil {
		if !errors.Is(err, datastore.ErrNotFound) {
			log.Warnw("Cannot read cache entry", "key", key, "err", err)
		}
		c.miss()
		return false
	}

	entry, err := decodeEntry(data)
	if err == nil && value != nil {
		err = json.Unmarshal(entry.Value, value)
	}
	if err != nil {
		log.Warnw("Removing corrupt cache entry", "key", key, "err", err)
		c.purge(ctx, dsKey)
		c.miss()
		return false
	}

	if entry.expired(c.clock.Now()) {
		log.Debugw("Removing expired cache entry", "key", key, "expired", entry.ExpiresAt())
		c.purge(ctx, dsKey)
		c.miss()
		return false
	}

	c.hits.Add(1)
	c.metrics.CacheHit()
	return true
}

// Set stores value under key for ttl. If ttl is not positive the default ttl
// is used.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	dsKey, err := c.dsKey(key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cannot encode value for %q: %w", key, err)
	}
	now := c.clock.Now()
	data, err := json.Marshal(&Entry{
		Value:     raw,
		Expire:    now.Add(ttl).UnixMilli(),
		CreatedAt: now.UnixMilli(),
	})
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err = c.store.Put(ctx, dsKey, data); err != nil {
		return err
	}
	c.sets.Add(1)
	c.metrics.CacheSet()
	return nil
}

// Has reports whether a live entry exists for key. It counts as a read in the
// cache statistics.
func (c *Cache) Has(ctx context.Context, key string) bool {
	return c.Get(ctx, key, nil)
}

// Entry returns the stored entry for key without checking expiry, purging or
// touching statistics.
func (c *Cache) Entry(ctx context.Context, key string) (Entry, bool) {
	dsKey, err := c.dsKey(key)
	if err != nil {
		return Entry{}, false
	}
	data, err := c.store.Get(ctx, dsKey)
	if err != nil {
		return Entry{}, false
	}
	entry, err := decodeEntry(data)
	if err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	dsKey, err := c.dsKey(key)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	err = c.store.Delete(ctx, dsKey)
	if err != nil && !errors.Is(err, datastore.ErrNotFound) {
		return err
	}
	return nil
}

// Clear deletes cached entries and returns the number deleted. With no
// filters every entry in the cache namespace is deleted. Otherwise only keys
// containing "_<filter>" for any filter are deleted.
func (c *Cache) Clear(ctx context.Context, filters ...string) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys, err := c.listKeys(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	var errs error
	for _, key := range keys {
		if !matchFilters(key, filters) {
			continue
		}
		if err = c.store.Delete(ctx, c.storeKey(key)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("cannot delete %q: %w", key, err))
			if ctx.Err() != nil {
				return count, errs
			}
			continue
		}
		count++
	}
	log.Infow("Cleared cache", "deleted", count, "filters", filters)
	return count, errs
}

// ListKeys returns all keys in the cache namespace with the prefix removed.
func (c *Cache) ListKeys(ctx context.Context) ([]string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.listKeys(ctx)
}

// CleanExpired deletes every expired or corrupt entry and returns the number
// of entries removed. This is meant for periodic maintenance.
func (c *Cache) CleanExpired(ctx context.Context) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys, err := c.listKeys(ctx)
	if err != nil {
		return 0, err
	}

	now := c.clock.Now()
	var count int
	var errs error
	for _, key := range keys {
		dsKey := c.storeKey(key)
		data, err := c.store.Get(ctx, dsKey)
		if err != nil {
			if !errors.Is(err, datastore.ErrNotFound) {
				errs = multierror.Append(errs, fmt.Errorf("cannot read %q: %w", key, err))
			}
			continue
		}
		entry, err := decodeEntry(data)
		if err == nil && !entry.expired(now) {
			continue
		}
		if err = c.store.Delete(ctx, dsKey); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("cannot delete %q: %w", key, err))
			continue
		}
		count++
	}
	c.metrics.Purged(count)
	if count != 0 {
		log.Infow("Removed expired cache entries", "count", count)
	}
	return count, errs
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
}

// ResetStats sets all counters to zero.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
}

// dsKey returns the datastore key of a caller supplied cache key.
func (c *Cache) dsKey(key string) (datastore.Key, error) {
	if strings.ContainsRune(key, '/') {
		return datastore.Key{}, fmt.Errorf("%w: %q contains '/'", ErrInvalidKey, key)
	}
	return c.storeKey(key), nil
}

// storeKey returns the datastore key of a key listed from the namespace.
func (c *Cache) storeKey(key string) datastore.Key {
	return datastore.NewKey(c.prefix + key)
}

// listKeys must be called while holding the cache lock.
func (c *Cache) listKeys(ctx context.Context) ([]string, error) {
	results, err := c.store.Query(ctx, query.Query{KeysOnly: true})
	if err != nil {
		return nil, err
	}
	entries, err := results.Rest()
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		k := strings.TrimPrefix(e.Key, "/")
		// Nested keys were not written by the cache.
		if strings.HasPrefix(k, c.prefix) && !strings.ContainsRune(k, '/') {
			keys = append(keys, k[len(c.prefix):])
		}
	}
	return keys, nil
}

func (c *Cache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

func (c *Cache) purge(ctx context.Context, dsKey datastore.Key) {
	if err := c.store.Delete(ctx, dsKey); err != nil && !errors.Is(err, datastore.ErrNotFound) {
		log.Errorw("Cannot delete cache entry", "key", dsKey, "err", err)
		return
	}
	c.metrics.Purged(1)
}

func decodeEntry(data []byte) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, err
	}
	if entry.Expire == 0 {
		return Entry{}, errors.New("missing expiry time")
	}
	return entry, nil
}

func matchFilters(key string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	// A leading separator lets a filter match the provider name at the start
	// of the key.
	key = "_" + key
	for _, f := range filters {
		if strings.Contains(key, "_"+f) {
			return true
		}
	}
	return false
}
