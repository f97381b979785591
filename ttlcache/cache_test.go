package ttlcache_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/mediascout/go-mediascout/metrics"
	"github.com/mediascout/go-mediascout/ttlcache"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type movie struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func newCache(t *testing.T, options ...ttlcache.Option) (*ttlcache.Cache, *clock.Mock, datastore.Datastore) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))
	store := dssync.MutexWrap(datastore.NewMapDatastore())
	c, err := ttlcache.New(store, append([]ttlcache.Option{ttlcache.WithClock(mock)}, options...)...)
	require.NoError(t, err)
	return c, mock, store
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCache(t)

	var got []movie
	require.False(t, c.Get(ctx, "tmdb_search_movie_inception_2010", &got))

	want := []movie{{ID: 27205, Title: "Inception"}}
	require.NoError(t, c.Set(ctx, "tmdb_search_movie_inception_2010", want, time.Hour))

	require.True(t, c.Get(ctx, "tmdb_search_movie_inception_2010", &got))
	require.Equal(t, want, got)

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, uint64(1), stats.Sets)
	require.Equal(t, 0.5, stats.HitRate())
	require.Equal(t, "hits=1 misses=1 sets=1 hitRate=50.00%", stats.String())

	c.ResetStats()
	require.Zero(t, c.Stats())
	require.Zero(t, c.Stats().HitRate())
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c, mock, _ := newCache(t)

	require.NoError(t, c.Set(ctx, "emby_check_1", "found", time.Minute))

	mock.Add(59 * time.Second)
	var s string
	require.True(t, c.Get(ctx, "emby_check_1", &s))
	require.Equal(t, "found", s)

	// Expired exactly at the expiry time.
	mock.Add(time.Second)
	require.False(t, c.Get(ctx, "emby_check_1", &s))

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys, "expired entry should be removed on read")
}

func TestDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, mock, _ := newCache(t)

	require.NoError(t, c.Set(ctx, "k", 1, 0))
	entry, ok := c.Entry(ctx, "k")
	require.True(t, ok)
	require.Equal(t, ttlcache.DefaultTTL, entry.TTL())
	require.Equal(t, mock.Now().UnixMilli(), entry.CreatedAt)
	require.True(t, entry.ExpiresAt().Equal(mock.Now().Add(24*time.Hour)))

	c2, _, _ := newCache(t, ttlcache.WithDefaultTTL(time.Hour))
	require.NoError(t, c2.Set(ctx, "k", 1, -time.Second))
	entry, ok = c2.Entry(ctx, "k")
	require.True(t, ok)
	require.Equal(t, time.Hour, entry.TTL())
}

func TestHas(t *testing.T) {
	ctx := context.Background()
	c, mock, _ := newCache(t)

	require.False(t, c.Has(ctx, "a"))
	require.NoError(t, c.Set(ctx, "a", nil, time.Minute))
	require.True(t, c.Has(ctx, "a"))
	mock.Add(time.Minute)
	require.False(t, c.Has(ctx, "a"))

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(2), stats.Misses)
}

func TestCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _, store := newCache(t)

	err := store.Put(ctx, datastore.NewKey(ttlcache.DefaultPrefix+"tmdb_details_movie_1"), []byte("{not json"))
	require.NoError(t, err)

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tmdb_details_movie_1"}, keys)

	var v map[string]any
	require.False(t, c.Get(ctx, "tmdb_details_movie_1", &v))

	keys, err = c.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Equal(t, uint64(1), c.Stats().Misses)

	// Value that does not decode into the requested type.
	require.NoError(t, c.Set(ctx, "typed", "text", time.Hour))
	var n int
	require.False(t, c.Get(ctx, "typed", &n))
	_, ok := c.Entry(ctx, "typed")
	require.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCache(t)

	require.NoError(t, c.Delete(ctx, "missing"))
	require.NoError(t, c.Set(ctx, "present", 1, time.Hour))
	require.NoError(t, c.Delete(ctx, "present"))
	require.False(t, c.Has(ctx, "present"))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCache(t)

	for _, key := range []string{
		"tmdb_search_movie_inception_2010",
		"tmdb_details_movie_27205",
		"emby_check_27205",
		"imdb_rating_tt1375666",
	} {
		require.NoError(t, c.Set(ctx, key, true, time.Hour))
	}

	n, err := c.Clear(ctx, "tmdb")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"emby_check_27205", "imdb_rating_tt1375666"}, keys)

	n, err = c.Clear(ctx, "nothing")
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = c.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	keys, err = c.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestCleanExpired(t *testing.T) {
	ctx := context.Background()
	c, mock, store := newCache(t)

	require.NoError(t, c.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "long", 2, time.Hour))
	require.NoError(t, store.Put(ctx, datastore.NewKey(ttlcache.DefaultPrefix+"bad"), []byte("garbage")))

	mock.Add(2 * time.Minute)
	n, err := c.CleanExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"long"}, keys)

	// Cleaning does not count as reads.
	require.Zero(t, c.Stats().Misses)
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	c, _, store := newCache(t, ttlcache.WithPrefix("mc_"))
	require.Equal(t, "mc_", c.Prefix())

	foreign := datastore.NewKey("other_tmdb_value")
	require.NoError(t, store.Put(ctx, foreign, []byte("keep")))
	require.NoError(t, c.Set(ctx, "tmdb_x", 1, time.Hour))

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tmdb_x"}, keys)

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = c.CleanExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	v, err := store.Get(ctx, foreign)
	require.NoError(t, err)
	require.Equal(t, "keep", string(v))
}

func TestPathKeysRejected(t *testing.T) {
	ctx := context.Background()
	c, _, store := newCache(t)

	cfgKey := datastore.NewKey("/config/tmdb")
	require.NoError(t, store.Put(ctx, cfgKey, []byte(`{"apiKey":"k"}`)))
	nested := datastore.NewKey("/us_cache_a/b")
	require.NoError(t, store.Put(ctx, nested, []byte("nested")))

	err := c.Delete(ctx, "x/../../config/tmdb")
	require.ErrorIs(t, err, ttlcache.ErrInvalidKey)
	err = c.Set(ctx, "x/../../outside", 1, time.Hour)
	require.ErrorIs(t, err, ttlcache.ErrInvalidKey)
	require.False(t, c.Has(ctx, "x/../../config/tmdb"))
	_, ok := c.Entry(ctx, "../config/tmdb")
	require.False(t, ok)

	_, err = store.Get(ctx, cfgKey)
	require.NoError(t, err)
	has, err := store.Has(ctx, datastore.NewKey("/outside"))
	require.NoError(t, err)
	require.False(t, has)
	require.Equal(t, uint64(0), c.Stats().Sets)

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)
	n, err := c.Clear(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	has, err = store.Has(ctx, nested)
	require.NoError(t, err)
	require.True(t, has)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New("test", nil)
	c, mock, _ := newCache(t, ttlcache.WithMetrics(m))

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.True(t, c.Has(ctx, "a"))
	mock.Add(time.Hour)
	require.False(t, c.Has(ctx, "a"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheSets))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CachePurged))
}

func TestNewErrors(t *testing.T) {
	_, err := ttlcache.New(nil)
	require.Error(t, err)

	store := datastore.NewMapDatastore()
	_, err = ttlcache.New(store, ttlcache.WithPrefix(""))
	require.ErrorContains(t, err, "option 0 failed")
	_, err = ttlcache.New(store, ttlcache.WithPrefix("cache/"))
	require.Error(t, err)
	_, err = ttlcache.New(store, ttlcache.WithDefaultTTL(0))
	require.Error(t, err)
}
