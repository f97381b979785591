package tmdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider/tmdb"
	"github.com/mediascout/go-mediascout/ttlcache"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, baseURL string) (*tmdb.Client, *ttlcache.Cache) {
	cache, err := ttlcache.New(dssync.MutexWrap(datastore.NewMapDatastore()))
	require.NoError(t, err)
	cfg, err := config.New(config.WithService(config.TMDB, config.ServiceConfig{
		APIKey:  "secret",
		BaseURL: baseURL,
	}))
	require.NoError(t, err)
	c, err := tmdb.New(cache, cfg)
	require.NoError(t, err)
	return c, cache
}

func TestSearchMovie(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/search/movie", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "secret", q.Get("api_key"))
		require.Equal(t, "zh-CN", q.Get("language"))
		require.Equal(t, "false", q.Get("include_adult"))
		switch q.Get("query") {
		case "Inception":
			require.Equal(t, "2010", q.Get("primary_release_year"))
			w.Write([]byte(`{"page":1,"results":[{"id":27205,"title":"Inception","release_date":"2010-07-15"}]}`))
		default:
			w.Write([]byte(`{"page":1,"results":[]}`))
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c, cache := newClient(t, ts.URL)

	resp := c.SearchMovie(ctx, "Inception", "2010")
	require.False(t, resp.Failed(), resp.Meta.Error)
	require.Equal(t, "TMDB", resp.Meta.Source)
	require.Len(t, resp.Data, 1)
	require.Equal(t, 27205, resp.Data[0].ID)

	resp = c.SearchMovie(ctx, "inception", "2010")
	require.True(t, resp.Meta.Cached)
	require.Equal(t, int32(1), hits.Load())

	resp = c.SearchMovie(ctx, "Nothing Here", "")
	require.Empty(t, resp.Data)
	entry, ok := cache.Entry(ctx, "tmdb_search_movie_nothing-here_")
	require.True(t, ok)
	require.Equal(t, time.Hour, entry.TTL())

	entry, ok = cache.Entry(ctx, "tmdb_search_movie_inception_2010")
	require.True(t, ok)
	require.Equal(t, 24*time.Hour, entry.TTL())
}

func TestSearchTV(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/tv", r.URL.Path)
		require.Equal(t, "2008", r.URL.Query().Get("first_air_date_year"))
		w.Write([]byte(`{"results":[{"id":1396,"name":"Breaking Bad"}]}`))
	}))
	defer ts.Close()

	c, _ := newClient(t, ts.URL)
	resp := c.SearchTV(context.Background(), "Breaking Bad", "2008")
	require.False(t, resp.Failed())
	require.Equal(t, "Breaking Bad", resp.Data[0].Name)
}

func TestDetails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/27205":
			w.Write([]byte(`{"id":27205,"imdb_id":"tt1375666","title":"Inception","runtime":148,"genres":[{"id":28,"name":"Action"}]}`))
		case "/tv/1396":
			w.Write([]byte(`{"id":1396,"name":"Breaking Bad","number_of_seasons":5}`))
		default:
			http.Error(w, `{"status_message":"The resource you requested could not be found."}`, http.StatusNotFound)
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c, cache := newClient(t, ts.URL)

	movie := c.MovieDetails(ctx, 27205)
	require.False(t, movie.Failed())
	require.Equal(t, "tt1375666", movie.Data.IMDbID)
	require.Equal(t, "Action", movie.Data.Genres[0].Name)
	entry, ok := cache.Entry(ctx, "tmdb_details_movie_27205")
	require.True(t, ok)
	require.Equal(t, 48*time.Hour, entry.TTL())

	show := c.TVDetails(ctx, 1396)
	require.Equal(t, 5, show.Data.NumberOfSeasons)

	missing := c.MovieDetails(ctx, 1)
	require.True(t, missing.Failed())
	require.Contains(t, missing.Meta.Error, "404")
	require.Nil(t, missing.Data)
	require.False(t, cache.Has(ctx, "tmdb_details_movie_1"))
}

func TestNotConfigured(t *testing.T) {
	cache, err := ttlcache.New(dssync.MutexWrap(datastore.NewMapDatastore()))
	require.NoError(t, err)
	cfg, err := config.New()
	require.NoError(t, err)
	c, err := tmdb.New(cache, cfg)
	require.NoError(t, err)

	resp := c.SearchMovie(context.Background(), "Inception", "")
	require.Equal(t, "TMDB not configured", resp.Meta.Error)
}
