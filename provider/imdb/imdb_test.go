package imdb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider/imdb"
	"github.com/mediascout/go-mediascout/ttlcache"
	"github.com/stretchr/testify/require"
)

const ratedPage = `<!DOCTYPE html>
<html><head>
<title>Inception (2010) - IMDb</title>
<script type="text/javascript">var x = 1;</script>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Movie",
"url":"https://www.imdb.com/title/tt1375666/","name":"Inception",
"genre":["Action","Adventure","Sci-Fi"],
"aggregateRating":{"@type":"AggregateRating","ratingCount":2600000,"bestRating":10,"worstRating":1,"ratingValue":8.8}}</script>
</head><body></body></html>`

const unratedPage = `<html><head>
<script type="application/ld+json">{"@type":"TVSeries","name":"Upcoming","genre":"Drama"}</script>
</head></html>`

func TestParseTitle(t *testing.T) {
	title, err := imdb.ParseTitle([]byte(ratedPage))
	require.NoError(t, err)
	require.Equal(t, "Inception", title.Name)
	require.Equal(t, 8.8, title.AggregateRating.RatingValue)
	require.Equal(t, 2600000, title.AggregateRating.RatingCount)
	require.Equal(t, imdb.Genres{"Action", "Adventure", "Sci-Fi"}, title.Genre)

	title, err = imdb.ParseTitle([]byte(unratedPage))
	require.NoError(t, err)
	require.Nil(t, title.AggregateRating)
	require.Equal(t, imdb.Genres{"Drama"}, title.Genre)

	title, err = imdb.ParseTitle([]byte(`<html><body>nothing</body></html>`))
	require.NoError(t, err)
	require.Nil(t, title)

	_, err = imdb.ParseTitle([]byte(`<script type="application/ld+json">{broken</script>`))
	require.ErrorContains(t, err, "malformed json-ld")
}

func TestRating(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "text/html", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/title/tt1375666/":
			w.Write([]byte(ratedPage))
		case "/title/tt0000001/":
			w.Write([]byte(unratedPage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	cache, err := ttlcache.New(dssync.MutexWrap(datastore.NewMapDatastore()))
	require.NoError(t, err)
	cfg, err := config.New(config.WithService(config.IMDB, config.ServiceConfig{BaseURL: ts.URL}))
	require.NoError(t, err)
	c, err := imdb.New(cache, cfg)
	require.NoError(t, err)
	require.True(t, c.Configured())

	resp := c.Rating(ctx, "tt1375666")
	require.False(t, resp.Failed(), resp.Meta.Error)
	require.Equal(t, "IMDB", resp.Meta.Source)
	require.Equal(t, 8.8, resp.Data.AggregateRating.RatingValue)
	entry, ok := cache.Entry(ctx, "imdb_rating_tt1375666")
	require.True(t, ok)
	require.Equal(t, 7*24*time.Hour, entry.TTL())

	resp = c.Rating(ctx, "tt0000001")
	require.False(t, resp.Failed())
	require.Nil(t, resp.Data)
	entry, ok = cache.Entry(ctx, "imdb_rating_tt0000001")
	require.True(t, ok)
	require.Equal(t, 7*24*time.Hour, entry.TTL())

	resp = c.Rating(ctx, "tt9999999")
	require.True(t, resp.Failed())
	require.Contains(t, resp.Meta.Error, "404")

	resp = c.Rating(ctx, "../etc")
	require.True(t, resp.Failed())
	require.Contains(t, resp.Meta.Error, imdb.ErrInvalidID.Error())
}
