// Package tmdb is a client for The Movie Database API.
package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
)

const (
	searchTTL   = 1440 * time.Minute
	detailsTTL  = 2880 * time.Minute
	notFoundTTL = 60 * time.Minute

	searchPriority = 5
)

// MediaType is the kind of title: movie or tv.
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

// MovieResult is one movie in a search result.
type MovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title,omitempty"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	PosterPath    string  `json:"poster_path,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	VoteAverage   float64 `json:"vote_average,omitempty"`
	Popularity    float64 `json:"popularity,omitempty"`
}

// TVResult is one show in a search result.
type TVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	Popularity   float64 `json:"popularity,omitempty"`
}

// Genre is a TMDB genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MovieDetails holds the details of a movie.
type MovieDetails struct {
	ID          int     `json:"id"`
	IMDbID      string  `json:"imdb_id,omitempty"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date,omitempty"`
	Runtime     int     `json:"runtime,omitempty"`
	Genres      []Genre `json:"genres,omitempty"`
	Overview    string  `json:"overview,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
	VoteCount   int     `json:"vote_count,omitempty"`
}

// TVDetails holds the details of a show.
type TVDetails struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	FirstAirDate     string  `json:"first_air_date,omitempty"`
	NumberOfSeasons  int     `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes int     `json:"number_of_episodes,omitempty"`
	Genres           []Genre `json:"genres,omitempty"`
	Overview         string  `json:"overview,omitempty"`
	VoteAverage      float64 `json:"vote_average,omitempty"`
}

type searchResponse[T any] struct {
	Page    int `json:"page"`
	Results []T `json:"results"`
}

// Client searches TMDB and fetches title details.
type Client struct {
	*provider.Client
}

// New creates a TMDB client.
func New(cache *ttlcache.Cache, settings provider.Settings, options ...provider.Option) (*Client, error) {
	c, err := provider.New(config.TMDB, "TMDB", cache, settings, options...)
	if err != nil {
		return nil, err
	}
	return &Client{c}, nil
}

// SearchMovie searches movies by title, optionally restricted to a release
// year. An empty result is cached for an hour.
func (c *Client) SearchMovie(ctx context.Context, query, year string) reqcoord.Response[[]MovieResult] {
	return search[MovieResult](ctx, c, Movie, query, year, "primary_release_year")
}

// SearchTV searches shows by title, optionally restricted to a first air year.
func (c *Client) SearchTV(ctx context.Context, query, year string) reqcoord.Response[[]TVResult] {
	return search[TVResult](ctx, c, TV, query, year, "first_air_date_year")
}

func search[T any](ctx context.Context, c *Client, kind MediaType, query, year, yearParam string) reqcoord.Response[[]T] {
	return provider.Request(ctx, c.Client, reqcoord.Request[[]T]{
		Key: c.BuildCacheKey("search", kind, query, year),
		Fetch: func(ctx context.Context) ([]T, error) {
			params := c.params()
			params.Set("query", query)
			params.Set("include_adult", "false")
			if year != "" {
				params.Set(yearParam, year)
			}
			var resp searchResponse[T]
			err := c.FetchJSON(ctx, provider.Call{URL: c.url("search/"+string(kind), params)}, &resp)
			if err != nil {
				return nil, err
			}
			return resp.Results, nil
		},
		TTL:      searchTTL,
		TTLFunc:  provider.FoundTTL(provider.NonEmpty[T], notFoundTTL),
		UseCache: true,
		UseQueue: true,
		Priority: searchPriority,
	})
}

// MovieDetails fetches the details of the movie with the given TMDB id.
func (c *Client) MovieDetails(ctx context.Context, id int) reqcoord.Response[*MovieDetails] {
	return details[MovieDetails](ctx, c, Movie, id)
}

// TVDetails fetches the details of the show with the given TMDB id.
func (c *Client) TVDetails(ctx context.Context, id int) reqcoord.Response[*TVDetails] {
	return details[TVDetails](ctx, c, TV, id)
}

func details[T any](ctx context.Context, c *Client, kind MediaType, id int) reqcoord.Response[*T] {
	return provider.Request(ctx, c.Client, reqcoord.Request[*T]{
		Key: c.BuildCacheKey("details", kind, id),
		Fetch: func(ctx context.Context) (*T, error) {
			path := fmt.Sprintf("%s/%s", kind, strconv.Itoa(id))
			var d T
			if err := c.FetchJSON(ctx, provider.Call{URL: c.url(path, c.params())}, &d); err != nil {
				return nil, err
			}
			return &d, nil
		},
		TTL:      detailsTTL,
		UseCache: true,
		UseQueue: true,
	})
}

func (c *Client) params() url.Values {
	cfg := c.Config()
	lang := cfg.Language
	if lang == "" {
		lang = "zh-CN"
	}
	return url.Values{
		"api_key":  []string{cfg.APIKey},
		"language": []string{lang},
	}
}

func (c *Client) url(path string, params url.Values) string {
	return c.Config().BaseURL + "/" + path + "?" + params.Encode()
}
