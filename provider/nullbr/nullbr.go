// Package nullbr looks up shared resources for titles in the Nullbr index.
package nullbr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/apierror"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
)

var log = logging.Logger("mediascout/nullbr")

const emptyTTL = 1440 * time.Minute

// MediaType is the kind of title: movie or tv.
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

// Valid reports whether t is a known media type.
func (t MediaType) Valid() bool {
	return t == Movie || t == TV
}

// Strings decodes a value given either as a single string or as a list.
type Strings []string

func (s *Strings) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = Strings{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Item115 is a 115 cloud drive share.
type Item115 struct {
	Title      string   `json:"title"`
	Size       string   `json:"size"`
	ShareLink  string   `json:"share_link"`
	Resolution string   `json:"resolution,omitempty"`
	Quality    string   `json:"quality,omitempty"`
	SeasonList []string `json:"season_list,omitempty"`
}

// MagnetItem is a magnet link.
type MagnetItem struct {
	Name       string  `json:"name"`
	Size       string  `json:"size"`
	Magnet     string  `json:"magnet"`
	Resolution string  `json:"resolution,omitempty"`
	Source     string  `json:"source,omitempty"`
	Quality    Strings `json:"quality,omitempty"`
	ZhSub      int     `json:"zh_sub,omitempty"`
}

// Resources merges both resource kinds of a title.
type Resources struct {
	Items115 []Item115    `json:"items115"`
	Magnets  []MagnetItem `json:"magnets"`
	HasData  bool         `json:"hasData"`

	// Errors holds the failure messages of the lookups that failed.
	Errors []string `json:"errors,omitempty"`
}

type response115 struct {
	ID        int       `json:"id"`
	MediaType string    `json:"media_type"`
	Page      int       `json:"page"`
	TotalPage int       `json:"total_page"`
	Items     []Item115 `json:"115"`
}

type responseMagnet struct {
	ID           int          `json:"id"`
	MediaType    string       `json:"media_type"`
	SeasonNumber int          `json:"season_number,omitempty"`
	Items        []MagnetItem `json:"magnet"`
}

// Client queries the Nullbr API.
type Client struct {
	*provider.Client
}

// New creates a Nullbr client.
func New(cache *ttlcache.Cache, settings provider.Settings, options ...provider.Option) (*Client, error) {
	c, err := provider.New(config.Nullbr, "Nullbr", cache, settings, options...)
	if err != nil {
		return nil, err
	}
	return &Client{c}, nil
}

// Resources115 returns the 115 shares of a title. A title unknown to the index
// yields an empty list.
func (c *Client) Resources115(ctx context.Context, tmdbID int, mediaType MediaType) reqcoord.Response[[]Item115] {
	if !mediaType.Valid() {
		return reqcoord.Fail[[]Item115](c.Coordinator(), fmt.Errorf("invalid media type %q", mediaType))
	}
	path := fmt.Sprintf("/%s/%d/115", mediaType, tmdbID)
	return list(ctx, c, c.BuildCacheKey("115", mediaType, tmdbID), path, func(r *response115) []Item115 {
		return r.Items
	})
}

// Magnets returns the magnet links of a title. For shows the links of season
// are returned; a season below 1 means the first season.
func (c *Client) Magnets(ctx context.Context, tmdbID int, mediaType MediaType, season int) reqcoord.Response[[]MagnetItem] {
	var path, key string
	switch mediaType {
	case Movie:
		path = fmt.Sprintf("/movie/%d/magnet", tmdbID)
		key = c.BuildCacheKey("magnet", Movie, tmdbID)
	case TV:
		if season < 1 {
			season = 1
		}
		path = fmt.Sprintf("/tv/%d/season/%d/magnet", tmdbID, season)
		key = c.BuildCacheKey("magnet", TV, tmdbID, season)
	default:
		return reqcoord.Fail[[]MagnetItem](c.Coordinator(), fmt.Errorf("invalid media type %q", mediaType))
	}
	return list(ctx, c, key, path, func(r *responseMagnet) []MagnetItem {
		return r.Items
	})
}

// All looks up both resource kinds concurrently. Failed lookups contribute no
// items and are reported in Errors.
func (c *Client) All(ctx context.Context, tmdbID int, mediaType MediaType) Resources {
	var (
		res115    reqcoord.Response[[]Item115]
		resMagnet reqcoord.Response[[]MagnetItem]
		wg        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res115 = c.Resources115(ctx, tmdbID, mediaType)
	}()
	go func() {
		defer wg.Done()
		resMagnet = c.Magnets(ctx, tmdbID, mediaType, 0)
	}()
	wg.Wait()

	var res Resources
	for _, msg := range []string{res115.Meta.Error, resMagnet.Meta.Error} {
		if msg != "" {
			res.Errors = append(res.Errors, msg)
		}
	}
	res.Items115 = res115.Data
	if res.Items115 == nil {
		res.Items115 = []Item115{}
	}
	res.Magnets = resMagnet.Data
	if res.Magnets == nil {
		res.Magnets = []MagnetItem{}
	}
	res.HasData = len(res.Items115) != 0 || len(res.Magnets) != 0
	return res
}

func list[R any, E any](ctx context.Context, c *Client, key, path string, items func(*R) []E) reqcoord.Response[[]E] {
	cfg := c.Config()
	return provider.Request(ctx, c.Client, reqcoord.Request[[]E]{
		Key: key,
		Fetch: func(ctx context.Context) ([]E, error) {
			log.Debugw("Fetching resources", "path", path)
			var r R
			err := c.FetchJSON(ctx, provider.Call{
				URL: cfg.BaseURL + path,
				Header: http.Header{
					"X-APP-ID":  []string{cfg.AppID},
					"X-API-KEY": []string{cfg.APIKey},
				},
			}, &r)
			if err != nil {
				if apierror.IsNotFound(err) {
					return []E{}, nil
				}
				return nil, err
			}
			found := items(&r)
			if found == nil {
				found = []E{}
			}
			return found, nil
		},
		TTL:      cfg.CacheTTL,
		TTLFunc:  provider.FoundTTL(provider.NonEmpty[E], emptyTTL),
		UseCache: true,
		UseQueue: true,
	})
}
