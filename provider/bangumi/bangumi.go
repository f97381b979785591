// Package bangumi searches the Bangumi anime database.
package bangumi

import (
	"context"
	"net/http"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
)

var log = logging.Logger("mediascout/bangumi")

const notFoundTTL = 60 * time.Minute

// SubjectAnime is the Bangumi subject type of anime.
const SubjectAnime = 2

// Images holds the cover image URLs of a subject by size.
type Images struct {
	Large  string `json:"large,omitempty"`
	Common string `json:"common,omitempty"`
	Medium string `json:"medium,omitempty"`
	Small  string `json:"small,omitempty"`
	Grid   string `json:"grid,omitempty"`
}

// Rating is the community score and rank of a subject.
type Rating struct {
	Rank  int     `json:"rank,omitempty"`
	Total int     `json:"total,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// Subject is a Bangumi entry.
type Subject struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	NameCN  string  `json:"name_cn,omitempty"`
	Type    int     `json:"type"`
	Date    string  `json:"date,omitempty"`
	Summary string  `json:"summary,omitempty"`
	Images  *Images `json:"images,omitempty"`
	Rating  *Rating `json:"rating,omitempty"`
}

type searchRequest struct {
	Keyword string       `json:"keyword"`
	Filter  searchFilter `json:"filter"`
}

type searchFilter struct {
	Type []int `json:"type,omitempty"`
}

type searchResponse struct {
	Total int       `json:"total"`
	Data  []Subject `json:"data"`
}

// Client searches Bangumi.
type Client struct {
	*provider.Client
}

// New creates a Bangumi client.
func New(cache *ttlcache.Cache, settings provider.Settings, options ...provider.Option) (*Client, error) {
	c, err := provider.New(config.Bangumi, "Bangumi", cache, settings, options...)
	if err != nil {
		return nil, err
	}
	return &Client{c}, nil
}

// Search returns the best matching anime subject for query, or nil if there
// is none.
func (c *Client) Search(ctx context.Context, query string) reqcoord.Response[*Subject] {
	cfg := c.Config()
	return provider.Request(ctx, c.Client, reqcoord.Request[*Subject]{
		Key: c.BuildCacheKey("search", query),
		Fetch: func(ctx context.Context) (*Subject, error) {
			log.Debugw("Searching anime", "query", query)
			var resp searchResponse
			err := c.FetchJSON(ctx, provider.Call{
				Method: http.MethodPost,
				URL:    cfg.BaseURL + "/search/subjects",
				Header: http.Header{"Authorization": []string{"Bearer " + cfg.APIKey}},
				Body: searchRequest{
					Keyword: query,
					Filter:  searchFilter{Type: []int{SubjectAnime}},
				},
			}, &resp)
			if err != nil {
				return nil, err
			}
			if len(resp.Data) == 0 {
				log.Debugw("No results", "query", query)
				return nil, nil
			}
			return &resp.Data[0], nil
		},
		TTL:      cfg.CacheTTL,
		TTLFunc:  provider.FoundTTL(provider.NonNil[Subject], notFoundTTL),
		UseCache: true,
		UseQueue: true,
	})
}
