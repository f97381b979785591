// Package emby checks whether titles exist in an Emby media server library.
package emby

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
)

var log = logging.Logger("mediascout/emby")

const (
	checkTTL      = 1440 * time.Minute
	notFoundTTL   = 60 * time.Minute
	checkPriority = 3

	itemFields   = "ProviderIds,MediaSources,MediaStreams,ProductionYear,ChildCount,RecursiveItemCount,Path,IndexNumber"
	seasonFields = "ChildCount,RecursiveItemCount,Path,IndexNumber"
)

var seasonNumber = regexp.MustCompile(`\d+`)

// MediaStream describes one stream of a media source.
type MediaStream struct {
	Type         string `json:"Type,omitempty"`
	Language     string `json:"Language,omitempty"`
	DisplayTitle string `json:"DisplayTitle,omitempty"`
	Codec        string `json:"Codec,omitempty"`
	Width        int    `json:"Width,omitempty"`
	Height       int    `json:"Height,omitempty"`
	BitRate      int64  `json:"BitRate,omitempty"`
	BitDepth     int    `json:"BitDepth,omitempty"`
	Channels     int    `json:"Channels,omitempty"`
	IsForced     bool   `json:"IsForced,omitempty"`
}

// MediaSource is one file of an item.
type MediaSource struct {
	Name         string        `json:"Name,omitempty"`
	Container    string        `json:"Container,omitempty"`
	Size         int64         `json:"Size,omitempty"`
	Bitrate      int64         `json:"Bitrate,omitempty"`
	Path         string        `json:"Path,omitempty"`
	MediaStreams []MediaStream `json:"MediaStreams,omitempty"`
}

// Item is a library item. Series items carry their seasons.
type Item struct {
	ID                 string        `json:"Id"`
	Name               string        `json:"Name"`
	ServerID           string        `json:"ServerId,omitempty"`
	Type               string        `json:"Type,omitempty"`
	ProductionYear     int           `json:"ProductionYear,omitempty"`
	PremiereDate       string        `json:"PremiereDate,omitempty"`
	CommunityRating    float64       `json:"CommunityRating,omitempty"`
	OfficialRating     string        `json:"OfficialRating,omitempty"`
	RunTimeTicks       int64         `json:"RunTimeTicks,omitempty"`
	Genres             []string      `json:"Genres,omitempty"`
	Path               string        `json:"Path,omitempty"`
	ChildCount         int           `json:"ChildCount,omitempty"`
	RecursiveItemCount int           `json:"RecursiveItemCount,omitempty"`
	IndexNumber        *int          `json:"IndexNumber,omitempty"`
	ParentIndexNumber  *int          `json:"ParentIndexNumber,omitempty"`
	MediaSources       []MediaSource `json:"MediaSources,omitempty"`
	Seasons            []Item        `json:"Seasons,omitempty"`
}

// season returns the season number of a season item, taken from its index
// or, failing that, the first number in its name.
func (it *Item) season() (int, bool) {
	if it.IndexNumber != nil {
		return *it.IndexNumber, true
	}
	m := seasonNumber.FindString(it.Name)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

type itemsResponse struct {
	Items []Item `json:"Items"`
}

// Client queries an Emby server.
type Client struct {
	*provider.Client
}

// New creates an Emby client.
func New(cache *ttlcache.Cache, settings provider.Settings, options ...provider.Option) (*Client, error) {
	c, err := provider.New(config.Emby, "Emby", cache, settings, options...)
	if err != nil {
		return nil, err
	}
	return &Client{c}, nil
}

// CheckExistence looks up the library item linked to the TMDB id. The
// response data is nil when the library does not have the title. Meta.URL is
// the query URL with the api key removed.
func (c *Client) CheckExistence(ctx context.Context, tmdbID int) reqcoord.Response[*Item] {
	params := url.Values{
		"Recursive":           []string{"true"},
		"AnyProviderIdEquals": []string{"tmdb." + strconv.Itoa(tmdbID)},
		"Fields":              []string{itemFields},
	}

	resp := provider.Request(ctx, c.Client, reqcoord.Request[*Item]{
		Key: c.BuildCacheKey("check", tmdbID),
		Fetch: func(ctx context.Context) (*Item, error) {
			log.Debugw("Checking library", "tmdb", tmdbID)
			items, err := c.items(ctx, params)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				log.Debugw("Not in library", "tmdb", tmdbID)
				return nil, nil
			}
			item := items[0]
			log.Debugw("Found in library", "tmdb", tmdbID, "name", item.Name)
			if item.Type == "Series" {
				if err = c.loadSeasons(ctx, &item); err != nil {
					log.Warnw("Failed to fetch seasons", "item", item.ID, "err", err)
				}
			}
			return &item, nil
		},
		TTL:      checkTTL,
		TTLFunc:  provider.FoundTTL(provider.NonNil[Item], notFoundTTL),
		UseCache: true,
		UseQueue: true,
		Priority: checkPriority,
	})
	if !resp.Failed() {
		resp.Meta.URL = c.endpoint(params, false)
	}
	return resp
}

// loadSeasons attaches the seasons of a series. Some servers report zero
// episodes for every season; the episodes are then counted per season.
func (c *Client) loadSeasons(ctx context.Context, series *Item) error {
	seasons, err := c.items(ctx, url.Values{
		"ParentId":         []string{series.ID},
		"IncludeItemTypes": []string{"Season"},
		"Fields":           []string{seasonFields},
	})
	if err != nil || len(seasons) == 0 {
		return err
	}
	series.Seasons = seasons

	var total int
	for _, s := range seasons {
		total += s.RecursiveItemCount
	}
	if total != 0 {
		return nil
	}

	log.Debugw("Season counts are zero, counting episodes", "item", series.ID)
	episodes, err := c.items(ctx, url.Values{
		"ParentId":         []string{series.ID},
		"IncludeItemTypes": []string{"Episode"},
		"Recursive":        []string{"true"},
		"Fields":           []string{"ParentIndexNumber"},
	})
	if err != nil {
		return err
	}
	counts := make(map[int]int)
	for _, ep := range episodes {
		n := 1
		if ep.ParentIndexNumber != nil && *ep.ParentIndexNumber != 0 {
			n = *ep.ParentIndexNumber
		}
		counts[n]++
	}
	for i := range series.Seasons {
		s := &series.Seasons[i]
		n, ok := s.season()
		if !ok || counts[n] == 0 {
			continue
		}
		s.RecursiveItemCount = counts[n]
		s.ChildCount = counts[n]
	}
	return nil
}

func (c *Client) items(ctx context.Context, params url.Values) ([]Item, error) {
	var resp itemsResponse
	if err := c.FetchJSON(ctx, provider.Call{URL: c.endpoint(params, true)}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) endpoint(params url.Values, withKey bool) string {
	cfg := c.Config()
	q := make(url.Values, len(params)+1)
	for k, v := range params {
		q[k] = v
	}
	if withKey {
		q.Set("api_key", cfg.APIKey)
	}
	return serverURL(cfg) + "/emby/Items?" + q.Encode()
}

// WebURL returns the link to item in the server's web interface, or an empty
// string for a nil item.
func (c *Client) WebURL(item *Item) string {
	if item == nil {
		return ""
	}
	return serverURL(c.Config()) + "/web/index.html#!/item?id=" + item.ID + "&serverId=" + item.ServerID
}

func serverURL(cfg config.ServiceConfig) string {
	return strings.TrimRight(cfg.Server, "/")
}
