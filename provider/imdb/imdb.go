// Package imdb reads title ratings from IMDb pages.
//
// IMDb has no public API for ratings. The title page embeds a schema.org
// JSON-LD document that carries the aggregate rating; this package fetches
// the page and decodes that document.
package imdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var log = logging.Logger("mediascout/imdb")

const (
	ratingPriority = 1
	ldJSONType     = "application/ld+json"
)

var validID = regexp.MustCompile(`^tt\d+$`)

// ErrInvalidID is returned for ids that are not IMDb title ids.
var ErrInvalidID = errors.New("invalid imdb title id")

// AggregateRating is the user rating of a title.
type AggregateRating struct {
	RatingCount int     `json:"ratingCount"`
	BestRating  float64 `json:"bestRating"`
	WorstRating float64 `json:"worstRating"`
	RatingValue float64 `json:"ratingValue"`
}

// Genres decodes a genre given either as a single string or as a list.
type Genres []string

func (g *Genres) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*g = Genres{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*g = many
	return nil
}

// Title is the part of a title page's JSON-LD document that is kept.
type Title struct {
	Type            string           `json:"@type,omitempty"`
	URL             string           `json:"url,omitempty"`
	Name            string           `json:"name"`
	Image           string           `json:"image,omitempty"`
	Description     string           `json:"description,omitempty"`
	AggregateRating *AggregateRating `json:"aggregateRating,omitempty"`
	ContentRating   string           `json:"contentRating,omitempty"`
	Genre           Genres           `json:"genre,omitempty"`
	DatePublished   string           `json:"datePublished,omitempty"`
	Keywords        string           `json:"keywords,omitempty"`
}

// Client fetches IMDb title pages.
type Client struct {
	*provider.Client
}

// New creates an IMDb client.
func New(cache *ttlcache.Cache, settings provider.Settings, options ...provider.Option) (*Client, error) {
	c, err := provider.New(config.IMDB, "IMDB", cache, settings, options...)
	if err != nil {
		return nil, err
	}
	return &Client{c}, nil
}

// Rating returns the title with its aggregate rating. The data is nil when the
// page has no rating. Either outcome is cached for the configured TTL.
func (c *Client) Rating(ctx context.Context, imdbID string) reqcoord.Response[*Title] {
	if !validID.MatchString(imdbID) {
		return reqcoord.Fail[*Title](c.Coordinator(), fmt.Errorf("%w: %q", ErrInvalidID, imdbID))
	}
	cfg := c.Config()
	return provider.Request(ctx, c.Client, reqcoord.Request[*Title]{
		Key: c.BuildCacheKey("rating", imdbID),
		Fetch: func(ctx context.Context) (*Title, error) {
			log.Debugw("Fetching rating", "id", imdbID)
			page, err := c.Fetch(ctx, provider.Call{
				URL:    fmt.Sprintf("%s/title/%s/", cfg.BaseURL, imdbID),
				Accept: "text/html",
			})
			if err != nil {
				return nil, err
			}
			title, err := ParseTitle(page)
			if err != nil {
				return nil, err
			}
			if title == nil || title.AggregateRating == nil {
				log.Debugw("No rating found", "id", imdbID)
				return nil, nil
			}
			return title, nil
		},
		TTL:      cfg.CacheTTL,
		UseCache: true,
		UseQueue: true,
		Priority: ratingPriority,
	})
}

// ParseTitle decodes the first JSON-LD document of an HTML page. It returns
// nil if the page has none.
func ParseTitle(page []byte) (*Title, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	script := findLDJSON(doc)
	if script == "" {
		return nil, nil
	}
	var t Title
	if err = json.Unmarshal([]byte(script), &t); err != nil {
		return nil, fmt.Errorf("malformed json-ld: %w", err)
	}
	return &t, nil
}

func findLDJSON(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script && isLDJSON(n) {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findLDJSON(c); s != "" {
			return s
		}
	}
	return ""
}

func isLDJSON(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key == "type" && strings.EqualFold(strings.TrimSpace(a.Val), ldJSONType) {
			return true
		}
	}
	return false
}
