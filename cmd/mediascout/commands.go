package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/mediascout/go-mediascout/provider/bangumi"
	"github.com/mediascout/go-mediascout/provider/emby"
	"github.com/mediascout/go-mediascout/provider/imdb"
	"github.com/mediascout/go-mediascout/provider/nullbr"
	"github.com/mediascout/go-mediascout/provider/tmdb"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/urfave/cli/v2"
)

var tvFlag = &cli.BoolFlag{
	Name:  "tv",
	Usage: "Look up TV shows instead of movies",
}

var tmdbSearchCmd = &cli.Command{
	Name:      "tmdb-search",
	Usage:     "Search TMDB by title",
	ArgsUsage: "<title>...",
	Flags: []cli.Flag{
		tvFlag,
		&cli.StringFlag{
			Name:  "year",
			Usage: "Restrict results to a release year",
		},
	},
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		c, err := tmdb.New(s.cache, s.cfg, s.options...)
		if err != nil {
			return err
		}
		s.track(c.Client)

		year := cctx.String("year")
		if cctx.Bool("tv") {
			err = lookupAll(cctx, func(ctx context.Context, q string) (reqcoord.Response[[]tmdb.TVResult], error) {
				return c.SearchTV(ctx, q, year), nil
			})
		} else {
			err = lookupAll(cctx, func(ctx context.Context, q string) (reqcoord.Response[[]tmdb.MovieResult], error) {
				return c.SearchMovie(ctx, q, year), nil
			})
		}
		if err != nil {
			return err
		}
		return s.finish(cctx)
	},
}

var tmdbDetailsCmd = &cli.Command{
	Name:      "tmdb-details",
	Usage:     "Fetch TMDB details by id",
	ArgsUsage: "<tmdb-id>...",
	Flags:     []cli.Flag{tvFlag},
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		c, err := tmdb.New(s.cache, s.cfg, s.options...)
		if err != nil {
			return err
		}
		s.track(c.Client)

		if cctx.Bool("tv") {
			err = lookupAll(cctx, func(ctx context.Context, arg string) (reqcoord.Response[*tmdb.TVDetails], error) {
				id, err := parseID(arg)
				if err != nil {
					return reqcoord.Response[*tmdb.TVDetails]{}, err
				}
				return c.TVDetails(ctx, id), nil
			})
		} else {
			err = lookupAll(cctx, func(ctx context.Context, arg string) (reqcoord.Response[*tmdb.MovieDetails], error) {
				id, err := parseID(arg)
				if err != nil {
					return reqcoord.Response[*tmdb.MovieDetails]{}, err
				}
				return c.MovieDetails(ctx, id), nil
			})
		}
		if err != nil {
			return err
		}
		return s.finish(cctx)
	},
}

type embyResult struct {
	reqcoord.Response[*emby.Item]
	WebURL string `json:"webUrl,omitempty"`
}

var embyCheckCmd = &cli.Command{
	Name:      "emby-check",
	Usage:     "Check whether titles are in the Emby library",
	ArgsUsage: "<tmdb-id>...",
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		c, err := emby.New(s.cache, s.cfg, s.options...)
		if err != nil {
			return err
		}
		s.track(c.Client)

		err = lookupAll(cctx, func(ctx context.Context, arg string) (embyResult, error) {
			id, err := parseID(arg)
			if err != nil {
				return embyResult{}, err
			}
			resp := c.CheckExistence(ctx, id)
			return embyResult{Response: resp, WebURL: c.WebURL(resp.Data)}, nil
		})
		if err != nil {
			return err
		}
		return s.finish(cctx)
	},
}

var bangumiSearchCmd = &cli.Command{
	Name:      "bangumi-search",
	Usage:     "Search Bangumi for anime",
	ArgsUsage: "<title>...",
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		c, err := bangumi.New(s.cache, s.cfg, s.options...)
		if err != nil {
			return err
		}
		s.track(c.Client)

		err = lookupAll(cctx, func(ctx context.Context, q string) (reqcoord.Response[*bangumi.Subject], error) {
			return c.Search(ctx, q), nil
		})
		if err != nil {
			return err
		}
		return s.finish(cctx)
	},
}

var imdbRatingCmd = &cli.Command{
	Name:      "imdb-rating",
	Usage:     "Read IMDb ratings",
	ArgsUsage: "<imdb-id>...",
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		c, err := imdb.New(s.cache, s.cfg, s.options...)
		if err != nil {
			return err
		}
		s.track(c.Client)

		err = lookupAll(cctx, func(ctx context.Context, id string) (reqcoord.Response[*imdb.Title], error) {
			return c.Rating(ctx, id), nil
		})
		if err != nil {
			return err
		}
		return s.finish(cctx)
	},
}

var nullbrCmd = &cli.Command{
	Name:      "nullbr",
	Usage:     "Look up 115 shares and magnet links",
	ArgsUsage: "<tmdb-id>...",
	Flags: []cli.Flag{
		tvFlag,
		&cli.IntFlag{
			Name:  "season",
			Usage: "Season to list magnet links for; implies --tv",
		},
	},
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		c, err := nullbr.New(s.cache, s.cfg, s.options...)
		if err != nil {
			return err
		}
		s.track(c.Client)

		if season := cctx.Int("season"); season > 0 {
			err = lookupAll(cctx, func(ctx context.Context, arg string) (reqcoord.Response[[]nullbr.MagnetItem], error) {
				id, err := parseID(arg)
				if err != nil {
					return reqcoord.Response[[]nullbr.MagnetItem]{}, err
				}
				return c.Magnets(ctx, id, nullbr.TV, season), nil
			})
		} else {
			mediaType := nullbr.Movie
			if cctx.Bool("tv") {
				mediaType = nullbr.TV
			}
			err = lookupAll(cctx, func(ctx context.Context, arg string) (nullbr.Resources, error) {
				id, err := parseID(arg)
				if err != nil {
					return nullbr.Resources{}, err
				}
				return c.All(ctx, id, mediaType), nil
			})
		}
		if err != nil {
			return err
		}
		return s.finish(cctx)
	},
}

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Show which providers are configured",
	Action: func(cctx *cli.Context) error {
		s, err := newSession(cctx)
		if err != nil {
			return err
		}
		w := cctx.App.Writer
		if w == nil {
			w = os.Stdout
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s.cfg.Summary())
	},
}
