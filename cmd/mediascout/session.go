package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/mediascout/go-mediascout/config"
	"github.com/mediascout/go-mediascout/metrics"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/mediascout/go-mediascout/reqcoord"
	"github.com/mediascout/go-mediascout/ttlcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const (
	retryWaitMin = 500 * time.Millisecond
	retryWaitMax = 5 * time.Second
)

// session holds the state shared by the providers of one command run.
type session struct {
	cfg      *config.Config
	cache    *ttlcache.Cache
	registry *prometheus.Registry
	options  []provider.Option
	coords   []*reqcoord.Coordinator
}

func newSession(cctx *cli.Context) (*session, error) {
	ds := dssync.MutexWrap(datastore.NewMapDatastore())

	cfg, err := config.New(
		config.WithDatastore(ds),
		config.WithService(config.TMDB, config.ServiceConfig{
			APIKey:   cctx.String("tmdb-key"),
			Language: cctx.String("tmdb-language"),
		}),
		config.WithService(config.Emby, config.ServiceConfig{
			Server: cctx.String("emby-server"),
			APIKey: cctx.String("emby-key"),
		}),
		config.WithService(config.Bangumi, config.ServiceConfig{
			APIKey: cctx.String("bangumi-token"),
		}),
		config.WithService(config.Nullbr, config.ServiceConfig{
			AppID:  cctx.String("nullbr-app-id"),
			APIKey: cctx.String("nullbr-key"),
		}),
	)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New("mediascout", reg)

	cache, err := ttlcache.New(ds, ttlcache.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	var options []provider.Option
	if n := cctx.Int("retry"); n > 0 {
		options = append(options, provider.WithHTTPRetry(n, retryWaitMin, retryWaitMax))
	}
	options = append(options, provider.WithCoordinatorOptions(
		reqcoord.WithMaxConcurrent(cctx.Int("max-concurrent")),
		reqcoord.WithMetrics(m),
	))

	log.Debugw("Session ready", "maxConcurrent", cctx.Int("max-concurrent"), "retry", cctx.Int("retry"))
	return &session{
		cfg:      cfg,
		cache:    cache,
		registry: reg,
		options:  options,
	}, nil
}

// track registers the coordinator of a provider for statistics.
func (s *session) track(c *provider.Client) {
	s.coords = append(s.coords, c.Coordinator())
}

// finish writes the statistics when requested.
func (s *session) finish(cctx *cli.Context) error {
	if !cctx.Bool("stats") {
		return nil
	}
	return s.writeStats(cctx.App.ErrWriter)
}

func (s *session) writeStats(w io.Writer) error {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "cache: %s\n", s.cache.Stats())
	for _, c := range s.coords {
		qs := c.QueueStats()
		fmt.Fprintf(w, "queue %s: pending=%d running=%d\n", c.Source(), qs.Pending, qs.Running)
	}

	families, err := s.registry.Gather()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName()+" series="+strconv.Itoa(len(f.GetMetric())))
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "metric %s\n", n)
	}
	return nil
}

// lookupAll runs lookup for every argument concurrently and prints the
// responses as a JSON array.
func lookupAll[T any](cctx *cli.Context, lookup func(ctx context.Context, arg string) (T, error)) error {
	args := cctx.Args().Slice()
	if len(args) == 0 {
		return errors.New("at least one argument is required")
	}

	results := make([]T, len(args))
	g, ctx := errgroup.WithContext(cctx.Context)
	for i, arg := range args {
		i, arg := i, arg
		g.Go(func() error {
			r, err := lookup(ctx, arg)
			if err != nil {
				return fmt.Errorf("%q: %w", arg, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := cctx.App.Writer
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(results)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid tmdb id %q", s)
	}
	return id, nil
}
