package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mediascout/go-mediascout/provider"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("mediascout/cmd")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mediascout",
		Usage:   "Look up titles across media metadata providers",
		Version: provider.Release,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level of mediascout loggers",
				EnvVars: []string{"MEDIASCOUT_LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print cache, queue and request statistics to stderr when done",
			},
			&cli.IntFlag{
				Name:  "max-concurrent",
				Usage: "Maximum concurrent requests per provider",
				Value: 4,
			},
			&cli.IntFlag{
				Name:  "retry",
				Usage: "Number of HTTP retries on transient failures",
				Value: 2,
			},
			&cli.StringFlag{
				Name:    "tmdb-key",
				Usage:   "TMDB API key",
				EnvVars: []string{"TMDB_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "tmdb-language",
				Usage:   "TMDB response language",
				EnvVars: []string{"TMDB_LANGUAGE"},
			},
			&cli.StringFlag{
				Name:    "emby-server",
				Usage:   "Emby server URL",
				EnvVars: []string{"EMBY_SERVER"},
			},
			&cli.StringFlag{
				Name:    "emby-key",
				Usage:   "Emby API key",
				EnvVars: []string{"EMBY_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "bangumi-token",
				Usage:   "Bangumi access token",
				EnvVars: []string{"BANGUMI_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "nullbr-app-id",
				Usage:   "Nullbr application id",
				EnvVars: []string{"NULLBR_APP_ID"},
			},
			&cli.StringFlag{
				Name:    "nullbr-key",
				Usage:   "Nullbr API key",
				EnvVars: []string{"NULLBR_API_KEY"},
			},
		},
		Before: func(cctx *cli.Context) error {
			return logging.SetLogLevelRegex("mediascout/.*", cctx.String("log-level"))
		},
		Commands: []*cli.Command{
			tmdbSearchCmd,
			tmdbDetailsCmd,
			embyCheckCmd,
			bangumiSearchCmd,
			imdbRatingCmd,
			nullbrCmd,
			configCmd,
		},
	}
}
