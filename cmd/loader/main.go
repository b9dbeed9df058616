package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/flightmap/internal/config"
	"github.com/woozymasta/flightmap/internal/geo"
	"github.com/woozymasta/flightmap/internal/loader"
	"github.com/woozymasta/flightmap/internal/logger"
	"github.com/woozymasta/flightmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	DataDir     string `short:"d" long:"data-dir"    env:"DATA_DIR"       description:"Directory of paths.json and objects.json (overrides config)"`
	TileCache   string `short:"t" long:"tile-cache"  env:"TILE_CACHE_DIR" description:"Tile cache directory (overrides config)"`
	Concurrency int    `short:"p" long:"concurrency" env:"CONCURRENCY"    description:"Concurrent downloads" default:"4"`
	MinZoom     int    `short:"m" long:"min-zoom"    env:"MIN_ZOOM"       description:"First zoom level to prefetch" default:"0"`
	ZoomLimit   int    `short:"z" long:"zoom-limit"  env:"ZOOM_LIMIT"     description:"Last zoom level to prefetch (overrides config)"`
	MaxTiles    int    `short:"n" long:"max-tiles"   env:"MAX_TILES"      description:"Upper bound of tiles to download" default:"5000"`
	Force       bool   `short:"f" long:"force"       description:"Force overwrite of existing tiles"`
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", opts.ConfigFile).Msg("Configuration file not found, using defaults")
		cfg = config.Default()
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.DataDir != "" {
		cfg.Data.Dir = opts.DataDir
	}
	if opts.TileCache != "" {
		cfg.Tiles.CacheDir = opts.TileCache
	}
	if !cfg.Tiles.CacheEnabled() {
		log.Fatal().Msg("Tile cache directory is not set (tiles.cache_dir or --tile-cache)")
	}

	zoomLimit := cfg.Tiles.ZoomLimit
	if opts.ZoomLimit > 0 {
		zoomLimit = opts.ZoomLimit
	}
	if zoomLimit > cfg.Tiles.MaxZoom {
		zoomLimit = cfg.Tiles.MaxZoom
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bounds := dataBounds(ctx, cfg)

	coords, truncated := bounds.Tiles(opts.MinZoom, zoomLimit, opts.MaxTiles)
	if truncated {
		log.Warn().
			Int("max_tiles", opts.MaxTiles).
			Msg("Tile count exceeds limit, deepest zoom levels are truncated")
	}

	log.Info().
		Int("tiles", len(coords)).
		Int("min_zoom", opts.MinZoom).
		Int("zoom_limit", zoomLimit).
		Str("cache_dir", cfg.Tiles.CacheDir).
		Msg("Starting tile prefetch")

	start := time.Now()
	cache := tiles.NewCache(cfg.Tiles)
	stats := cache.Prefetch(ctx, coords, opts.Concurrency, opts.Force)

	log.Info().
		Int("cached", stats.Cached).
		Int("missing", stats.Missing).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(start)).
		Msg("Loader finished")

	if ctx.Err() != nil {
		os.Exit(1)
	}
}

// dataBounds loads both resources and returns the box covering the map
// center, the flight path and all markers.
func dataBounds(ctx context.Context, cfg *config.Config) geo.Bounds {
	fetcher := loader.NewSourceFetcher(cfg.Data.Dir, cfg.Data.Timeout)

	var path loader.Result[geo.FlightPath]
	var objects loader.Result[[]geo.MapMarker]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path = loader.NewFlightPathLoader(fetcher, cfg.Data.Paths).Load(gctx)
		return nil
	})
	g.Go(func() error {
		objects = loader.NewObjectLoader(fetcher, cfg.Data.Objects).Load(gctx)
		return nil
	})
	_ = g.Wait()

	var b geo.Bounds
	b.Extend(geo.LatLng(cfg.View.Center))
	for _, p := range path.Data {
		b.Extend(p)
	}
	for _, m := range objects.Data {
		b.Extend(m.Position())
	}

	return b
}
