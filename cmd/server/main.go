package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/flightmap/internal/config"
	"github.com/woozymasta/flightmap/internal/loader"
	"github.com/woozymasta/flightmap/internal/logger"
	"github.com/woozymasta/flightmap/internal/mapview"
	"github.com/woozymasta/flightmap/internal/server"
	"github.com/woozymasta/flightmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"     env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr       string `short:"a" long:"addr"       env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	DataDir    string `short:"d" long:"data-dir"   env:"DATA_DIR"       description:"Directory of paths.json and objects.json (overrides config)"`
	TileCache  string `short:"t" long:"tile-cache" env:"TILE_CACHE_DIR" description:"Enable the tile cache in this directory (overrides config)"`
	Port       int    `short:"p" long:"port"       env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
}

func main() {
	// .env is optional, values feed the env: fallbacks below
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := loader.NewSourceFetcher(cfg.Data.Dir, cfg.Data.Timeout)
	view := mapview.NewView(
		loader.NewFlightPathLoader(fetcher, cfg.Data.Paths),
		loader.NewObjectLoader(fetcher, cfg.Data.Objects),
	)
	view.Mount(ctx)

	var cache *tiles.Cache
	if cfg.Tiles.CacheEnabled() {
		cache = tiles.NewCache(cfg.Tiles)
	}

	srvCtx, err := server.NewServerContext(cfg, view, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)

	// No WriteTimeout: /api/events is a long-lived stream.
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().
		Str("addr", listenAddr).
		Str("data_dir", cfg.Data.Dir).
		Bool("tile_cache", cache != nil).
		Float64("center_lat", cfg.View.Center[0]).
		Float64("center_lon", cfg.View.Center[1]).
		Int("zoom", cfg.View.Zoom).
		Msg("Web server started")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	view.Unmount()
	view.Wait()
}
