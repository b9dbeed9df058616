package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/woozymasta/flightmap/internal/config"
	"github.com/woozymasta/flightmap/internal/geo"
	"github.com/woozymasta/flightmap/internal/loader"
	"github.com/woozymasta/flightmap/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"   env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	DataDir    string `short:"d" long:"data-dir" env:"DATA_DIR"    description:"Directory of the sources (overrides config)"`
	Paths      string `long:"paths"              description:"Flight path source (overrides config)"`
	Objects    string `long:"objects"            description:"Object source (overrides config)"`
	Output     string `short:"o" long:"out"      description:"Output file path. Writes to stdout if empty"`
	Format     string `short:"f" long:"format"   description:"Output format" choice:"json" choice:"yaml" default:"json"`
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
		cfg = config.Default()
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.DataDir != "" {
		cfg.Data.Dir = opts.DataDir
	}
	if opts.Paths != "" {
		cfg.Data.Paths = opts.Paths
	}
	if opts.Objects != "" {
		cfg.Data.Objects = opts.Objects
	}

	ctx := context.Background()
	fetcher := loader.NewSourceFetcher(cfg.Data.Dir, cfg.Data.Timeout)

	path := loader.NewFlightPathLoader(fetcher, cfg.Data.Paths).Load(ctx)
	if !path.OK() {
		log.Fatal().Err(path.Err).Msg("Failed to load flight path")
	}
	objects := loader.NewObjectLoader(fetcher, cfg.Data.Objects).Load(ctx)
	if !objects.OK() {
		log.Fatal().Err(objects.Err).Msg("Failed to load objects")
	}

	fc := geo.Collection(path.Data, objects.Data)

	outputData, err := marshal(fc, opts.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal data")
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, outputData, 0644); err != nil {
			log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write output file")
		}
		log.Info().
			Str("path", opts.Output).
			Str("format", opts.Format).
			Int("points", len(path.Data)).
			Int("markers", len(objects.Data)).
			Int("skipped", len(path.Skipped)+len(objects.Skipped)).
			Msg("GeoJSON exported")
	} else {
		fmt.Println(string(outputData))
	}
}

// marshal encodes the collection. YAML goes through the GeoJSON encoding so
// the document keeps the standard field layout.
func marshal(v any, format string) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || format != "yaml" {
		return data, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return yaml.Marshal(doc)
}
