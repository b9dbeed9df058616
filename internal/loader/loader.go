// Package loader fetches the flight-path and object resources and extracts
// map-ready coordinates from them.
package loader

import (
	"context"
	"encoding/json"
	"time"

	"github.com/woozymasta/flightmap/internal/geo"

	"github.com/rs/zerolog/log"
)

// Default resource paths, relative to the data directory.
const (
	DefaultPathsSource   = "paths.json"
	DefaultObjectsSource = "objects.json"
)

// Result is the outcome of one load: either Data with the records that had
// to be skipped, or Err when the resource could not be fetched or parsed.
type Result[T any] struct {
	Data    T
	Err     error
	Skipped []RecordError
}

// OK reports whether the load produced data.
func (r Result[T]) OK() bool { return r.Err == nil }

// FlightPathLoader loads the flight-path resource.
type FlightPathLoader struct {
	Fetcher Fetcher
	Source  string
}

// NewFlightPathLoader returns a loader for source, defaulting to paths.json.
func NewFlightPathLoader(f Fetcher, source string) *FlightPathLoader {
	if source == "" {
		source = DefaultPathsSource
	}
	return &FlightPathLoader{Fetcher: f, Source: source}
}

// Load fetches the resource and extracts the flight path.
func (l *FlightPathLoader) Load(ctx context.Context) Result[geo.FlightPath] {
	start := time.Now()

	records, err := fetchRecords(ctx, l.Fetcher, l.Source)
	if err != nil {
		log.Error().Err(err).Str("source", l.Source).Msg("Failed to load flight path")
		return Result[geo.FlightPath]{Err: err}
	}

	path, skipped := ExtractFlightPath(records)
	logSkipped(l.Source, skipped)

	log.Info().
		Str("source", l.Source).
		Int("records", len(records)).
		Int("points", len(path)).
		Int("skipped", len(skipped)).
		Dur("duration", time.Since(start)).
		Msg("Flight path loaded")

	return Result[geo.FlightPath]{Data: path, Skipped: skipped}
}

// ObjectLoader loads the object resource.
type ObjectLoader struct {
	Fetcher Fetcher
	Source  string
}

// NewObjectLoader returns a loader for source, defaulting to objects.json.
func NewObjectLoader(f Fetcher, source string) *ObjectLoader {
	if source == "" {
		source = DefaultObjectsSource
	}
	return &ObjectLoader{Fetcher: f, Source: source}
}

// Load fetches the resource and extracts one marker per record.
func (l *ObjectLoader) Load(ctx context.Context) Result[[]geo.MapMarker] {
	start := time.Now()

	records, err := fetchRecords(ctx, l.Fetcher, l.Source)
	if err != nil {
		log.Error().Err(err).Str("source", l.Source).Msg("Failed to load objects")
		return Result[[]geo.MapMarker]{Err: err}
	}

	markers, skipped := ExtractMarkers(records)
	logSkipped(l.Source, skipped)

	for _, id := range DuplicateIDs(markers) {
		log.Warn().
			Str("source", l.Source).
			Str("id", id).
			Msg("Duplicate object identifier")
	}

	log.Debug().Interface("markers", markers).Msg("Object markers")
	log.Info().
		Str("source", l.Source).
		Int("records", len(records)).
		Int("markers", len(markers)).
		Int("skipped", len(skipped)).
		Dur("duration", time.Since(start)).
		Msg("Objects loaded")

	return Result[[]geo.MapMarker]{Data: markers, Skipped: skipped}
}

func fetchRecords(ctx context.Context, f Fetcher, source string) ([]json.RawMessage, error) {
	body, err := f.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	return ParseRecords(body)
}

func logSkipped(source string, skipped []RecordError) {
	for _, e := range skipped {
		log.Warn().
			Str("source", source).
			Int("index", e.Index).
			Str("reason", e.Reason).
			Msg("Skipping malformed record")
	}
}
