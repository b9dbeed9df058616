package server

import (
	"fmt"
	"net/http"

	"github.com/woozymasta/flightmap/internal/config"
	"github.com/woozymasta/flightmap/internal/mapview"
	"github.com/woozymasta/flightmap/internal/page"
	"github.com/woozymasta/flightmap/internal/tiles"

	"github.com/rs/zerolog/log"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config          *config.Config
	View            *mapview.View
	Tiles           *tiles.Cache // nil when the tile cache is disabled
	IndexHTML       []byte
	Favicon         []byte
	TransparentTile []byte
	indexETag       string
}

// NewServerContext renders the page and wires the view and tile cache.
func NewServerContext(cfg *config.Config, view *mapview.View, cache *tiles.Cache) (*ServerContext, error) {
	m := page.NewMinifier()

	index, err := page.Render(m, cfg.View.Title, page.NewClientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	favicon, err := page.Favicon(m)
	if err != nil {
		return nil, fmt.Errorf("render favicon: %w", err)
	}

	log.Debug().
		Int("index_bytes", len(index)).
		Bool("tile_cache", cache != nil).
		Msg("Server context initialized")

	return &ServerContext{
		Config:          cfg,
		View:            view,
		Tiles:           cache,
		IndexHTML:       index,
		Favicon:         favicon,
		TransparentTile: tiles.TransparentTile(),
		indexETag:       contentETag(index),
	}, nil
}

// Routes returns the request logging handler serving every endpoint.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/view", s.HandleView)
	mux.HandleFunc("/api/events", s.HandleEvents)
	mux.HandleFunc("/api/flightpath.geojson", s.HandleFlightPathGeoJSON)
	mux.HandleFunc("/api/objects.geojson", s.HandleObjectsGeoJSON)
	mux.HandleFunc("/healthz", s.HandleHealth)
	mux.HandleFunc("/favicon.ico", s.HandleFavicon)
	if s.Tiles != nil {
		mux.HandleFunc("/tiles/", s.HandleTile)
	}
	mux.HandleFunc("/", s.HandleIndex)

	return RequestLogger(mux)
}
