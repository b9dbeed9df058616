// Package page renders the minified map page from the embedded assets.
package page

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"text/template"

	"github.com/woozymasta/flightmap/assets"
	"github.com/woozymasta/flightmap/internal/config"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// LeafletVersion is the Leaflet release loaded by the page.
const LeafletVersion = "1.9.4"

// LocalTileURL is the tile template used when the tile cache is enabled.
const LocalTileURL = "tiles/{z}/{x}/{y}.webp"

// ClientConfig is the static view configuration handed to the page script.
type ClientConfig struct {
	TileURL         string     `json:"tile_url"`
	Attribution     string     `json:"attribution"`
	PathColor       string     `json:"path_color"`
	Center          [2]float64 `json:"center"`
	Zoom            int        `json:"zoom"`
	MaxZoom         int        `json:"max_zoom"`
	ScrollWheelZoom bool       `json:"scroll_wheel_zoom"`
}

type pageData struct {
	Title          string
	LeafletVersion string
	CSS            string
	JS             string
	Config         string
}

// NewMinifier returns a minifier for the page media types.
func NewMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", mhtml.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

// NewClientConfig derives the page configuration. With the tile cache
// enabled the page loads tiles from this server instead of upstream.
func NewClientConfig(cfg *config.Config) ClientConfig {
	tileURL := cfg.Tiles.URL
	if cfg.Tiles.CacheEnabled() {
		tileURL = LocalTileURL
	}

	return ClientConfig{
		TileURL:         tileURL,
		Attribution:     cfg.Tiles.Attribution,
		PathColor:       cfg.View.PathColor,
		Center:          cfg.View.Center,
		Zoom:            cfg.View.Zoom,
		MaxZoom:         cfg.Tiles.MaxZoom,
		ScrollWheelZoom: cfg.View.ScrollWheelZoom,
	}
}

// Render builds the index page.
func Render(m *minify.M, title string, cc ClientConfig) ([]byte, error) {
	cssMin, err := m.String("text/css", assets.Style)
	if err != nil {
		return nil, fmt.Errorf("minify css: %w", err)
	}
	jsMin, err := m.String("text/javascript", assets.Script)
	if err != nil {
		return nil, fmt.Errorf("minify js: %w", err)
	}

	// encoding/json escapes <, > and &, so the result is safe inside <script>
	cfgJSON, err := json.Marshal(cc)
	if err != nil {
		return nil, fmt.Errorf("encode page config: %w", err)
	}

	tmpl, err := template.New("index").Parse(assets.IndexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		Title:          html.EscapeString(title),
		LeafletVersion: LeafletVersion,
		CSS:            cssMin,
		JS:             jsMin,
		Config:         string(cfgJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	out, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}

	return out, nil
}

// Favicon returns the minified site icon.
func Favicon(m *minify.M) ([]byte, error) {
	return m.Bytes("image/svg+xml", assets.Favicon)
}
