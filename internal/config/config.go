// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults of the map view.
const (
	DefaultZoom        = 9
	DefaultPathColor   = "lime"
	DefaultTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
	DefaultMaxZoom     = 19
	DefaultTitle       = "Flight map"
)

// DefaultCenter is the initial map center.
var DefaultCenter = [2]float64{32.9011791237137, -117.33099401826159}

// Config represents the root configuration file structure.
type Config struct {
	Data  Data  `yaml:"data"`
	View  View  `yaml:"view"`
	Tiles Tiles `yaml:"tiles"`
}

// View holds the static rendering parameters of the map page.
type View struct {
	Title           string     `yaml:"title,omitempty" json:"title"`
	PathColor       string     `yaml:"path_color,omitempty" json:"path_color"`
	Center          [2]float64 `yaml:"center,omitempty" json:"center"` // [Lat, Lon]
	Zoom            int        `yaml:"zoom,omitempty" json:"zoom"`
	ScrollWheelZoom bool       `yaml:"scroll_wheel_zoom,omitempty" json:"scroll_wheel_zoom"`

	centerSet bool // center given explicitly, [0, 0] included
}

// UnmarshalYAML records whether the center key was present so that an
// explicit [0, 0] is not replaced by DefaultCenter.
func (v *View) UnmarshalYAML(n *yaml.Node) error {
	type plain View
	if err := n.Decode((*plain)(v)); err != nil {
		return err
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "center" {
				v.centerSet = true
				break
			}
		}
	}
	return nil
}

// Tiles describes the base tile layer and the optional local cache.
type Tiles struct {
	URL         string        `yaml:"url,omitempty"`
	Attribution string        `yaml:"attribution,omitempty"`
	CacheDir    string        `yaml:"cache_dir,omitempty"` // enables the caching proxy
	UserAgent   string        `yaml:"user_agent,omitempty"`
	Subdomains  []string      `yaml:"subdomains,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxZoom     int           `yaml:"max_zoom,omitempty"`
	ZoomLimit   int           `yaml:"zoom_limit,omitempty"` // prefetch depth
	Quality     float32       `yaml:"quality,omitempty"`
}

// Data locates the flight-path and object resources.
// Sources are local paths relative to Dir, or http(s) URLs.
type Data struct {
	Dir     string        `yaml:"dir,omitempty"`
	Paths   string        `yaml:"paths,omitempty"`
	Objects string        `yaml:"objects,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// CacheEnabled reports whether tiles go through the local cache.
func (t Tiles) CacheEnabled() bool { return t.CacheDir != "" }

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if !c.View.centerSet && c.View.Center == [2]float64{} {
		c.View.Center = DefaultCenter
	}
	if c.View.Zoom <= 0 {
		c.View.Zoom = DefaultZoom
	}
	if c.View.PathColor == "" {
		c.View.PathColor = DefaultPathColor
	}
	if c.View.Title == "" {
		c.View.Title = DefaultTitle
	}

	if c.Tiles.URL == "" {
		c.Tiles.URL = DefaultTileURL
	}
	if c.Tiles.Attribution == "" {
		c.Tiles.Attribution = DefaultAttribution
	}
	if len(c.Tiles.Subdomains) == 0 {
		c.Tiles.Subdomains = []string{"a", "b", "c"}
	}
	if c.Tiles.MaxZoom <= 0 {
		c.Tiles.MaxZoom = DefaultMaxZoom
	}
	if c.Tiles.ZoomLimit <= 0 {
		c.Tiles.ZoomLimit = 12
	}
	if c.Tiles.Quality <= 0 {
		c.Tiles.Quality = 80
	}
	if c.Tiles.Timeout <= 0 {
		c.Tiles.Timeout = 15 * time.Second
	}
	if c.Tiles.UserAgent == "" {
		c.Tiles.UserAgent = "flightmap/1.0 (+https://github.com/woozymasta/flightmap)"
	}

	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.Paths == "" {
		c.Data.Paths = "paths.json"
	}
	if c.Data.Objects == "" {
		c.Data.Objects = "objects.json"
	}
	if c.Data.Timeout <= 0 {
		c.Data.Timeout = 10 * time.Second
	}
}

// Validate checks values that would break the page or the tile grid.
func (c *Config) Validate() error {
	lat, lon := c.View.Center[0], c.View.Center[1]
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("view.center %v is not a valid [lat, lon]", c.View.Center)
	}
	if c.View.Zoom > c.Tiles.MaxZoom {
		return fmt.Errorf("view.zoom %d exceeds tiles.max_zoom %d", c.View.Zoom, c.Tiles.MaxZoom)
	}
	if c.Tiles.MaxZoom > 22 {
		return fmt.Errorf("tiles.max_zoom %d is out of range", c.Tiles.MaxZoom)
	}
	if c.Tiles.Quality > 100 {
		return fmt.Errorf("tiles.quality %.0f is out of range", c.Tiles.Quality)
	}

	return nil
}
