package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.View.Center != [2]float64{32.9011791237137, -117.33099401826159} {
		t.Errorf("center = %v", cfg.View.Center)
	}
	if cfg.View.Zoom != 9 {
		t.Errorf("zoom = %d, want 9", cfg.View.Zoom)
	}
	if cfg.View.ScrollWheelZoom {
		t.Errorf("scroll wheel zoom must be disabled by default")
	}
	if cfg.View.PathColor != "lime" {
		t.Errorf("path color = %q", cfg.View.PathColor)
	}
	if cfg.Tiles.CacheEnabled() {
		t.Errorf("tile cache must be disabled by default")
	}
	if cfg.Data.Paths != "paths.json" || cfg.Data.Objects != "objects.json" {
		t.Errorf("data = %+v", cfg.Data)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
view:
  zoom: 11
  path_color: red
data:
  dir: /srv/data
  objects: https://example.com/objects.json
  timeout: 3s
tiles:
  cache_dir: cache/tiles
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.View.Zoom != 11 || cfg.View.PathColor != "red" {
		t.Errorf("view = %+v", cfg.View)
	}
	if cfg.View.Center != DefaultCenter {
		t.Errorf("center default not applied: %v", cfg.View.Center)
	}
	if cfg.Data.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Data.Timeout)
	}
	if cfg.Data.Paths != "paths.json" {
		t.Errorf("paths default not applied: %q", cfg.Data.Paths)
	}
	if !cfg.Tiles.CacheEnabled() {
		t.Errorf("tile cache should be enabled")
	}
}

func TestLoadZeroCenter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("view:\n  center: [0, 0]\n  zoom: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.View.Center != [2]float64{0, 0} {
		t.Errorf("explicit [0, 0] center replaced by %v", cfg.View.Center)
	}
	if cfg.View.Zoom != 3 {
		t.Errorf("zoom = %d, want 3", cfg.View.Zoom)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v, want ErrNotExist", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("view:\n  center: [120, 10]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("invalid center accepted")
	}
}
