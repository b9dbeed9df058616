// Package tiles implements a local WebP cache in front of an upstream
// slippy-map tile server.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/woozymasta/flightmap/internal/config"
	"github.com/woozymasta/flightmap/internal/geo"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// ErrOutOfRange is returned for tiles outside the grid or above MaxZoom.
var ErrOutOfRange = errors.New("tile out of range")

// Cache serves tiles from Dir and fills misses from URLTemplate.
type Cache struct {
	Client      *http.Client
	group       singleflight.Group
	Dir         string
	URLTemplate string
	UserAgent   string
	Subdomains  []string
	next        atomic.Uint64
	MaxZoom     int
	Quality     float32
}

// NewCache builds a cache from the tile configuration.
func NewCache(cfg config.Tiles) *Cache {
	return &Cache{
		Client:      &http.Client{Timeout: cfg.Timeout},
		Dir:         cfg.CacheDir,
		URLTemplate: cfg.URL,
		UserAgent:   cfg.UserAgent,
		Subdomains:  cfg.Subdomains,
		MaxZoom:     cfg.MaxZoom,
		Quality:     cfg.Quality,
	}
}

// Path returns the cache file of a tile.
func (c *Cache) Path(t geo.TileCoordinate) string {
	return filepath.Join(
		c.Dir,
		strconv.Itoa(t.Z),
		strconv.Itoa(t.X),
		strconv.Itoa(t.Y)+".webp")
}

// Get returns the cache file of a tile, downloading it on a miss.
// found is false when upstream has no usable tile for the coordinate.
// Concurrent misses for the same tile share one download; a caller that
// gives up does not cancel it for the others.
func (c *Cache) Get(ctx context.Context, t geo.TileCoordinate) (path string, found bool, err error) {
	return c.get(ctx, t, false)
}

func (c *Cache) get(ctx context.Context, t geo.TileCoordinate, force bool) (string, bool, error) {
	if !t.Valid() || (c.MaxZoom > 0 && t.Z > c.MaxZoom) {
		return "", false, fmt.Errorf("%w: %d/%d/%d", ErrOutOfRange, t.Z, t.X, t.Y)
	}

	path := c.Path(t)
	if !force {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, true, nil
		}
	}

	// The shared download outlives any single caller; Client.Timeout bounds it.
	ch := c.group.DoChan(path, func() (any, error) {
		return c.downloadAndConvert(context.WithoutCancel(ctx), t, path)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return "", false, res.Err
	}

	found := res.Val.(bool)
	if !found {
		return "", false, nil
	}

	return path, true, nil
}

// downloadAndConvert fetches the upstream tile, re-encodes it as WebP and
// stores it under path.
func (c *Cache) downloadAndConvert(ctx context.Context, t geo.TileCoordinate, path string) (bool, error) {
	url := c.buildURL(t)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status code %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	img, _, err := image.Decode(bytes.NewReader(bodyBytes))
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Failed to decode image")
		return false, nil // Not an image or corrupted
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return false, nil
	}

	if err := c.store(path, img); err != nil {
		return false, err
	}

	log.Trace().Str("url", url).Str("path", path).Msg("Tile cached")
	return true, nil
}

// store encodes into a temporary file and renames it so readers never see
// a partial tile.
func (c *Cache) store(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := webp.Encode(tmp, img, &webp.Options{Lossless: false, Quality: c.Quality}); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func (c *Cache) buildURL(t geo.TileCoordinate) string {
	s := strings.ReplaceAll(c.URLTemplate, "{z}", strconv.Itoa(t.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(t.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(t.Y))

	if strings.Contains(s, "{s}") {
		sub := "a"
		if len(c.Subdomains) > 0 {
			n := c.next.Add(1)
			sub = c.Subdomains[int(n%uint64(len(c.Subdomains)))]
		}
		s = strings.ReplaceAll(s, "{s}", sub)
	}

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << t.Z) - 1
		tmsY := maxCoord - t.Y
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(tmsY))
	}

	return s
}

var transparentTile = sync.OnceValue(func() []byte {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		log.Error().Err(err).Msg("Failed to encode transparent tile")
		return nil
	}
	return buf.Bytes()
})

// TransparentTile returns a 256x256 fully transparent WebP tile.
func TransparentTile() []byte {
	return transparentTile()
}
