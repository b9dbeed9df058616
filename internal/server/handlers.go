// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/flightmap/internal/geo"
	"github.com/woozymasta/flightmap/internal/tiles"

	"github.com/rs/zerolog/log"
)

const (
	etagCap           = 64
	keepAliveInterval = 30 * time.Second
)

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	if match := r.Header.Get("If-None-Match"); match == s.indexETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", s.indexETag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/favicon.ico" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleHealth reports liveness.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	writeJSON(w, r, http.StatusOK, "application/json", map[string]string{"status": "ok"})
}

// HandleView serves the current view state. The version doubles as ETag.
func (s *ServerContext) HandleView(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	state := s.View.Snapshot()
	etag := `"v` + strconv.FormatUint(state.Version, 10) + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, r, http.StatusOK, "application/json", state)
}

// HandleEvents streams the state version as Server-Sent Events, once on
// connect and after every change, until the client goes away.
func (s *ServerContext) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	versions, unsubscribe := s.View.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, s.View.Snapshot().Version); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case v := <-versions:
			if err := writeEvent(w, v); err != nil {
				log.Debug().Err(err).Str("ip", r.RemoteAddr).Msg("Event stream closed")
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, version uint64) error {
	_, err := fmt.Fprintf(w, "data: %d\n\n", version)
	return err
}

// HandleFlightPathGeoJSON serves the flight path as a LineString feature.
func (s *ServerContext) HandleFlightPathGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	state := s.View.Snapshot()
	writeJSON(w, r, http.StatusOK, "application/geo+json", geo.FlightPathFeature(state.FlightPath.Points))
}

// HandleObjectsGeoJSON serves the markers as a FeatureCollection of points.
func (s *ServerContext) HandleObjectsGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	state := s.View.Snapshot()
	writeJSON(w, r, http.StatusOK, "application/geo+json", geo.MarkersCollection(state.Objects.Markers))
}

// HandleTile serves cached tiles: /tiles/{z}/{x}/{y}.webp.
// Tiles upstream does not have are answered with a transparent tile.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || !strings.HasSuffix(parts[3], ".webp") {
		http.NotFound(w, r)
		return
	}

	z, errZ := strconv.Atoi(parts[1])
	x, errX := strconv.Atoi(parts[2])
	y, errY := strconv.Atoi(strings.TrimSuffix(parts[3], ".webp"))
	if errZ != nil || errX != nil || errY != nil {
		http.NotFound(w, r)
		return
	}

	coord := geo.TileCoordinate{Z: z, X: x, Y: y}
	path, found, err := s.Tiles.Get(r.Context(), coord)
	switch {
	case errors.Is(err, tiles.ErrOutOfRange):
		http.NotFound(w, r)
		return
	case err != nil:
		log.Warn().Err(err).Int("z", z).Int("x", x).Int("y", y).Msg("Failed to fetch tile")
		w.Header().Set("Content-Type", "image/webp")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(s.TransparentTile)
		return
	case found && s.serveFile(w, r, path, "image/webp"):
		return
	}

	// cache transparent tile
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.TransparentTile)
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}

	w.Header().Set("Allow", "GET, HEAD")
	writeJSON(w, r, http.StatusMethodNotAllowed, "application/json", map[string]string{"error": "method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Encode failed")
	}
}

func contentETag(b []byte) string {
	return fmt.Sprintf(`"%x-%x"`, len(b), crc32.ChecksumIEEE(b))
}
