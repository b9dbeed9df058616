package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/flightmap/internal/config"
	"github.com/woozymasta/flightmap/internal/geo"
	"github.com/woozymasta/flightmap/internal/loader"
	"github.com/woozymasta/flightmap/internal/mapview"
	"github.com/woozymasta/flightmap/internal/tiles"

	"github.com/paulmach/orb/geojson"
)

type staticLoader[T any] struct {
	res loader.Result[T]
}

func (s staticLoader[T]) Load(context.Context) loader.Result[T] { return s.res }

func newTestServer(t *testing.T) (*ServerContext, *httptest.Server) {
	t.Helper()
	return newTestServerWithTiles(t, nil)
}

func newTestServerWithTiles(t *testing.T, cache *tiles.Cache) (*ServerContext, *httptest.Server) {
	t.Helper()

	view := mapview.NewView(
		staticLoader[geo.FlightPath]{res: loader.Result[geo.FlightPath]{
			Data: geo.FlightPath{{32.8, -117.1}, {32.9, -117.2}},
		}},
		staticLoader[[]geo.MapMarker]{res: loader.Result[[]geo.MapMarker]{
			Data: []geo.MapMarker{{ID: "a", Lat: 32.95, Lon: -117.3}},
		}},
	)
	view.Mount(context.Background())
	view.Wait()
	t.Cleanup(view.Unmount)

	s, err := NewServerContext(config.Default(), view, cache)
	if err != nil {
		t.Fatalf("NewServerContext: %v", err)
	}

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestHandleView(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/view")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var state mapview.State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.FlightPath.Status != mapview.StatusLoaded || len(state.FlightPath.Points) != 2 {
		t.Errorf("flight path = %+v", state.FlightPath)
	}
	if state.FlightPath.Points[0] != (geo.LatLng{32.8, -117.1}) {
		t.Errorf("first point = %v", state.FlightPath.Points[0])
	}
	if len(state.Objects.Markers) != 1 || state.Objects.Markers[0].ID != "a" {
		t.Errorf("objects = %+v", state.Objects)
	}

	// unchanged state answers 304
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/view", nil)
	req.Header.Set("If-None-Match", resp.Header.Get("ETag"))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", resp2.StatusCode)
	}
}

func TestHandleViewMethodNotAllowed(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/view", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleGeoJSON(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/objects.geojson")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("content type = %q", ct)
	}

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Properties["id"] != "a" {
		t.Fatalf("features = %+v", fc.Features)
	}

	resp2, err := http.Get(srv.URL + "/api/flightpath.geojson")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp2.Body.Close() }()

	var f geojson.Feature
	if err := json.NewDecoder(resp2.Body).Decode(&f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Geometry.GeoJSONType() != "LineString" {
		t.Errorf("geometry = %s", f.Geometry.GeoJSONType())
	}
}

func TestHandleIndex(t *testing.T) {
	s, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("ETag") != s.indexETag {
		t.Errorf("etag = %q, want %q", resp.Header.Get("ETag"), s.indexETag)
	}

	// tile cache disabled: tile paths fall through to the index handler
	resp2, err := http.Get(srv.URL + "/tiles/1/0/0.webp")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("tile status = %d, want 404", resp2.StatusCode)
	}
}

func TestHandleEvents(t *testing.T) {
	s, srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	want := "data: " + jsonNumber(s.View.Snapshot().Version) + "\n"
	if line != want {
		t.Fatalf("first event = %q, want %q", line, want)
	}

	// remount produces new versions
	s.View.Unmount()
	if _, err := rd.ReadString('\n'); err != nil { // blank separator
		t.Fatal(err)
	}
	line, err = rd.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(line, "data: ") || line == want {
		t.Fatalf("second event = %q", line)
	}
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestHandleTile(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 200, G: 120, B: 40, A: 255}), image.Point{}, draw.Src)
	var tile bytes.Buffer
	if err := png.Encode(&tile, img); err != nil {
		t.Fatal(err)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/5/0/0.png":
			http.NotFound(w, r)
		case "/6/0/0.png":
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		default:
			_, _ = w.Write(tile.Bytes())
		}
	}))
	defer upstream.Close()

	cfg := config.Default().Tiles
	cfg.URL = upstream.URL + "/{z}/{x}/{y}.png"
	cfg.CacheDir = t.TempDir()
	s, srv := newTestServerWithTiles(t, tiles.NewCache(cfg))

	get := func(path, etag string) (*http.Response, []byte) {
		t.Helper()
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp, body
	}

	for _, path := range []string{
		"/tiles/1/0",
		"/tiles/1/0/0/0.webp",
		"/tiles/1/0/0.png",
		"/tiles/a/0/0.webp",
		"/tiles/1/0/b.webp",
		"/tiles/1/5/0.webp", // outside the zoom 1 grid
		"/tiles/25/0/0.webp",
	} {
		if resp, _ := get(path, ""); resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
	}

	resp, body := get("/tiles/6/0/0.webp", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("upstream error: status=%d cache-control=%q", resp.StatusCode, resp.Header.Get("Cache-Control"))
	}
	if !bytes.Equal(body, s.TransparentTile) {
		t.Errorf("upstream error should answer the transparent tile")
	}

	resp, body = get("/tiles/5/0/0.webp", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Cache-Control") != "public, max-age=3600" {
		t.Errorf("missing tile: status=%d cache-control=%q", resp.StatusCode, resp.Header.Get("Cache-Control"))
	}
	if !bytes.Equal(body, s.TransparentTile) {
		t.Errorf("missing tile should answer the transparent tile")
	}

	resp, body = get("/tiles/2/1/1.webp", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached tile: status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/webp" {
		t.Errorf("content type = %q", ct)
	}
	if len(body) == 0 || bytes.Equal(body, s.TransparentTile) {
		t.Errorf("cached tile body is empty or transparent")
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("cached tile has no ETag")
	}

	if resp, _ := get("/tiles/2/1/1.webp", etag); resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", resp.StatusCode)
	}
}
