package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFlightPathLoaderFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "paths.json", `[{"coordinates":[[-117.1,32.8]]},{"bad":1},{"coordinates":[[-117.2,32.9]]}]`)

	l := NewFlightPathLoader(NewSourceFetcher(dir, time.Second), "")
	if l.Source != DefaultPathsSource {
		t.Fatalf("Source = %q, want default", l.Source)
	}

	res := l.Load(context.Background())
	if !res.OK() {
		t.Fatalf("Load: %v", res.Err)
	}
	if len(res.Data) != 2 {
		t.Fatalf("points = %d, want 2", len(res.Data))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 1 {
		t.Fatalf("skipped = %v", res.Skipped)
	}
}

func TestObjectLoaderFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/objects.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a","coordinates":[[[-117.3,32.95]]]},{"id":"a","coordinates":[[[-117.4,32.96]]]}]`))
	}))
	defer srv.Close()

	l := NewObjectLoader(NewSourceFetcher("", time.Second), srv.URL+"/objects.json")
	res := l.Load(context.Background())
	if !res.OK() {
		t.Fatalf("Load: %v", res.Err)
	}
	// duplicates are kept
	if len(res.Data) != 2 {
		t.Fatalf("markers = %+v", res.Data)
	}
}

func TestLoaderFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewSourceFetcher(t.TempDir(), time.Second)

	res := NewObjectLoader(f, srv.URL+"/objects.json").Load(context.Background())
	if !errors.Is(res.Err, ErrFetch) {
		t.Fatalf("http 500: err = %v, want ErrFetch", res.Err)
	}
	if res.Data != nil {
		t.Errorf("failed load returned data: %v", res.Data)
	}

	res2 := NewFlightPathLoader(f, "missing.json").Load(context.Background())
	if !errors.Is(res2.Err, ErrFetch) || !errors.Is(res2.Err, os.ErrNotExist) {
		t.Fatalf("missing file: err = %v, want ErrFetch wrapping ErrNotExist", res2.Err)
	}
}

func TestLoaderParseFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "paths.json", `not json`)

	res := NewFlightPathLoader(NewSourceFetcher(dir, time.Second), "paths.json").Load(context.Background())
	if !errors.Is(res.Err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", res.Err)
	}
}

func TestLoaderCanceledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "paths.json", `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewFlightPathLoader(NewSourceFetcher(dir, time.Second), "").Load(ctx)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", res.Err)
	}
}
