package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxBodySize caps a single resource body.
const maxBodySize = 64 << 20

// Fetcher retrieves a raw resource body.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// SourceFetcher reads http(s) URLs with Client and everything else from disk,
// relative paths being resolved against BaseDir.
type SourceFetcher struct {
	Client  *http.Client
	BaseDir string
}

// NewSourceFetcher returns a fetcher with a bounded HTTP client.
func NewSourceFetcher(baseDir string, timeout time.Duration) *SourceFetcher {
	return &SourceFetcher{
		Client:  &http.Client{Timeout: timeout},
		BaseDir: baseDir,
	}
}

// Fetch returns the resource body. Every failure wraps ErrFetch.
func (f *SourceFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return f.fetchURL(ctx, source)
	}

	return f.readFile(ctx, source)
}

func (f *SourceFetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, url, err)
	}

	return body, nil
}

func (f *SourceFetcher) readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, path, err)
	}

	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = file.Close() }()

	body, err := io.ReadAll(io.LimitReader(file, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, path, err)
	}

	return body, nil
}
