package tiles

import (
	"context"
	"sync"

	"github.com/woozymasta/flightmap/internal/geo"

	"github.com/rs/zerolog/log"
)

// Stats summarizes a prefetch run.
type Stats struct {
	Cached  int // present after the run
	Missing int // upstream has no tile
	Failed  int
}

type job struct {
	Coord geo.TileCoordinate
}

type result struct {
	Coord geo.TileCoordinate
	Err   error
	Valid bool
}

// Prefetch downloads tiles with a pool of concurrency workers.
// Existing tiles are kept unless force is set.
func (c *Cache) Prefetch(ctx context.Context, tiles []geo.TileCoordinate, concurrency int, force bool) Stats {
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan job, len(tiles))
	results := make(chan result, len(tiles))

	go func() {
		defer close(jobs)
		for _, t := range tiles {
			select {
			case jobs <- job{Coord: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					return
				}
				_, found, err := c.get(ctx, j.Coord, force)
				if err != nil {
					log.Trace().
						Err(err).
						Str("url", c.buildURL(j.Coord)).
						Msg("Failed to download tile")
				}
				results <- result{Coord: j.Coord, Valid: found, Err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	var stats Stats
	for res := range results {
		switch {
		case res.Err != nil:
			stats.Failed++
		case res.Valid:
			stats.Cached++
		default:
			stats.Missing++
		}
	}

	return stats
}
