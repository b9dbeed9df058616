package mapview

import (
	"context"
	"sync"

	"github.com/woozymasta/flightmap/internal/geo"
	"github.com/woozymasta/flightmap/internal/loader"

	"github.com/rs/zerolog/log"
)

// Loader loads one resource into a Result.
type Loader[T any] interface {
	Load(ctx context.Context) loader.Result[T]
}

// View runs both loaders once per mount and keeps their results in a Store.
// Loads are bound to the mount: Unmount cancels them and drops late results.
type View struct {
	store   *Store
	paths   Loader[geo.FlightPath]
	objects Loader[[]geo.MapMarker]
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	mounted bool
}

// NewView returns an unmounted view with empty state.
func NewView(paths Loader[geo.FlightPath], objects Loader[[]geo.MapMarker]) *View {
	return &View{
		store:   NewStore(),
		paths:   paths,
		objects: objects,
	}
}

// Mount starts both loads in the background. Mounting a mounted view does nothing.
func (v *View) Mount(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.mounted {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mounted = true
	gen := v.store.Reset()

	log.Debug().Uint64("generation", gen).Msg("Mounting map view")

	v.wg.Add(2)
	go func() {
		defer v.wg.Done()
		res := v.paths.Load(ctx)
		v.apply(gen, "flight_path", WithFlightPath(res))
	}()
	go func() {
		defer v.wg.Done()
		res := v.objects.Load(ctx)
		v.apply(gen, "objects", WithMarkers(res))
	}()
}

// Unmount cancels pending loads and discards the state.
func (v *View) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return
	}

	v.cancel()
	v.mounted = false
	v.store.Reset()

	log.Debug().Msg("Map view unmounted")
}

// Wait blocks until the loads of the last mount have finished.
func (v *View) Wait() {
	v.wg.Wait()
}

// Snapshot returns the current state.
func (v *View) Snapshot() State {
	return v.store.Snapshot()
}

// Subscribe returns a channel of state versions, see Store.Subscribe.
func (v *View) Subscribe() (<-chan uint64, func()) {
	return v.store.Subscribe()
}

func (v *View) apply(gen uint64, slice string, reduce Reducer) {
	if !v.store.Apply(gen, reduce) {
		log.Debug().
			Str("slice", slice).
			Uint64("generation", gen).
			Msg("Discarding result of unmounted view")
		return
	}

	log.Trace().Str("slice", slice).Msg("View state replaced")
}
