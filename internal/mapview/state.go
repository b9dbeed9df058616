// Package mapview owns the map view state: the flight-path and marker slices,
// their load status and the version counter that drives re-rendering.
package mapview

import (
	"github.com/woozymasta/flightmap/internal/geo"
	"github.com/woozymasta/flightmap/internal/loader"
)

// Status is the load status of one state slice.
type Status string

// Slice statuses.
const (
	StatusPending Status = "pending"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// PathSlice is the flight-path part of the view state.
type PathSlice struct {
	Status  Status               `json:"status"`
	Error   string               `json:"error,omitempty"`
	Points  geo.FlightPath       `json:"points"`
	Skipped []loader.RecordError `json:"skipped,omitempty"`
}

// MarkerSlice is the object-marker part of the view state.
type MarkerSlice struct {
	Status  Status               `json:"status"`
	Error   string               `json:"error,omitempty"`
	Markers []geo.MapMarker      `json:"markers"`
	Skipped []loader.RecordError `json:"skipped,omitempty"`
}

// State is an immutable snapshot of the view.
// Reducers return a new State and never modify slices of the old one.
type State struct {
	FlightPath PathSlice   `json:"flight_path"`
	Objects    MarkerSlice `json:"objects"`
	Version    uint64      `json:"version"`
}

// Reducer derives the next state from the current one.
type Reducer func(State) State

// InitialState returns the state of a freshly created view: both
// collections empty and pending.
func InitialState() State {
	return State{
		FlightPath: PathSlice{Status: StatusPending, Points: geo.FlightPath{}},
		Objects:    MarkerSlice{Status: StatusPending, Markers: []geo.MapMarker{}},
	}
}

// Failed reports whether any slice failed to load.
func (s State) Failed() bool {
	return s.FlightPath.Status == StatusFailed || s.Objects.Status == StatusFailed
}

// Loaded reports whether both slices reached a final status.
func (s State) Loaded() bool {
	return s.FlightPath.Status != StatusPending && s.Objects.Status != StatusPending
}

// WithFlightPath replaces the flight-path slice wholesale with the result.
// A failed result keeps the previous points and records the failure.
func WithFlightPath(res loader.Result[geo.FlightPath]) Reducer {
	return func(s State) State {
		if !res.OK() {
			s.FlightPath = PathSlice{
				Status: StatusFailed,
				Error:  res.Err.Error(),
				Points: s.FlightPath.Points,
			}
			return s
		}

		points := res.Data
		if points == nil {
			points = geo.FlightPath{}
		}
		s.FlightPath = PathSlice{
			Status:  StatusLoaded,
			Points:  points,
			Skipped: res.Skipped,
		}
		return s
	}
}

// WithMarkers replaces the marker slice wholesale with the result.
// A failed result keeps the previous markers and records the failure.
func WithMarkers(res loader.Result[[]geo.MapMarker]) Reducer {
	return func(s State) State {
		if !res.OK() {
			s.Objects = MarkerSlice{
				Status:  StatusFailed,
				Error:   res.Err.Error(),
				Markers: s.Objects.Markers,
			}
			return s
		}

		markers := res.Data
		if markers == nil {
			markers = []geo.MapMarker{}
		}
		s.Objects = MarkerSlice{
			Status:  StatusLoaded,
			Markers: markers,
			Skipped: res.Skipped,
		}
		return s
	}
}
