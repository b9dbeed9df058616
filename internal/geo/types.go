// Package geo handles geographic data structures and coordinate conversions.
package geo

// LatLng is a coordinate pair in degrees, ordered (latitude, longitude).
// It serializes as [lat, lon], the order Leaflet expects.
type LatLng [2]float64

// Lat returns the latitude component.
func (p LatLng) Lat() float64 { return p[0] }

// Lon returns the longitude component.
func (p LatLng) Lon() float64 { return p[1] }

// FlightPath is an ordered sequence of coordinate pairs forming a polyline.
type FlightPath []LatLng

// MapMarker is a labeled point rendered on the map.
// ID is used verbatim as the popup label and as the marker key.
type MapMarker struct {
	ID  string  `json:"id" yaml:"id"`
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Position returns the marker coordinate pair.
func (m MapMarker) Position() LatLng {
	return LatLng{m.Lat, m.Lon}
}
