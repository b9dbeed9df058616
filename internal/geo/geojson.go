package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// point converts a coordinate pair to orb order [Lon, Lat].
func point(p LatLng) orb.Point {
	return orb.Point{p.Lon(), p.Lat()}
}

// FlightPathFeature builds a LineString feature tracing the path in order.
func FlightPathFeature(path FlightPath) *geojson.Feature {
	line := make(orb.LineString, 0, len(path))
	for _, p := range path {
		line = append(line, point(p))
	}

	f := geojson.NewFeature(line)
	f.Properties["name"] = "flight_path"
	f.Properties["points"] = len(path)

	return f
}

// MarkerFeatures builds one Point feature per marker with the identifier
// stored both as feature id and as "id" property.
func MarkerFeatures(markers []MapMarker) []*geojson.Feature {
	features := make([]*geojson.Feature, 0, len(markers))
	for _, m := range markers {
		f := geojson.NewFeature(point(m.Position()))
		f.ID = m.ID
		f.Properties["id"] = m.ID
		features = append(features, f)
	}

	return features
}

// MarkersCollection wraps marker features into a FeatureCollection.
func MarkersCollection(markers []MapMarker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = MarkerFeatures(markers)
	return fc
}

// Collection combines the flight path and markers into one FeatureCollection.
// The path feature is omitted when it has no points.
func Collection(path FlightPath, markers []MapMarker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(path) > 0 {
		fc.Append(FlightPathFeature(path))
	}
	for _, f := range MarkerFeatures(markers) {
		fc.Append(f)
	}

	return fc
}
