package loader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/woozymasta/flightmap/internal/geo"
)

// rawRecord is the part of an input record both resources share.
type rawRecord struct {
	Coordinates json.RawMessage `json:"coordinates"`
	ID          json.RawMessage `json:"id"`
}

// ParseRecords splits a JSON array body into raw records.
func ParseRecords(body []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: body is not a JSON array", ErrParse)
	}

	return records, nil
}

// ExtractFlightPath takes coordinates[0] = [lon, lat, ...] of every record
// and returns the (lat, lon) pairs in input order.
// Malformed records are skipped and reported.
func ExtractFlightPath(records []json.RawMessage) (geo.FlightPath, []RecordError) {
	path := make(geo.FlightPath, 0, len(records))
	var skipped []RecordError

	for i, raw := range records {
		rec, err := decodeRecord(raw)
		if err != nil {
			skipped = append(skipped, RecordError{Index: i, Reason: err.Error()})
			continue
		}

		vertex, err := element(rec.Coordinates, 0, "coordinates")
		if err != nil {
			skipped = append(skipped, RecordError{Index: i, Reason: err.Error()})
			continue
		}

		p, err := swapLonLat(vertex, "coordinates[0]")
		if err != nil {
			skipped = append(skipped, RecordError{Index: i, Reason: err.Error()})
			continue
		}

		path = append(path, p)
	}

	return path, skipped
}

// ExtractMarkers takes the first vertex of each bounding-box record,
// coordinates[0][0] = [lon, lat, ...], together with its id.
// Malformed records are skipped and reported.
func ExtractMarkers(records []json.RawMessage) ([]geo.MapMarker, []RecordError) {
	markers := make([]geo.MapMarker, 0, len(records))
	var skipped []RecordError

	for i, raw := range records {
		m, err := extractMarker(raw)
		if err != nil {
			skipped = append(skipped, RecordError{Index: i, Reason: err.Error()})
			continue
		}
		markers = append(markers, m)
	}

	return markers, skipped
}

func extractMarker(raw json.RawMessage) (geo.MapMarker, error) {
	rec, err := decodeRecord(raw)
	if err != nil {
		return geo.MapMarker{}, err
	}

	ring, err := element(rec.Coordinates, 0, "coordinates")
	if err != nil {
		return geo.MapMarker{}, err
	}
	vertex, err := element(ring, 0, "coordinates[0]")
	if err != nil {
		return geo.MapMarker{}, err
	}
	p, err := swapLonLat(vertex, "coordinates[0][0]")
	if err != nil {
		return geo.MapMarker{}, err
	}

	id, err := identifier(rec.ID)
	if err != nil {
		return geo.MapMarker{}, err
	}

	return geo.MapMarker{ID: id, Lat: p.Lat(), Lon: p.Lon()}, nil
}

// DuplicateIDs returns every identifier used by more than one marker,
// in order of first repetition.
func DuplicateIDs(markers []geo.MapMarker) []string {
	seen := make(map[string]int, len(markers))
	var dups []string
	for _, m := range markers {
		seen[m.ID]++
		if seen[m.ID] == 2 {
			dups = append(dups, m.ID)
		}
	}

	return dups
}

func decodeRecord(raw json.RawMessage) (rawRecord, error) {
	var rec rawRecord
	if isNull(raw) || bytes.TrimSpace(raw)[0] != '{' {
		return rec, fmt.Errorf("record is not an object")
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("record is not an object: %w", err)
	}

	return rec, nil
}

// element returns raw[i] where raw must be a JSON array.
func element(raw json.RawMessage, i int, name string) (json.RawMessage, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("missing %s", name)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s is not an array", name)
	}
	if i >= len(items) {
		return nil, fmt.Errorf("%s has no element %d", name, i)
	}

	return items[i], nil
}

// swapLonLat reads [lon, lat, ...] and returns (lat, lon).
func swapLonLat(raw json.RawMessage, name string) (geo.LatLng, error) {
	if isNull(raw) {
		return geo.LatLng{}, fmt.Errorf("missing %s", name)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return geo.LatLng{}, fmt.Errorf("%s is not an array", name)
	}
	if len(items) < 2 {
		return geo.LatLng{}, fmt.Errorf("%s has %d entries, need longitude and latitude", name, len(items))
	}

	lon, err := number(items[0])
	if err != nil {
		return geo.LatLng{}, fmt.Errorf("%s longitude: %w", name, err)
	}
	lat, err := number(items[1])
	if err != nil {
		return geo.LatLng{}, fmt.Errorf("%s latitude: %w", name, err)
	}

	return geo.LatLng{lat, lon}, nil
}

func number(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, fmt.Errorf("null is not a number")
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%s is not a number", bytes.TrimSpace(raw))
	}

	return v, nil
}

// identifier returns a string id unquoted and a numeric id as its literal text.
func identifier(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", fmt.Errorf("missing id")
	}

	raw = bytes.TrimSpace(raw)
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid id: %w", err)
		}
		return s, nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("invalid id: %w", err)
		}
		return n.String(), nil
	default:
		return "", fmt.Errorf("id must be a string or number")
	}
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
