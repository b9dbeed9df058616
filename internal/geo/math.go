package geo

import "math"

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// TileCoordinate identifies a slippy-map tile.
type TileCoordinate struct {
	Z, X, Y int
}

// Valid reports whether the coordinate lies inside the tile grid of its zoom.
func (c TileCoordinate) Valid() bool {
	if c.Z < 0 || c.Z > 30 {
		return false
	}
	n := 1 << c.Z
	return c.X >= 0 && c.Y >= 0 && c.X < n && c.Y < n
}

// TileAt returns the tile containing the coordinate at the given zoom
// using the Web Mercator projection.
func TileAt(p LatLng, z int) TileCoordinate {
	lat := p.Lat()
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	n := float64(int(1) << z)
	x := int(math.Floor((p.Lon() + 180.0) / 360.0 * n))

	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxIdx := int(n) - 1
	x = clamp(x, 0, maxIdx)
	y = clamp(y, 0, maxIdx)

	return TileCoordinate{Z: z, X: x, Y: y}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bounds is a lat/lon bounding box. The zero value is empty.
type Bounds struct {
	Min, Max LatLng
	set      bool
}

// Empty reports whether no point has been added.
func (b Bounds) Empty() bool { return !b.set }

// Extend grows the box to include p.
func (b *Bounds) Extend(p LatLng) {
	if !b.set {
		b.Min, b.Max, b.set = p, p, true
		return
	}
	b.Min[0] = math.Min(b.Min[0], p[0])
	b.Min[1] = math.Min(b.Min[1], p[1])
	b.Max[0] = math.Max(b.Max[0], p[0])
	b.Max[1] = math.Max(b.Max[1], p[1])
}

// Tiles lists the tiles covering the box for zoom levels minZoom..maxZoom,
// shallow zooms first. Rows run north to south, so the top-left tile comes
// from Max latitude. A positive limit caps the list; truncated reports that
// tiles were left out.
func (b Bounds) Tiles(minZoom, maxZoom, limit int) (tiles []TileCoordinate, truncated bool) {
	if b.Empty() || minZoom > maxZoom {
		return nil, false
	}

	for z := minZoom; z <= maxZoom; z++ {
		nw := TileAt(LatLng{b.Max.Lat(), b.Min.Lon()}, z)
		se := TileAt(LatLng{b.Min.Lat(), b.Max.Lon()}, z)
		for x := nw.X; x <= se.X; x++ {
			for y := nw.Y; y <= se.Y; y++ {
				if limit > 0 && len(tiles) == limit {
					return tiles, true
				}
				tiles = append(tiles, TileCoordinate{Z: z, X: x, Y: y})
			}
		}
	}

	return tiles, false
}
