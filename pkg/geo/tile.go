package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxMercatorLat is the latitude limit of the Web Mercator projection.
const MaxMercatorLat = 85.05112878

// TileID identifies a slippy-map tile.
type TileID struct {
	Zoom int `json:"z"`
	X    int `json:"x"`
	Y    int `json:"y"`
}

// String returns the "z/x/y" form used in tile URLs and cache keys.
func (t TileID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Valid reports whether the indices exist at the tile's zoom level.
func (t TileID) Valid() bool {
	if t.Zoom < 0 || t.Zoom > 30 {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Bound returns the geographic rectangle covered by the tile.
func (t TileID) Bound() orb.Bound {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom)).Bound()
}

// TileIndex converts a coordinate to tile indices at the given zoom using the
// standard slippy-map projection. Latitude is clamped to the Mercator limit and
// both indices are clamped to [0, 2^zoom-1].
func TileIndex(p Point, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))

	lat := math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, p.Lat))
	latRad := lat * math.Pi / 180

	fx := math.Floor((p.Lon + 180) / 360 * n)
	fy := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	maxIdx := int(n) - 1
	return clampIndex(fx, maxIdx), clampIndex(fy, maxIdx)
}

// TileAt is TileIndex returning a TileID.
func TileAt(p Point, zoom int) TileID {
	x, y := TileIndex(p, zoom)
	return TileID{Zoom: zoom, X: x, Y: y}
}

func clampIndex(v float64, maxIdx int) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > float64(maxIdx) {
		return maxIdx
	}
	return int(v)
}

// BBox expands center by radiusDeg in both latitude and longitude.
func BBox(center Point, radiusDeg float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{center.Lon - radiusDeg, center.Lat - radiusDeg},
		Max: orb.Point{center.Lon + radiusDeg, center.Lat + radiusDeg},
	}
}

// FromOrb converts an orb point (lon, lat) to a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// Orb converts the point to an orb point.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}
