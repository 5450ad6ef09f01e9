// Package tiles plans and fetches the map tiles around a position so the map
// keeps working without connectivity.
package tiles

import (
	"fmt"
	"strconv"
	"strings"

	"headsup/pkg/geo"
)

// Region describes the area to cache: a degree box around Center over the
// zoom levels BaseZoom+ZoomBand[0] .. BaseZoom+ZoomBand[1].
type Region struct {
	Center    geo.Point
	BaseZoom  int
	RadiusDeg float64
	ZoomBand  [2]int
}

// Limits bounds the zoom levels a Region may expand to.
type Limits struct {
	MinZoom int
	MaxZoom int
}

// DefaultLimits matches the zoom levels a street-level minimap uses.
func DefaultLimits() Limits {
	return Limits{MinZoom: 13, MaxZoom: 19}
}

// DefaultRegion is a 0.02° box at zoom-2 .. zoom+2.
func DefaultRegion(center geo.Point, zoom int) Region {
	return Region{
		Center:    center,
		BaseZoom:  zoom,
		RadiusDeg: 0.02,
		ZoomBand:  [2]int{-2, 2},
	}
}

// Zooms returns the clamped inclusive zoom range. ok is false when the range
// is empty.
func (r Region) Zooms(l Limits) (lo, hi int, ok bool) {
	lo = max(r.BaseZoom+r.ZoomBand[0], l.MinZoom)
	hi = min(r.BaseZoom+r.ZoomBand[1], l.MaxZoom)
	return lo, hi, lo <= hi
}

// Plan lists every tile covering the region, ordered by zoom, then x, then y.
// Each tile appears once.
func Plan(r Region, l Limits) []geo.TileID {
	lo, hi, ok := r.Zooms(l)
	if !ok || !r.Center.Valid() || r.RadiusDeg < 0 {
		return nil
	}

	box := geo.BBox(r.Center, r.RadiusDeg)
	nw := geo.Point{Lat: box.Max.Lat(), Lon: box.Min.Lon()}
	se := geo.Point{Lat: box.Min.Lat(), Lon: box.Max.Lon()}

	var out []geo.TileID
	for z := lo; z <= hi; z++ {
		x0, y0 := geo.TileIndex(nw, z)
		x1, y1 := geo.TileIndex(se, z)
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				out = append(out, geo.TileID{Zoom: z, X: x, Y: y})
			}
		}
	}
	return out
}

// DefaultTemplate is the OpenStreetMap standard tile layer.
const DefaultTemplate = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

// Source builds tile URLs from a template with {s}, {z}, {x} and {y}
// placeholders.
type Source struct {
	URLTemplate string
	Subdomains  []string
}

// URL returns the address of t. The first subdomain is always used so a tile
// maps to exactly one cache entry.
func (s Source) URL(t geo.TileID) string {
	tmpl := s.URLTemplate
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	sub := "a"
	if len(s.Subdomains) > 0 && s.Subdomains[0] != "" {
		sub = s.Subdomains[0]
	}
	return strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(t.Zoom),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	).Replace(tmpl)
}

// Validate reports templates that cannot address individual tiles.
func (s Source) Validate() error {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if s.URLTemplate != "" && !strings.Contains(s.URLTemplate, p) {
			return fmt.Errorf("tile url template %q lacks %s", s.URLTemplate, p)
		}
	}
	return nil
}
