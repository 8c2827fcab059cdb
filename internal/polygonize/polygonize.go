// Package polygonize assembles polygons from unordered collections of
// boundary edges.
package polygonize

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Assembly failures.
var (
	ErrNoEdges        = eris.New("polygonize: no edges")
	ErrRingNotClosed  = eris.New("polygonize: ring not closed")
	ErrDegenerateRing = eris.New("polygonize: ring has fewer than 4 points")
)

// Options tunes edge chaining.
type Options struct {
	// Tolerance is the distance within which two endpoints are the same node.
	// Zero requires exact equality.
	Tolerance float64

	// BestEffort closes rings that do not return to their start and drops
	// degenerate rings instead of failing.
	BestEffort bool
}

// BuildFromEdges chains the edges into rings and returns them as a polygon
// whose exterior is the ring of largest area. Edges may be given in any
// order and direction. The polygon takes the SRID of the first edge.
func BuildFromEdges(edges []*geom.LineString, opts Options) (*geom.Polygon, error) {
	parts := make([][]geom.Coord, 0, len(edges))
	srid := 0
	for _, e := range edges {
		if e == nil || e.NumCoords() < 2 {
			continue
		}
		if len(parts) == 0 {
			srid = e.SRID()
		}
		parts = append(parts, e.Coords())
	}
	if len(parts) == 0 {
		return nil, ErrNoEdges
	}

	rings, err := chainRings(parts, opts)
	if err != nil {
		return nil, err
	}
	if len(rings) == 0 {
		return nil, ErrDegenerateRing
	}

	exterior := 0
	for i := range rings {
		if math.Abs(SignedArea(rings[i])) > math.Abs(SignedArea(rings[exterior])) {
			exterior = i
		}
	}
	ordered := make([][]geom.Coord, 0, len(rings))
	ordered = append(ordered, rings[exterior])
	for i, r := range rings {
		if i != exterior {
			ordered = append(ordered, r)
		}
	}

	poly, err := geom.NewPolygon(geom.XY).SetCoords(ordered)
	if err != nil {
		return nil, eris.Wrap(err, "polygonize: set polygon coordinates")
	}
	return poly.SetSRID(srid), nil
}

// chainRings links edges end to end until each ring returns to its start.
func chainRings(parts [][]geom.Coord, opts Options) ([][]geom.Coord, error) {
	used := make([]bool, len(parts))
	var rings [][]geom.Coord

	for start := range parts {
		if used[start] {
			continue
		}
		used[start] = true
		ring := append([]geom.Coord(nil), parts[start]...)

		for !closed(ring, opts.Tolerance) {
			next, reverse := findNext(parts, used, ring[len(ring)-1], opts.Tolerance)
			if next < 0 {
				break
			}
			used[next] = true
			ring = appendEdge(ring, parts[next], reverse)
		}

		if !closed(ring, opts.Tolerance) {
			if !opts.BestEffort {
				return nil, eris.Wrapf(ErrRingNotClosed, "ring starting at %v ends at %v", ring[0], ring[len(ring)-1])
			}
			ring = append(ring, ring[0])
		}
		// Snap the closing vertex so the ring is exactly closed.
		ring[len(ring)-1] = ring[0]

		if len(ring) < 4 {
			if opts.BestEffort {
				continue
			}
			return nil, eris.Wrapf(ErrDegenerateRing, "ring starting at %v has %d points", ring[0], len(ring))
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

// findNext returns the first unused edge touching end, and whether it has to
// be walked backwards.
func findNext(parts [][]geom.Coord, used []bool, end geom.Coord, tol float64) (int, bool) {
	for i, p := range parts {
		if used[i] {
			continue
		}
		if same(p[0], end, tol) {
			return i, false
		}
		if same(p[len(p)-1], end, tol) {
			return i, true
		}
	}
	return -1, false
}

// appendEdge extends ring with edge, dropping the shared node.
func appendEdge(ring, edge []geom.Coord, reverse bool) []geom.Coord {
	if !reverse {
		return append(ring, edge[1:]...)
	}
	for i := len(edge) - 2; i >= 0; i-- {
		ring = append(ring, edge[i])
	}
	return ring
}

func closed(ring []geom.Coord, tol float64) bool {
	return len(ring) > 2 && same(ring[0], ring[len(ring)-1], tol)
}

func same(a, b geom.Coord, tol float64) bool {
	if tol <= 0 {
		return a[0] == b[0] && a[1] == b[1]
	}
	return math.Hypot(a[0]-b[0], a[1]-b[1]) <= tol
}

// SignedArea returns the shoelace area of a closed ring: positive when the
// ring runs counter-clockwise.
func SignedArea(ring []geom.Coord) float64 {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}
