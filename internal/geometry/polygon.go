package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Shell is an ordered list of wall corners. Zero points means no room has
// been drawn, one or two points are a shell in progress and three or more
// describe a closed (or nearly closed) outline.
type Shell []Point

// Closed reports whether the shell has enough corners to describe a room.
func (s Shell) Closed() bool { return len(s) >= 3 }

// Centroid returns the mean of the points, or the origin for an empty list.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}

// ToOrb converts points into an orb ring.
func ToOrb(pts []Point) orb.Ring {
	r := make(orb.Ring, len(pts))
	for i, p := range pts {
		r[i] = orb.Point{p.X, p.Y}
	}
	return r
}

// BoundOf returns the axis-aligned bounding box of the points. The second
// return value is false for an empty list.
func BoundOf(pts []Point) (orb.Bound, bool) {
	if len(pts) == 0 {
		return orb.Bound{}, false
	}
	return orb.MultiPoint(ToOrb(pts)).Bound(), true
}

// Contains reports whether p lies inside the polygon described by the
// vertices. The ring is closed implicitly.
func Contains(vertices []Point, p Point) bool {
	if len(vertices) < 3 {
		return false
	}
	ring := ToOrb(vertices)
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return planar.RingContains(ring, orb.Point{p.X, p.Y})
}

// NearestOnSegment projects p onto segment ab and returns the projected
// point and the parameter t in [0,1] along the segment.
func NearestOnSegment(p, a, b Point) (Point, float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return Point{X: a.X + t*dx, Y: a.Y + t*dy}, t
}

// NearestEdge finds the closed-polygon edge closest to p. It returns the
// index i of the edge (vertices[i] -> vertices[i+1 mod n]), the projected
// point and its distance from p. i is -1 for fewer than two vertices.
func NearestEdge(vertices []Point, p Point) (int, Point, float64) {
	best, bestPt, bestDist := -1, Point{}, math.Inf(1)
	n := len(vertices)
	if n < 2 {
		return best, bestPt, bestDist
	}
	for i := 0; i < n; i++ {
		a, b := vertices[i], vertices[(i+1)%n]
		q, _ := NearestOnSegment(p, a, b)
		if d := q.Dist(p); d < bestDist {
			best, bestPt, bestDist = i, q, d
		}
	}
	return best, bestPt, bestDist
}

// Translate returns a copy of the vertices shifted by d.
func Translate(pts []Point, d Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = p.Add(d)
	}
	return out
}
