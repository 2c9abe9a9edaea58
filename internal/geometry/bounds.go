package geometry

import "math"

// Bounds is the axis-aligned region zone geometry may occupy.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// RangeBounds returns the square [-r, r] x [-r, r] around the room origin.
func RangeBounds(r float64) Bounds {
	r = math.Abs(r)
	return Bounds{MinX: -r, MinY: -r, MaxX: r, MaxY: r}
}

// ClampX limits x to the horizontal range.
func (b Bounds) ClampX(x float64) float64 { return math.Max(b.MinX, math.Min(b.MaxX, x)) }

// ClampY limits y to the vertical range.
func (b Bounds) ClampY(y float64) float64 { return math.Max(b.MinY, math.Min(b.MaxY, y)) }

// ClampPoint limits p to the bounds.
func (b Bounds) ClampPoint(p Point) Point {
	return Point{X: b.ClampX(p.X), Y: b.ClampY(p.Y)}
}

// ClampSpan clamps the start coordinate of a span of the given size so the
// whole span fits inside [lo, hi]. A span larger than the range starts at lo.
func ClampSpan(start, size, lo, hi float64) float64 {
	if size >= hi-lo {
		return lo
	}
	if start < lo {
		return lo
	}
	if start+size > hi {
		return hi - size
	}
	return start
}

// Snap rounds v to the nearest multiple of step. A non-positive step leaves
// v unchanged.
func Snap(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

// SnapWithin snaps v to a multiple of step that also lies inside [lo, hi]
// when such a multiple exists.
func SnapWithin(v, step, lo, hi float64) float64 {
	if step <= 0 {
		return math.Max(lo, math.Min(hi, v))
	}
	s := Snap(v, step)
	if s > hi {
		s = math.Floor(hi/step) * step
	}
	if s < lo {
		s = math.Ceil(lo/step) * step
	}
	return s
}
