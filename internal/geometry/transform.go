// Package geometry relates the three coordinate frames used by the zone
// editor: device space (native to the sensor), room space (anchored to the
// drawn room outline or the device origin) and, via the viewport package,
// screen space. All lengths are millimetres.
//
// Coordinate convention: X grows to the right and Y grows away from the
// sensor, which is downwards on screen. A positive rotation turns the device
// clockwise on screen.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a 2D position in millimetres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns p as a gonum vector.
func (p Point) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// FromVec converts a gonum vector back into a Point.
func FromVec(v r2.Vec) Point { return Point{X: v.X, Y: v.Y} }

// Add returns p+q.
func (p Point) Add(q Point) Point { return FromVec(r2.Add(p.Vec(), q.Vec())) }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return FromVec(r2.Sub(p.Vec(), q.Vec())) }

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return r2.Norm(r2.Sub(p.Vec(), q.Vec())) }

// IsFinite reports whether both coordinates are finite.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Placement is the device position and heading inside room space.
type Placement struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	RotationDeg float64 `json:"rotation_deg"`
}

// Origin returns the placement translation as a point.
func (pl Placement) Origin() Point { return Point{X: pl.X, Y: pl.Y} }

// Normalized returns the placement with its rotation wrapped to [0, 360).
func (pl Placement) Normalized() Placement {
	pl.RotationDeg = NormalizeDeg(pl.RotationDeg)
	return pl
}

// NormalizeDeg wraps an angle in degrees to [0, 360). Both the [0,360) and
// the [-180,180] editing ranges map onto the same value.
func NormalizeDeg(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// SignedDeg wraps an angle to (-180, 180].
func SignedDeg(deg float64) float64 {
	d := NormalizeDeg(deg)
	if d > 180 {
		d -= 360
	}
	return d
}

func radians(deg float64) float64 { return NormalizeDeg(deg) * math.Pi / 180.0 }

// ToRoom maps a device-relative point into room space: rotate by the
// placement heading, then translate by the placement origin.
//
//	rx = dx·cosθ − dy·sinθ + px
//	ry = dx·sinθ + dy·cosθ + py
func ToRoom(p Point, pl Placement) Point {
	rot := r2.NewRotation(radians(pl.RotationDeg), r2.Vec{})
	return FromVec(r2.Add(rot.Rotate(p.Vec()), pl.Origin().Vec()))
}

// ToDevice is the exact inverse of ToRoom: subtract the placement origin,
// then rotate by the negated heading.
func ToDevice(p Point, pl Placement) Point {
	rot := r2.NewRotation(-radians(pl.RotationDeg), r2.Vec{})
	return FromVec(rot.Rotate(r2.Sub(p.Vec(), pl.Origin().Vec())))
}

// PolarToDevice converts a range (mm) and bearing (degrees, 0 = straight
// ahead of the sensor, positive to the right) into device coordinates.
func PolarToDevice(distance, angleDeg float64) Point {
	a := angleDeg * math.Pi / 180.0
	return Point{X: distance * math.Sin(a), Y: distance * math.Cos(a)}
}

// DeviceToPolar is the inverse of PolarToDevice. The angle is in (-180, 180].
func DeviceToPolar(p Point) (distance, angleDeg float64) {
	distance = math.Hypot(p.X, p.Y)
	angleDeg = math.Atan2(p.X, p.Y) * 180.0 / math.Pi
	return distance, angleDeg
}
