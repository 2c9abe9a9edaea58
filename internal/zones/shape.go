package zones

import (
	"math"

	"github.com/banshee-data/presence.report/internal/geometry"
)

// Rect is an axis-aligned zone. X,Y is the top-left corner.
type Rect struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Enabled  bool    `json:"enabled"`
	Label    string  `json:"label,omitempty"`
	Revision uint64  `json:"revision"`
}

// Ref returns the slot identity of the zone.
func (r Rect) Ref() Ref { return Ref{ID: r.ID, Kind: r.Kind} }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() geometry.Point {
	return geometry.Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Corners returns the four corners clockwise from the top-left.
func (r Rect) Corners() []geometry.Point {
	return []geometry.Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

// Contains reports whether p lies inside or on the rectangle.
func (r Rect) Contains(p geometry.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ToPolygon converts the rectangle into a 4-vertex polygon.
func (r Rect) ToPolygon() Polygon {
	return Polygon{
		ID:       r.ID,
		Kind:     r.Kind,
		Vertices: r.Corners(),
		Enabled:  r.Enabled,
		Label:    r.Label,
		Revision: r.Revision,
	}
}

// Normalized flips negative extents so Width and Height are non-negative.
func (r Rect) Normalized() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// RectFromCorners builds a rectangle spanning two opposite corners.
func RectFromCorners(a, b geometry.Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Polygon is a free-form zone with at least three vertices.
type Polygon struct {
	ID       string           `json:"id"`
	Kind     Kind             `json:"kind"`
	Vertices []geometry.Point `json:"vertices"`
	Enabled  bool             `json:"enabled"`
	Label    string           `json:"label,omitempty"`
	Revision uint64           `json:"revision"`
}

// Ref returns the slot identity of the zone.
func (p Polygon) Ref() Ref { return Ref{ID: p.ID, Kind: p.Kind} }

// Valid reports whether the polygon has enough vertices.
func (p Polygon) Valid() bool { return len(p.Vertices) >= MinVertices }

// Clone returns a deep copy.
func (p Polygon) Clone() Polygon {
	p.Vertices = append([]geometry.Point(nil), p.Vertices...)
	return p
}

// Contains reports whether pt lies inside the polygon.
func (p Polygon) Contains(pt geometry.Point) bool {
	return geometry.Contains(p.Vertices, pt)
}

// ToRect maps the polygon onto its bounding rectangle.
func (p Polygon) ToRect() Rect {
	r := Rect{ID: p.ID, Kind: p.Kind, Enabled: p.Enabled, Label: p.Label, Revision: p.Revision}
	b, ok := geometry.BoundOf(p.Vertices)
	if !ok {
		r.X, r.Y = -DefaultFootprint/2, -DefaultFootprint/2
		r.Width, r.Height = DefaultFootprint, DefaultFootprint
		return r
	}
	r.X, r.Y = b.Min[0], b.Min[1]
	r.Width, r.Height = b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	return r
}

func placeholderRect(ref Ref) Rect {
	return Rect{
		ID:     ref.ID,
		Kind:   ref.Kind,
		X:      -DefaultFootprint / 2,
		Y:      -DefaultFootprint / 2,
		Width:  DefaultFootprint,
		Height: DefaultFootprint,
	}
}

func placeholderPolygon(ref Ref) Polygon {
	return placeholderRect(ref).ToPolygon()
}
