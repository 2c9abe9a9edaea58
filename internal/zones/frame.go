package zones

import (
	"github.com/banshee-data/presence.report/internal/geometry"
)

// Transform maps the rectangle through f and returns the axis-aligned
// bounds of the mapped corners. For rotations that are not a multiple of
// 90 degrees the result is larger than the original.
func (r Rect) Transform(f func(geometry.Point) geometry.Point) Rect {
	return r.Normalized().ToPolygon().Transform(f).ToRect()
}

// Transform maps every vertex through f.
func (p Polygon) Transform(f func(geometry.Point) geometry.Point) Polygon {
	out := p.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = f(v)
	}
	return out
}

// ToDevice moves the zone set from room space into the frame of a device
// placed at pl.
func (s Set) ToDevice(pl geometry.Placement) Set {
	return s.transform(func(p geometry.Point) geometry.Point { return geometry.ToDevice(p, pl) })
}

// ToRoom moves a device-frame zone set into room space.
func (s Set) ToRoom(pl geometry.Placement) Set {
	return s.transform(func(p geometry.Point) geometry.Point { return geometry.ToRoom(p, pl) })
}

func (s Set) transform(f func(geometry.Point) geometry.Point) Set {
	out := Set{Mode: s.Mode}
	if s.Rects != nil {
		out.Rects = make([]Rect, len(s.Rects))
		for i, r := range s.Rects {
			out.Rects[i] = r.Transform(f)
		}
	}
	if s.Polygons != nil {
		out.Polygons = make([]Polygon, len(s.Polygons))
		for i, p := range s.Polygons {
			out.Polygons[i] = p.Transform(f)
		}
	}
	return out
}
