package editor

import (
	"math"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

func (e *Editor) radiusFor(ref zones.Ref) float64 {
	if e.hover != nil && e.hover.Ref == ref {
		return e.cfg.HoverHandleRadius
	}
	return e.cfg.HandleRadius
}

func (e *Editor) hittable(ref zones.Ref) bool {
	_, gone := e.vanishing[ref]
	return !gone
}

// hitTest finds the topmost zone element under a screen position. Handles
// win over bodies; later zones are drawn on top of earlier ones.
func (e *Editor) hitTest(pos geometry.Point) (Hover, bool) {
	if e.set.Mode == zones.PolygonMode {
		return e.hitPolygon(pos)
	}
	return e.hitRect(pos)
}

func (e *Editor) hitRect(pos geometry.Point) (Hover, bool) {
	rects := e.set.Rects
	for i := len(rects) - 1; i >= 0; i-- {
		r := rects[i]
		if !r.Enabled || !e.hittable(r.Ref()) {
			continue
		}
		rad := e.radiusFor(r.Ref())
		for ci, c := range r.Corners() {
			if e.view.ToScreen(c).Dist(pos) <= rad {
				return Hover{Ref: r.Ref(), Corner: Corner(ci + 1), Vertex: -1, Edge: -1}, true
			}
		}
	}
	room := e.view.ToRoom(pos)
	for i := len(rects) - 1; i >= 0; i-- {
		r := rects[i]
		if r.Enabled && e.hittable(r.Ref()) && r.Contains(room) {
			return Hover{Ref: r.Ref(), Vertex: -1, Edge: -1}, true
		}
	}
	return Hover{}, false
}

func (e *Editor) hitPolygon(pos geometry.Point) (Hover, bool) {
	polys := e.set.Polygons
	for i := len(polys) - 1; i >= 0; i-- {
		p := polys[i]
		if !p.Enabled || !e.hittable(p.Ref()) {
			continue
		}
		rad := e.radiusFor(p.Ref())
		for vi, v := range p.Vertices {
			if e.view.ToScreen(v).Dist(pos) <= rad {
				return Hover{Ref: p.Ref(), Vertex: vi, Edge: -1}, true
			}
		}
	}
	room := e.view.ToRoom(pos)
	for i := len(polys) - 1; i >= 0; i-- {
		p := polys[i]
		if !p.Enabled || !e.hittable(p.Ref()) {
			continue
		}
		edge, _, d := geometry.NearestEdge(p.Vertices, room)
		if edge >= 0 && d <= e.view.PixelsToRoom(e.radiusFor(p.Ref())) {
			return Hover{Ref: p.Ref(), Vertex: -1, Edge: edge}, true
		}
	}
	for i := len(polys) - 1; i >= 0; i-- {
		p := polys[i]
		if p.Enabled && e.hittable(p.Ref()) && p.Contains(room) {
			return Hover{Ref: p.Ref(), Vertex: -1, Edge: -1}, true
		}
	}
	return Hover{}, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
