package editor

import (
	"fmt"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

func (e *Editor) beginZoneDrag(h Hover, pos geometry.Point) Result {
	anchor := e.view.ToRoom(pos)
	d := &dragState{
		Drag:   Drag{Ref: h.Ref, Corner: h.Corner, Vertex: h.Vertex, Anchor: anchor},
		before: subset(e.set, h.Ref),
	}

	if e.set.Mode == zones.PolygonMode {
		i := e.set.PolygonIndex(h.Ref)
		p := e.set.Polygons[i].Clone()
		switch {
		case h.Vertex >= 0:
			d.Kind = DragPolygonVertex
		case h.Edge >= 0:
			n := len(p.Vertices)
			q, _ := geometry.NearestOnSegment(anchor, p.Vertices[h.Edge], p.Vertices[(h.Edge+1)%n])
			q = e.cfg.Bounds.ClampPoint(q)
			at := h.Edge + 1
			p.Vertices = append(p.Vertices[:at], append([]geometry.Point{q}, p.Vertices[at:]...)...)
			e.set.Polygons[i] = p.Clone()
			d.Kind = DragPolygonVertex
			d.Vertex = at
			d.inserted = true
		default:
			d.Kind = DragMove
		}
		d.poly = p
	} else {
		d.rect = e.set.Rects[e.set.RectIndex(h.Ref)]
		if h.Corner != CornerNone {
			d.Kind = DragResize
		} else {
			d.Kind = DragMove
		}
	}

	e.drag = d
	e.state = Dragging
	e.hover = &h
	return Result{Effect: EffectRedraw, Ref: h.Ref}
}

func (e *Editor) beginCreate(pos geometry.Point) Result {
	ref := *e.armed
	p := e.cfg.Bounds.ClampPoint(e.view.ToRoom(pos))
	e.ghost = &zones.Rect{ID: ref.ID, Kind: ref.Kind, X: p.X, Y: p.Y}
	e.drag = &dragState{Drag: Drag{Kind: DragCreateRect, Ref: ref, Vertex: -1, Anchor: p}}
	e.state = Dragging
	e.hover = nil
	return Result{Effect: EffectRedraw, Ref: ref}
}

// dragTo applies the live, unsnapped geometry for the pointer position.
// Offsets are always taken from the drag anchor so clamping never drifts.
func (e *Editor) dragTo(pos geometry.Point) {
	d := e.drag
	cur := e.view.ToRoom(pos)
	delta := cur.Sub(d.Anchor)
	b := e.cfg.Bounds

	switch d.Kind {
	case DragCreateRect:
		g := zones.RectFromCorners(d.Anchor, b.ClampPoint(cur))
		g.ID, g.Kind = d.Ref.ID, d.Ref.Kind
		e.ghost = &g
	case DragMove:
		if e.set.Mode == zones.PolygonMode {
			i := e.set.PolygonIndex(d.Ref)
			e.set.Polygons[i].Vertices = geometry.Translate(d.poly.Vertices, e.clampPolygonDelta(d.poly.Vertices, delta))
			return
		}
		r := d.rect
		r.X = geometry.ClampSpan(d.rect.X+delta.X, r.Width, b.MinX, b.MaxX)
		r.Y = geometry.ClampSpan(d.rect.Y+delta.Y, r.Height, b.MinY, b.MaxY)
		e.set.Rects[e.set.RectIndex(d.Ref)] = r
	case DragResize:
		e.set.Rects[e.set.RectIndex(d.Ref)] = e.resize(d.rect, d.Corner, delta)
	case DragPolygonVertex:
		i := e.set.PolygonIndex(d.Ref)
		p := d.poly.Clone()
		p.Vertices[d.Vertex] = b.ClampPoint(d.poly.Vertices[d.Vertex].Add(delta))
		e.set.Polygons[i] = p
	}
}

func (e *Editor) clampPolygonDelta(pts []geometry.Point, d geometry.Point) geometry.Point {
	bb, ok := geometry.BoundOf(pts)
	if !ok {
		return d
	}
	b := e.cfg.Bounds
	d.X = clamp(d.X, b.MinX-bb.Min[0], b.MaxX-bb.Max[0])
	d.Y = clamp(d.Y, b.MinY-bb.Min[1], b.MaxY-bb.Max[1])
	return d
}

// resize moves only the coordinates owned by corner c, keeping MinZoneSize
// against the opposite corner and staying inside the bounds.
func (e *Editor) resize(r zones.Rect, c Corner, d geometry.Point) zones.Rect {
	b, m := e.cfg.Bounds, e.cfg.MinZoneSize
	left, top := r.X, r.Y
	right, bottom := r.X+r.Width, r.Y+r.Height

	switch c {
	case TopLeft, BottomLeft:
		left = clamp(left+d.X, b.MinX, right-m)
	case TopRight, BottomRight:
		right = clamp(right+d.X, left+m, b.MaxX)
	}
	switch c {
	case TopLeft, TopRight:
		top = clamp(top+d.Y, b.MinY, bottom-m)
	case BottomLeft, BottomRight:
		bottom = clamp(bottom+d.Y, top+m, b.MaxY)
	}

	r.X, r.Y = left, top
	r.Width, r.Height = right-left, bottom-top
	return r
}

func (e *Editor) commitGhost() Result {
	g := *e.ghost
	e.ghost = nil
	e.armed = nil
	ref := g.Ref()

	if e.set.IsEnabled(ref) {
		return Result{Ref: ref, Err: fmt.Errorf("create %s: %w", ref, zones.ErrSlotOccupied)}
	}

	b, m := e.cfg.Bounds, e.cfg.MinZoneSize
	if g.Width < m {
		g.Width = m
		g.X = geometry.ClampSpan(g.X, m, b.MinX, b.MaxX)
	}
	if g.Height < m {
		g.Height = m
		g.Y = geometry.ClampSpan(g.Y, m, b.MinY, b.MaxY)
	}
	g = e.snapRect(g)
	g.Enabled = true

	before := subset(e.set, ref)
	if e.set.Mode == zones.PolygonMode {
		i := e.set.PolygonIndex(ref)
		if i < 0 {
			return Result{Ref: ref, Err: fmt.Errorf("create %s: %w", ref, zones.ErrUnknownSlot)}
		}
		old := e.set.Polygons[i]
		p := g.ToPolygon()
		p.Label, p.Revision = old.Label, old.Revision
		e.set.Polygons[i] = p
	} else {
		i := e.set.RectIndex(ref)
		if i < 0 {
			return Result{Ref: ref, Err: fmt.Errorf("create %s: %w", ref, zones.ErrUnknownSlot)}
		}
		old := e.set.Rects[i]
		g.Label, g.Revision = old.Label, old.Revision
		e.set.Rects[i] = g
	}

	c, _ := e.commit(before, ref)
	e.appearing[ref] = e.clock.Now().Add(e.cfg.AppearAnimation)
	return Result{Effect: EffectCommitted, Ref: ref, Commit: &c}
}
