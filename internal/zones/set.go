package zones

import (
	"fmt"
	"math"

	"github.com/banshee-data/presence.report/internal/geometry"
)

// Set is the full zone list of one device. Only the slice matching Mode is
// authoritative. A polygon set also carries the device's rect slots as
// reported; ToPolygonMode and ToRectMode rebuild the other slice from the
// authoritative one.
type Set struct {
	Mode     Mode      `json:"mode"`
	Rects    []Rect    `json:"rects,omitempty"`
	Polygons []Polygon `json:"polygons,omitempty"`
}

// NewSet builds a merged set for caps from the zones reported by a device.
func NewSet(caps Capabilities, rects []Rect, polys []Polygon) Set {
	s := Set{Mode: caps.Mode(), Rects: MergeRects(caps, rects)}
	if s.Mode == PolygonMode {
		s.Polygons = MergePolygons(caps, polys)
	}
	return s
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := Set{Mode: s.Mode}
	if s.Rects != nil {
		out.Rects = append([]Rect(nil), s.Rects...)
	}
	if s.Polygons != nil {
		out.Polygons = make([]Polygon, len(s.Polygons))
		for i, p := range s.Polygons {
			out.Polygons[i] = p.Clone()
		}
	}
	return out
}

// RectIndex returns the index of the rectangle with the given identity.
func (s Set) RectIndex(ref Ref) int {
	for i, r := range s.Rects {
		if r.Ref() == ref {
			return i
		}
	}
	return -1
}

// PolygonIndex returns the index of the polygon with the given identity.
func (s Set) PolygonIndex(ref Ref) int {
	for i, p := range s.Polygons {
		if p.Ref() == ref {
			return i
		}
	}
	return -1
}

// Rect returns the rectangle for ref.
func (s Set) Rect(ref Ref) (Rect, bool) {
	if i := s.RectIndex(ref); i >= 0 {
		return s.Rects[i], true
	}
	return Rect{}, false
}

// Polygon returns the polygon for ref.
func (s Set) Polygon(ref Ref) (Polygon, bool) {
	if i := s.PolygonIndex(ref); i >= 0 {
		return s.Polygons[i], true
	}
	return Polygon{}, false
}

// IsEnabled reports whether the zone for ref in the active mode is enabled.
func (s Set) IsEnabled(ref Ref) bool {
	if s.Mode == PolygonMode {
		p, ok := s.Polygon(ref)
		return ok && p.Enabled
	}
	r, ok := s.Rect(ref)
	return ok && r.Enabled
}

// Enable turns on the slot and centres it on the room shell centroid, or on
// the device origin when no shell has been drawn. The zone keeps its size,
// or receives the default footprint when it has none, and is shifted back
// inside b when the centred footprint would cross it.
func (s *Set) Enable(ref Ref, shell geometry.Shell, b geometry.Bounds) error {
	target := geometry.Point{}
	if len(shell) >= 1 {
		target = geometry.Centroid(shell)
	}

	if s.Mode == PolygonMode {
		i := s.PolygonIndex(ref)
		if i < 0 {
			return fmt.Errorf("enable %s: %w", ref, ErrUnknownSlot)
		}
		p := s.Polygons[i]
		if p.Enabled {
			return fmt.Errorf("enable %s: %w", ref, ErrSlotOccupied)
		}
		if !p.Valid() {
			p.Vertices = placeholderPolygon(ref).Vertices
		}
		p.Vertices = geometry.Translate(p.Vertices, target.Sub(p.ToRect().Center()))
		box := p.ToRect()
		shift := geometry.Point{
			X: geometry.ClampSpan(box.X, box.Width, b.MinX, b.MaxX) - box.X,
			Y: geometry.ClampSpan(box.Y, box.Height, b.MinY, b.MaxY) - box.Y,
		}
		p.Vertices = geometry.Translate(p.Vertices, shift)
		p.Enabled = true
		p.Revision++
		s.Polygons[i] = p
		return nil
	}

	i := s.RectIndex(ref)
	if i < 0 {
		return fmt.Errorf("enable %s: %w", ref, ErrUnknownSlot)
	}
	r := s.Rects[i]
	if r.Enabled {
		return fmt.Errorf("enable %s: %w", ref, ErrSlotOccupied)
	}
	if r.Width <= 0 || r.Height <= 0 {
		r.Width, r.Height = DefaultFootprint, DefaultFootprint
	}
	r.Width = math.Min(r.Width, b.MaxX-b.MinX)
	r.Height = math.Min(r.Height, b.MaxY-b.MinY)
	r.X = geometry.ClampSpan(target.X-r.Width/2, r.Width, b.MinX, b.MaxX)
	r.Y = geometry.ClampSpan(target.Y-r.Height/2, r.Height, b.MinY, b.MaxY)
	r.Enabled = true
	r.Revision++
	s.Rects[i] = r
	return nil
}

// Disable turns the slot off. Its geometry is kept for a later Enable.
func (s *Set) Disable(ref Ref) error {
	if s.Mode == PolygonMode {
		i := s.PolygonIndex(ref)
		if i < 0 {
			return fmt.Errorf("disable %s: %w", ref, ErrUnknownSlot)
		}
		s.Polygons[i].Enabled = false
		s.Polygons[i].Revision++
		return nil
	}
	i := s.RectIndex(ref)
	if i < 0 {
		return fmt.Errorf("disable %s: %w", ref, ErrUnknownSlot)
	}
	s.Rects[i].Enabled = false
	s.Rects[i].Revision++
	return nil
}

// PutRect replaces the stored rectangle with the same identity.
func (s *Set) PutRect(r Rect) error {
	if s.Mode != RectMode {
		return fmt.Errorf("put %s: %w", r.Ref(), ErrModeMismatch)
	}
	i := s.RectIndex(r.Ref())
	if i < 0 {
		return fmt.Errorf("put %s: %w", r.Ref(), ErrUnknownSlot)
	}
	s.Rects[i] = r.Normalized()
	return nil
}

// PutPolygon replaces the stored polygon with the same identity.
func (s *Set) PutPolygon(p Polygon) error {
	if s.Mode != PolygonMode {
		return fmt.Errorf("put %s: %w", p.Ref(), ErrModeMismatch)
	}
	if !p.Valid() {
		return fmt.Errorf("put %s: %w", p.Ref(), ErrTooFewVertices)
	}
	i := s.PolygonIndex(p.Ref())
	if i < 0 {
		return fmt.Errorf("put %s: %w", p.Ref(), ErrUnknownSlot)
	}
	s.Polygons[i] = p.Clone()
	return nil
}

// Active returns a copy of the set holding only the enabled zones.
func (s Set) Active() Set {
	out := Set{Mode: s.Mode}
	for _, r := range s.Rects {
		if r.Enabled {
			out.Rects = append(out.Rects, r)
		}
	}
	for _, p := range s.Polygons {
		if p.Enabled {
			out.Polygons = append(out.Polygons, p.Clone())
		}
	}
	return out
}

// ActiveRefs lists the enabled zones of the current mode in slot order.
func (s Set) ActiveRefs() []Ref {
	var refs []Ref
	if s.Mode == PolygonMode {
		for _, p := range s.Polygons {
			if p.Enabled {
				refs = append(refs, p.Ref())
			}
		}
		return refs
	}
	for _, r := range s.Rects {
		if r.Enabled {
			refs = append(refs, r.Ref())
		}
	}
	return refs
}

// Points returns every vertex of the enabled zones of the current mode.
func (s Set) Points() []geometry.Point {
	var pts []geometry.Point
	if s.Mode == PolygonMode {
		for _, p := range s.Polygons {
			if p.Enabled {
				pts = append(pts, p.Vertices...)
			}
		}
		return pts
	}
	for _, r := range s.Rects {
		if r.Enabled {
			pts = append(pts, r.Corners()...)
		}
	}
	return pts
}

// ToPolygonMode converts every rectangle into a 4-vertex polygon.
func (s *Set) ToPolygonMode() {
	s.Polygons = make([]Polygon, len(s.Rects))
	for i, r := range s.Rects {
		s.Polygons[i] = r.ToPolygon()
	}
	s.Mode = PolygonMode
}

// ToRectMode maps every polygon to its bounding rectangle.
func (s *Set) ToRectMode() {
	s.Rects = make([]Rect, len(s.Polygons))
	for i, p := range s.Polygons {
		s.Rects[i] = p.ToRect()
	}
	s.Mode = RectMode
}
