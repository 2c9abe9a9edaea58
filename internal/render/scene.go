// Package render draws a room layout with its zones and live targets, either
// as an interactive ECharts page or as a static image.
package render

import (
	"github.com/paulmach/orb"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/store"
	"github.com/banshee-data/presence.report/internal/viewport"
	"github.com/banshee-data/presence.report/internal/zones"
)

// Outline is one closed shape to draw. The first point is repeated at the
// end so the outline can be drawn as a polyline.
type Outline struct {
	Name   string
	Kind   zones.Kind
	Points []geometry.Point
}

// Scene is everything one frame of the room view shows, in room space.
type Scene struct {
	Title     string
	Shell     geometry.Shell
	Placement geometry.Placement
	Zones     zones.Set
	Targets   []signal.RoomTarget
	// Range is the detection range drawn as the plot bounds when nothing
	// else is placed.
	Range float64
}

// NewScene builds the scene of a room. snap may be nil.
func NewScene(room store.Room, snap *signal.Snapshot, rangeMM float64) Scene {
	title := room.Name
	if title == "" {
		title = room.ID
	}
	return Scene{
		Title:     title,
		Shell:     room.Shell,
		Placement: room.Placement.Normalized(),
		Zones:     room.Zones.Active(),
		Targets:   snap.RoomTargets(room.Placement),
		Range:     rangeMM,
	}
}

func closeRing(pts []geometry.Point) []geometry.Point {
	if len(pts) == 0 {
		return nil
	}
	out := append([]geometry.Point(nil), pts...)
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// Outlines returns the enabled zones of the current mode in slot order.
func (s Scene) Outlines() []Outline {
	var out []Outline
	if s.Zones.Mode == zones.PolygonMode {
		for _, p := range s.Zones.Polygons {
			if !p.Enabled || !p.Valid() {
				continue
			}
			out = append(out, Outline{Name: label(p.Label, p.Ref()), Kind: p.Kind, Points: closeRing(p.Vertices)})
		}
		return out
	}
	for _, r := range s.Zones.Rects {
		if !r.Enabled {
			continue
		}
		out = append(out, Outline{Name: label(r.Label, r.Ref()), Kind: r.Kind, Points: closeRing(r.Normalized().Corners())})
	}
	return out
}

func label(l string, ref zones.Ref) string {
	if l != "" {
		return l
	}
	return ref.String()
}

// ShellOutline returns the room outline, closed when it describes a room.
func (s Scene) ShellOutline() []geometry.Point {
	if !s.Shell.Closed() {
		return append([]geometry.Point(nil), s.Shell...)
	}
	return closeRing(s.Shell)
}

// Bounds covers the shell, the zones, the device and its targets. With
// nothing placed it falls back to the detection range around the device.
func (s Scene) Bounds() orb.Bound {
	pts := append([]geometry.Point{s.Placement.Origin()}, s.Shell...)
	pts = append(pts, s.Zones.Points()...)
	for _, t := range s.Targets {
		pts = append(pts, t.Position)
	}
	b, _ := geometry.BoundOf(pts)
	if len(pts) == 1 && s.Range > 0 {
		o := s.Placement.Origin()
		b = orb.Bound{Min: orb.Point{o.X - s.Range, o.Y - s.Range}, Max: orb.Point{o.X + s.Range, o.Y + s.Range}}
	}
	return b.Pad(viewport.FitPadding)
}
