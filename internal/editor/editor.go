package editor

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/viewport"
	"github.com/banshee-data/presence.report/internal/zones"
)

// Editor is the zone editing state machine. It is not safe for concurrent
// use; all events must be delivered from one goroutine.
type Editor struct {
	cfg   Config
	clock timeutil.Clock

	set   zones.Set
	shell geometry.Shell
	view  viewport.Viewport

	state State
	hover *Hover
	drag  *dragState
	armed *zones.Ref
	ghost *zones.Rect

	lastScreen geometry.Point

	wallDraft  []geometry.Point
	wallCursor *geometry.Point

	vanishing map[zones.Ref]time.Time
	appearing map[zones.Ref]time.Time
}

type dragState struct {
	Drag
	rect     zones.Rect
	poly     zones.Polygon
	before   zones.Set
	inserted bool
}

// New creates an editor over a zone set and room shell. A nil clock uses
// the real clock.
func New(cfg Config, clock timeutil.Clock, set zones.Set, shell geometry.Shell, view viewport.Viewport) *Editor {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Editor{
		cfg:       cfg.withDefaults(),
		clock:     clock,
		set:       set.Clone(),
		shell:     append(geometry.Shell(nil), shell...),
		view:      view,
		vanishing: make(map[zones.Ref]time.Time),
		appearing: make(map[zones.Ref]time.Time),
	}
}

// Config returns the effective configuration.
func (e *Editor) Config() Config { return e.cfg }

// State returns the current interaction state.
func (e *Editor) State() State { return e.state }

// Set returns a copy of the committed zone set. A ghost zone is never part
// of it.
func (e *Editor) Set() zones.Set { return e.set.Clone() }

// Shell returns a copy of the committed room shell.
func (e *Editor) Shell() geometry.Shell { return append(geometry.Shell(nil), e.shell...) }

// Viewport returns the current projection.
func (e *Editor) Viewport() viewport.Viewport { return e.view }

// SetViewport replaces the projection, for example after a canvas resize.
func (e *Editor) SetViewport(v viewport.Viewport) { e.view = v }

// Hover returns the hovered zone, if any.
func (e *Editor) Hover() (Hover, bool) {
	if e.hover == nil {
		return Hover{}, false
	}
	return *e.hover, true
}

// Drag returns the gesture in progress, if any.
func (e *Editor) Drag() (Drag, bool) {
	if e.drag == nil {
		return Drag{}, false
	}
	return e.drag.Drag, true
}

// Armed returns the slot reserved for the next creation gesture.
func (e *Editor) Armed() (zones.Ref, bool) {
	if e.armed == nil {
		return zones.Ref{}, false
	}
	return *e.armed, true
}

// Ghost returns the uncommitted zone being drawn.
func (e *Editor) Ghost() (zones.Rect, bool) {
	if e.ghost == nil {
		return zones.Rect{}, false
	}
	return *e.ghost, true
}

// Load swaps in the data of another room or device. Any interaction in
// progress is dropped.
func (e *Editor) Load(set zones.Set, shell geometry.Shell) {
	e.Reset()
	e.set = set.Clone()
	e.shell = append(geometry.Shell(nil), shell...)
	e.vanishing = make(map[zones.Ref]time.Time)
	e.appearing = make(map[zones.Ref]time.Time)
}

// Reset returns to Idle and discards any ghost, armed slot, wall draft or
// drag in progress without touching the committed data.
func (e *Editor) Reset() {
	e.state = Idle
	e.hover = nil
	e.drag = nil
	e.armed = nil
	e.ghost = nil
	e.wallDraft = nil
	e.wallCursor = nil
}

// Arm reserves an empty slot for the next CreateRect gesture.
func (e *Editor) Arm(ref zones.Ref) error {
	if e.state == Dragging || e.state == DrawingWallSegment {
		return ErrBusy
	}
	if e.set.RectIndex(ref) < 0 && e.set.PolygonIndex(ref) < 0 {
		return fmt.Errorf("arm %s: %w", ref, zones.ErrUnknownSlot)
	}
	if e.set.IsEnabled(ref) {
		return fmt.Errorf("arm %s: %w", ref, zones.ErrSlotOccupied)
	}
	e.armed = &ref
	return nil
}

// Disarm drops the creation reservation.
func (e *Editor) Disarm() {
	e.armed = nil
	if e.state == Dragging && e.drag != nil && e.drag.Kind == DragCreateRect {
		e.cancelGesture()
	}
}

// PointerDown starts a gesture.
func (e *Editor) PointerDown(ev Pointer) Result {
	e.lastScreen = ev.Pos
	if e.state == DrawingWallSegment {
		if ev.Button == Secondary {
			e.cancelWall()
			return Result{Effect: EffectRedraw}
		}
		return e.wallClick(ev.Pos)
	}

	if ev.Button == Secondary {
		if e.state == Dragging && e.drag.Kind == DragCreateRect || e.armed != nil && e.state != Dragging {
			e.cancelGesture()
			e.armed = nil
			return Result{Effect: EffectRedraw}
		}
		if e.state != Idle && e.state != Hovering {
			return Result{}
		}
		if h, ok := e.hitTest(ev.Pos); ok {
			return Result{Effect: EffectConfirmDelete, Ref: h.Ref}
		}
		return Result{}
	}

	if e.state == Dragging || e.state == PanningCanvas {
		return Result{}
	}

	if h, ok := e.hitTest(ev.Pos); ok {
		return e.beginZoneDrag(h, ev.Pos)
	}
	if e.armed != nil {
		return e.beginCreate(ev.Pos)
	}
	e.hover = nil
	e.state = PanningCanvas
	return Result{Effect: EffectRedraw}
}

// PointerMove advances the gesture in progress or updates hover state.
func (e *Editor) PointerMove(pos geometry.Point) Result {
	last := e.lastScreen
	e.lastScreen = pos

	switch e.state {
	case PanningCanvas:
		e.view = e.view.PanBy(pos.Sub(last))
		return Result{Effect: EffectRedraw}
	case DrawingWallSegment:
		p := e.cfg.Bounds.ClampPoint(e.view.ToRoom(pos))
		e.wallCursor = &p
		return Result{Effect: EffectRedraw}
	case Dragging:
		e.dragTo(pos)
		return Result{Effect: EffectRedraw}
	}

	h, ok := e.hitTest(pos)
	if !ok {
		if e.state == Hovering {
			e.state, e.hover = Idle, nil
			return Result{Effect: EffectRedraw}
		}
		return Result{}
	}
	changed := e.hover == nil || *e.hover != h
	e.state, e.hover = Hovering, &h
	if changed {
		return Result{Effect: EffectRedraw}
	}
	return Result{}
}

// PointerUp ends the gesture in progress. A committed drag returns the
// snapped result as a Commit.
func (e *Editor) PointerUp(ev Pointer) Result {
	e.lastScreen = ev.Pos
	switch e.state {
	case PanningCanvas:
		e.state = Idle
		return Result{Effect: EffectRedraw}
	case Dragging:
		if ev.Button == Secondary {
			return Result{}
		}
		e.dragTo(ev.Pos)
		return e.finishDrag()
	}
	return Result{}
}

// Wheel zooms the canvas one step per event. Negative delta zooms in.
// Events from a nested scrollable panel, and any wheel input during a drag,
// are ignored.
func (e *Editor) Wheel(delta float64, fromPanel bool) Result {
	if fromPanel || e.state == Dragging || delta == 0 {
		return Result{}
	}
	step := e.cfg.ZoomStep
	if delta > 0 {
		step = -step
	}
	before := e.view.Zoom
	e.view = e.view.ZoomBy(step)
	if e.view.Zoom == before {
		return Result{}
	}
	return Result{Effect: EffectRedraw}
}

// Key handles Escape, Enter and Delete.
func (e *Editor) Key(k Key) Result {
	switch k {
	case KeyEscape:
		switch {
		case e.state == DrawingWallSegment:
			e.cancelWall()
		case e.state == Dragging:
			e.cancelGesture()
			e.armed = nil
		case e.armed != nil:
			e.armed = nil
		default:
			return Result{}
		}
		return Result{Effect: EffectRedraw}
	case KeyEnter:
		if e.state == DrawingWallSegment {
			return e.closeWall()
		}
	case KeyDelete:
		if e.state != Hovering || e.hover == nil {
			return Result{}
		}
		if ref := e.hover.Ref; e.hover.Vertex >= 0 {
			c, err := e.DeleteVertex(ref, e.hover.Vertex)
			if err != nil {
				return Result{Ref: ref, Err: err}
			}
			e.state, e.hover = Idle, nil
			return Result{Effect: EffectCommitted, Ref: ref, Commit: &c}
		}
		return Result{Effect: EffectConfirmDelete, Ref: e.hover.Ref}
	}
	return Result{}
}

// AutoFit zooms and pans so the enabled zones, or the room shell when no
// zone is enabled, fill the canvas. It is a one-shot command.
func (e *Editor) AutoFit() Result {
	pts := e.set.Points()
	if len(pts) == 0 {
		pts = e.shell
	}
	b, ok := geometry.BoundOf(pts)
	if !ok {
		return Result{}
	}
	e.view = e.view.Fit(b, viewport.FitPadding, viewport.FitFraction)
	return Result{Effect: EffectRedraw}
}

// cancelGesture aborts a drag, restoring the zone to where it started.
func (e *Editor) cancelGesture() {
	if e.drag != nil && e.drag.Kind != DragCreateRect {
		e.set = overlay(e.set, e.drag.before)
	}
	e.ghost = nil
	e.drag = nil
	e.hover = nil
	e.state = Idle
}

func (e *Editor) finishDrag() Result {
	d := e.drag
	e.drag = nil
	e.state = Idle
	e.hover = nil

	if d.Kind == DragCreateRect {
		return e.commitGhost()
	}

	switch d.Kind {
	case DragMove, DragResize, DragPolygonVertex:
		if e.set.Mode == zones.PolygonMode {
			i := e.set.PolygonIndex(d.Ref)
			p := e.set.Polygons[i]
			p.Vertices = e.snapPoints(p.Vertices)
			e.set.Polygons[i] = p
		} else {
			i := e.set.RectIndex(d.Ref)
			e.set.Rects[i] = e.snapRect(e.set.Rects[i])
		}
	}

	c, changed := e.commit(d.before, d.Ref)
	if !changed {
		return Result{Effect: EffectRedraw}
	}
	return Result{Effect: EffectCommitted, Ref: d.Ref, Commit: &c}
}

func (e *Editor) snapPoint(p geometry.Point) geometry.Point {
	g := e.cfg.SnapMM
	if g <= 0 {
		return p
	}
	b := e.cfg.Bounds
	return geometry.Point{
		X: geometry.SnapWithin(p.X, g, b.MinX, b.MaxX),
		Y: geometry.SnapWithin(p.Y, g, b.MinY, b.MaxY),
	}
}

func (e *Editor) snapPoints(pts []geometry.Point) []geometry.Point {
	out := make([]geometry.Point, len(pts))
	for i, p := range pts {
		out[i] = e.snapPoint(p)
	}
	return out
}

// snapRect rounds every coordinate of r to the snap grid while keeping the
// minimum size and the bounds.
func (e *Editor) snapRect(r zones.Rect) zones.Rect {
	g := e.cfg.SnapMM
	if g <= 0 {
		return r
	}
	b := e.cfg.Bounds
	minSize := math.Ceil(e.cfg.MinZoneSize/g) * g
	r.Width = math.Max(geometry.Snap(r.Width, g), minSize)
	r.Height = math.Max(geometry.Snap(r.Height, g), minSize)
	r.X = geometry.SnapWithin(r.X, g, b.MinX, b.MaxX-r.Width)
	r.Y = geometry.SnapWithin(r.Y, g, b.MinY, b.MaxY-r.Height)
	return r
}

func logCommit(c Commit) {
	monitoring.Logf("[editor] commit %s: %d zone(s), shell=%t", c.ID, len(c.Refs()), c.ShellChanged)
}
