// Package editor implements the interactive zone geometry editor. It is a
// single-threaded state machine fed with screen-space pointer, wheel and key
// events; the caller renders from its accessors and persists the Commit
// values it returns.
package editor

import (
	"errors"
	"time"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/viewport"
	"github.com/banshee-data/presence.report/internal/zones"
)

var (
	// ErrNotArmed is returned when a creation gesture has no target slot.
	ErrNotArmed = errors.New("no zone slot armed for creation")
	// ErrBusy is returned when an operation needs the editor to be idle.
	ErrBusy = errors.New("editor is busy with another interaction")
)

// State is the interaction state.
type State int

const (
	Idle State = iota
	Hovering
	Dragging
	PanningCanvas
	DrawingWallSegment
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	case Dragging:
		return "dragging"
	case PanningCanvas:
		return "panning"
	case DrawingWallSegment:
		return "drawing-wall"
	}
	return "unknown"
}

// DragKind says what a drag gesture does.
type DragKind int

const (
	DragMove DragKind = iota
	DragResize
	DragCreateRect
	DragPolygonVertex
)

func (k DragKind) String() string {
	switch k {
	case DragMove:
		return "move"
	case DragResize:
		return "resize"
	case DragCreateRect:
		return "create"
	case DragPolygonVertex:
		return "vertex"
	}
	return "unknown"
}

// Corner identifies a rectangle corner handle. The non-zero values follow
// the clockwise order of zones.Rect.Corners.
type Corner int

const (
	CornerNone Corner = iota
	TopLeft
	TopRight
	BottomRight
	BottomLeft
)

// Button is a pointer button.
type Button int

const (
	Primary Button = iota
	Secondary
)

// Key is a keyboard command understood by the editor.
type Key int

const (
	KeyEscape Key = iota
	KeyEnter
	KeyDelete
)

// Pointer is a pointer event in canvas pixels.
type Pointer struct {
	Pos    geometry.Point
	Button Button
}

// Hover describes what is under the pointer while idle.
type Hover struct {
	Ref    zones.Ref
	Corner Corner
	// Vertex is the polygon vertex index under the pointer, or -1.
	Vertex int
	// Edge is the polygon edge index under the pointer, or -1. Edge i runs
	// from vertex i to vertex i+1.
	Edge int
}

// Drag describes the gesture in progress.
type Drag struct {
	Kind   DragKind
	Ref    zones.Ref
	Corner Corner
	Vertex int
	// Anchor is the room-space pointer position when the drag started.
	Anchor geometry.Point
}

// Effect tells the caller what, if anything, it has to do after an event.
type Effect int

const (
	EffectNone Effect = iota
	// EffectRedraw means view or interaction state changed but no zone did.
	EffectRedraw
	// EffectCommitted carries a Commit to persist.
	EffectCommitted
	// EffectConfirmDelete asks the caller to confirm deletion of Ref.
	EffectConfirmDelete
	// EffectDeleteScheduled reports a zone entering its delete animation.
	EffectDeleteScheduled
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectRedraw:
		return "redraw"
	case EffectCommitted:
		return "committed"
	case EffectConfirmDelete:
		return "confirm-delete"
	case EffectDeleteScheduled:
		return "delete-scheduled"
	}
	return "unknown"
}

// Result is returned from every input handler.
type Result struct {
	Effect Effect
	Ref    zones.Ref
	Commit *Commit
	Err    error
}

// Config holds the editor tunables. Use DefaultConfig for the defaults.
type Config struct {
	Bounds            geometry.Bounds
	MinZoneSize       float64
	SnapMM            float64
	ZoomStep          float64
	HandleRadius      float64
	HoverHandleRadius float64
	DeleteAnimation   time.Duration
	AppearAnimation   time.Duration
}

// DefaultDetectionRange is the default bound radius in mm.
const DefaultDetectionRange = 6000.0

// DefaultConfig returns the stock editor configuration.
func DefaultConfig() Config {
	return Config{
		Bounds:            geometry.RangeBounds(DefaultDetectionRange),
		MinZoneSize:       100,
		ZoomStep:          viewport.DefaultZoomStep,
		HandleRadius:      8,
		HoverHandleRadius: 12,
		DeleteAnimation:   250 * time.Millisecond,
		AppearAnimation:   250 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Bounds == (geometry.Bounds{}) {
		c.Bounds = d.Bounds
	}
	if c.MinZoneSize <= 0 {
		c.MinZoneSize = d.MinZoneSize
	}
	if c.ZoomStep <= 0 {
		c.ZoomStep = d.ZoomStep
	}
	if c.HandleRadius <= 0 {
		c.HandleRadius = d.HandleRadius
	}
	if c.HoverHandleRadius < c.HandleRadius {
		c.HoverHandleRadius = c.HandleRadius * 1.5
	}
	if c.DeleteAnimation <= 0 {
		c.DeleteAnimation = d.DeleteAnimation
	}
	if c.AppearAnimation <= 0 {
		c.AppearAnimation = d.AppearAnimation
	}
	if c.SnapMM < 0 {
		c.SnapMM = 0
	}
	return c
}
