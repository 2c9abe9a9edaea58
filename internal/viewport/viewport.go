// Package viewport projects room-space geometry onto a drawing surface.
// The same Viewport value is used for rendering and for hit-testing so the
// two always agree.
package viewport

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/presence.report/internal/geometry"
)

const (
	MinZoom = 0.1
	MaxZoom = 5.0

	// DefaultZoomStep is the zoom change per wheel tick.
	DefaultZoomStep = 0.1
	// DefaultScale is the pixels per millimetre at zoom 1.
	DefaultScale = 0.05
	// FitPadding is added around the fitted box on every side, in mm.
	FitPadding = 500.0
	// FitFraction is the share of the canvas the fitted box should fill.
	FitFraction = 0.8
)

// Viewport is the pan/zoom state of a canvas. Pan is the room point drawn at
// the centre of the canvas.
type Viewport struct {
	Zoom   float64        `json:"zoom"`
	Pan    geometry.Point `json:"pan"`
	Width  float64        `json:"width"`
	Height float64        `json:"height"`
	Scale  float64        `json:"scale"`
}

// New returns a viewport of the given canvas size centred on the origin.
func New(width, height float64) Viewport {
	return Viewport{Zoom: 1, Width: width, Height: height, Scale: DefaultScale}
}

func (v Viewport) factor() float64 {
	s := v.Scale
	if s <= 0 {
		s = DefaultScale
	}
	z := v.Zoom
	if z <= 0 {
		z = 1
	}
	return z * s
}

// ToScreen maps a room point to canvas pixels:
// ((p - Pan) * Zoom * Scale) + (Width/2, Height/2).
func (v Viewport) ToScreen(p geometry.Point) geometry.Point {
	f := v.factor()
	return geometry.Point{
		X: (p.X-v.Pan.X)*f + v.Width/2,
		Y: (p.Y-v.Pan.Y)*f + v.Height/2,
	}
}

// ToRoom is the exact inverse of ToScreen.
func (v Viewport) ToRoom(s geometry.Point) geometry.Point {
	f := v.factor()
	return geometry.Point{
		X: (s.X-v.Width/2)/f + v.Pan.X,
		Y: (s.Y-v.Height/2)/f + v.Pan.Y,
	}
}

// DeltaToRoom converts a pointer movement in pixels to millimetres.
func (v Viewport) DeltaToRoom(d geometry.Point) geometry.Point {
	f := v.factor()
	return geometry.Point{X: d.X / f, Y: d.Y / f}
}

// PixelsToRoom converts a screen distance to millimetres.
func (v Viewport) PixelsToRoom(px float64) float64 { return px / v.factor() }

// ClampZoom limits z to [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// ZoomBy changes the zoom by delta and clamps it. The value is rounded to
// avoid accumulating float drift across many wheel ticks.
func (v Viewport) ZoomBy(delta float64) Viewport {
	v.Zoom = ClampZoom(math.Round((v.Zoom+delta)*1000) / 1000)
	return v
}

// PanBy moves the view by a screen-space drag.
func (v Viewport) PanBy(screenDelta geometry.Point) Viewport {
	d := v.DeltaToRoom(screenDelta)
	v.Pan = v.Pan.Sub(d)
	return v
}

// Fit centres the view on b and picks the zoom at which b, padded by pad mm
// on every side, fills fraction of the canvas. An empty canvas leaves the
// viewport unchanged.
func (v Viewport) Fit(b orb.Bound, pad, fraction float64) Viewport {
	if v.Width <= 0 || v.Height <= 0 {
		return v
	}
	if fraction <= 0 || fraction > 1 {
		fraction = FitFraction
	}
	b = b.Pad(pad)
	c := b.Center()
	v.Pan = geometry.Point{X: c[0], Y: c[1]}

	scale := v.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	zoom := MaxZoom
	if w > 0 {
		zoom = math.Min(zoom, v.Width*fraction/(w*scale))
	}
	if h > 0 {
		zoom = math.Min(zoom, v.Height*fraction/(h*scale))
	}
	v.Zoom = ClampZoom(zoom)
	return v
}
