package viewport

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/presence.report/internal/geometry"
)

func TestScreenRoomInverse(t *testing.T) {
	t.Parallel()

	views := []Viewport{
		New(800, 600),
		{Zoom: 2.5, Pan: geometry.Point{X: 1200, Y: -300}, Width: 1024, Height: 768, Scale: 0.08},
		{Zoom: 0.1, Pan: geometry.Point{X: -6000, Y: 6000}, Width: 320, Height: 240, Scale: 0.05},
	}
	pts := []geometry.Point{{}, {X: 1234.5, Y: -987.25}, {X: -6000, Y: 6000}}

	for _, v := range views {
		for _, p := range pts {
			got := v.ToRoom(v.ToScreen(p))
			assert.InDelta(t, p.X, got.X, 1e-9)
			assert.InDelta(t, p.Y, got.Y, 1e-9)
		}
	}
}

func TestToScreen(t *testing.T) {
	t.Parallel()

	v := Viewport{Zoom: 2, Pan: geometry.Point{X: 100, Y: 100}, Width: 800, Height: 600, Scale: 0.1}
	assert.Equal(t, geometry.Point{X: 400, Y: 300}, v.ToScreen(geometry.Point{X: 100, Y: 100}))
	assert.Equal(t, geometry.Point{X: 420, Y: 280}, v.ToScreen(geometry.Point{X: 200, Y: 0}))
	assert.Equal(t, geometry.Point{X: 50, Y: -50}, v.DeltaToRoom(geometry.Point{X: 10, Y: -10}))
}

func TestZoomBy(t *testing.T) {
	t.Parallel()

	v := New(800, 600)
	for i := 0; i < 100; i++ {
		v = v.ZoomBy(DefaultZoomStep)
	}
	assert.Equal(t, MaxZoom, v.Zoom)

	for i := 0; i < 100; i++ {
		v = v.ZoomBy(-DefaultZoomStep)
	}
	assert.Equal(t, MinZoom, v.Zoom)

	v = New(800, 600).ZoomBy(0.1).ZoomBy(0.1).ZoomBy(0.1)
	assert.Equal(t, 1.3, v.Zoom)
}

func TestPanBy(t *testing.T) {
	t.Parallel()

	v := Viewport{Zoom: 1, Width: 100, Height: 100, Scale: 0.1}
	before := v.ToRoom(geometry.Point{X: 10, Y: 10})
	v = v.PanBy(geometry.Point{X: 20, Y: 0})
	after := v.ToRoom(geometry.Point{X: 30, Y: 10})
	assert.InDelta(t, before.X, after.X, 1e-9, "content follows the pointer")
}

func TestFit(t *testing.T) {
	t.Parallel()

	v := Viewport{Zoom: 1, Width: 800, Height: 800, Scale: 0.1}
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3000, 1000}}
	got := v.Fit(b, FitPadding, FitFraction)

	assert.Equal(t, geometry.Point{X: 1500, Y: 500}, got.Pan)
	// padded width is 4000mm; 800px * 0.8 / (4000 * 0.1)
	assert.InDelta(t, 1.6, got.Zoom, 1e-9)

	tiny := v.Fit(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 0}}, 0, FitFraction)
	assert.Equal(t, MaxZoom, tiny.Zoom)

	huge := v.Fit(orb.Bound{Min: orb.Point{-1e6, -1e6}, Max: orb.Point{1e6, 1e6}}, 0, FitFraction)
	assert.Equal(t, MinZoom, huge.Zoom)
}
