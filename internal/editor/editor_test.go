package editor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/viewport"
	"github.com/banshee-data/presence.report/internal/zones"
)

var (
	zone1 = zones.Ref{ID: "Zone 1", Kind: zones.Regular}
	zone2 = zones.Ref{ID: "Zone 2", Kind: zones.Regular}
)

// testView maps room (0,0) to the canvas centre at 1/8 px per mm, which
// keeps screen and room coordinates exact in binary floating point.
func testView() viewport.Viewport {
	return viewport.Viewport{Zoom: 1, Width: 1000, Height: 1000, Scale: 0.125}
}

func newTestEditor(t *testing.T, snap float64) (*Editor, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.SnapMM = snap
	set := zones.NewSet(zones.DefaultCapabilities(), []zones.Rect{
		{ID: "Zone 1", Kind: zones.Regular, X: 0, Y: 0, Width: 1000, Height: 1000, Enabled: true},
	}, nil)
	return New(cfg, clock, set, nil, testView()), clock
}

func at(e *Editor, x, y float64) Pointer {
	return Pointer{Pos: e.Viewport().ToScreen(geometry.Point{X: x, Y: y})}
}

func secondary(e *Editor, x, y float64) Pointer {
	p := at(e, x, y)
	p.Button = Secondary
	return p
}

func rect(t *testing.T, e *Editor, ref zones.Ref) zones.Rect {
	t.Helper()
	r, ok := e.Set().Rect(ref)
	require.True(t, ok)
	return r
}

func TestHoverAndHandles(t *testing.T) {
	e, _ := newTestEditor(t, 0)

	res := e.PointerMove(at(e, 500, 500).Pos)
	assert.Equal(t, EffectRedraw, res.Effect)
	assert.Equal(t, Hovering, e.State())
	h, ok := e.Hover()
	require.True(t, ok)
	assert.Equal(t, zone1, h.Ref)
	assert.Equal(t, CornerNone, h.Corner)

	// 10 px from the corner: outside the 8 px handle but inside the
	// inflated 12 px one once the zone is hovered.
	e.PointerMove(geometry.Point{X: 490, Y: 500})
	h, ok = e.Hover()
	require.True(t, ok)
	assert.Equal(t, TopLeft, h.Corner)

	e.PointerMove(at(e, -3000, -3000).Pos)
	assert.Equal(t, Idle, e.State())
	_, ok = e.Hover()
	assert.False(t, ok)
}

func TestMoveClampsToBounds(t *testing.T) {
	deltas := []float64{-1e9, -100000, -7000, -6500, -10, 0, 10, 4999, 5000, 5001, 20000, 1e9}

	for _, dx := range deltas {
		for _, dy := range []float64{-1e7, 0, 123, 1e7} {
			e, _ := newTestEditor(t, 0)
			require.Equal(t, EffectRedraw, e.PointerDown(at(e, 500, 500)).Effect)
			require.Equal(t, Dragging, e.State())
			e.PointerMove(at(e, 500+dx, 500+dy).Pos)
			e.PointerUp(at(e, 500+dx, 500+dy))

			r := rect(t, e, zone1)
			assert.GreaterOrEqual(t, r.X, -6000.0)
			assert.LessOrEqual(t, r.X+r.Width, 6000.0)
			assert.GreaterOrEqual(t, r.Y, -6000.0)
			assert.LessOrEqual(t, r.Y+r.Height, 6000.0)
			if dx > 5000 {
				assert.Equal(t, 5000.0, r.X, "dx=%v lands on the right bound", dx)
			}
			if dx < -6000 {
				assert.Equal(t, -6000.0, r.X, "dx=%v lands on the left bound", dx)
			}
			assert.Equal(t, 1000.0, r.Width)
		}
	}
}

func TestMoveCommit(t *testing.T) {
	e, _ := newTestEditor(t, 0)

	e.PointerDown(at(e, 500, 500))
	e.PointerMove(at(e, 700, 400).Pos)
	d, ok := e.Drag()
	require.True(t, ok)
	assert.Equal(t, DragMove, d.Kind)

	res := e.PointerUp(at(e, 800, 300))
	require.Equal(t, EffectCommitted, res.Effect)
	require.NotNil(t, res.Commit)
	assert.Equal(t, Idle, e.State())

	r := rect(t, e, zone1)
	assert.Equal(t, 300.0, r.X)
	assert.Equal(t, -200.0, r.Y)
	assert.Equal(t, uint64(1), r.Revision)

	assert.Equal(t, 0.0, res.Commit.Before.Rects[0].X)
	assert.Equal(t, r, res.Commit.After.Rects[0])
	assert.NotEmpty(t, res.Commit.ID)

	// A click without movement changes nothing.
	e.PointerDown(at(e, 800, 300))
	res = e.PointerUp(at(e, 800, 300))
	assert.Equal(t, EffectRedraw, res.Effect)
	assert.Nil(t, res.Commit)
}

func TestResize(t *testing.T) {
	e, _ := newTestEditor(t, 0)

	e.PointerDown(at(e, 0, 0))
	d, _ := e.Drag()
	require.Equal(t, DragResize, d.Kind)
	require.Equal(t, TopLeft, d.Corner)
	e.PointerMove(at(e, 5000, 5000).Pos)
	e.PointerUp(at(e, 5000, 5000))

	r := rect(t, e, zone1)
	assert.Equal(t, 900.0, r.X, "min size kept against the opposite corner")
	assert.Equal(t, 900.0, r.Y)
	assert.Equal(t, 100.0, r.Width)
	assert.Equal(t, 100.0, r.Height)

	e, _ = newTestEditor(t, 0)
	e.PointerDown(at(e, 1000, 1000))
	e.PointerMove(at(e, 90000, 1500).Pos)
	e.PointerUp(at(e, 90000, 1500))
	r = rect(t, e, zone1)
	assert.Equal(t, 0.0, r.X, "opposite corner does not move")
	assert.Equal(t, 0.0, r.Y)
	assert.Equal(t, 6000.0, r.X+r.Width)
	assert.Equal(t, 1500.0, r.Height)
}

func TestCreateRect(t *testing.T) {
	e, clock := newTestEditor(t, 0)

	assert.ErrorIs(t, e.Arm(zone1), zones.ErrSlotOccupied)
	assert.ErrorIs(t, e.Arm(zones.Ref{ID: "Zone 9", Kind: zones.Regular}), zones.ErrUnknownSlot)
	require.NoError(t, e.Arm(zone2))

	e.PointerDown(at(e, -2400, -2400))
	d, ok := e.Drag()
	require.True(t, ok)
	require.Equal(t, DragCreateRect, d.Kind)

	e.PointerMove(at(e, -800, -1600).Pos)
	g, ok := e.Ghost()
	require.True(t, ok)
	assert.Equal(t, zones.Rect{ID: "Zone 2", Kind: zones.Regular, X: -2400, Y: -2400, Width: 1600, Height: 800}, g)
	assert.False(t, e.Set().IsEnabled(zone2), "ghost is not committed")

	res := e.PointerUp(at(e, -800, -1600))
	require.Equal(t, EffectCommitted, res.Effect)
	assert.Equal(t, zone2, res.Ref)
	r := rect(t, e, zone2)
	assert.True(t, r.Enabled)
	assert.Equal(t, -2400.0, r.X)
	assert.Equal(t, 1600.0, r.Width)

	_, ok = e.Ghost()
	assert.False(t, ok)
	_, ok = e.Armed()
	assert.False(t, ok)

	p, ok := e.Appearing(zone2)
	require.True(t, ok)
	assert.Equal(t, 0.0, p)
	clock.Advance(time.Second)
	e.Tick(clock.Now())
	_, ok = e.Appearing(zone2)
	assert.False(t, ok)
}

func TestCreateTinyRectGetsMinimumSize(t *testing.T) {
	e, _ := newTestEditor(t, 0)
	require.NoError(t, e.Arm(zone2))
	e.PointerDown(at(e, 5960, -3000))
	res := e.PointerUp(at(e, 5960, -3000))
	require.Equal(t, EffectCommitted, res.Effect)

	r := rect(t, e, zone2)
	assert.Equal(t, 100.0, r.Width)
	assert.Equal(t, 5900.0, r.X, "pushed back inside the bound")
}

func TestCreateCancel(t *testing.T) {
	for name, cancel := range map[string]func(e *Editor){
		"escape":    func(e *Editor) { e.Key(KeyEscape) },
		"secondary": func(e *Editor) { e.PointerDown(secondary(e, 0, 0)) },
		"reset":     func(e *Editor) { e.Reset() },
	} {
		t.Run(name, func(t *testing.T) {
			e, _ := newTestEditor(t, 0)
			before := e.Set()
			require.NoError(t, e.Arm(zone2))
			e.PointerDown(at(e, -2400, -2400))
			e.PointerMove(at(e, -800, -800).Pos)

			cancel(e)

			assert.Equal(t, Idle, e.State())
			_, ok := e.Ghost()
			assert.False(t, ok)
			_, ok = e.Armed()
			assert.False(t, ok)
			assert.Equal(t, before, e.Set())

			res := e.PointerUp(at(e, -800, -800))
			assert.Nil(t, res.Commit)
		})
	}
}

func TestDeferredDelete(t *testing.T) {
	e, clock := newTestEditor(t, 0)

	res := e.PointerDown(secondary(e, 500, 500))
	require.Equal(t, EffectConfirmDelete, res.Effect)
	assert.Equal(t, zone1, res.Ref)
	assert.True(t, e.Set().IsEnabled(zone1), "nothing happens before confirmation")

	res = e.ConfirmDelete(zone1)
	require.Equal(t, EffectDeleteScheduled, res.Effect)

	clock.Advance(100 * time.Millisecond)
	assert.Empty(t, e.Tick(clock.Now()))
	assert.True(t, e.Set().IsEnabled(zone1), "zone persists during the animation")
	p, ok := e.Vanishing(zone1)
	require.True(t, ok)
	assert.InDelta(t, 0.4, p, 1e-9)

	// Vanishing zones can no longer be grabbed.
	e.PointerDown(at(e, 500, 500))
	assert.Equal(t, PanningCanvas, e.State())
	e.PointerUp(at(e, 500, 500))

	clock.Advance(150 * time.Millisecond)
	out := e.Tick(clock.Now())
	require.Len(t, out, 1)
	assert.Equal(t, EffectCommitted, out[0].Effect)
	require.NotNil(t, out[0].Commit)
	assert.False(t, e.Set().IsEnabled(zone1))
	assert.Equal(t, 1000.0, rect(t, e, zone1).Width, "geometry kept for re-enable")

	_, ok = e.Vanishing(zone1)
	assert.False(t, ok)
	assert.ErrorIs(t, e.ConfirmDelete(zone1).Err, zones.ErrUnknownSlot)
}

func TestCancelDelete(t *testing.T) {
	e, clock := newTestEditor(t, 0)
	e.ConfirmDelete(zone1)
	assert.True(t, e.CancelDelete(zone1))
	clock.Advance(time.Second)
	assert.Empty(t, e.Tick(clock.Now()))
	assert.True(t, e.Set().IsEnabled(zone1))
}

func TestWheel(t *testing.T) {
	e, _ := newTestEditor(t, 0)

	assert.Equal(t, EffectRedraw, e.Wheel(-1, false).Effect)
	assert.InDelta(t, 1.1, e.Viewport().Zoom, 1e-9)

	assert.Equal(t, EffectNone, e.Wheel(-1, true).Effect, "nested panel scrolls are not hijacked")
	assert.InDelta(t, 1.1, e.Viewport().Zoom, 1e-9)

	e.Wheel(3, false)
	assert.InDelta(t, 1.0, e.Viewport().Zoom, 1e-9)

	e.PointerDown(at(e, 500, 500))
	assert.Equal(t, EffectNone, e.Wheel(-1, false).Effect, "no zoom while dragging")
	e.PointerUp(at(e, 500, 500))

	for i := 0; i < 100; i++ {
		e.Wheel(-1, false)
	}
	assert.Equal(t, viewport.MaxZoom, e.Viewport().Zoom)
	for i := 0; i < 100; i++ {
		e.Wheel(1, false)
	}
	assert.Equal(t, viewport.MinZoom, e.Viewport().Zoom)
}

func TestPan(t *testing.T) {
	e, _ := newTestEditor(t, 0)

	e.PointerDown(at(e, -3000, -3000))
	require.Equal(t, PanningCanvas, e.State())
	start := e.Viewport().Pan
	e.PointerMove(at(e, -2200, -3000).Pos)
	assert.Equal(t, start.X-800, e.Viewport().Pan.X)
	e.PointerUp(Pointer{})
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, 0.0, rect(t, e, zone1).X, "panning never edits zones")
}

func TestSnap(t *testing.T) {
	const g = 50.0
	isMultiple := func(v float64) bool { return math.Mod(v, g) == 0 }

	moves := []geometry.Point{{X: 123, Y: 77}, {X: -4321, Y: 999}, {X: 1e6, Y: -1e6}, {X: 1, Y: 1}}
	for _, m := range moves {
		e, _ := newTestEditor(t, g)
		e.PointerDown(at(e, 500, 500))
		e.PointerMove(at(e, 500+m.X, 500+m.Y).Pos)

		if live := rect(t, e, zone1); math.Abs(m.X) < 4000 {
			assert.Equal(t, m.X, live.X, "live drags are unsnapped")
		}
		e.PointerUp(at(e, 500+m.X, 500+m.Y))
		r := rect(t, e, zone1)
		for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
			assert.True(t, isMultiple(v), "%v is not a multiple of %v", v, g)
		}
	}

	e, _ := newTestEditor(t, g)
	e.PointerDown(at(e, 1000, 1000))
	e.PointerMove(at(e, 1333, 1012).Pos)
	e.PointerUp(at(e, 1333, 1012))
	r := rect(t, e, zone1)
	assert.Equal(t, 1350.0, r.Width)
	assert.Equal(t, 1000.0, r.Height)

	e, _ = newTestEditor(t, 0)
	e.PointerDown(at(e, 500, 500))
	e.PointerUp(at(e, 623, 577))
	assert.Equal(t, 123.0, rect(t, e, zone1).X, "no snapping without an increment")
}

func TestAutoFit(t *testing.T) {
	e, _ := newTestEditor(t, 0)
	require.Equal(t, EffectRedraw, e.AutoFit().Effect)
	v := e.Viewport()
	assert.Equal(t, geometry.Point{X: 500, Y: 500}, v.Pan)
	// 1000mm zone + 2x500mm padding at 80% of 1000px.
	assert.InDelta(t, 3.2, v.Zoom, 1e-9)

	empty := New(DefaultConfig(), nil, zones.NewSet(zones.DefaultCapabilities(), nil, nil),
		geometry.Shell{{X: 0, Y: 0}, {X: 8000, Y: 0}, {X: 8000, Y: 4000}}, testView())
	empty.AutoFit()
	assert.Equal(t, geometry.Point{X: 4000, Y: 2000}, empty.Viewport().Pan)

	none := New(DefaultConfig(), nil, zones.Set{}, nil, testView())
	assert.Equal(t, EffectNone, none.AutoFit().Effect)
}

func TestResetDuringDragDropsInteraction(t *testing.T) {
	e, _ := newTestEditor(t, 0)
	e.PointerDown(at(e, 500, 500))
	e.PointerMove(at(e, 1500, 500).Pos)

	other := zones.NewSet(zones.DefaultCapabilities(), nil, nil)
	e.Load(other, nil)

	assert.Equal(t, Idle, e.State())
	res := e.PointerUp(at(e, 1500, 500))
	assert.Nil(t, res.Commit)
	assert.False(t, e.Set().IsEnabled(zone1))
}

func TestEscapeRestoresDraggedZone(t *testing.T) {
	e, _ := newTestEditor(t, 0)
	e.PointerDown(at(e, 500, 500))
	e.PointerMove(at(e, 1500, 500).Pos)
	assert.Equal(t, 1000.0, rect(t, e, zone1).X)

	e.Key(KeyEscape)
	assert.Equal(t, 0.0, rect(t, e, zone1).X)
	assert.Equal(t, Idle, e.State())
}

func TestEnableLabel(t *testing.T) {
	e, _ := newTestEditor(t, 0)

	c, err := e.Enable(zone2)
	require.NoError(t, err)
	assert.Equal(t, []zones.Ref{zone2}, c.Refs())
	assert.Equal(t, -500.0, rect(t, e, zone2).X)

	c, err = e.SetLabel(zone2, "Sofa")
	require.NoError(t, err)
	assert.Equal(t, "Sofa", c.After.Rects[0].Label)
	assert.Equal(t, uint64(2), c.After.Rects[0].Revision)
}
