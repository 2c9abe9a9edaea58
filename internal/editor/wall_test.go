package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

func TestWallDrawingClosesOnFirstPoint(t *testing.T) {
	e, _ := newTestEditor(t, 0)
	require.NoError(t, e.BeginWall())
	require.Equal(t, DrawingWallSegment, e.State())

	corners := []geometry.Point{{X: -4000, Y: -3000}, {X: 4000, Y: -3000}, {X: 4000, Y: 3000}, {X: -4000, Y: 3000}}
	for _, c := range corners {
		e.PointerDown(at(e, c.X, c.Y))
	}
	e.PointerMove(at(e, -3000, 0).Pos)
	draft, cursor := e.WallDraft()
	assert.Equal(t, corners, draft)
	require.NotNil(t, cursor)
	assert.Equal(t, geometry.Point{X: -3000, Y: 0}, *cursor)
	assert.Empty(t, e.Shell(), "nothing committed while drawing")

	res := e.PointerDown(at(e, -4000, -3000))
	require.Equal(t, EffectCommitted, res.Effect)
	assert.True(t, res.Commit.ShellChanged)
	assert.Equal(t, geometry.Shell(corners), e.Shell())
	assert.Equal(t, Idle, e.State())
}

func TestWallDrawingEnterAndEscape(t *testing.T) {
	e, _ := newTestEditor(t, 100)
	require.NoError(t, e.BeginWall())

	e.PointerDown(at(e, 8, 8))
	e.PointerDown(at(e, 2000, 16))
	res := e.Key(KeyEnter)
	assert.ErrorIs(t, res.Err, zones.ErrTooFewVertices)
	assert.Equal(t, DrawingWallSegment, e.State())

	e.PointerDown(at(e, 2000, 2000))
	res = e.Key(KeyEnter)
	require.Equal(t, EffectCommitted, res.Effect)
	assert.Equal(t, geometry.Shell{{X: 0, Y: 0}, {X: 2000, Y: 0}, {X: 2000, Y: 2000}}, e.Shell(), "corners are snapped")

	require.NoError(t, e.BeginWall())
	e.PointerDown(at(e, 0, 0))
	e.Key(KeyEscape)
	assert.Equal(t, Idle, e.State())
	assert.Len(t, e.Shell(), 3, "escape keeps the committed shell")
}

func TestEnableUsesShellCentroid(t *testing.T) {
	e, _ := newTestEditor(t, 0)
	require.NoError(t, e.BeginWall())
	for _, c := range []geometry.Point{{X: 0, Y: 0}, {X: 4000, Y: 0}, {X: 4000, Y: 2000}, {X: 0, Y: 2000}} {
		e.PointerDown(at(e, c.X, c.Y))
	}
	e.Key(KeyEnter)

	_, err := e.Enable(zone2)
	require.NoError(t, err)
	r, _ := e.Set().Rect(zone2)
	assert.Equal(t, geometry.Point{X: 2000, Y: 1000}, r.Center())
}
