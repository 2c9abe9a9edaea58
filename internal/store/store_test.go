package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

func testRoom() Room {
	return Room{
		ID:           "living",
		Name:         "Living room",
		Shell:        geometry.Shell{{X: 0, Y: 0}, {X: 4000, Y: 0}, {X: 4000, Y: 3000}},
		Placement:    geometry.Placement{X: 2000, Y: 0, RotationDeg: -90},
		EntityPrefix: "everything_presence_lite_abc",
		Zones:        zones.NewSet(zones.DefaultCapabilities(), nil, nil),
	}
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, testRoom()))

	got, err := m.Get(ctx, "living")
	require.NoError(t, err)

	want := testRoom()
	want.Placement.RotationDeg = 270
	want.UpdatedAt = fixed
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("room mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	room := testRoom()
	require.NoError(t, m.Put(ctx, room))

	// Mutating the caller's value must not reach the store.
	room.Shell[0].X = 99
	room.Zones.Rects[0].Enabled = true

	got, err := m.Get(ctx, "living")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Shell[0].X)
	assert.False(t, got.Zones.Rects[0].Enabled)

	got.Zones.Rects[0].X = 1234
	again, err := m.Get(ctx, "living")
	require.NoError(t, err)
	assert.NotEqual(t, 1234.0, again.Zones.Rects[0].X)
}

func TestMemoryErrors(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, m.Put(ctx, Room{ID: "  "}), ErrInvalidID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, m.Put(cancelled, testRoom()), context.Canceled)
}

func TestMemoryListAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"office", "bedroom", "living"} {
		r := testRoom()
		r.ID = id
		require.NoError(t, m.Put(ctx, r))
	}

	rooms, err := m.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"bedroom", "living", "office"}, ids)

	require.NoError(t, m.Delete(ctx, "living"))
	rooms, err = m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}
