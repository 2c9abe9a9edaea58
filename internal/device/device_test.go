package device

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/zones"
)

func init() {
	monitoring.SetLogger(nil)
}

type fakeBackend struct {
	mu      sync.Mutex
	states  []hass.State
	numbers map[string]float64
	texts   map[string]string
	fail    map[string]bool
	switch_ map[string]bool
	options map[string]string
}

func newFakeBackend(states ...hass.State) *fakeBackend {
	return &fakeBackend{
		states:  states,
		numbers: map[string]float64{},
		texts:   map[string]string{},
		fail:    map[string]bool{},
		switch_: map[string]bool{},
		options: map[string]string{},
	}
}

func (f *fakeBackend) States(context.Context) ([]hass.State, error) { return f.states, nil }

func (f *fakeBackend) SetNumber(_ context.Context, id string, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("service call failed")
	}
	f.numbers[id] = v
	return nil
}

func (f *fakeBackend) SetText(_ context.Context, id, v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("service call failed")
	}
	f.texts[id] = v
	return nil
}

func (f *fakeBackend) SetSwitch(_ context.Context, id string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switch_[id] = on
	return nil
}

func (f *fakeBackend) SelectOption(_ context.Context, id, option string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return errors.New("service call failed")
	}
	f.options[id] = option
	return nil
}

func st(id, state string) hass.State { return hass.State{EntityID: id, State: state} }

// rectStates returns the four corner entities of a slot.
func rectStates(prefix, stem string, bx, by, ex, ey string) []hass.State {
	return []hass.State{
		st("number."+prefix+"_"+stem+"_begin_x", bx),
		st("number."+prefix+"_"+stem+"_begin_y", by),
		st("number."+prefix+"_"+stem+"_end_x", ex),
		st("number."+prefix+"_"+stem+"_end_y", ey),
	}
}

func ref(kind zones.Kind, n int) zones.Ref { return zones.Ref{ID: zones.SlotName(n), Kind: kind} }

func TestEntityNames(t *testing.T) {
	e := Entities{Prefix: "ep_lite"}
	assert.Equal(t, "number.ep_lite_zone_2_end_y", e.Number(ref(zones.Regular, 2), "end_y"))
	assert.Equal(t, "number.ep_lite_occupancy_mask_1_begin_x", e.Number(ref(zones.Exclusion, 1), "begin_x"))
	assert.Equal(t, "number.ep_lite_entry_zone_2_begin_y", e.Number(ref(zones.Entry, 2), "begin_y"))
	assert.Equal(t, "text.ep_lite_zone_3_points", e.Points(ref(zones.Regular, 3)))
	assert.Equal(t, "switch.ep_lite_polygon_zones", e.PolygonSwitch())
}

func TestPoints(t *testing.T) {
	pts := []geometry.Point{{X: -100.4, Y: 0}, {X: 250.6, Y: 10}, {X: 0, Y: 3000}}
	assert.Equal(t, "-100:0;251:10;0:3000", FormatPoints(pts))

	got := ParsePoints(" -100:0; 251:10 ;bad;1:x;0:3000;")
	want := []geometry.Point{{X: -100, Y: 0}, {X: 251, Y: 10}, {X: 0, Y: 3000}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, ParsePoints(""))
}

func TestReadRectDevice(t *testing.T) {
	var states []hass.State
	states = append(states, rectStates("ep1", "zone_1", "-1000", "500", "1000", "2500")...)
	states = append(states, rectStates("ep1", "zone_2", "0", "0", "0", "0")...)
	states = append(states, rectStates("ep1", "zone_3", "unavailable", "0", "0", "0")...)
	states = append(states, rectStates("ep1", "occupancy_mask_1", "300", "300", "-300", "-300")...)
	// zone_4 is disabled in Home Assistant and does not appear; another
	// device's entities must be ignored.
	states = append(states, rectStates("ep10", "zone_4", "1", "1", "2", "2")...)

	c := New(newFakeBackend(states...), "ep1")
	r, err := c.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, zones.Capabilities{MaxZones: 3, MaxExclusionZones: 1}, r.Capabilities)
	assert.Equal(t, map[zones.Ref]zones.Availability{
		ref(zones.Regular, 1):   zones.AvailabilityEnabled,
		ref(zones.Regular, 2):   zones.AvailabilityEnabled,
		ref(zones.Regular, 3):   zones.AvailabilityUnavailable,
		ref(zones.Exclusion, 1): zones.AvailabilityEnabled,
	}, r.Availability)

	require.Equal(t, zones.RectMode, r.Set.Mode)
	require.Len(t, r.Set.Rects, 4)

	z1, ok := r.Set.Rect(ref(zones.Regular, 1))
	require.True(t, ok)
	assert.True(t, z1.Enabled)
	assert.Equal(t, zones.Rect{ID: "Zone 1", Kind: zones.Regular, X: -1000, Y: 500, Width: 2000, Height: 2000, Enabled: true}, z1)

	z2, _ := r.Set.Rect(ref(zones.Regular, 2))
	assert.False(t, z2.Enabled)
	assert.Equal(t, zones.DefaultFootprint, z2.Width)

	mask, _ := r.Set.Rect(ref(zones.Exclusion, 1))
	assert.Equal(t, -300.0, mask.X)
	assert.Equal(t, 600.0, mask.Width)
}

func TestReadPolygonDevice(t *testing.T) {
	states := []hass.State{
		st("switch.ep1_polygon_zones", "on"),
		st("text.ep1_zone_1_points", "0:0;1000:0;1000:1000;0:1000"),
		st("text.ep1_zone_2_points", ""),
		st("text.ep1_zone_3_points", "unknown"),
	}
	states = append(states, rectStates("ep1", "zone_1", "0", "0", "0", "0")...)

	c := New(newFakeBackend(states...), "ep1")
	r, err := c.Read(context.Background())
	require.NoError(t, err)

	assert.True(t, r.Capabilities.PolygonSupported)
	assert.True(t, r.Capabilities.PolygonEnabled)
	assert.Equal(t, zones.PolygonMode, r.Set.Mode)
	assert.Equal(t, zones.AvailabilityUnknown, r.Availability[ref(zones.Regular, 3)])

	p, ok := r.Set.Polygon(ref(zones.Regular, 1))
	require.True(t, ok)
	assert.True(t, p.Enabled)
	assert.Len(t, p.Vertices, 4)

	p2, _ := r.Set.Polygon(ref(zones.Regular, 2))
	assert.False(t, p2.Enabled)
}

func TestReadWithoutZoneEntities(t *testing.T) {
	c := New(newFakeBackend(st("sensor.ep1_temperature", "21")), "ep1")
	_, err := c.Read(context.Background())
	assert.ErrorIs(t, err, ErrNoZoneEntities)
}

func TestPushZonesPartialFailure(t *testing.T) {
	caps := zones.Capabilities{MaxZones: 3}
	set := zones.NewSet(caps, []zones.Rect{
		{ID: "Zone 1", Kind: zones.Regular, X: -500, Y: 0, Width: 1000, Height: 1000, Enabled: true},
		{ID: "Zone 2", Kind: zones.Regular, X: 0.4, Y: 100, Width: 200.2, Height: 300, Enabled: true},
		{ID: "Zone 3", Kind: zones.Regular, X: 1000, Y: 1000, Width: 500, Height: 500, Enabled: true},
	}, nil)

	fb := newFakeBackend()
	fb.fail["number.ep1_zone_2_end_x"] = true
	c := New(fb, "ep1")

	res, err := c.PushZones(context.Background(), set, nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "number.ep1_zone_2_end_x", res.Warnings[0].EntityID)
	assert.Equal(t, "service call failed", res.Warnings[0].Error)

	assert.Equal(t, -500.0, fb.numbers["number.ep1_zone_1_begin_x"])
	assert.Equal(t, 1000.0, fb.numbers["number.ep1_zone_1_end_y"])
	assert.Equal(t, 0.0, fb.numbers["number.ep1_zone_2_begin_x"])
	assert.Equal(t, 400.0, fb.numbers["number.ep1_zone_2_end_y"])
	assert.Equal(t, 1500.0, fb.numbers["number.ep1_zone_3_end_x"])
	assert.Len(t, fb.numbers, 11)
}

func TestPushZonesSkipsUnavailableAndClears(t *testing.T) {
	caps := zones.Capabilities{MaxZones: 3}
	set := zones.NewSet(caps, []zones.Rect{
		{ID: "Zone 1", Kind: zones.Regular, X: 0, Y: 0, Width: 100, Height: 100, Enabled: true},
		{ID: "Zone 2", Kind: zones.Regular, X: 0, Y: 0, Width: 100, Height: 100, Enabled: true},
	}, nil)
	avail := map[zones.Ref]zones.Availability{
		ref(zones.Regular, 2): zones.AvailabilityUnavailable,
	}

	fb := newFakeBackend()
	c := New(fb, "ep1")
	res, err := c.PushZones(context.Background(), set, avail)
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "number.ep1_zone_2_begin_x", res.Warnings[0].EntityID)
	assert.Contains(t, res.Warnings[0].Description, "unavailable")
	assert.Empty(t, res.Warnings[0].Error)

	_, wrote := fb.numbers["number.ep1_zone_2_begin_x"]
	assert.False(t, wrote)
	// Zone 3 is disabled locally and zeroed on the device.
	for _, f := range cornerFields {
		v, ok := fb.numbers["number.ep1_zone_3_"+f]
		assert.True(t, ok, f)
		assert.Zero(t, v, f)
	}
}

func TestPushPolygons(t *testing.T) {
	caps := zones.Capabilities{MaxZones: 2, PolygonSupported: true, PolygonEnabled: true}
	set := zones.NewSet(caps, nil, []zones.Polygon{{
		ID: "Zone 1", Kind: zones.Regular, Enabled: true,
		Vertices: []geometry.Point{{X: 0, Y: 0}, {X: 1000, Y: 0}, {X: 500, Y: 800}},
	}})

	fb := newFakeBackend()
	c := New(fb, "ep1")
	res, err := c.PushZones(context.Background(), set, nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, map[string]string{
		"text.ep1_zone_1_points": "0:0;1000:0;500:800",
		"text.ep1_zone_2_points": "",
	}, fb.texts)

	require.NoError(t, c.SetPolygonMode(context.Background(), false))
	assert.Equal(t, map[string]bool{"switch.ep1_polygon_zones": false}, fb.switch_)
}

func TestZonesFollowDevicePlacement(t *testing.T) {
	pl := geometry.Placement{X: 2000, Y: 0, RotationDeg: 90}
	target := geometry.Point{X: 0, Y: 1000}
	roomTarget := geometry.ToRoom(target, pl)

	zone := zones.Rect{ID: "Zone 1", Kind: zones.Regular, X: 800, Y: -200, Width: 400, Height: 400, Enabled: true}
	require.True(t, zone.Contains(roomTarget), "zone drawn around the rendered target")

	b := newFakeBackend()
	c := New(b, "ep1")
	c.Placement = pl
	set := zones.NewSet(zones.DefaultCapabilities(), []zones.Rect{zone}, nil)
	_, err := c.PushZones(context.Background(), set, nil)
	require.NoError(t, err)

	pushed := zones.RectFromCorners(
		geometry.Point{X: b.numbers["number.ep1_zone_1_begin_x"], Y: b.numbers["number.ep1_zone_1_begin_y"]},
		geometry.Point{X: b.numbers["number.ep1_zone_1_end_x"], Y: b.numbers["number.ep1_zone_1_end_y"]},
	)
	assert.Equal(t, zones.Rect{X: -200, Y: 800, Width: 400, Height: 400}, pushed)
	assert.True(t, pushed.Contains(target), "device sees the target inside the pushed zone")

	// Reading the pushed values back lands on the drawn zone again.
	b.states = rectStates("ep1", "zone_1", "-200", "800", "200", "1200")
	got, err := c.ReadZones(context.Background())
	require.NoError(t, err)
	r, ok := got.Rect(zone.Ref())
	require.True(t, ok)
	assert.True(t, r.Enabled)
	assert.InDelta(t, 800, r.X, 1e-6)
	assert.InDelta(t, -200, r.Y, 1e-6)
	assert.InDelta(t, 400, r.Width, 1e-6)
	assert.InDelta(t, 400, r.Height, 1e-6)
}

func TestPolygonZonesFollowDevicePlacement(t *testing.T) {
	pl := geometry.Placement{X: 1000, Y: 500, RotationDeg: -30}
	caps := zones.DefaultCapabilities()
	caps.PolygonSupported, caps.PolygonEnabled = true, true
	room := []geometry.Point{{X: 0, Y: 1000}, {X: 1500, Y: 1200}, {X: 800, Y: 2600}}
	set := zones.NewSet(caps, nil, []zones.Polygon{{ID: "Zone 2", Kind: zones.Regular, Vertices: room, Enabled: true}})

	b := newFakeBackend()
	c := New(b, "ep1")
	c.Placement = pl
	_, err := c.PushZones(context.Background(), set, nil)
	require.NoError(t, err)

	pts := ParsePoints(b.texts["text.ep1_zone_2_points"])
	require.Len(t, pts, 3)
	for i, p := range pts {
		want := geometry.ToDevice(room[i], pl)
		assert.InDelta(t, want.X, p.X, 0.5)
		assert.InDelta(t, want.Y, p.Y, 0.5)
	}

	b.states = []hass.State{
		st("switch.ep1_polygon_zones", "on"),
		st("text.ep1_zone_2_points", b.texts["text.ep1_zone_2_points"]),
	}
	got, err := c.ReadZones(context.Background())
	require.NoError(t, err)
	p, ok := got.Polygon(zones.Ref{ID: "Zone 2", Kind: zones.Regular})
	require.True(t, ok)
	for i, v := range p.Vertices {
		assert.InDelta(t, room[i].X, v.X, 1)
		assert.InDelta(t, room[i].Y, v.Y, 1)
	}
}

func TestWriteConfig(t *testing.T) {
	cm := map[string]any{"unit_of_measurement": "cm"}
	backend := newFakeBackend(
		hass.State{EntityID: "number.ep1_distance_max", State: "600", Attributes: cm},
		hass.State{EntityID: "number.ep1_min_distance", State: "0"},
		hass.State{EntityID: "number.ep1_zone_2_occupancy_off_delay", State: "10"},
		st("select.ep1_update_rate", "1s"),
		st("switch.ep1_micro_motion_detection", "on"),
		st("number.ep1_threshold", "40"),
	)
	backend.fail["number.ep1_threshold"] = true

	c := New(backend, "ep1")
	res, err := c.WriteConfig(context.Background(), signal.Config{
		MaxDistance:  f64(4250),
		MinDistance:  f64(300),
		Threshold:    f64(55),
		OnLatency:    f64(0.5),
		MicroMotion:  boolPtr(false),
		UpdateRate:   strPtr("0.5s"),
		ZoneOffDelay: map[int]float64{2: 45},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)

	assert.InDelta(t, 425, backend.numbers["number.ep1_distance_max"], 1e-9)
	assert.Equal(t, 300.0, backend.numbers["number.ep1_min_distance"])
	assert.Equal(t, 45.0, backend.numbers["number.ep1_zone_2_occupancy_off_delay"])
	assert.Equal(t, "0.5s", backend.options["select.ep1_update_rate"])
	assert.Equal(t, map[string]bool{"switch.ep1_micro_motion_detection": false}, backend.switch_)

	got := map[string]string{}
	for _, w := range res.Warnings {
		got[w.Description] = w.EntityID
	}
	assert.Equal(t, map[string]string{
		"threshold":  "number.ep1_threshold",
		"on_latency": "",
	}, got)
}

// failingStates errors on every state listing.
type failingStates struct{ *fakeBackend }

func (failingStates) States(context.Context) ([]hass.State, error) {
	return nil, errors.New("home assistant unreachable")
}

func f64(v float64) *float64 { return &v }
func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string { return &v }

func TestWriteConfigEmpty(t *testing.T) {
	res, err := New(failingStates{newFakeBackend()}, "ep1").WriteConfig(context.Background(), signal.Config{})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Warnings)

	_, err = New(failingStates{newFakeBackend()}, "ep1").WriteConfig(context.Background(), signal.Config{Timeout: f64(30)})
	assert.ErrorContains(t, err, "unreachable")
}
