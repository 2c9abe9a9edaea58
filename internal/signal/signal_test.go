package signal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/monitoring"
)

var t0 = time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

func fold(sigs ...Signal) *Snapshot {
	var s *Snapshot
	for i, sig := range sigs {
		s = Apply(s, sig, t0.Add(time.Duration(i)*time.Second))
	}
	return s
}

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func TestRuleOrder(t *testing.T) {
	want := []string{
		"entry_zone_occupancy",
		"zone_occupancy",
		"target_active",
		"target_field",
		"target_count",
		"assumed_present_remaining",
		"assumed_present",
		"config",
		"environment",
		"distance",
		"speed",
		"energy",
		"presence",
		"pir",
		"mmwave",
	}
	if diff := cmp.Diff(want, Rules()); diff != "" {
		t.Errorf("rule order changed (-want +got):\n%s", diff)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"binary_sensor.ep1_entry_zone_2_occupancy", "entry_zone_occupancy"},
		{"binary_sensor.ep1_zone_1_occupancy", "zone_occupancy"},
		{"binary_sensor.ep_lite_target_2_active", "target_active"},
		{"sensor.ep1_target_1_x", "target_field"},
		{"sensor.ep1_target_3_speed", "target_field"},
		{"sensor.ep1_target_1_distance", "target_field"},
		{"sensor.ep_lite_target_count", "target_count"},
		{"sensor.ep_lite_assumed_present_remaining_s", "assumed_present_remaining"},
		{"binary_sensor.ep_lite_assumed_present", "assumed_present"},
		{"number.ep1_mmwave_distance_max", "config"},
		{"number.ep_lite_max_distance", "config"},
		{"select.ep1_mmwave_mode", "config"},
		{"number.ep1_mmwave_on_latency", "config"},
		{"number.ep1_occupancy_off_delay", "config"},
		{"number.ep_lite_zone_1_occupancy_off_delay", "config"},
		{"number.ep1_mmwave_threshold", "config"},
		{"number.ep1_pir_timeout", "config"},
		{"switch.ep_lite_micro_motion", "config"},
		{"number.ep_lite_installation_angle", "config"},
		{"sensor.ep1_temperature", "environment"},
		{"sensor.ep1_illuminance", "environment"},
		{"sensor.ep1_co2", "environment"},
		{"sensor.ep1_detection_distance", "distance"},
		{"sensor.ep1_moving_speed", "speed"},
		{"sensor.ep1_still_energy", "energy"},
		{"binary_sensor.ep1_occupancy", "presence"},
		{"binary_sensor.ep1_pir", "pir"},
		{"binary_sensor.ep1_mmwave", "mmwave"},
		{"Binary_Sensor.EP1 MMWave", "mmwave"},
		{"sensor.ep1_uptime", ""},
		{"button.ep1_restart", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.id))
		})
	}
}

func TestBooleanSensorsRejectConfigTokens(t *testing.T) {
	for _, tok := range configTokens {
		id := "binary_sensor.ep1_mmwave_" + tok + "_x"
		assert.NotEqual(t, "mmwave", Classify(id), id)
		id = "binary_sensor.ep1_pir_" + tok + "_x"
		assert.NotEqual(t, "pir", Classify(id), id)
		id = "binary_sensor.ep1_occupancy_" + tok + "_x"
		assert.NotEqual(t, "presence", Classify(id), id)
	}
}

func TestTargetUnitConversion(t *testing.T) {
	s := fold(Signal{Identifier: "sensor.ep1_target_1_x", Value: "10", Unit: "in"})
	require.Contains(t, s.Targets, 1)
	require.NotNil(t, s.Targets[1].X)
	assert.InDelta(t, 254.0, *s.Targets[1].X, 1e-9)
	assert.Nil(t, s.Targets[1].Y)

	s = fold(
		Signal{Identifier: "sensor.ep1_target_2_y", Value: "1.5", Unit: "m"},
		Signal{Identifier: "sensor.ep1_target_2_distance", Value: "2", Unit: "ft"},
		Signal{Identifier: "sensor.ep1_target_2_resolution", Value: "7.5", Unit: "cm"},
		Signal{Identifier: "sensor.ep1_target_2_angle", Value: "-30", Unit: "°"},
		Signal{Identifier: "sensor.ep1_target_2_speed", Value: "0.4", Unit: "m/s"},
	)
	tg := s.Targets[2]
	assert.Equal(t, 2, tg.ID)
	assert.InDelta(t, 1500.0, *tg.Y, 1e-9)
	assert.InDelta(t, 609.6, *tg.Distance, 1e-9)
	assert.InDelta(t, 75.0, *tg.Resolution, 1e-9)
	assert.Equal(t, -30.0, *tg.Angle, "angles are never unit converted")
	assert.Equal(t, 0.4, *tg.Speed)

	s = fold(Signal{Identifier: "sensor.ep1_target_3_speed", Value: "-25", Unit: "cm/s"})
	require.NotNil(t, s.Targets[3].Speed)
	assert.InDelta(t, -0.25, *s.Targets[3].Speed, 1e-9, "speeds are normalised to m/s")
}

func TestOrderingSameField(t *testing.T) {
	s := fold(
		Signal{Identifier: "sensor.ep1_target_1_x", Value: "1"},
		Signal{Identifier: "sensor.ep1_target_1_x", Value: "2"},
	)
	assert.Equal(t, 2.0, *s.Targets[1].X)
}

func TestOrderingInterleaved(t *testing.T) {
	s := fold(
		Signal{Identifier: "sensor.ep1_target_1_y", Value: "1"},
		Signal{Identifier: "sensor.ep1_target_1_x", Value: "1"},
		Signal{Identifier: "sensor.ep1_target_1_x", Value: "2"},
	)
	assert.Equal(t, 2.0, *s.Targets[1].X)
	assert.Equal(t, 1.0, *s.Targets[1].Y)
}

func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	sig := Signal{Identifier: "binary_sensor.ep1_zone_2_occupancy", Value: "on"}
	once := Apply(nil, sig, t0)
	twice := Apply(once, sig, t0)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("duplicate changed snapshot:\n%s", diff)
	}
}

func TestApplyDoesNotMutatePrevious(t *testing.T) {
	prev := fold(
		Signal{Identifier: "sensor.ep1_target_1_x", Value: "100"},
		Signal{Identifier: "binary_sensor.ep1_zone_1_occupancy", Value: "on"},
		Signal{Identifier: "number.ep1_mmwave_threshold", Value: "3"},
	)
	before := prev.Clone()

	next := Apply(prev, Signal{Identifier: "sensor.ep1_target_1_x", Value: "200"}, t0.Add(time.Hour))
	next = Apply(next, Signal{Identifier: "binary_sensor.ep1_zone_1_occupancy", Value: "off"}, t0.Add(time.Hour))
	next = Apply(next, Signal{Identifier: "number.ep1_mmwave_threshold", Value: "5"}, t0.Add(time.Hour))

	if diff := cmp.Diff(before, prev); diff != "" {
		t.Errorf("previous snapshot mutated:\n%s", diff)
	}
	assert.Equal(t, 200.0, *next.Targets[1].X)
	assert.False(t, next.ZoneOccupancy["zone1"])
	assert.Equal(t, 5.0, *next.Config.Threshold)
}

func TestUnmatchedUpdatesTimestamp(t *testing.T) {
	s := Apply(nil, Signal{Identifier: "sensor.ep1_uptime", Value: "12"}, t0)
	assert.Equal(t, t0, s.Timestamp)
	assert.Empty(t, s.Targets)
	assert.Nil(t, s.Config)

	s = Apply(s, Signal{Identifier: "sensor.ep1_wifi_signal", Value: "-60"}, t0.Add(time.Minute))
	assert.Equal(t, t0.Add(time.Minute), s.Timestamp)
}

func TestZoneOccupancy(t *testing.T) {
	s := fold(
		Signal{Identifier: "binary_sensor.ep1_zone_1_occupancy", Value: "on"},
		Signal{Identifier: "binary_sensor.ep1_entry_zone_1_occupancy", Value: "detected"},
		Signal{Identifier: "binary_sensor.ep1_zone_3_occupancy", Value: "off"},
	)
	assert.Equal(t, map[string]bool{"zone1": true, "entry_zone1": true, "zone3": false}, s.ZoneOccupancy)
	assert.Nil(t, s.Presence, "zone signals never feed whole-room presence")

	s = Apply(s, Signal{Identifier: "binary_sensor.ep1_zone_1_occupancy", Value: "unavailable"}, t0)
	assert.NotContains(t, s.ZoneOccupancy, "zone1")
}

func TestScalarsAndConfig(t *testing.T) {
	s := fold(
		Signal{Identifier: "binary_sensor.ep1_occupancy", Value: "on"},
		Signal{Identifier: "binary_sensor.ep1_pir", Value: "off"},
		Signal{Identifier: "binary_sensor.ep1_mmwave", Value: "on"},
		Signal{Identifier: "sensor.ep1_detection_distance", Value: "1.2", Unit: "m"},
		Signal{Identifier: "sensor.ep1_moving_speed", Value: "not-a-number"},
		Signal{Identifier: "sensor.ep1_move_energy", Value: "55"},
		Signal{Identifier: "sensor.ep1_still_energy", Value: "12"},
		Signal{Identifier: "sensor.ep_lite_target_count", Value: "2"},
		Signal{Identifier: "sensor.ep_lite_assumed_present_remaining_s", Value: "42"},
		Signal{Identifier: "binary_sensor.ep_lite_assumed_present", Value: "on"},
		Signal{Identifier: "select.ep1_mmwave_mode", Value: "Presence"},
		Signal{Identifier: "number.ep_lite_max_distance", Value: "600", Unit: "cm"},
		Signal{Identifier: "number.ep1_mmwave_trigger_sensitivity", Value: "7"},
		Signal{Identifier: "number.ep1_mmwave_sustain_sensitivity", Value: "5"},
		Signal{Identifier: "number.ep1_mmwave_off_latency", Value: "15"},
		Signal{Identifier: "number.ep_lite_zone_2_occupancy_off_delay", Value: "30"},
		Signal{Identifier: "switch.ep_lite_micro_motion", Value: "on"},
		Signal{Identifier: "select.ep_lite_update_rate", Value: "fast"},
		Signal{Identifier: "number.ep_lite_installation_angle", Value: "-15"},
		Signal{Identifier: "sensor.ep1_temperature", Value: "21.5"},
		Signal{Identifier: "sensor.ep1_humidity", Value: "48"},
		Signal{Identifier: "sensor.ep1_illuminance", Value: "unknown"},
	)

	assert.Equal(t, b(true), s.Presence)
	assert.Equal(t, b(false), s.PIR)
	assert.Equal(t, b(true), s.MMWave)
	assert.InDelta(t, 1200.0, *s.Distance, 1e-9)
	assert.Nil(t, s.Speed, "parse failure leaves the field absent")
	assert.Equal(t, f(55), s.MoveEnergy)
	assert.Equal(t, f(12), s.StillEnergy)
	require.NotNil(t, s.TargetCount)
	assert.Equal(t, 2, *s.TargetCount)
	assert.Equal(t, f(42), s.AssumedPresentRemaining)
	assert.Equal(t, b(true), s.AssumedPresent)

	require.NotNil(t, s.Config)
	assert.Equal(t, "Presence", *s.Config.Mode)
	assert.Equal(t, f(6000), s.Config.MaxDistance)
	assert.Equal(t, f(7), s.Config.TriggerSensitivity)
	assert.Equal(t, f(5), s.Config.SustainSensitivity)
	assert.Equal(t, f(15), s.Config.OffLatency)
	assert.Equal(t, map[int]float64{2: 30}, s.Config.ZoneOffDelay)
	assert.Equal(t, b(true), s.Config.MicroMotion)
	assert.Equal(t, "fast", *s.Config.UpdateRate)
	assert.Equal(t, f(-15), s.Config.InstallationAngle)

	assert.Equal(t, f(21.5), s.Environment.Temperature)
	assert.Equal(t, f(48), s.Environment.Humidity)
	assert.Nil(t, s.Environment.Illuminance)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"on", "ON", "true", "1", "detected", "home", "occupied"} {
		assert.Equal(t, b(true), ParseBool(v), v)
	}
	for _, v := range []string{"off", "false", "0", "clear", "not_home"} {
		assert.Equal(t, b(false), ParseBool(v), v)
	}
	for _, v := range []string{"unknown", "unavailable", "", "maybe"} {
		assert.Nil(t, ParseBool(v), v)
	}
}

func TestNonFiniteValuesAreAbsent(t *testing.T) {
	s := fold(
		Signal{Identifier: "sensor.ep1_target_1_x", Value: "NaN"},
		Signal{Identifier: "sensor.ep1_target_1_y", Value: "+Inf", Unit: "m"},
	)
	assert.Nil(t, s.Targets[1].X)
	assert.Nil(t, s.Targets[1].Y)
}

func TestTargetFiltering(t *testing.T) {
	s := &Snapshot{Targets: map[int]Target{
		1: {ID: 1, X: f(100), Y: f(200), Active: b(false)},
		2: {ID: 2, X: f(0), Y: f(0)},
		3: {ID: 3, X: f(0), Y: f(0), Active: b(false)},
		4: {ID: 4, X: f(0), Y: f(0), Active: b(true)},
		5: {ID: 5, X: f(-300), Y: f(1200)},
		6: {ID: 6, Distance: f(1000), Angle: f(0)},
		7: {ID: 7, X: f(10)},
	}}

	var ids []int
	for _, tg := range s.RenderedTargets() {
		ids = append(ids, tg.ID)
	}
	assert.Equal(t, []int{4, 5, 6}, ids)

	var nilSnap *Snapshot
	assert.Empty(t, nilSnap.RenderedTargets())
}

func TestRoomTargets(t *testing.T) {
	s := &Snapshot{Targets: map[int]Target{
		1: {ID: 1, X: f(0), Y: f(1000), Active: b(true)},
	}}
	got := s.RoomTargets(geometry.Placement{X: 500, Y: 500, RotationDeg: 90})
	require.Len(t, got, 1)
	assert.InDelta(t, -500, got[0].Position.X, 1e-9)
	assert.InDelta(t, 500, got[0].Position.Y, 1e-9)
}

func TestFolder(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	fl := &Folder{Metrics: m}
	assert.Nil(t, fl.Snapshot())

	fl.Apply(Signal{Identifier: "sensor.ep1_target_1_x", Value: "100"}, t0)
	fl.Apply(Signal{Identifier: "sensor.ep1_target_1_y", Value: "100"}, t0)
	fl.Apply(Signal{Identifier: "sensor.ep1_rssi", Value: "-40"}, t0)
	require.NotNil(t, fl.Snapshot())
	assert.Len(t, fl.Snapshot().RenderedTargets(), 1)

	fl.Reset()
	assert.Nil(t, fl.Snapshot())
}
