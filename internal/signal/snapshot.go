// Package signal folds a stream of device state updates into a typed
// snapshot of the sensor. Signals are identified by free-form entity names;
// a fixed, priority-ordered rule table decides which field each one feeds.
package signal

import (
	"sort"
	"time"

	"github.com/banshee-data/presence.report/internal/geometry"
)

// Signal is one inbound state update.
type Signal struct {
	Identifier string `json:"identifier"`
	Value      string `json:"value"`
	Unit       string `json:"unit,omitempty"`
}

// Target is one tracked person. Nil fields have not been reported.
type Target struct {
	ID         int      `json:"id"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Distance   *float64 `json:"distance"`
	Speed      *float64 `json:"speed"`
	Angle      *float64 `json:"angle"`
	Resolution *float64 `json:"resolution"`
	Active     *bool    `json:"active"`
}

// Config mirrors the tunables exposed by the device. Lengths are in mm.
type Config struct {
	Mode               *string         `json:"mode"`
	MaxDistance        *float64        `json:"max_distance"`
	MinDistance        *float64        `json:"min_distance"`
	Sensitivity        *float64        `json:"sensitivity"`
	TriggerSensitivity *float64        `json:"trigger_sensitivity"`
	SustainSensitivity *float64        `json:"sustain_sensitivity"`
	Threshold          *float64        `json:"threshold"`
	OnLatency          *float64        `json:"on_latency"`
	OffLatency         *float64        `json:"off_latency"`
	OffDelay           *float64        `json:"off_delay"`
	ZoneOffDelay       map[int]float64 `json:"zone_off_delay,omitempty"`
	Timeout            *float64        `json:"timeout"`
	MicroMotion        *bool           `json:"micro_motion"`
	UpdateRate         *string         `json:"update_rate"`
	InstallationAngle  *float64        `json:"installation_angle"`
}

func (c *Config) clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.ZoneOffDelay != nil {
		out.ZoneOffDelay = make(map[int]float64, len(c.ZoneOffDelay))
		for k, v := range c.ZoneOffDelay {
			out.ZoneOffDelay[k] = v
		}
	}
	return &out
}

// Environment holds the auxiliary sensors of the device.
type Environment struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Illuminance *float64 `json:"illuminance"`
	CO2         *float64 `json:"co2"`
}

// Snapshot is the reconciled live state of one device.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	Presence    *bool     `json:"presence"`
	PIR         *bool     `json:"pir"`
	MMWave      *bool     `json:"mmwave"`
	Distance    *float64  `json:"distance"`
	Speed       *float64  `json:"speed"`
	MoveEnergy  *float64  `json:"move_energy"`
	StillEnergy *float64  `json:"still_energy"`
	TargetCount *int      `json:"target_count"`

	ZoneOccupancy map[string]bool `json:"zone_occupancy"`
	Targets       map[int]Target  `json:"targets"`
	Config        *Config         `json:"config"`
	Environment   Environment     `json:"environment"`

	AssumedPresent          *bool    `json:"assumed_present"`
	AssumedPresentRemaining *float64 `json:"assumed_present_remaining"`
}

// Clone returns a deep copy. A nil snapshot clones to an empty one.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		ZoneOccupancy: make(map[string]bool),
		Targets:       make(map[int]Target),
	}
	if s == nil {
		return out
	}
	zo, tg := out.ZoneOccupancy, out.Targets
	*out = *s
	out.ZoneOccupancy, out.Targets = zo, tg
	for k, v := range s.ZoneOccupancy {
		out.ZoneOccupancy[k] = v
	}
	for k, v := range s.Targets {
		out.Targets[k] = v
	}
	out.Config = s.Config.clone()
	return out
}

// Position returns the device-space position of the target. Cartesian
// fields win; otherwise distance and angle are used.
func (t Target) Position() (geometry.Point, bool) {
	if t.X != nil && t.Y != nil {
		return geometry.Point{X: *t.X, Y: *t.Y}, true
	}
	if t.Distance != nil && t.Angle != nil {
		return geometry.PolarToDevice(*t.Distance, *t.Angle), true
	}
	return geometry.Point{}, false
}

// Rendered reports whether the target is a real detection: it has a
// position, is not flagged inactive, and is not parked at the origin
// unless explicitly active.
func (t Target) Rendered() bool {
	if t.Active != nil && !*t.Active {
		return false
	}
	p, ok := t.Position()
	if !ok {
		return false
	}
	if p.X == 0 && p.Y == 0 && (t.Active == nil || !*t.Active) {
		return false
	}
	return true
}

// RenderedTargets lists the targets that pass Rendered, ordered by id.
func (s *Snapshot) RenderedTargets() []Target {
	if s == nil {
		return nil
	}
	var out []Target
	for _, t := range s.Targets {
		if t.Rendered() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomTarget is a rendered target moved into room space.
type RoomTarget struct {
	ID       int            `json:"id"`
	Position geometry.Point `json:"position"`
	Speed    *float64       `json:"speed,omitempty"`
}

// RoomTargets transforms the rendered targets with the device placement.
func (s *Snapshot) RoomTargets(pl geometry.Placement) []RoomTarget {
	rendered := s.RenderedTargets()
	out := make([]RoomTarget, 0, len(rendered))
	for _, t := range rendered {
		p, _ := t.Position()
		out = append(out, RoomTarget{ID: t.ID, Position: geometry.ToRoom(p, pl), Speed: t.Speed})
	}
	return out
}
