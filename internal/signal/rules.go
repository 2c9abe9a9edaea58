package signal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/presence.report/internal/monitoring"
)

// ident is a normalised signal identifier: lower-cased, entity domain
// removed and split into underscore separated tokens.
type ident struct {
	name   string
	tokens []string
	set    map[string]bool
}

var separators = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

func parseIdent(raw string) ident {
	name := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = separators.Replace(name)
	id := ident{name: name, set: make(map[string]bool)}
	for _, t := range strings.Split(name, "_") {
		if t == "" {
			continue
		}
		id.tokens = append(id.tokens, t)
		id.set[t] = true
	}
	id.name = strings.Join(id.tokens, "_")
	return id
}

func (id ident) hasAny(tokens ...string) bool {
	for _, t := range tokens {
		if id.set[t] {
			return true
		}
	}
	return false
}

// hasSuffix reports whether the identifier ends with the given token
// sequence.
func (id ident) hasSuffix(suffix string) bool {
	return id.name == suffix || strings.HasSuffix(id.name, "_"+suffix)
}

// configTokens never appear in the identifier of a plain boolean sensor.
var configTokens = []string{"mode", "distance", "sensitivity", "latency", "threshold", "delay", "timeout", "speed"}

func notConfig(id ident) bool { return !id.hasAny(configTokens...) }

// rule is one entry of the parser table: a predicate over the identifier
// and an extractor that writes into the snapshot.
type rule struct {
	name    string
	match   func(id ident) []string
	extract func(s *Snapshot, m []string, sig Signal)
}

func pattern(expr string) func(ident) []string {
	re := regexp.MustCompile(`(?:^|_)` + expr + `$`)
	return func(id ident) []string { return re.FindStringSubmatch(id.name) }
}

func suffixes(list ...string) func(ident) []string {
	return func(id ident) []string {
		for _, s := range list {
			if id.hasSuffix(s) {
				return []string{s}
			}
		}
		return nil
	}
}

func guarded(token string) func(ident) []string {
	return func(id ident) []string {
		if id.set[token] && notConfig(id) {
			return []string{token}
		}
		return nil
	}
}

func target(s *Snapshot, m []string) (Target, int) {
	n, _ := strconv.Atoi(m[1])
	t, ok := s.Targets[n]
	if !ok {
		t = Target{ID: n}
	}
	return t, n
}

func setZone(s *Snapshot, key string, v *bool) {
	if v == nil {
		delete(s.ZoneOccupancy, key)
		return
	}
	s.ZoneOccupancy[key] = *v
}

func config(s *Snapshot) *Config {
	if s.Config == nil {
		s.Config = &Config{}
	}
	return s.Config
}

// configFields maps identifier suffixes to config setters. Longer suffixes
// are listed first so the most specific key wins.
var configFields = []struct {
	suffix string
	set    func(c *Config, sig Signal)
}{
	{"micro_motion_detection", func(c *Config, sig Signal) { c.MicroMotion = ParseBool(sig.Value) }},
	{"micro_motion", func(c *Config, sig Signal) { c.MicroMotion = ParseBool(sig.Value) }},
	{"trigger_sensitivity", func(c *Config, sig Signal) { c.TriggerSensitivity = ParseFloat(sig.Value) }},
	{"sustain_sensitivity", func(c *Config, sig Signal) { c.SustainSensitivity = ParseFloat(sig.Value) }},
	{"installation_angle", func(c *Config, sig Signal) { c.InstallationAngle = ParseFloat(sig.Value) }},
	{"max_distance", func(c *Config, sig Signal) { c.MaxDistance = ParseLength(sig.Value, sig.Unit) }},
	{"distance_max", func(c *Config, sig Signal) { c.MaxDistance = ParseLength(sig.Value, sig.Unit) }},
	{"min_distance", func(c *Config, sig Signal) { c.MinDistance = ParseLength(sig.Value, sig.Unit) }},
	{"distance_min", func(c *Config, sig Signal) { c.MinDistance = ParseLength(sig.Value, sig.Unit) }},
	{"update_rate", func(c *Config, sig Signal) { c.UpdateRate = ParseString(sig.Value) }},
	{"on_latency", func(c *Config, sig Signal) { c.OnLatency = ParseFloat(sig.Value) }},
	{"off_latency", func(c *Config, sig Signal) { c.OffLatency = ParseFloat(sig.Value) }},
	{"off_delay", func(c *Config, sig Signal) { c.OffDelay = ParseFloat(sig.Value) }},
	{"sensitivity", func(c *Config, sig Signal) { c.Sensitivity = ParseFloat(sig.Value) }},
	{"threshold", func(c *Config, sig Signal) { c.Threshold = ParseFloat(sig.Value) }},
	{"timeout", func(c *Config, sig Signal) { c.Timeout = ParseFloat(sig.Value) }},
	{"mode", func(c *Config, sig Signal) { c.Mode = ParseString(sig.Value) }},
}

var zoneOffDelay = pattern(`zone_(\d+)(?:_occupancy)?_off_delay`)

func matchConfig(id ident) []string {
	if m := zoneOffDelay(id); m != nil {
		return []string{"zone_off_delay", m[1]}
	}
	for _, f := range configFields {
		if id.hasSuffix(f.suffix) {
			return []string{f.suffix}
		}
	}
	return nil
}

func extractConfig(s *Snapshot, m []string, sig Signal) {
	c := config(s)
	if m[0] == "zone_off_delay" {
		n, _ := strconv.Atoi(m[1])
		v := ParseFloat(sig.Value)
		if v == nil {
			delete(c.ZoneOffDelay, n)
			return
		}
		if c.ZoneOffDelay == nil {
			c.ZoneOffDelay = make(map[int]float64)
		}
		c.ZoneOffDelay[n] = *v
		return
	}
	for _, f := range configFields {
		if f.suffix == m[0] {
			f.set(c, sig)
			return
		}
	}
}

// rules is evaluated top to bottom; the first match wins. Zone and target
// patterns precede the generic sensors that share their tokens.
var rules = []rule{
	{
		name:  "entry_zone_occupancy",
		match: pattern(`entry_zone_(\d+)_occupancy`),
		extract: func(s *Snapshot, m []string, sig Signal) {
			setZone(s, "entry_zone"+m[1], ParseBool(sig.Value))
		},
	},
	{
		name:  "zone_occupancy",
		match: pattern(`zone_(\d+)_occupancy`),
		extract: func(s *Snapshot, m []string, sig Signal) {
			setZone(s, "zone"+m[1], ParseBool(sig.Value))
		},
	},
	{
		name:  "target_active",
		match: pattern(`target_(\d+)_active`),
		extract: func(s *Snapshot, m []string, sig Signal) {
			t, n := target(s, m)
			t.Active = ParseBool(sig.Value)
			s.Targets[n] = t
		},
	},
	{
		name:  "target_field",
		match: pattern(`target_(\d+)_(x|y|distance|speed|angle|resolution)`),
		extract: func(s *Snapshot, m []string, sig Signal) {
			t, n := target(s, m)
			switch m[2] {
			case "x":
				t.X = ParseLength(sig.Value, sig.Unit)
			case "y":
				t.Y = ParseLength(sig.Value, sig.Unit)
			case "distance":
				t.Distance = ParseLength(sig.Value, sig.Unit)
			case "resolution":
				t.Resolution = ParseLength(sig.Value, sig.Unit)
			case "speed":
				t.Speed = ParseSpeed(sig.Value, sig.Unit)
			case "angle":
				t.Angle = ParseFloat(sig.Value)
			}
			s.Targets[n] = t
		},
	},
	{
		name:  "target_count",
		match: suffixes("target_count", "targets_count", "number_of_targets"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.TargetCount = nil
			if f := ParseFloat(sig.Value); f != nil {
				n := int(*f)
				s.TargetCount = &n
			}
		},
	},
	{
		name:  "assumed_present_remaining",
		match: suffixes("assumed_present_remaining_s", "assumed_present_remaining"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.AssumedPresentRemaining = ParseFloat(sig.Value)
		},
	},
	{
		name:  "assumed_present",
		match: suffixes("assumed_present"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.AssumedPresent = ParseBool(sig.Value)
		},
	},
	{
		name:    "config",
		match:   matchConfig,
		extract: extractConfig,
	},
	{
		name:  "environment",
		match: suffixes("temperature", "humidity", "illuminance", "illumination", "lux", "co2", "carbon_dioxide"),
		extract: func(s *Snapshot, m []string, sig Signal) {
			v := ParseFloat(sig.Value)
			switch m[0] {
			case "temperature":
				s.Environment.Temperature = v
			case "humidity":
				s.Environment.Humidity = v
			case "illuminance", "illumination", "lux":
				s.Environment.Illuminance = v
			case "co2", "carbon_dioxide":
				s.Environment.CO2 = v
			}
		},
	},
	{
		name:  "distance",
		match: suffixes("detection_distance", "moving_distance", "distance"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.Distance = ParseLength(sig.Value, sig.Unit)
		},
	},
	{
		name:  "speed",
		match: suffixes("moving_speed", "speed"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.Speed = ParseSpeed(sig.Value, sig.Unit)
		},
	},
	{
		name:  "energy",
		match: suffixes("move_energy", "moving_energy", "still_energy", "static_energy"),
		extract: func(s *Snapshot, m []string, sig Signal) {
			v := ParseFloat(sig.Value)
			if strings.HasPrefix(m[0], "mov") {
				s.MoveEnergy = v
			} else {
				s.StillEnergy = v
			}
		},
	},
	{
		name: "presence",
		match: func(id ident) []string {
			if id.hasAny("occupancy", "presence", "occupied") && notConfig(id) {
				return []string{"presence"}
			}
			return nil
		},
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.Presence = ParseBool(sig.Value)
		},
	},
	{
		name:  "pir",
		match: guarded("pir"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.PIR = ParseBool(sig.Value)
		},
	},
	{
		name:  "mmwave",
		match: guarded("mmwave"),
		extract: func(s *Snapshot, _ []string, sig Signal) {
			s.MMWave = ParseBool(sig.Value)
		},
	},
}

// Rules returns the rule names in evaluation order.
func Rules() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// Classify returns the name of the rule that handles identifier, or "" if
// the identifier is ignored.
func Classify(identifier string) string {
	id := parseIdent(identifier)
	for _, r := range rules {
		if r.match(id) != nil {
			return r.name
		}
	}
	return ""
}

// Apply folds one signal into prev and returns the new snapshot. prev is
// never modified. The timestamp is updated even when no rule matches.
func Apply(prev *Snapshot, sig Signal, at time.Time) *Snapshot {
	next, _ := apply(prev, sig, at)
	return next
}

func apply(prev *Snapshot, sig Signal, at time.Time) (*Snapshot, string) {
	next := prev.Clone()
	next.Timestamp = at
	id := parseIdent(sig.Identifier)
	for _, r := range rules {
		if m := r.match(id); m != nil {
			r.extract(next, m, sig)
			return next, r.name
		}
	}
	return next, ""
}

// Folder applies signals in arrival order and reports parser metrics.
type Folder struct {
	Metrics *monitoring.Metrics

	snap *Snapshot
}

// Apply folds sig into the current snapshot and returns it.
func (f *Folder) Apply(sig Signal, at time.Time) *Snapshot {
	next, rule := apply(f.snap, sig, at)
	f.snap = next
	f.Metrics.SignalApplied(rule)
	f.Metrics.RenderedTargets(len(next.RenderedTargets()))
	return next
}

// Snapshot returns the current snapshot, or nil before the first signal.
func (f *Folder) Snapshot() *Snapshot { return f.snap }

// Reset discards the snapshot, for example when the subscription target
// changes.
func (f *Folder) Reset() { f.snap = nil }
