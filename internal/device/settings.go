package device

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/banshee-data/presence.report/internal/hass"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/signal"
	"github.com/banshee-data/presence.report/internal/units"
)

// setting is one tunable write. Suffixes are tried in order against the
// device's entities of the setting's domain.
type setting struct {
	domain   string
	suffixes []string
	length   bool
	number   *float64
	option   *string
	on       *bool
}

func settings(cfg signal.Config) []setting {
	num := func(v *float64, length bool, suffixes ...string) setting {
		return setting{domain: "number", suffixes: suffixes, length: length, number: v}
	}
	list := []setting{
		{domain: "select", suffixes: []string{"mode", "mmwave_mode"}, option: cfg.Mode},
		num(cfg.MaxDistance, true, "max_distance", "distance_max"),
		num(cfg.MinDistance, true, "min_distance", "distance_min"),
		num(cfg.Sensitivity, false, "sensitivity", "mmwave_sensitivity"),
		num(cfg.TriggerSensitivity, false, "trigger_sensitivity"),
		num(cfg.SustainSensitivity, false, "sustain_sensitivity"),
		num(cfg.Threshold, false, "threshold", "mmwave_threshold"),
		num(cfg.OnLatency, false, "on_latency", "mmwave_on_latency"),
		num(cfg.OffLatency, false, "off_latency", "mmwave_off_latency"),
		num(cfg.OffDelay, false, "off_delay", "occupancy_off_delay"),
		num(cfg.Timeout, false, "timeout"),
		num(cfg.InstallationAngle, false, "installation_angle"),
		{domain: "switch", suffixes: []string{"micro_motion_detection", "micro_motion"}, on: cfg.MicroMotion},
		{domain: "select", suffixes: []string{"update_rate"}, option: cfg.UpdateRate},
	}

	zonesWithDelay := make([]int, 0, len(cfg.ZoneOffDelay))
	for n := range cfg.ZoneOffDelay {
		zonesWithDelay = append(zonesWithDelay, n)
	}
	sort.Ints(zonesWithDelay)
	for _, n := range zonesWithDelay {
		v := cfg.ZoneOffDelay[n]
		list = append(list, num(&v, false,
			fmt.Sprintf("zone_%d_off_delay", n),
			fmt.Sprintf("zone_%d_occupancy_off_delay", n)))
	}

	out := list[:0]
	for _, s := range list {
		if s.number != nil || s.option != nil || s.on != nil {
			out = append(out, s)
		}
	}
	return out
}

func (s setting) describe() string { return s.suffixes[0] }

func (s setting) find(byID map[string]hass.State, prefix string) (hass.State, bool) {
	for _, suffix := range s.suffixes {
		if st, ok := byID[s.domain+"."+prefix+"_"+suffix]; ok {
			return st, true
		}
	}
	return hass.State{}, false
}

// WriteConfig writes the non-nil fields of cfg to the device's number,
// select and switch entities. Lengths are given in mm and converted to the
// entity's unit of measurement. A field the device does not expose, or a
// write that fails, is reported as a warning.
func (c *Client) WriteConfig(ctx context.Context, cfg signal.Config) (PushResult, error) {
	list := settings(cfg)
	if len(list) == 0 {
		return PushResult{OK: true}, nil
	}
	byID, err := c.states(ctx)
	if err != nil {
		return PushResult{}, err
	}

	var res PushResult
	warn := func(id string, s setting, err error) {
		w := PushWarning{EntityID: id, Description: s.describe()}
		if err != nil {
			w.Error = err.Error()
		}
		res.Warnings = append(res.Warnings, w)
	}

	for _, s := range list {
		st, ok := s.find(byID, c.entities.Prefix)
		if !ok {
			warn("", s, fmt.Errorf("device has no %s entity for %s", s.domain, s.describe()))
			continue
		}
		var err error
		switch {
		case s.number != nil:
			v := *s.number
			if math.IsNaN(v) || math.IsInf(v, 0) {
				err = fmt.Errorf("invalid value %s", strconv.FormatFloat(v, 'g', -1, 64))
				break
			}
			if s.length {
				v, _ = units.FromMillimetres(v, st.Unit())
			}
			err = c.ha.SetNumber(ctx, st.EntityID, v)
		case s.option != nil:
			err = c.ha.SelectOption(ctx, st.EntityID, *s.option)
		case s.on != nil:
			err = c.ha.SetSwitch(ctx, st.EntityID, *s.on)
		}
		if err != nil {
			warn(st.EntityID, s, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.OK = true
	if len(res.Warnings) > 0 {
		monitoring.Logf("[device] config write to %s finished with %d warnings", c.entities.Prefix, len(res.Warnings))
	}
	return res, nil
}
