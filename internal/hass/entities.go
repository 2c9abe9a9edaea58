package hass

import (
	"fmt"
	"strings"
)

// presenceSuffixes are the entity suffixes the configurator reads or writes
// on an Everything Presence device.
var presenceSuffixes = buildPresenceSuffixes()

func buildPresenceSuffixes() []string {
	var out []string
	corners := []string{"begin_x", "begin_y", "end_x", "end_y"}
	for n := 1; n <= 4; n++ {
		for _, c := range corners {
			out = append(out, fmt.Sprintf("zone_%d_%s", n, c))
		}
		out = append(out,
			fmt.Sprintf("zone_%d_points", n),
			fmt.Sprintf("zone_%d_occupancy_off_delay", n),
			fmt.Sprintf("zone_%d_off_delay", n),
		)
	}
	for n := 1; n <= 2; n++ {
		for _, c := range corners {
			out = append(out,
				fmt.Sprintf("entry_zone_%d_%s", n, c),
				fmt.Sprintf("occupancy_mask_%d_%s", n, c),
			)
		}
		out = append(out,
			fmt.Sprintf("entry_zone_%d_points", n),
			fmt.Sprintf("occupancy_mask_%d_points", n),
		)
	}
	for n := 1; n <= 3; n++ {
		for _, f := range []string{"active", "x", "y", "speed", "resolution", "angle", "distance"} {
			out = append(out, fmt.Sprintf("target_%d_%s", n, f))
		}
	}
	out = append(out,
		"max_distance", "installation_angle",
		"assumed_present", "assumed_present_remaining_s",
		"polygon_zones",
		"bluetooth_switch", "inverse_mounting", "aggressive_target_clearing",
		"off_delay", "aggressive_timeout", "illuminance_offset_ui", "illuminance_offset",
		"esp32_led", "status_led",
		"entry_exit_enabled", "assume_present_timeout_s", "exit_threshold_pct",
	)
	return out
}

// IsPresenceEntity reports whether entityID is one of the zone, target or
// settings entities of a presence device.
func IsPresenceEntity(entityID string) bool {
	if entityID == "" {
		return false
	}
	for _, s := range presenceSuffixes {
		if strings.HasSuffix(entityID, s) {
			return true
		}
	}
	return false
}
