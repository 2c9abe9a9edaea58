// Package device reads and writes the zone configuration of a presence
// device through the Home Assistant entities its firmware exposes.
package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

// Rect zone coordinates are stored as one number entity per corner value.
var cornerFields = []string{"begin_x", "begin_y", "end_x", "end_y"}

// stem returns the entity stem of a slot, e.g. "occupancy_mask_2".
func stem(ref zones.Ref) (string, bool) {
	n, ok := zones.SlotNumber(ref.ID)
	if !ok {
		return "", false
	}
	switch ref.Kind {
	case zones.Regular:
		return fmt.Sprintf("zone_%d", n), true
	case zones.Exclusion:
		return fmt.Sprintf("occupancy_mask_%d", n), true
	case zones.Entry:
		return fmt.Sprintf("entry_zone_%d", n), true
	}
	return "", false
}

// Entities names the entities of one device.
type Entities struct {
	Prefix string
}

// Number returns the number entity for a rect corner field.
func (e Entities) Number(ref zones.Ref, field string) string {
	s, _ := stem(ref)
	return "number." + e.Prefix + "_" + s + "_" + field
}

// Points returns the text entity holding a polygon's vertices.
func (e Entities) Points(ref zones.Ref) string {
	s, _ := stem(ref)
	return "text." + e.Prefix + "_" + s + "_points"
}

// PolygonSwitch returns the switch that puts the firmware in polygon mode.
func (e Entities) PolygonSwitch() string {
	return "switch." + e.Prefix + "_polygon_zones"
}

// FormatPoints encodes vertices as "x:y;x:y;…" in whole millimetres.
func FormatPoints(pts []geometry.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = strconv.FormatInt(int64(math.Round(p.X)), 10) + ":" + strconv.FormatInt(int64(math.Round(p.Y)), 10)
	}
	return strings.Join(parts, ";")
}

// ParsePoints decodes the firmware's vertex list. Malformed pairs are
// skipped.
func ParsePoints(s string) []geometry.Point {
	var out []geometry.Point
	for _, pair := range strings.Split(s, ";") {
		xs, ys, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if errX != nil || errY != nil {
			continue
		}
		p := geometry.Point{X: x, Y: y}
		if !p.IsFinite() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// availability maps an entity state onto a slot status. A missing entity
// means the entity is disabled in Home Assistant.
func availability(state string, found bool) zones.Availability {
	if !found {
		return zones.AvailabilityDisabled
	}
	switch state {
	case "unavailable":
		return zones.AvailabilityUnavailable
	case "unknown":
		return zones.AvailabilityUnknown
	}
	return zones.AvailabilityEnabled
}
