package zones

import "fmt"

// Availability is the device-side status of a zone slot's entities.
type Availability string

const (
	AvailabilityEnabled     Availability = "enabled"
	AvailabilityDisabled    Availability = "disabled"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityUnknown     Availability = "unknown"
)

// Pushable reports whether zones with this status may be written.
func (a Availability) Pushable() bool {
	return a != AvailabilityDisabled && a != AvailabilityUnavailable
}

// Warning reports a locally enabled zone that will not reach the device.
type Warning struct {
	Ref     Ref          `json:"ref"`
	Status  Availability `json:"status"`
	Message string       `json:"message"`
}

// PushPlan is what a device push will write. Clear lists slots that are
// disabled locally and should be zeroed on the device.
type PushPlan struct {
	Mode     Mode      `json:"mode"`
	Rects    []Rect    `json:"rects,omitempty"`
	Polygons []Polygon `json:"polygons,omitempty"`
	Clear    []Ref     `json:"clear,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// PlanPush selects the zones of the current mode to write to the device.
// Slots missing from avail are treated as unknown and pushed. Locally
// enabled zones whose slot is disabled or unavailable are left out and
// reported as warnings.
func PlanPush(set Set, avail map[Ref]Availability) PushPlan {
	plan := PushPlan{Mode: set.Mode}
	status := func(ref Ref) Availability {
		if a, ok := avail[ref]; ok {
			return a
		}
		return AvailabilityUnknown
	}
	skip := func(ref Ref, enabled bool) bool {
		st := status(ref)
		if st.Pushable() {
			return false
		}
		if enabled {
			plan.Warnings = append(plan.Warnings, Warning{
				Ref:    ref,
				Status: st,
				Message: fmt.Sprintf("%s %s is %s on the device and was not pushed",
					ref.Kind, ref.ID, st),
			})
		}
		return true
	}

	if set.Mode == PolygonMode {
		for _, p := range set.Polygons {
			if skip(p.Ref(), p.Enabled) {
				continue
			}
			if p.Enabled {
				plan.Polygons = append(plan.Polygons, p.Clone())
			} else {
				plan.Clear = append(plan.Clear, p.Ref())
			}
		}
		return plan
	}
	for _, r := range set.Rects {
		if skip(r.Ref(), r.Enabled) {
			continue
		}
		if r.Enabled {
			plan.Rects = append(plan.Rects, r)
		} else {
			plan.Clear = append(plan.Clear, r.Ref())
		}
	}
	return plan
}
