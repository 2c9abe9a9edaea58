package units

import (
	"math"
	"strings"
)

// Speed units. Metres per second is canonical for target and moving speed.
const (
	MPS  = "m/s"
	CMPS = "cm/s"
	MMPS = "mm/s"
	KMPH = "km/h"
	MPH  = "mph"
)

var metresPerSecond = map[string]float64{
	MPS:  1,
	CMPS: 0.01,
	MMPS: 0.001,
	KMPH: 1 / 3.6,
	MPH:  0.44704,
}

func normalizeSpeed(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "mps", "ms", "m s-1":
		return MPS
	case "cms", "cm s-1":
		return CMPS
	case "kph", "kmph", "kmh":
		return KMPH
	}
	return u
}

// IsValidSpeed reports whether unit is a known speed unit.
func IsValidSpeed(unit string) bool {
	_, ok := metresPerSecond[normalizeSpeed(unit)]
	return ok
}

// ToMetresPerSecond converts a reported speed. Unknown or empty units are
// taken as m/s. Non-finite input returns false.
func ToMetresPerSecond(v float64, unit string) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	f, ok := metresPerSecond[normalizeSpeed(unit)]
	if !ok {
		return v, true
	}
	return v * f, true
}

// ConvertSpeed converts a speed in m/s to display units. Speeds are
// presentation only and never written back to a device.
func ConvertSpeed(speedMPS float64, unit string) float64 {
	f, ok := metresPerSecond[normalizeSpeed(unit)]
	if !ok {
		return speedMPS
	}
	return speedMPS / f
}
