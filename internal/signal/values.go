package signal

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/presence.report/internal/units"
)

// ParseBool maps device state strings to a boolean. Unknown states, and
// anything unrecognised, return nil.
func ParseBool(v string) *bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "detected", "home", "occupied":
		return boolPtr(true)
	case "off", "false", "0", "clear", "not_home":
		return boolPtr(false)
	}
	return nil
}

// ParseFloat parses a numeric state. Unknown, unparseable and non-finite
// values return nil.
func ParseFloat(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseLength parses a linear measurement and converts it to millimetres.
func ParseLength(v, unit string) *float64 {
	f := ParseFloat(v)
	if f == nil {
		return nil
	}
	mm, ok := units.ToMillimetres(*f, unit)
	if !ok {
		return nil
	}
	return &mm
}

// ParseSpeed parses a speed and converts it to metres per second.
func ParseSpeed(v, unit string) *float64 {
	f := ParseFloat(v)
	if f == nil {
		return nil
	}
	mps, ok := units.ToMetresPerSecond(*f, unit)
	if !ok {
		return nil
	}
	return &mps
}

// ParseString returns nil for the unknown/unavailable placeholder states.
func ParseString(v string) *string {
	s := strings.TrimSpace(v)
	switch strings.ToLower(s) {
	case "", "unknown", "unavailable":
		return nil
	}
	return &s
}

func boolPtr(b bool) *bool { return &b }
