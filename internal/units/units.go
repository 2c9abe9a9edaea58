// Package units provides shared constants and conversions for linear
// measurement units. Millimetres are the canonical unit: zone coordinates and
// target positions are always stored and pushed in mm.
package units

import (
	"math"
	"strings"
)

// Unit constants
const (
	MM   = "mm"
	CM   = "cm"
	M    = "m"
	Inch = "in"
	Feet = "ft"
)

// ValidUnits contains all valid linear unit values
var ValidUnits = []string{MM, CM, M, Inch, Feet}

// millimetresPer maps a linear unit to its size in millimetres.
var millimetresPer = map[string]float64{
	MM:   1,
	CM:   10,
	M:    1000,
	Inch: 25.4,
	Feet: 304.8,
}

// IsValid checks if the given unit is in the list of valid linear units
func IsValid(unit string) bool {
	_, ok := millimetresPer[normalize(unit)]
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// normalize maps the spellings devices report to the unit constants.
func normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "inch", "inches", `"`:
		return Inch
	case "feet", "foot", "'":
		return Feet
	case "millimetre", "millimeter", "millimetres", "millimeters":
		return MM
	case "centimetre", "centimeter", "centimetres", "centimeters":
		return CM
	case "metre", "meter", "metres", "meters":
		return M
	}
	return u
}

// ToMillimetres converts a length in the given unit to millimetres.
// An empty, "mm" or unrecognised unit means the value is already in mm.
// Non-finite input yields ok=false so callers can treat the field as absent.
func ToMillimetres(value float64, unit string) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	factor, ok := millimetresPer[normalize(unit)]
	if !ok {
		return value, true
	}
	return value * factor, true
}

// FromMillimetres converts a length in millimetres to the target display unit.
// Unknown units return the mm value unchanged.
func FromMillimetres(mm float64, unit string) (float64, bool) {
	if math.IsNaN(mm) || math.IsInf(mm, 0) {
		return 0, false
	}
	factor, ok := millimetresPer[normalize(unit)]
	if !ok {
		return mm, true
	}
	return mm / factor, true
}
