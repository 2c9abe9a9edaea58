// Package zones models the detection zones programmed into a presence
// sensor. A device exposes a fixed number of slots per zone kind; each slot
// holds either an axis-aligned rectangle or, on firmware that supports it, a
// polygon. Geometry is always stored in room-space millimetres.
package zones

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validation errors returned by zone mutations. The zone set is left
// unchanged whenever one of these is returned.
var (
	ErrSlotOccupied   = errors.New("zone slot already occupied")
	ErrUnknownSlot    = errors.New("unknown zone slot")
	ErrTooFewVertices = errors.New("polygon needs at least 3 vertices")
	ErrModeMismatch   = errors.New("zone mode mismatch")
)

// DefaultFootprint is the side length in mm of a freshly synthesised zone.
const DefaultFootprint = 1000.0

// MinVertices is the smallest vertex count a polygon zone may have.
const MinVertices = 3

// Kind distinguishes what the sensor does with a zone.
type Kind string

const (
	Regular   Kind = "regular"
	Exclusion Kind = "exclusion"
	Entry     Kind = "entry"
)

// Kinds lists every zone kind in slot generation order.
var Kinds = []Kind{Regular, Exclusion, Entry}

// ParseKind accepts the canonical names plus a few aliases used by device
// firmware.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "regular", "zone", "detection":
		return Regular, nil
	case "exclusion", "mask", "occupancy_mask":
		return Exclusion, nil
	case "entry", "entry_zone":
		return Entry, nil
	}
	return "", fmt.Errorf("invalid zone kind %q", s)
}

// Ref is the identity of a zone slot. IDs are unique per kind only.
type Ref struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

func (r Ref) String() string { return string(r.Kind) + "/" + r.ID }

// SlotName returns the human-readable slot id for slot n (1-based).
func SlotName(n int) string { return "Zone " + strconv.Itoa(n) }

// SlotNumber parses a slot id produced by SlotName.
func SlotNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, "Zone ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Mode is the device-level zone shape. A device uses one mode at a time.
type Mode string

const (
	RectMode    Mode = "rect"
	PolygonMode Mode = "polygon"
)

// Capabilities describes what the device firmware can store.
type Capabilities struct {
	MaxZones          int  `json:"max_zones"`
	MaxExclusionZones int  `json:"max_exclusion_zones"`
	MaxEntryZones     int  `json:"max_entry_zones"`
	PolygonSupported  bool `json:"polygon_supported"`
	PolygonEnabled    bool `json:"polygon_enabled"`
}

// DefaultCapabilities matches the common Everything Presence firmware.
func DefaultCapabilities() Capabilities {
	return Capabilities{MaxZones: 4, MaxExclusionZones: 2, MaxEntryZones: 2}
}

// Mode returns the zone mode the device is currently in.
func (c Capabilities) Mode() Mode {
	if c.PolygonSupported && c.PolygonEnabled {
		return PolygonMode
	}
	return RectMode
}

// Max returns the number of slots for the given kind.
func (c Capabilities) Max(k Kind) int {
	switch k {
	case Regular:
		return c.MaxZones
	case Exclusion:
		return c.MaxExclusionZones
	case Entry:
		return c.MaxEntryZones
	}
	return 0
}

// Has reports whether ref addresses a slot inside the capability range.
func (c Capabilities) Has(ref Ref) bool {
	n, ok := SlotNumber(ref.ID)
	return ok && n <= c.Max(ref.Kind)
}

// GenerateSlots returns every addressable slot: regular zones first, then
// exclusion zones, then entry zones, each numbered from 1.
func GenerateSlots(caps Capabilities) []Ref {
	var refs []Ref
	for _, k := range Kinds {
		for n := 1; n <= caps.Max(k); n++ {
			refs = append(refs, Ref{ID: SlotName(n), Kind: k})
		}
	}
	return refs
}
