package ld2450

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/presence.report/internal/geometry"
	"github.com/banshee-data/presence.report/internal/zones"
)

var (
	commandHeader = []byte{0xFD, 0xFC, 0xFB, 0xFA}
	commandTail   = []byte{0x04, 0x03, 0x02, 0x01}
)

// Command words.
const (
	cmdEnableConfig  uint16 = 0x00FF
	cmdEndConfig     uint16 = 0x00FE
	cmdSingleTarget  uint16 = 0x0080
	cmdMultiTarget   uint16 = 0x0090
	cmdSetZoneFilter uint16 = 0x00C2
	cmdRestart       uint16 = 0x00A3
)

// FilterMode selects what the module does with its three filter regions.
type FilterMode uint16

const (
	FilterOff     FilterMode = 0
	FilterInclude FilterMode = 1 // report only targets inside a region
	FilterExclude FilterMode = 2 // drop targets inside a region
)

// MaxFilterRegions is the number of regions the module stores.
const MaxFilterRegions = 3

// EncodeCommand renders one command frame.
func EncodeCommand(word uint16, value []byte) []byte {
	b := make([]byte, 0, len(commandHeader)+4+len(value)+len(commandTail))
	b = append(b, commandHeader...)
	b = binary.LittleEndian.AppendUint16(b, uint16(2+len(value)))
	b = binary.LittleEndian.AppendUint16(b, word)
	b = append(b, value...)
	return append(b, commandTail...)
}

// configSession wraps commands in the enable/end configuration pair the
// module requires.
func configSession(cmds ...[]byte) [][]byte {
	out := [][]byte{EncodeCommand(cmdEnableConfig, []byte{0x01, 0x00})}
	out = append(out, cmds...)
	return append(out, EncodeCommand(cmdEndConfig, nil))
}

// TrackingCommands switches between single and multi target tracking.
func TrackingCommands(multi bool) [][]byte {
	word := cmdSingleTarget
	if multi {
		word = cmdMultiTarget
	}
	return configSession(EncodeCommand(word, nil))
}

// RestartCommands restarts the module.
func RestartCommands() [][]byte {
	return configSession(EncodeCommand(cmdRestart, nil))
}

func clampInt16(v float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
}

// ZoneFilterCommands programs up to three region filters. Unused regions
// are zeroed.
func ZoneFilterCommands(mode FilterMode, regions []zones.Rect) ([][]byte, error) {
	if len(regions) > MaxFilterRegions {
		return nil, fmt.Errorf("ld2450 stores at most %d regions, got %d", MaxFilterRegions, len(regions))
	}
	value := binary.LittleEndian.AppendUint16(nil, uint16(mode))
	for i := 0; i < MaxFilterRegions; i++ {
		var r zones.Rect
		if i < len(regions) {
			r = regions[i].Normalized()
		}
		for _, v := range []float64{r.X, r.Y, r.X + r.Width, r.Y + r.Height} {
			value = binary.LittleEndian.AppendUint16(value, uint16(clampInt16(v)))
		}
	}
	return configSession(EncodeCommand(cmdSetZoneFilter, value)), nil
}

// FilterFromSet derives the module filter from the enabled zones of set,
// converted from room space into the frame of a module placed at pl. The
// module has one filter mode, so exclusion zones take precedence over
// regular zones. Polygons and rotated rects use their bounding rectangle.
func FilterFromSet(set zones.Set, pl geometry.Placement) (FilterMode, []zones.Rect) {
	set = set.Active().ToDevice(pl)
	if set.Mode == zones.PolygonMode {
		set.ToRectMode()
	}
	var regular, exclusion []zones.Rect
	for _, r := range set.Active().Rects {
		switch r.Kind {
		case zones.Regular:
			regular = append(regular, r)
		case zones.Exclusion:
			exclusion = append(exclusion, r)
		}
	}
	pick := func(rs []zones.Rect) []zones.Rect {
		if len(rs) > MaxFilterRegions {
			return rs[:MaxFilterRegions]
		}
		return rs
	}
	switch {
	case len(exclusion) > 0:
		return FilterExclude, pick(exclusion)
	case len(regular) > 0:
		return FilterInclude, pick(regular)
	}
	return FilterOff, nil
}
