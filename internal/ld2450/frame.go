// Package ld2450 reads target reports from an HLK-LD2450 mmWave module over
// its UART and turns them into device signals.
//
// A report frame is 30 bytes:
//
//	AA FF 03 00 | 3 x (x, y, speed, resolution) | 55 CC
//
// Each field is a little-endian uint16. x, y and speed are sign-magnitude
// with bit 15 set for positive values; the resolution is unsigned.
// Positions are in mm and speed in cm/s. An all-zero slot is empty.
package ld2450

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/banshee-data/presence.report/internal/signal"
)

const (
	// FrameSize is the length of one report frame.
	FrameSize = 30
	// MaxTargets is the number of target slots per frame.
	MaxTargets = 3

	slotSize = 8
)

var (
	frameHeader = []byte{0xAA, 0xFF, 0x03, 0x00}
	frameTail   = []byte{0x55, 0xCC}
)

var (
	ErrShortFrame = errors.New("ld2450: short frame")
	ErrBadFrame   = errors.New("ld2450: bad frame header or tail")
)

// Target is one decoded target slot.
type Target struct {
	X          int16  `json:"x"`
	Y          int16  `json:"y"`
	Speed      int16  `json:"speed"`
	Resolution uint16 `json:"resolution"`
}

// Empty reports whether the slot carries no target.
func (t Target) Empty() bool {
	return t == Target{}
}

// Frame is one decoded report.
type Frame struct {
	Targets [MaxTargets]Target `json:"targets"`
}

// Count returns the number of occupied slots.
func (f Frame) Count() int {
	n := 0
	for _, t := range f.Targets {
		if !t.Empty() {
			n++
		}
	}
	return n
}

// signMagnitude decodes the module's signed encoding.
func signMagnitude(raw uint16) int16 {
	v := int16(raw & 0x7FFF)
	if raw&0x8000 != 0 {
		return v
	}
	return -v
}

func encodeSignMagnitude(v int16) uint16 {
	if v >= 0 {
		return uint16(v) | 0x8000
	}
	return uint16(-v)
}

// Decode parses exactly one report frame.
func Decode(b []byte) (Frame, error) {
	var f Frame
	if len(b) < FrameSize {
		return f, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	if !bytes.Equal(b[:4], frameHeader) || !bytes.Equal(b[FrameSize-2:FrameSize], frameTail) {
		return f, ErrBadFrame
	}
	for i := range f.Targets {
		slot := b[4+i*slotSize : 4+(i+1)*slotSize]
		f.Targets[i] = Target{
			X:          signMagnitude(binary.LittleEndian.Uint16(slot[0:2])),
			Y:          signMagnitude(binary.LittleEndian.Uint16(slot[2:4])),
			Speed:      signMagnitude(binary.LittleEndian.Uint16(slot[4:6])),
			Resolution: binary.LittleEndian.Uint16(slot[6:8]),
		}
	}
	return f, nil
}

// Encode renders f in the module's wire format. Empty slots are all zero.
func Encode(f Frame) []byte {
	b := make([]byte, 0, FrameSize)
	b = append(b, frameHeader...)
	for _, t := range f.Targets {
		if t.Empty() {
			b = append(b, make([]byte, slotSize)...)
			continue
		}
		b = binary.LittleEndian.AppendUint16(b, encodeSignMagnitude(t.X))
		b = binary.LittleEndian.AppendUint16(b, encodeSignMagnitude(t.Y))
		b = binary.LittleEndian.AppendUint16(b, encodeSignMagnitude(t.Speed))
		b = binary.LittleEndian.AppendUint16(b, t.Resolution)
	}
	return append(b, frameTail...)
}

// SplitFrames is a bufio.SplitFunc yielding whole report frames. Bytes
// before a header are skipped, so the scanner resynchronises after noise
// or a partial frame.
func SplitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	i := bytes.Index(data, frameHeader)
	if i < 0 {
		// Keep a possible partial header at the end of the buffer.
		keep := len(frameHeader) - 1
		if len(data) <= keep {
			return 0, nil, nil
		}
		return len(data) - keep, nil, nil
	}
	if i > 0 {
		return i, nil, nil
	}
	if len(data) < FrameSize {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	if !bytes.Equal(data[FrameSize-2:FrameSize], frameTail) {
		// A header without a tail: skip it and look for the next one.
		return 1, nil, nil
	}
	return FrameSize, data[:FrameSize], nil
}

// Signals converts a frame into target signals named like the entities of
// a Home Assistant device ("target_1_x", ...). Empty slots are reported at
// the origin with target_N_active off so the snapshot drops them.
func (f Frame) Signals() []signal.Signal {
	out := make([]signal.Signal, 0, MaxTargets*5+1)
	for i, t := range f.Targets {
		n := strconv.Itoa(i + 1)
		active := "on"
		if t.Empty() {
			active = "off"
		}
		out = append(out,
			signal.Signal{Identifier: "target_" + n + "_x", Value: strconv.Itoa(int(t.X)), Unit: "mm"},
			signal.Signal{Identifier: "target_" + n + "_y", Value: strconv.Itoa(int(t.Y)), Unit: "mm"},
			signal.Signal{Identifier: "target_" + n + "_speed", Value: strconv.FormatFloat(float64(t.Speed)/100, 'f', -1, 64), Unit: "m/s"},
			signal.Signal{Identifier: "target_" + n + "_resolution", Value: strconv.Itoa(int(t.Resolution)), Unit: "mm"},
			signal.Signal{Identifier: "target_" + n + "_active", Value: active},
		)
	}
	out = append(out, signal.Signal{Identifier: "target_count", Value: strconv.Itoa(f.Count())})
	return out
}
