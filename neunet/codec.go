// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"encoding/binary"
	"math"
)

// Event is a decoded neutron event.
type Event struct {
	PSD   uint8  // detector id, in [0,7]
	Left  uint32 // pulse amplitude at the left readout end
	Right uint32 // pulse amplitude at the right readout end
}

// PulseHeight returns the summed pulse amplitude of both readout ends.
func (ev Event) PulseHeight() uint32 { return ev.Left + ev.Right }

// Position returns the normalized hit position along the tube, in
// [0,1). A zero pulse height carries no position information: the
// event is reported with ok=false and should be skipped, not counted.
func (ev Event) Position() (pos float64, ok bool) {
	h := ev.PulseHeight()
	if h == 0 {
		return 0, false
	}
	return float64(ev.Left) / float64(h), true
}

// DecodeEvent decodes the neutron-event frame f according to the
// resolution mode. It does not inspect the tag byte.
func (res Resolution) DecodeEvent(f *Frame) Event {
	var ev Event
	switch res {
	case Res12:
		ev.PSD = f[4] & 0x7
		ev.Left = uint32(f[5])<<4 | uint32(f[6])>>4
		ev.Right = uint32(f[6]&0xf)<<8 | uint32(f[7])
	default: // Res14
		ev.PSD = (f[4] >> 4) & 0x7
		ev.Left = uint32(f[4]&0xf)<<10 | uint32(f[5])<<2 | uint32(f[6])>>6
		ev.Right = uint32(f[6]&0x3f)<<8 | uint32(f[7])
	}
	return ev
}

// DecodeTime decodes an instrument-time frame to seconds since the
// device epoch: a big-endian 32-bit seconds field plus one byte of
// 1/256-s fractions.
func DecodeTime(f *Frame) float64 {
	sec := binary.BigEndian.Uint32(f[1:5])
	return float64(sec) + float64(f[5])/256
}

// DecodeTrigger returns the 3 raw trigger-id bytes. Trigger frames
// are decoded for completeness but unused by the acquisition logic.
func DecodeTrigger(f *Frame) [3]byte {
	return [3]byte{f[1], f[2], f[3]}
}

// EncodeTime encodes seconds since the device epoch into the 5-byte
// wire layout (big-endian seconds + 1/256-s fraction byte) used both
// by instrument-time frames and by the device-time register.
func EncodeTime(seconds float64) [5]byte {
	var p [5]byte
	sec := math.Floor(seconds)
	binary.BigEndian.PutUint32(p[:4], uint32(sec))
	p[4] = uint8((seconds - sec) * 256)
	return p
}
