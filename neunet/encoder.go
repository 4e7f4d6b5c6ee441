// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"fmt"
	"io"
)

// Encoder writes NEUNET frames to an output stream. It is the
// symmetric counterpart of Decoder and is used to talk back to the
// device (device-time register payloads) and to emulate one.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Event writes a neutron-event frame with the given resolution mode.
// Pulse values wider than the mode's bit fields are truncated.
func (enc *Encoder) Event(res Resolution, ev Event) error {
	var f Frame
	f[0] = tagNeutron
	switch res {
	case Res12:
		f[4] = ev.PSD & 0x7
		f[5] = uint8(ev.Left >> 4)
		f[6] = uint8(ev.Left&0xf)<<4 | uint8(ev.Right>>8)&0xf
		f[7] = uint8(ev.Right)
	default: // Res14
		f[4] = (ev.PSD&0x7)<<4 | uint8(ev.Left>>10)&0xf
		f[5] = uint8(ev.Left >> 2)
		f[6] = uint8(ev.Left&0x3)<<6 | uint8(ev.Right>>8)&0x3f
		f[7] = uint8(ev.Right)
	}
	enc.write(f[:])
	if enc.err != nil {
		return fmt.Errorf("neunet: could not write neutron frame: %w", enc.err)
	}
	return nil
}

// Time writes an instrument-time frame for the given seconds since
// the device epoch.
func (enc *Encoder) Time(seconds float64) error {
	var f Frame
	f[0] = tagTime
	p := EncodeTime(seconds)
	copy(f[1:6], p[:])
	enc.write(f[:])
	if enc.err != nil {
		return fmt.Errorf("neunet: could not write time frame: %w", enc.err)
	}
	return nil
}

// Trigger writes a trigger-id frame.
func (enc *Encoder) Trigger(id [3]byte) error {
	var f Frame
	f[0] = tagTrigger
	copy(f[1:4], id[:])
	enc.write(f[:])
	if enc.err != nil {
		return fmt.Errorf("neunet: could not write trigger frame: %w", enc.err)
	}
	return nil
}

// Frame writes a raw frame as-is.
func (enc *Encoder) Frame(f *Frame) error {
	enc.write(f[:])
	if enc.err != nil {
		return fmt.Errorf("neunet: could not write frame: %w", enc.err)
	}
	return nil
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
}
