// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package neunet implements the readout and control protocols of the
// NEUNET system driving Canon linear 3He position-sensitive neutron
// detectors.
//
// The telemetry channel is a TCP byte stream of fixed 8-byte frames,
// each starting with a tag byte identifying its type. The control
// channel is a UDP request/response register protocol.
package neunet // import "github.com/MIT-NRL/ndaq/neunet"

import "time"

const (
	tagNeutron = 0x5f // neutron event frame marker
	tagTrigger = 0x5b // trigger-id frame marker
	tagTime    = 0x6c // instrument time frame marker
)

// NEUNET register addresses.
const (
	regTimeMode   = 0x18a // time mode (0x80: 32-bit)
	regDeviceTime = 0x190 // device time (4+1 bytes since epoch)
	regMemMode    = 0x186 // event-memory read/write mode
	regResolution = 0x1b4 // pulse resolution mode
	regHandshake  = 0x1b5 // handshake/one-way transfer mode
)

// Default ports of a NEUNET board.
const (
	DataPort = 23   // TCP telemetry stream
	CtlPort  = 4660 // UDP register channel
)

// NumPSD is the number of detector slots addressable by one NEUNET board.
const NumPSD = 8

// epoch is the reference date of the device clock.
var epoch = time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeOf converts seconds since the device epoch to wall-clock time.
func TimeOf(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

// SecondsOf converts wall-clock time to seconds since the device epoch.
func SecondsOf(t time.Time) float64 {
	return t.Sub(epoch).Seconds()
}

// Frame is a raw 8-byte NEUNET frame. Byte 0 carries the tag, bytes
// 1-7 the payload. Tag values are ordinary data-byte values too: a
// frame boundary can only be guessed at, never verified.
type Frame [8]byte

// Kind identifies the type of a frame from its tag byte.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNeutron
	KindTrigger
	KindTime
)

// Kind returns the frame type according to the tag byte.
func (f *Frame) Kind() Kind {
	switch f[0] {
	case tagNeutron:
		return KindNeutron
	case tagTrigger:
		return KindTrigger
	case tagTime:
		return KindTime
	}
	return KindUnknown
}

func (k Kind) String() string {
	switch k {
	case KindNeutron:
		return "neutron event"
	case KindTrigger:
		return "trigger id"
	case KindTime:
		return "instrument time"
	}
	return "unknown"
}

// Resolution selects the bit layout of pulse values inside a neutron
// event frame.
type Resolution uint8

const (
	Res12 Resolution = 12 // 12-bit pulse resolution
	Res14 Resolution = 14 // 14-bit (high) pulse resolution
)

func (res Resolution) valid() bool {
	return res == Res12 || res == Res14
}

// regByte is the value written to the resolution register during
// staging. Bit 7 enables the mode.
func (res Resolution) regByte() uint8 {
	if res == Res12 {
		return 0x88
	}
	return 0x8a
}

func (res Resolution) String() string {
	if res == Res12 {
		return "12-bit"
	}
	return "14-bit"
}
