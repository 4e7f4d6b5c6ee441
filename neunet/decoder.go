// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"errors"
	"io"

	"golang.org/x/xerrors"
)

// ErrNoSync reports that no frame tag byte was found within the
// configured synchronization byte limit.
var ErrNoSync = errors.New("neunet: no frame tag found")

// Decoder reads 8-byte frames from an underlying byte stream.
//
// Sync scans for a tag byte to (re)acquire frame alignment; Next
// trusts the current alignment and reads frames back to back. Frames
// carry no checksum, so a tag byte is only a heuristic boundary: once
// a frame is corrupted or dropped mid-stream, every subsequent Next
// silently misdecodes and only a new Sync can recover.
type Decoder struct {
	r io.Reader

	res     Resolution
	maxSync int // bytes Sync may scan before failing; 0 means no bound
	buf     []byte
	err     error
}

// NewDecoder creates a decoder reading frames from r, decoding
// neutron events with the given resolution mode.
func NewDecoder(res Resolution, r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		res: res,
		buf: make([]byte, 8),
	}
}

// SetSyncLimit bounds the number of bytes a single Sync may consume
// while scanning for a tag byte. Zero (the default) scans forever.
func (dec *Decoder) SetSyncLimit(n int) { dec.maxSync = n }

// Resolution returns the resolution mode the decoder was created with.
func (dec *Decoder) Resolution() Resolution { return dec.res }

// DecodeEvent decodes f as a neutron event in the decoder's
// resolution mode.
func (dec *Decoder) DecodeEvent(f *Frame) Event { return dec.res.DecodeEvent(f) }

// Sync consumes bytes one at a time until one matches a known frame
// tag, then reads the remaining 7 bytes of the frame. The located
// boundary is a best guess: any data byte that happens to equal a tag
// value produces a false boundary that Sync cannot detect.
func (dec *Decoder) Sync(f *Frame) error {
	var n int
	for {
		v := dec.readU8()
		if dec.err != nil {
			return xerrors.Errorf("neunet: could not read sync byte: %w", dec.err)
		}
		switch v {
		case tagNeutron, tagTrigger, tagTime:
			f[0] = v
			dec.read(f[1:])
			if dec.err != nil {
				return xerrors.Errorf("neunet: could not read synced frame: %w", dec.err)
			}
			return nil
		}
		n++
		if dec.maxSync > 0 && n >= dec.maxSync {
			dec.err = xerrors.Errorf("neunet: could not sync within %d bytes: %w", n, ErrNoSync)
			return dec.err
		}
	}
}

// Next reads the next frame assuming the stream is aligned on a frame
// boundary. The tag byte is not re-validated.
func (dec *Decoder) Next(f *Frame) error {
	dec.read(f[:])
	if dec.err != nil {
		return xerrors.Errorf("neunet: could not read frame: %w", dec.err)
	}
	return nil
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
}

func (dec *Decoder) readU8() uint8 {
	dec.read(dec.buf[:1])
	return dec.buf[0]
}
