// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestDecoderSync(t *testing.T) {
	timeFrame := func(sec float64) []byte {
		buf := new(bytes.Buffer)
		err := NewEncoder(buf).Time(sec)
		if err != nil {
			t.Fatalf("could not encode time frame: %+v", err)
		}
		return buf.Bytes()
	}

	for _, tc := range []struct {
		name  string
		raw   []byte
		limit int
		kind  Kind
		err   string
	}{
		{
			name: "aligned",
			raw:  timeFrame(1000),
			kind: KindTime,
		},
		{
			name: "garbage-prefix",
			raw:  append([]byte{0x01, 0x02, 0x03}, timeFrame(1000)...),
			kind: KindTime,
		},
		{
			name: "no-data",
			raw:  nil,
			err:  "neunet: could not read sync byte: EOF",
		},
		{
			name: "truncated-frame",
			raw:  []byte{0x6c, 0x01},
			err:  "neunet: could not read synced frame: unexpected EOF",
		},
		{
			name:  "limit-exceeded",
			raw:   bytes.Repeat([]byte{0x00}, 16),
			limit: 8,
			err:   "neunet: could not sync within 8 bytes: neunet: no frame tag found",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dec := NewDecoder(Res14, bytes.NewReader(tc.raw))
			dec.SetSyncLimit(tc.limit)

			var f Frame
			err := dec.Sync(&f)
			switch {
			case err != nil && tc.err == "":
				t.Fatalf("could not sync: %+v", err)
			case err == nil && tc.err != "":
				t.Fatalf("expected an error (want=%q)", tc.err)
			case err != nil:
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
				}
				return
			}

			if got, want := f.Kind(), tc.kind; got != want {
				t.Fatalf("invalid frame kind: got=%v, want=%v", got, want)
			}
		})
	}
}

func TestDecoderSyncLimitError(t *testing.T) {
	dec := NewDecoder(Res14, bytes.NewReader(make([]byte, 32)))
	dec.SetSyncLimit(4)

	var f Frame
	err := dec.Sync(&f)
	if !errors.Is(err, ErrNoSync) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrNoSync)
	}
}

func TestDecoderNext(t *testing.T) {
	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	if err := enc.Time(1000); err != nil {
		t.Fatalf("could not encode time frame: %+v", err)
	}
	if err := enc.Event(Res14, Event{PSD: 2, Left: 3, Right: 1}); err != nil {
		t.Fatalf("could not encode neutron frame: %+v", err)
	}
	if err := enc.Trigger([3]byte{1, 2, 3}); err != nil {
		t.Fatalf("could not encode trigger frame: %+v", err)
	}

	dec := NewDecoder(Res14, buf)

	var f Frame
	for i, want := range []Kind{KindTime, KindNeutron, KindTrigger} {
		err := dec.Next(&f)
		if err != nil {
			t.Fatalf("could not read frame %d: %+v", i, err)
		}
		if got := f.Kind(); got != want {
			t.Fatalf("frame %d: invalid kind: got=%v, want=%v", i, got, want)
		}
	}

	err := dec.Next(&f)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid error at end of stream: %+v", err)
	}
}

func TestDecoderStickyError(t *testing.T) {
	dec := NewDecoder(Res14, bytes.NewReader(nil))

	var f Frame
	err := dec.Next(&f)
	if err == nil {
		t.Fatalf("expected an error")
	}
	// the transport is gone: every subsequent read fails too.
	err = dec.Next(&f)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("invalid sticky error: %+v", err)
	}
}
