// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestDecodeEvent(t *testing.T) {
	for _, tc := range []struct {
		name string
		res  Resolution
		raw  Frame
		want Event
	}{
		{
			name: "res14",
			res:  Res14,
			// psd=5, left=0b10_1010_1010_1010, right=0b01_0101_0101_0101
			raw:  Frame{0x5f, 0, 0, 0, 0x5a, 0xaa, 0x95, 0x55},
			want: Event{PSD: 5, Left: 0x2aaa, Right: 0x1555},
		},
		{
			name: "res14-max",
			res:  Res14,
			raw:  Frame{0x5f, 0, 0, 0, 0x7f, 0xff, 0xff, 0xff},
			want: Event{PSD: 7, Left: 0x3fff, Right: 0x3fff},
		},
		{
			name: "res14-zero",
			res:  Res14,
			raw:  Frame{0x5f, 0, 0, 0, 0x30, 0, 0, 0},
			want: Event{PSD: 3, Left: 0, Right: 0},
		},
		{
			name: "res12",
			res:  Res12,
			// psd=5, left=0xabc, right=0x123
			raw:  Frame{0x5f, 0, 0, 0, 0x05, 0xab, 0xc1, 0x23},
			want: Event{PSD: 5, Left: 0xabc, Right: 0x123},
		},
		{
			name: "res12-max",
			res:  Res12,
			raw:  Frame{0x5f, 0, 0, 0, 0x07, 0xff, 0xff, 0xff},
			want: Event{PSD: 7, Left: 0xfff, Right: 0xfff},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.res.DecodeEvent(&tc.raw)
			if got != tc.want {
				t.Fatalf("invalid event: got=%#v, want=%#v", got, tc.want)
			}
			if got.PSD >= NumPSD {
				t.Fatalf("detector id out of range: %d", got.PSD)
			}
		})
	}
}

func TestEventPosition(t *testing.T) {
	for _, tc := range []struct {
		name string
		ev   Event
		pos  float64
		ok   bool
	}{
		{name: "center", ev: Event{Left: 1, Right: 1}, pos: 0.5, ok: true},
		{name: "left-edge", ev: Event{Left: 0, Right: 100}, pos: 0, ok: true},
		{name: "near-right", ev: Event{Left: 16383, Right: 1}, pos: 16383. / 16384, ok: true},
		{name: "zero-pulse-height", ev: Event{}, pos: 0, ok: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pos, ok := tc.ev.Position()
			if ok != tc.ok {
				t.Fatalf("invalid ok: got=%v, want=%v", ok, tc.ok)
			}
			if pos != tc.pos {
				t.Fatalf("invalid position: got=%v, want=%v", pos, tc.pos)
			}
			if ok && !(pos >= 0 && pos < 1) {
				t.Fatalf("position out of [0,1): %v", pos)
			}
		})
	}
}

func TestEventRoundTrip(t *testing.T) {
	for _, res := range []Resolution{Res12, Res14} {
		for _, ev := range []Event{
			{PSD: 0, Left: 1, Right: 1},
			{PSD: 3, Left: 0x123, Right: 0xabc},
			{PSD: 7, Left: 0xfff, Right: 0},
		} {
			buf := new(bytes.Buffer)
			err := NewEncoder(buf).Event(res, ev)
			if err != nil {
				t.Fatalf("%v: could not encode %#v: %+v", res, ev, err)
			}
			var f Frame
			copy(f[:], buf.Bytes())
			if got, want := f.Kind(), KindNeutron; got != want {
				t.Fatalf("%v: invalid frame kind: got=%v, want=%v", res, got, want)
			}
			if got := res.DecodeEvent(&f); got != ev {
				t.Fatalf("%v: round trip failed: got=%#v, want=%#v", res, got, ev)
			}
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	const want = 1_700_000_000.5
	p := EncodeTime(want)

	var f Frame
	f[0] = 0x6c
	copy(f[1:6], p[:])

	got := DecodeTime(&f)
	if math.Abs(got-want) > 1./256 {
		t.Fatalf("time round trip out of tolerance: got=%v, want=%v", got, want)
	}
}

func TestTimeOf(t *testing.T) {
	if got, want := TimeOf(0), time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("invalid epoch: got=%v, want=%v", got, want)
	}
	now := time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC)
	if got := TimeOf(SecondsOf(now)); !got.Equal(now) {
		t.Fatalf("seconds round trip failed: got=%v, want=%v", got, now)
	}
}

func TestDecodeTrigger(t *testing.T) {
	f := Frame{0x5b, 1, 2, 3, 4, 5, 6, 7}
	if got, want := DecodeTrigger(&f), [3]byte{1, 2, 3}; got != want {
		t.Fatalf("invalid trigger id: got=%v, want=%v", got, want)
	}
	if got, want := f.Kind(), KindTrigger; got != want {
		t.Fatalf("invalid frame kind: got=%v, want=%v", got, want)
	}
}
