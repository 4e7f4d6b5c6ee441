// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"go-hep.org/x/hep/hbook"
)

// Geometry holds the physical constants of one detector tube, used to
// map normalized hit positions to millimeters along the tube.
type Geometry struct {
	Length float64 // effective tube length (mm)
	Anode  float64 // anode wire resistance (ohm)
	Preamp float64 // preamplifier input resistance (ohm)
}

// DefaultGeometry is the geometry of the Canon linear 3He PSD tubes
// read out by the NEUNET system.
var DefaultGeometry = Geometry{
	Length: 600,
	Anode:  6000,
	Preamp: 1000,
}

// Position maps a normalized position x in [0,1] to millimeters from
// the tube center. The charge-division readout stretches the scale by
// (Ra+2Rp)/Ra.
func (geo Geometry) Position(x float64) float64 {
	return (x - 0.5) * geo.Length * (geo.Anode + 2*geo.Preamp) / geo.Anode
}

// Hist is a fixed-binning histogram of neutron hit positions along
// one detector tube. Bin edges are fixed for the lifetime of a run.
type Hist struct {
	pos    []float64 // physical bin centers (mm)
	counts []int64
}

func newHist(bins int, geo Geometry) *Hist {
	h := &Hist{
		pos:    make([]float64, bins),
		counts: make([]int64, bins),
	}
	for i := range h.pos {
		x := (float64(i) + 0.5) / float64(bins)
		h.pos[i] = geo.Position(x)
	}
	return h
}

// fill bins the normalized position pos. Positions that would round
// to the upper edge land in the last bin instead of overflowing.
func (h *Hist) fill(pos float64) {
	i := int(pos * float64(len(h.counts)))
	switch {
	case i < 0:
		i = 0
	case i >= len(h.counts):
		i = len(h.counts) - 1
	}
	h.counts[i]++
}

// Bins returns the number of bins.
func (h *Hist) Bins() int { return len(h.counts) }

// Center returns the physical position (mm) of the center of bin i.
func (h *Hist) Center(i int) float64 { return h.pos[i] }

// Count returns the number of neutrons binned in bin i.
func (h *Hist) Count(i int) int64 { return h.counts[i] }

// Centers returns a copy of the physical bin centers (mm).
func (h *Hist) Centers() []float64 {
	pos := make([]float64, len(h.pos))
	copy(pos, h.pos)
	return pos
}

// Counts returns a copy of the per-bin counts.
func (h *Hist) Counts() []int64 {
	counts := make([]int64, len(h.counts))
	copy(counts, h.counts)
	return counts
}

// H1D exports the histogram as an hbook 1-dim histogram for
// downstream statistics and rebinning.
func (h *Hist) H1D() *hbook.H1D {
	var (
		n     = len(h.counts)
		width = 1.0 // a single bin has no pitch to derive a width from
	)
	if n > 1 {
		width = (h.pos[n-1] - h.pos[0]) / float64(n-1)
	}
	o := hbook.NewH1D(n, h.pos[0]-0.5*width, h.pos[n-1]+0.5*width)
	for i, c := range h.counts {
		if c == 0 {
			continue
		}
		o.Fill(h.pos[i], float64(c))
	}
	return o
}

// accum bins decoded neutron events into per-detector histograms.
// Events from detectors outside the active set are dropped without
// allocating anything for them.
type accum struct {
	hists  map[uint8]*Hist
	counts map[uint8]int64
}

func newAccum(bins int, psds []uint8, geo Geometry) *accum {
	acc := &accum{
		hists:  make(map[uint8]*Hist, len(psds)),
		counts: make(map[uint8]int64, len(psds)),
	}
	for _, psd := range psds {
		acc.hists[psd] = newHist(bins, geo)
		acc.counts[psd] = 0
	}
	return acc
}

func (acc *accum) fill(ev Event) {
	h, ok := acc.hists[ev.PSD]
	if !ok {
		return
	}
	pos, ok := ev.Position()
	if !ok {
		// zero pulse height: no position information.
		return
	}
	h.fill(pos)
	acc.counts[ev.PSD]++
}
