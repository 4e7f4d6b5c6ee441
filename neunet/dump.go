// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"fmt"
	"io"
	"sort"
)

// WriteHist writes the histogram of one detector as operator-readable
// text: a commented header followed by one "position-mm count" row
// per bin.
func (run *Run) WriteHist(w io.Writer, psd uint8) error {
	h, ok := run.Hists[psd]
	if !ok {
		return fmt.Errorf("neunet: no histogram for detector %d", psd)
	}

	const layout = "2006-01-02 15:04:05 MST"
	_, err := fmt.Fprintf(w, "# detector %d\n# start: %s\n# elapsed (s): %g\n# total counts: %d\n# column 1 = physical position (mm), column 2 = counts\n",
		psd, run.StartTime().Format(layout), run.Elapsed, run.Counts[psd],
	)
	if err != nil {
		return fmt.Errorf("neunet: could not write histogram header: %w", err)
	}

	for i := 0; i < h.Bins(); i++ {
		_, err = fmt.Fprintf(w, "%g %d\n", h.Center(i), h.Count(i))
		if err != nil {
			return fmt.Errorf("neunet: could not write histogram bin %d: %w", i, err)
		}
	}
	return nil
}

// Detectors returns the active detector ids of the run, sorted.
func (run *Run) Detectors() []uint8 {
	psds := make([]uint8, 0, len(run.Hists))
	for psd := range run.Hists {
		psds = append(psds, psd)
	}
	sort.Slice(psds, func(i, j int) bool { return psds[i] < psds[j] })
	return psds
}
