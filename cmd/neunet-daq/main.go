// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command neunet-daq runs one duration-bounded acquisition on a
// NEUNET board and reports per-detector position histograms.
package main // import "github.com/MIT-NRL/ndaq/cmd/neunet-daq"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MIT-NRL/ndaq/neunet"
	"github.com/MIT-NRL/ndaq/rundb"
)

func main() {
	var (
		addr     = flag.String("addr", "192.168.0.17", "NEUNET board address")
		exposure = flag.Duration("exposure", 10*time.Second, "exposure duration")
		bins     = flag.Int("bins", 350, "histogram bins per detector")
		psds     = flag.String("psd", "0,7", "comma-separated active detector ids")
		res      = flag.Int("res", 14, "pulse resolution mode (12 or 14)")
		label    = flag.String("label", "run", "label of output files")
		odir     = flag.String("o", "", "output directory for histogram dumps")
		dbname   = flag.String("db", "", "runs database to record to")
		timeout  = flag.Duration("timeout", 5*time.Second, "transport timeout")
		preStart = flag.Bool("count-before-start", false, "count events seen before the first instrument-time frame")
	)

	log.SetPrefix("neunet-daq: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(*addr, *exposure, *bins, *psds, *res, *label, *odir, *dbname, *timeout, *preStart)
	if err != nil {
		log.Fatalf("could not run acquisition: %+v", err)
	}
}

func run(addr string, exposure time.Duration, bins int, psds string, res int, label, odir, dbname string, timeout time.Duration, preStart bool) error {
	ids, err := parsePSDs(psds)
	if err != nil {
		return err
	}

	resolution, err := parseResolution(res)
	if err != nil {
		return err
	}

	dev, err := neunet.NewDevice(addr,
		neunet.WithExposure(exposure),
		neunet.WithBins(bins),
		neunet.WithDetectors(ids...),
		neunet.WithResolution(resolution),
		neunet.WithTimeout(timeout),
		neunet.WithCountBeforeStart(preStart),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	acq, err := dev.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire from %q: %w", addr, err)
	}

	const layout = "2006-01-02 15:04:05 MST"
	log.Printf("start:   %s", acq.StartTime().Format(layout))
	log.Printf("elapsed: %gs", acq.Elapsed)
	for _, psd := range acq.Detectors() {
		h := acq.Hists[psd].H1D()
		log.Printf("detector %d: counts=%d mean=%.2fmm rms=%.2fmm",
			psd, acq.Counts[psd], h.XMean(), h.XRMS(),
		)
	}

	if odir != "" {
		err = save(acq, odir, label)
		if err != nil {
			return err
		}
	}

	if dbname != "" {
		err = record(acq, dbname)
		if err != nil {
			return err
		}
	}
	return nil
}

func save(acq *neunet.Run, odir, label string) error {
	for _, psd := range acq.Detectors() {
		fname := filepath.Join(odir, fmt.Sprintf("%s_detector%d_histogram.txt", label, psd))
		f, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("could not create %q: %w", fname, err)
		}
		err = acq.WriteHist(f, psd)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("could not write %q: %w", fname, err)
		}
		err = f.Close()
		if err != nil {
			return fmt.Errorf("could not close %q: %w", fname, err)
		}
		log.Printf("wrote %s", fname)
	}
	return nil
}

func record(acq *neunet.Run, dbname string) error {
	db, err := rundb.Open(dbname)
	if err != nil {
		return fmt.Errorf("could not open runs db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := db.AddRun(ctx, acq)
	if err != nil {
		return fmt.Errorf("could not record run: %w", err)
	}
	log.Printf("recorded run %d in %q", id, dbname)
	return nil
}

func parsePSDs(s string) ([]uint8, error) {
	var ids []uint8
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseUint(tok, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid detector id %q: %w", tok, err)
		}
		if v >= neunet.NumPSD {
			return nil, fmt.Errorf("invalid detector id %d", v)
		}
		ids = append(ids, uint8(v))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("empty detector set %q", s)
	}
	return ids, nil
}

func parseResolution(res int) (neunet.Resolution, error) {
	switch res {
	case 12:
		return neunet.Res12, nil
	case 14:
		return neunet.Res14, nil
	}
	return 0, fmt.Errorf("invalid resolution mode %d (want 12 or 14)", res)
}
