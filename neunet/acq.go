// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package neunet

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

type config struct {
	dataPort int
	ctlPort  int
	timeout  time.Duration

	exposure float64 // requested exposure (s)
	bins     int
	psds     []uint8
	res      Resolution
	geo      Geometry

	countBeforeStart bool
	syncLimit        int
}

func newConfig() config {
	return config{
		dataPort: DataPort,
		ctlPort:  CtlPort,
		timeout:  5 * time.Second,
		exposure: 10,
		bins:     350,
		psds:     []uint8{0, 7},
		res:      Res14,
		geo:      DefaultGeometry,
	}
}

// Option configures a NEUNET device.
type Option func(*config)

// WithDataPort sets the TCP port of the telemetry stream.
func WithDataPort(port int) Option {
	return func(cfg *config) { cfg.dataPort = port }
}

// WithCtlPort sets the UDP port of the register channel.
func WithCtlPort(port int) Option {
	return func(cfg *config) { cfg.ctlPort = port }
}

// WithTimeout bounds every blocking read and control round trip.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.timeout = d }
}

// WithExposure sets the requested exposure duration.
func WithExposure(d time.Duration) Option {
	return func(cfg *config) { cfg.exposure = d.Seconds() }
}

// WithBins sets the number of histogram bins per detector.
func WithBins(n int) Option {
	return func(cfg *config) { cfg.bins = n }
}

// WithDetectors selects the active detector ids.
func WithDetectors(psds ...uint8) Option {
	return func(cfg *config) { cfg.psds = psds }
}

// WithResolution selects the pulse resolution mode.
func WithResolution(res Resolution) Option {
	return func(cfg *config) { cfg.res = res }
}

// WithGeometry overrides the default tube geometry.
func WithGeometry(geo Geometry) Option {
	return func(cfg *config) { cfg.geo = geo }
}

// WithCountBeforeStart controls whether neutron events observed
// before the first instrument-time frame are counted. Historical
// revisions of the NEUNET host software disagreed on this; the
// default (false) drops them.
func WithCountBeforeStart(count bool) Option {
	return func(cfg *config) { cfg.countBeforeStart = count }
}

// WithSyncLimit bounds the number of bytes frame synchronization may
// scan. Zero (the default) scans forever.
func WithSyncLimit(n int) Option {
	return func(cfg *config) { cfg.syncLimit = n }
}

// Device drives acquisitions on one NEUNET board.
type Device struct {
	msg  *log.Logger
	addr string // board host name or IP
	cfg  config

	dial func(network, addr string) (net.Conn, error)
}

// NewDevice creates a device handle for the NEUNET board at addr
// (host name or IP, without port).
func NewDevice(addr string, opts ...Option) (*Device, error) {
	dev := &Device{
		msg:  log.New(os.Stdout, "neunet: ", 0),
		addr: addr,
		cfg:  newConfig(),
		dial: net.Dial,
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}

	cfg := &dev.cfg
	switch {
	case cfg.exposure <= 0:
		return nil, fmt.Errorf("neunet: invalid exposure duration %v", cfg.exposure)
	case cfg.bins <= 0:
		return nil, fmt.Errorf("neunet: invalid bin count %d", cfg.bins)
	case len(cfg.psds) == 0:
		return nil, fmt.Errorf("neunet: empty detector set")
	case !cfg.res.valid():
		return nil, fmt.Errorf("neunet: invalid resolution mode %d", cfg.res)
	}
	for _, psd := range cfg.psds {
		if psd >= NumPSD {
			return nil, fmt.Errorf("neunet: invalid detector id %d", psd)
		}
	}
	return dev, nil
}

// Run is the immutable result of one acquisition.
type Run struct {
	Start   float64 // first instrument time (s since device epoch)
	End     float64 // last instrument time
	Elapsed float64 // End - Start

	Hists  map[uint8]*Hist // per-detector position histograms
	Counts map[uint8]int64 // per-detector accepted neutron totals
}

// StartTime returns the run start as wall-clock time.
func (run *Run) StartTime() time.Time { return TimeOf(run.Start) }

// DataKey describes one entry of a Run for framework consumers that
// need schema metadata before data arrives.
type DataKey struct {
	Source string
	DType  string
	Shape  []int
}

// Describe returns the schema of the data an acquisition produces:
// one [bins,2] array of (position mm, count) rows per active
// detector, plus the scalar elapsed time.
func (dev *Device) Describe() map[string]DataKey {
	desc := make(map[string]DataKey, len(dev.cfg.psds)+1)
	for _, psd := range dev.cfg.psds {
		name := fmt.Sprintf("detector %d", psd)
		desc[name] = DataKey{
			Source: name,
			DType:  "array",
			Shape:  []int{dev.cfg.bins, 2},
		}
	}
	desc["elapsed time"] = DataKey{Source: "n/a", DType: "number", Shape: []int{}}
	return desc
}

// Stage configures the NEUNET register file for acquisition: 32-bit
// time mode, host time, event-memory read mode, resolution and
// one-way transfer mode, in that order. A failed write aborts.
func (dev *Device) Stage(cli *RegClient) error {
	err := cli.Write(regTimeMode, []byte{0x80})
	if err != nil {
		return fmt.Errorf("neunet: could not set 32-bit time mode: %w", err)
	}

	err = cli.SetDeviceTime(time.Now())
	if err != nil {
		return fmt.Errorf("neunet: could not stage device time: %w", err)
	}

	err = cli.Write(regMemMode, []byte{0x00, 0x00})
	if err != nil {
		return fmt.Errorf("neunet: could not set event-memory read mode: %w", err)
	}

	err = cli.Write(regResolution, []byte{dev.cfg.res.regByte(), 0x80})
	if err != nil {
		return fmt.Errorf("neunet: could not set %v one-way mode: %w", dev.cfg.res, err)
	}
	return nil
}

// Unstage puts the board back into handshake mode.
func (dev *Device) Unstage(cli *RegClient) error {
	err := cli.Write(regHandshake, []byte{0x00})
	if err != nil {
		return fmt.Errorf("neunet: could not restore handshake mode: %w", err)
	}
	return nil
}

// Acquire stages the board, synchronizes on the telemetry stream and
// accumulates neutron events until the requested exposure duration
// has elapsed on the instrument clock. The context is checked between
// frame reads; transport and control errors abort the run.
func (dev *Device) Acquire(ctx context.Context) (*Run, error) {
	cli, err := DialRegister(dev.ctlAddr(), dev.cfg.timeout)
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	dev.msg.Printf("staging %s...", dev.addr)
	err = dev.Stage(cli)
	if err != nil {
		return nil, err
	}

	conn, err := dev.dial("tcp", dev.dataAddr())
	if err != nil {
		return nil, fmt.Errorf("neunet: could not dial data stream %q: %w", dev.dataAddr(), err)
	}
	defer conn.Close()

	dec := NewDecoder(dev.cfg.res, deadlineReader{conn, dev.cfg.timeout})
	dec.SetSyncLimit(dev.cfg.syncLimit)

	dev.msg.Printf("collecting for %gs...", dev.cfg.exposure)
	run, err := dev.readout(ctx, dec)
	if err != nil {
		return nil, err
	}
	dev.msg.Printf("collecting for %gs... [done] (elapsed=%gs)", dev.cfg.exposure, run.Elapsed)

	err = dev.Unstage(cli)
	if err != nil {
		// the run data is complete; report but do not discard it.
		dev.msg.Printf("could not unstage %s: %+v", dev.addr, err)
	}
	return run, nil
}

// readout runs the Syncing -> AwaitingStart -> Accumulating phases of
// one acquisition over an already-staged, already-connected stream.
func (dev *Device) readout(ctx context.Context, dec *Decoder) (*Run, error) {
	var (
		acc   = newAccum(dev.cfg.bins, dev.cfg.psds, dev.cfg.geo)
		f     Frame
		start float64
		cur   float64
	)

	err := canceled(ctx)
	if err != nil {
		return nil, err
	}

	// Syncing: locate a frame boundary. A time frame found here
	// seeds the start time directly.
	err = dec.Sync(&f)
	if err != nil {
		return nil, err
	}
	if f.Kind() == KindTime {
		start = DecodeTime(&f)
	}

	// AwaitingStart: the run clock starts at the first instrument
	// time frame.
	for start == 0 {
		err = canceled(ctx)
		if err != nil {
			return nil, err
		}
		err = dec.Next(&f)
		if err != nil {
			return nil, err
		}
		switch f.Kind() {
		case KindTime:
			start = DecodeTime(&f)
		case KindNeutron:
			if dev.cfg.countBeforeStart {
				acc.fill(dec.DecodeEvent(&f))
			}
		}
	}

	// Accumulating: bin events until the exposure has elapsed on
	// the instrument clock. Time frames update the clock
	// unconditionally; monotonicity is a protocol assumption, not
	// checked here.
	for cur-start < dev.cfg.exposure {
		err = canceled(ctx)
		if err != nil {
			return nil, err
		}
		err = dec.Next(&f)
		if err != nil {
			return nil, err
		}
		switch f.Kind() {
		case KindNeutron:
			acc.fill(dec.DecodeEvent(&f))
		case KindTime:
			cur = DecodeTime(&f)
		}
	}

	return &Run{
		Start:   start,
		End:     cur,
		Elapsed: cur - start,
		Hists:   acc.hists,
		Counts:  acc.counts,
	}, nil
}

func (dev *Device) dataAddr() string {
	return fmt.Sprintf("%s:%d", dev.addr, dev.cfg.dataPort)
}

func (dev *Device) ctlAddr() string {
	return fmt.Sprintf("%s:%d", dev.addr, dev.cfg.ctlPort)
}

func canceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// deadlineReader refreshes the read deadline of a net.Conn before
// each read, so a stalled device fails the run instead of hanging it.
type deadlineReader struct {
	c net.Conn
	d time.Duration
}

func (r deadlineReader) Read(p []byte) (int, error) {
	if r.d > 0 {
		err := r.c.SetReadDeadline(time.Now().Add(r.d))
		if err != nil {
			return 0, err
		}
	}
	return r.c.Read(p)
}
