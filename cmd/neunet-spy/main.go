// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command neunet-spy connects to the telemetry stream of a NEUNET
// board and displays decoded frames, as a sanity check of the link
// and of the frame alignment.
package main // import "github.com/MIT-NRL/ndaq/cmd/neunet-spy"

import (
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/MIT-NRL/ndaq/neunet"
)

func main() {
	var (
		addr    = flag.String("addr", "192.168.0.17", "NEUNET board address")
		port    = flag.Int("port", neunet.DataPort, "telemetry stream port")
		n       = flag.Int("n", 20, "number of frames to display")
		res     = flag.Int("res", 14, "pulse resolution mode (12 or 14)")
		stage   = flag.Bool("stage", false, "stage the board before spying")
		timeout = flag.Duration("timeout", 5*time.Second, "transport timeout")
	)

	log.SetPrefix("neunet-spy: ")
	log.SetFlags(0)

	flag.Parse()

	err := run(*addr, *port, *n, *res, *stage, *timeout)
	if err != nil {
		log.Fatalf("could not spy on %q: %+v", *addr, err)
	}
}

func run(addr string, port, n, res int, stage bool, timeout time.Duration) error {
	var resolution neunet.Resolution
	switch res {
	case 12:
		resolution = neunet.Res12
	case 14:
		resolution = neunet.Res14
	default:
		return fmt.Errorf("invalid resolution mode %d (want 12 or 14)", res)
	}

	if stage {
		err := stageBoard(addr, resolution, timeout)
		if err != nil {
			return err
		}
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", addr, port), timeout)
	if err != nil {
		return fmt.Errorf("could not dial data stream: %w", err)
	}
	defer conn.Close()

	dec := neunet.NewDecoder(resolution, conn)

	var f neunet.Frame
	err = dec.Sync(&f)
	if err != nil {
		return fmt.Errorf("could not sync on data stream: %w", err)
	}

	for i := 0; i < n; i++ {
		display(dec, &f)
		err = dec.Next(&f)
		if err != nil {
			return fmt.Errorf("could not read frame %d: %w", i+1, err)
		}
	}
	return nil
}

func display(dec *neunet.Decoder, f *neunet.Frame) {
	switch f.Kind() {
	case neunet.KindNeutron:
		ev := dec.DecodeEvent(f)
		pos, ok := ev.Position()
		if !ok {
			log.Printf("% x | neutron psd=%d left=%d right=%d pos=n/a", f[:], ev.PSD, ev.Left, ev.Right)
			return
		}
		log.Printf("% x | neutron psd=%d left=%d right=%d pos=%.4f", f[:], ev.PSD, ev.Left, ev.Right, pos)
	case neunet.KindTime:
		sec := neunet.DecodeTime(f)
		log.Printf("% x | time    %s (t=%.6fs)", f[:], neunet.TimeOf(sec).Format("2006-01-02 15:04:05.000"), sec)
	case neunet.KindTrigger:
		id := neunet.DecodeTrigger(f)
		log.Printf("% x | trigger id=% x", f[:], id[:])
	default:
		log.Printf("% x | unknown", f[:])
	}
}

func stageBoard(addr string, res neunet.Resolution, timeout time.Duration) error {
	dev, err := neunet.NewDevice(addr, neunet.WithResolution(res), neunet.WithTimeout(timeout))
	if err != nil {
		return err
	}

	cli, err := neunet.DialRegister(fmt.Sprintf("%s:%d", addr, neunet.CtlPort), timeout)
	if err != nil {
		return err
	}
	defer cli.Close()

	return dev.Stage(cli)
}
