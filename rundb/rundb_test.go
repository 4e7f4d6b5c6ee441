// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"database/sql/driver"
	"reflect"
	"testing"

	"github.com/MIT-NRL/ndaq/internal/fakedb"
	"github.com/MIT-NRL/ndaq/neunet"
)

func init() {
	drvName = "fakedb"
}

func TestAddRun(t *testing.T) {
	run := &neunet.Run{
		Start:   1000,
		End:     1010,
		Elapsed: 10,
		Hists: map[uint8]*neunet.Hist{
			0: nil,
			7: nil,
		},
		Counts: map[uint8]int64{
			0: 42,
			7: 0,
		},
	}

	var id int64
	execs, err := fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		db, err := Open("testdb")
		if err != nil {
			return err
		}
		defer db.Close()

		id, err = db.AddRun(ctx, run)
		return err
	})
	if err != nil {
		t.Fatalf("could not add run: %+v", err)
	}
	if got, want := id, int64(1); got != want {
		t.Fatalf("invalid run id: got=%d, want=%d", got, want)
	}

	want := []fakedb.Exec{
		{
			Query: "INSERT INTO runs (start, stop, elapsed) VALUES (?, ?, ?)",
			Args:  []driver.Value{float64(1000), float64(1010), float64(10)},
		},
		{
			Query: "INSERT INTO counts (run, detector, total) VALUES (?, ?, ?)",
			Args:  []driver.Value{int64(1), int64(0), int64(42)},
		},
		{
			Query: "INSERT INTO counts (run, detector, total) VALUES (?, ?, ?)",
			Args:  []driver.Value{int64(1), int64(7), int64(0)},
		},
	}
	if got := execs; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid statements:\ngot= %#v\nwant=%#v", got, want)
	}
}

func TestLastRun(t *testing.T) {
	rows := fakedb.Rows{
		Names: []string{"id", "start", "stop", "elapsed"},
		Values: [][]driver.Value{
			{int64(12), float64(2000), float64(2030), float64(30)},
		},
	}

	var ri RunInfo
	_, err := fakedb.Run(context.Background(), rows, func(ctx context.Context) error {
		db, err := Open("testdb")
		if err != nil {
			return err
		}
		defer db.Close()

		ri, err = db.LastRun(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("could not retrieve last run: %+v", err)
	}

	want := RunInfo{ID: 12, Start: 2000, Stop: 2030, Elapsed: 30}
	if ri != want {
		t.Fatalf("invalid run info:\ngot= %#v\nwant=%#v", ri, want)
	}
	if got, want := ri.StartTime(), neunet.TimeOf(2000); !got.Equal(want) {
		t.Fatalf("invalid start time: got=%v, want=%v", got, want)
	}
}

func TestTotals(t *testing.T) {
	rows := fakedb.Rows{
		Names: []string{"detector", "total"},
		Values: [][]driver.Value{
			{int64(0), int64(42)},
			{int64(7), int64(3)},
		},
	}

	var totals map[uint8]int64
	_, err := fakedb.Run(context.Background(), rows, func(ctx context.Context) error {
		db, err := Open("testdb")
		if err != nil {
			return err
		}
		defer db.Close()

		totals, err = db.Totals(ctx, 12)
		return err
	})
	if err != nil {
		t.Fatalf("could not retrieve totals: %+v", err)
	}

	want := map[uint8]int64{0: 42, 7: 3}
	if !reflect.DeepEqual(totals, want) {
		t.Fatalf("invalid totals:\ngot= %v\nwant=%v", totals, want)
	}
}
