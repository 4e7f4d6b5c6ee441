// Copyright 2023 The MIT-NRL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records NEUNET acquisition runs in the NRL runs
// database.
package rundb // import "github.com/MIT-NRL/ndaq/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MIT-NRL/ndaq/neunet"
	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to record and retrieve NEUNET
// acquisition runs.
type DB struct {
	db   *sql.DB
	name string // name of the runs database
}

// Open opens a connection to the runs database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("rundb: could not ping %q: %w", dbname, err)
	}
	return nil
}

// Close closes the connection to the runs database.
func (db *DB) Close() error {
	err := db.db.Close()
	if err != nil {
		return fmt.Errorf("rundb: could not close %q db: %w", db.name, err)
	}
	return nil
}

// AddRun records the summary of an acquisition run and its
// per-detector totals.
func (db *DB) AddRun(ctx context.Context, run *neunet.Run) (int64, error) {
	res, err := db.db.ExecContext(ctx,
		"INSERT INTO runs (start, stop, elapsed) VALUES (?, ?, ?)",
		run.Start, run.End, run.Elapsed,
	)
	if err != nil {
		return 0, fmt.Errorf("rundb: could not insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rundb: could not retrieve run id: %w", err)
	}

	for _, psd := range run.Detectors() {
		_, err = db.db.ExecContext(ctx,
			"INSERT INTO counts (run, detector, total) VALUES (?, ?, ?)",
			id, psd, run.Counts[psd],
		)
		if err != nil {
			return 0, fmt.Errorf("rundb: could not insert counts for detector %d: %w", psd, err)
		}
	}
	return id, nil
}

// RunInfo is the stored summary of one acquisition run.
type RunInfo struct {
	ID      int64
	Start   float64 // seconds since the device epoch
	Stop    float64
	Elapsed float64
}

// StartTime returns the run start as wall-clock time.
func (ri RunInfo) StartTime() time.Time { return neunet.TimeOf(ri.Start) }

// LastRun retrieves the most recent stored run summary.
func (db *DB) LastRun(ctx context.Context) (RunInfo, error) {
	var ri RunInfo
	err := db.db.QueryRowContext(ctx,
		"SELECT id, start, stop, elapsed FROM runs ORDER BY id DESC LIMIT 1",
	).Scan(&ri.ID, &ri.Start, &ri.Stop, &ri.Elapsed)
	if err != nil {
		return ri, fmt.Errorf("rundb: could not retrieve last run: %w", err)
	}
	return ri, nil
}

// Totals retrieves the per-detector totals of the run with the given id.
func (db *DB) Totals(ctx context.Context, id int64) (map[uint8]int64, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT detector, total FROM counts WHERE run=? ORDER BY detector",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not query totals for run %d: %w", id, err)
	}
	defer rows.Close()

	totals := make(map[uint8]int64)
	for rows.Next() {
		var (
			psd   uint8
			total int64
		)
		err = rows.Scan(&psd, &total)
		if err != nil {
			return nil, fmt.Errorf("rundb: could not scan totals for run %d: %w", id, err)
		}
		totals[psd] = total
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rundb: could not iterate totals for run %d: %w", id, err)
	}
	return totals, nil
}
