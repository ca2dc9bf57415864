// Package record persists bench run results into a SQLite database, one row
// per run plus one row per scoreboard channel, so regressions can be compared
// across seeds and revisions.
package record

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A Run is one recorded bench execution.
type Run struct {
	ID      string
	Bench   string
	Seed    int64
	Cycles  uint64
	Passed  bool
	Failure string
}

// A ChannelResult is the end state of one scoreboard channel within a run.
type ChannelResult struct {
	Channel   string
	Matched   int
	Reference int
	Actual    int
	Failure   string
}

// A Recorder owns one results database.
type Recorder struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the results database at path and makes sure the
// schema exists. The recorder closes itself at process exit.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		bench       TEXT NOT NULL,
		seed        INTEGER NOT NULL,
		cycles      INTEGER NOT NULL,
		passed      INTEGER NOT NULL,
		failure     TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS channels (
		run_id    TEXT NOT NULL REFERENCES runs(id),
		channel   TEXT NOT NULL,
		matched   INTEGER NOT NULL,
		reference INTEGER NOT NULL,
		actual    INTEGER NOT NULL,
		failure   TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("record: create schema: %w", err)
	}

	r := &Recorder{db: db}
	atexit.Register(func() { r.Close() })

	return r, nil
}

// WriteRun stores one run and its channel results in a single transaction
// and returns the run ID. A missing run ID is generated.
func (r *Recorder) WriteRun(run Run, channels []ChannelResult) (string, error) {
	if run.ID == "" {
		run.ID = xid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", fmt.Errorf("record: recorder is closed")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("record: begin: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO runs (id, bench, seed, cycles, passed, failure, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Bench, run.Seed, run.Cycles, run.Passed, run.Failure,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		tx.Rollback()
		return "", fmt.Errorf("record: insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO channels (run_id, channel, matched, reference, actual, failure)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return "", fmt.Errorf("record: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ch := range channels {
		_, err := stmt.Exec(run.ID,
			ch.Channel, ch.Matched, ch.Reference, ch.Actual, ch.Failure)
		if err != nil {
			tx.Rollback()
			return "", fmt.Errorf("record: insert channel %s: %w", ch.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record: commit: %w", err)
	}
	return run.ID, nil
}

// Runs returns every recorded run, most recent first.
func (r *Recorder) Runs() ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(
		`SELECT id, bench, seed, cycles, passed, failure
		 FROM runs ORDER BY recorded_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("record: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(&run.ID, &run.Bench, &run.Seed,
			&run.Cycles, &run.Passed, &run.Failure)
		if err != nil {
			return nil, fmt.Errorf("record: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Channels returns the channel results of one run.
func (r *Recorder) Channels(runID string) ([]ChannelResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(
		`SELECT channel, matched, reference, actual, failure
		 FROM channels WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("record: query channels: %w", err)
	}
	defer rows.Close()

	var channels []ChannelResult
	for rows.Next() {
		var ch ChannelResult
		err := rows.Scan(&ch.Channel, &ch.Matched,
			&ch.Reference, &ch.Actual, &ch.Failure)
		if err != nil {
			return nil, fmt.Errorf("record: scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// Close flushes and closes the database. Later calls are no-ops.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
