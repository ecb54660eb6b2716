// Package history persists inventory runs to a local SQLite database
// so results can be listed and re-read without touching AWS again.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS runs (
    uuid          TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    started_at    TEXT NOT NULL,
    finished_at   TEXT NOT NULL,
    caller_arn    TEXT DEFAULT '',
    role_name     TEXT DEFAULT '',
    regions       TEXT DEFAULT '[]',  -- JSON array
    units         INTEGER NOT NULL DEFAULT 0,
    record_count  INTEGER NOT NULL DEFAULT 0,
    failure_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_records (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_uuid   TEXT NOT NULL REFERENCES runs(uuid),
    account_id TEXT NOT NULL,
    region     TEXT NOT NULL,
    record     TEXT NOT NULL  -- JSON object
);

CREATE INDEX IF NOT EXISTS idx_records_run ON run_records(run_uuid);

CREATE TABLE IF NOT EXISTS run_failures (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_uuid   TEXT NOT NULL REFERENCES runs(uuid),
    account_id TEXT NOT NULL,
    region     TEXT NOT NULL,
    error      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failures_run ON run_failures(run_uuid);
`

// Run summarizes one persisted inventory run.
type Run struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	CallerARN    string    `json:"caller_arn,omitempty"`
	RoleName     string    `json:"role_name,omitempty"`
	Regions      []string  `json:"regions"`
	Units        int       `json:"units"`
	RecordCount  int       `json:"record_count"`
	FailureCount int       `json:"failure_count"`
}

// Record is one persisted inventory record with its provenance.
type Record struct {
	AccountID string          `json:"account_id"`
	Region    string          `json:"region"`
	Data      json.RawMessage `json:"data"`
}

// Failure is one persisted unit failure.
type Failure struct {
	AccountID string `json:"account_id"`
	Region    string `json:"region"`
	Error     string `json:"error"`
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists a run with its records and failures in a single
// transaction and returns the run ID.
func (s *Store) SaveRun(run Run, records []Record, failures []Failure) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.RecordCount = len(records)
	run.FailureCount = len(failures)

	regionsJSON, _ := json.Marshal(run.Regions)

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("starting history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (uuid, kind, started_at, finished_at, caller_arn, role_name,
		 regions, units, record_count, failure_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
		run.CallerARN, run.RoleName, string(regionsJSON),
		run.Units, run.RecordCount, run.FailureCount,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	for _, rec := range records {
		_, err = tx.Exec(
			`INSERT INTO run_records (run_uuid, account_id, region, record) VALUES (?, ?, ?, ?)`,
			run.ID, rec.AccountID, rec.Region, string(rec.Data),
		)
		if err != nil {
			return "", fmt.Errorf("inserting record: %w", err)
		}
	}

	for _, f := range failures {
		_, err = tx.Exec(
			`INSERT INTO run_failures (run_uuid, account_id, region, error) VALUES (?, ?, ?, ?)`,
			run.ID, f.AccountID, f.Region, f.Error,
		)
		if err != nil {
			return "", fmt.Errorf("inserting failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns run summaries, newest first. A non-positive limit
// falls back to 20.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT uuid, kind, started_at, finished_at, caller_arn, role_name,
		        regions, units, record_count, failure_count
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run summary by ID.
func (s *Store) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT uuid, kind, started_at, finished_at, caller_arn, role_name,
		        regions, units, record_count, failure_count
		 FROM runs WHERE uuid = ?`, id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// RunRecords returns the records persisted for a run, in insertion
// order.
func (s *Store) RunRecords(runID string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT account_id, region, record FROM run_records WHERE run_uuid = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading run records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var data string
		if err := rows.Scan(&rec.AccountID, &rec.Region, &data); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Data = json.RawMessage(data)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RunFailures returns the failures persisted for a run.
func (s *Store) RunFailures(runID string) ([]Failure, error) {
	rows, err := s.db.Query(
		`SELECT account_id, region, error FROM run_failures WHERE run_uuid = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading run failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.AccountID, &f.Region, &f.Error); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// RecordsFrom marshals typed inventory items into storable records.
// Every inventory record carries account_id and region JSON fields,
// which become the provenance columns.
func RecordsFrom[T any](items []T) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encoding record: %w", err)
		}
		var prov struct {
			AccountID string `json:"account_id"`
			Region    string `json:"region"`
		}
		if err := json.Unmarshal(data, &prov); err != nil {
			return nil, fmt.Errorf("decoding record provenance: %w", err)
		}
		records = append(records, Record{AccountID: prov.AccountID, Region: prov.Region, Data: data})
	}
	return records, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		started, finished string
		regionsJSON       string
	)
	err := row.Scan(&run.ID, &run.Kind, &started, &finished, &run.CallerARN, &run.RoleName,
		&regionsJSON, &run.Units, &run.RecordCount, &run.FailureCount)
	if err != nil {
		return Run{}, err
	}

	if run.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
		return Run{}, fmt.Errorf("parsing run start time: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
		return Run{}, fmt.Errorf("parsing run finish time: %w", err)
	}
	if err := json.Unmarshal([]byte(regionsJSON), &run.Regions); err != nil {
		return Run{}, fmt.Errorf("parsing run regions: %w", err)
	}
	return run, nil
}
