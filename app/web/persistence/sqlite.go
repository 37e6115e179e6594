package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/scrapn/app/web/enums"
)

// ErrNotFound returned when the requested run is not in the store
var ErrNotFound = errors.New("not found")

// RunInfo represents a batch run with its execution state
type RunInfo struct {
	RunUUID     string          `db:"run_uuid" json:"run_uuid"`
	BatchNumber string          `db:"batch_number" json:"batch_number"`
	ParentURL   string          `db:"parent_url" json:"parent_url"`
	CSVFilename string          `db:"csv_filename" json:"csv_filename"`
	Links       int             `db:"links" json:"links"`
	Scraped     int             `db:"scraped" json:"scraped"`
	ResultFile  string          `db:"result_file" json:"result_file,omitempty"`
	Status      enums.RunStatus `db:"status" json:"status"`
	Event       enums.EventType `db:"event" json:"event"`
	StartedAt   time.Time       `db:"started_at" json:"started_at"`
	FinishedAt  time.Time       `db:"finished_at" json:"finished_at,omitzero"`
	Output      string          `db:"output" json:"-"`
}

// SQLiteStore implements run persistence using SQLite
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and initializes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	res := &SQLiteStore{db: db}
	if err := res.initialize(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return res, nil
}

// initialize creates the database schema
func (s *SQLiteStore) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_uuid TEXT NOT NULL,
			batch_number TEXT NOT NULL,
			parent_url TEXT NOT NULL,
			csv_filename TEXT NOT NULL,
			links INTEGER DEFAULT 0,
			scraped INTEGER DEFAULT 0,
			result_file TEXT DEFAULT '',
			status TEXT NOT NULL,
			event TEXT NOT NULL,
			started_at INTEGER,
			finished_at INTEGER,
			output TEXT DEFAULT '',
			PRIMARY KEY (run_uuid, batch_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// runRow is the raw database representation with unix timestamps
type runRow struct {
	RunUUID     string `db:"run_uuid"`
	BatchNumber string `db:"batch_number"`
	ParentURL   string `db:"parent_url"`
	CSVFilename string `db:"csv_filename"`
	Links       int    `db:"links"`
	Scraped     int    `db:"scraped"`
	ResultFile  string `db:"result_file"`
	Status      string `db:"status"`
	Event       string `db:"event"`
	StartedAt   int64  `db:"started_at"`
	FinishedAt  int64  `db:"finished_at"`
	Output      string `db:"output"`
}

func (r runRow) toInfo() (RunInfo, error) {
	status, err := enums.ParseRunStatus(r.Status)
	if err != nil {
		return RunInfo{}, fmt.Errorf("bad status for run %s: %w", r.RunUUID, err)
	}
	event, err := enums.ParseEventType(r.Event)
	if err != nil {
		return RunInfo{}, fmt.Errorf("bad event for run %s: %w", r.RunUUID, err)
	}
	res := RunInfo{
		RunUUID:     r.RunUUID,
		BatchNumber: r.BatchNumber,
		ParentURL:   r.ParentURL,
		CSVFilename: r.CSVFilename,
		Links:       r.Links,
		Scraped:     r.Scraped,
		ResultFile:  r.ResultFile,
		Status:      status,
		Event:       event,
		Output:      r.Output,
	}
	if r.StartedAt > 0 {
		res.StartedAt = time.Unix(r.StartedAt, 0)
	}
	if r.FinishedAt > 0 {
		res.FinishedAt = time.Unix(r.FinishedAt, 0)
	}
	return res, nil
}

// RecordStart registers a started run, replacing any previous record of the same
// run uuid and batch number (a resumed run overwrites its interrupted attempt)
func (s *SQLiteStore) RecordStart(run RunInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_uuid, batch_number, parent_url, csv_filename, links, scraped, result_file, status, event, started_at, finished_at, output)
		VALUES (:run_uuid, :batch_number, :parent_url, :csv_filename, :links, 0, '', :status, :event, :started_at, 0, '')`,
		map[string]interface{}{
			"run_uuid":     run.RunUUID,
			"batch_number": run.BatchNumber,
			"parent_url":   run.ParentURL,
			"csv_filename": run.CSVFilename,
			"links":        run.Links,
			"status":       enums.RunStatusRunning.String(),
			"event":        run.Event.String(),
			"started_at":   run.StartedAt.Unix(),
		})
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordComplete updates a finished run with its final status and output
func (s *SQLiteStore) RecordComplete(run RunInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET scraped = ?, result_file = ?, status = ?, finished_at = ?, output = ?
		WHERE run_uuid = ? AND batch_number = ?`,
		run.Scraped, run.ResultFile, run.Status.String(), run.FinishedAt.Unix(), run.Output,
		run.RunUUID, run.BatchNumber)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s/%s %w", run.RunUUID, run.BatchNumber, ErrNotFound)
	}
	return nil
}

// GetRuns retrieves the most recent runs, newest first
func (s *SQLiteStore) GetRuns(limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []runRow
	if err := s.db.Select(&rows, `
		SELECT run_uuid, batch_number, parent_url, csv_filename, links, scraped, result_file, status, event, started_at, finished_at, output
		FROM runs ORDER BY started_at DESC, batch_number LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	res := make([]RunInfo, 0, len(rows))
	for _, row := range rows {
		info, err := row.toInfo()
		if err != nil {
			return nil, err
		}
		res = append(res, info)
	}
	return res, nil
}

// GetRun retrieves all batches of a run by uuid
func (s *SQLiteStore) GetRun(runUUID string) ([]RunInfo, error) {
	var rows []runRow
	if err := s.db.Select(&rows, `
		SELECT run_uuid, batch_number, parent_url, csv_filename, links, scraped, result_file, status, event, started_at, finished_at, output
		FROM runs WHERE run_uuid = ? ORDER BY batch_number`, runUUID); err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runUUID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s %w", runUUID, ErrNotFound)
	}

	res := make([]RunInfo, 0, len(rows))
	for _, row := range rows {
		info, err := row.toInfo()
		if err != nil {
			return nil, err
		}
		res = append(res, info)
	}
	return res, nil
}

// CleanupOldRuns keeps only the most recent limit runs, removing the rest
func (s *SQLiteStore) CleanupOldRuns(limit int) error {
	if limit <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		DELETE FROM runs WHERE rowid NOT IN
		(SELECT rowid FROM runs ORDER BY started_at DESC LIMIT ?)`, limit)
	if err != nil {
		return fmt.Errorf("failed to cleanup old runs: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
