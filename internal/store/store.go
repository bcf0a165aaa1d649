package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one pipeline invocation.
type Run struct {
	ID         int64        `db:"id" json:"id"`
	Status     string       `db:"status" json:"status"`
	OutputDir  string       `db:"output_dir" json:"output_dir"`
	Error      string       `db:"error" json:"error,omitempty"`
	StartedAt  time.Time    `db:"started_at" json:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at" json:"-"`
}

// DatasetStat records how many rows one dataset had before and after cleaning.
type DatasetStat struct {
	ID        int64  `db:"id" json:"-"`
	RunID     int64  `db:"run_id" json:"run_id"`
	Dataset   string `db:"dataset" json:"dataset"`
	Source    string `db:"source" json:"source"`
	RawRows   int    `db:"raw_rows" json:"raw_rows"`
	CleanRows int    `db:"clean_rows" json:"clean_rows"`
	Path      string `db:"path" json:"path"`
}

// Store is the run ledger interface.
type Store interface {
	CreateRun(ctx context.Context, outputDir string) (*Run, error)
	FinishRun(ctx context.Context, runID int64, runErr error) error
	GetRun(ctx context.Context, id int64) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	AddDatasetStat(ctx context.Context, stat *DatasetStat) error
	ListDatasetStats(ctx context.Context, runID int64) ([]DatasetStat, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, outputDir string) (*Run, error) {
	run := &Run{
		Status:    StatusRunning,
		OutputDir: outputDir,
		StartedAt: time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (status, output_dir, started_at)
		VALUES (?, ?, ?)
	`, run.Status, run.OutputDir, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	run.ID, _ = res.LastInsertId()
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, status, msg, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) AddDatasetStat(ctx context.Context, stat *DatasetStat) error {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO dataset_stats (run_id, dataset, source, raw_rows, clean_rows, path)
		VALUES (:run_id, :dataset, :source, :raw_rows, :clean_rows, :path)
		ON CONFLICT(run_id, dataset) DO UPDATE SET
			source = excluded.source,
			raw_rows = excluded.raw_rows,
			clean_rows = excluded.clean_rows,
			path = excluded.path
	`, stat)
	if err != nil {
		return fmt.Errorf("add dataset stat %s: %w", stat.Dataset, err)
	}
	stat.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListDatasetStats(ctx context.Context, runID int64) ([]DatasetStat, error) {
	var stats []DatasetStat
	if err := s.db.SelectContext(ctx, &stats,
		"SELECT * FROM dataset_stats WHERE run_id = ? ORDER BY id", runID); err != nil {
		return nil, fmt.Errorf("list dataset stats %d: %w", runID, err)
	}
	return stats, nil
}
