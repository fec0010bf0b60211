// Package history records finished generation jobs in a local SQLite file.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// Job is one generate or preview run.
type Job struct {
	ID         string
	Mode       string
	Status     Status
	Speakers   int
	Batches    int
	Chars      int
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (j Job) Duration() time.Duration {
	if j.FinishedAt.Before(j.StartedAt) {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Store wraps the SQLite job table. A nil *Store records nothing.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    status TEXT NOT NULL,
    speakers INTEGER NOT NULL DEFAULT 0,
    batches INTEGER NOT NULL DEFAULT 0,
    chars INTEGER NOT NULL DEFAULT 0,
    output TEXT,
    error TEXT,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_started ON jobs(started_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record inserts a job, assigning an ID and finish time when missing.
func (s *Store) Record(ctx context.Context, job Job) (Job, error) {
	if s == nil || s.db == nil {
		return job, nil
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.FinishedAt.IsZero() {
		job.FinishedAt = s.clock()
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = job.FinishedAt
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(id, mode, status, speakers, batches, chars, output, error, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Mode, string(job.Status), job.Speakers, job.Batches, job.Chars,
		job.Output, job.Error, job.StartedAt.UnixMilli(), job.FinishedAt.UnixMilli())
	if err != nil {
		return job, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// List returns up to limit jobs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, speakers, batches, chars, output, error, started_at, finished_at
		 FROM jobs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			j                 Job
			status            string
			output, errText   sql.NullString
			started, finished int64
		)
		if err := rows.Scan(&j.ID, &j.Mode, &status, &j.Speakers, &j.Batches, &j.Chars,
			&output, &errText, &started, &finished); err != nil {
			return nil, err
		}
		j.Status = Status(status)
		j.Output = output.String
		j.Error = errText.String
		j.StartedAt = time.UnixMilli(started)
		j.FinishedAt = time.UnixMilli(finished)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Prune keeps the newest keep jobs and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if s == nil || s.db == nil || keep <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id IN (
		SELECT id FROM jobs ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?
	)`, keep)
	return err
}
