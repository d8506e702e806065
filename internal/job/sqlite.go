package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	filename        TEXT NOT NULL,
	source_path     TEXT NOT NULL,
	target_language TEXT NOT NULL,
	mode            TEXT NOT NULL,
	status          TEXT NOT NULL,
	fail_reason     TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	progress        REAL NOT NULL DEFAULT 0,
	chunks_total    INTEGER NOT NULL DEFAULT 0,
	chunks_done     INTEGER NOT NULL DEFAULT 0,
	result_path     TEXT NOT NULL DEFAULT '',
	result_url      TEXT NOT NULL DEFAULT '',
	subtitle_path   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
CREATE TABLE IF NOT EXISTS job_chunks (
	job_id        TEXT NOT NULL REFERENCES jobs(id),
	idx           INTEGER NOT NULL,
	start_seconds REAL NOT NULL,
	end_seconds   REAL NOT NULL,
	local_path    TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	PRIMARY KEY (job_id, idx)
);
`

// SQLiteStore persists jobs in a single SQLite file so job history
// survives restarts. WAL mode keeps API reads from blocking on pipeline
// writes.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface implementation check.
var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the job database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening job database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing job schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			id, filename, source_path, target_language, mode, status,
			fail_reason, error, progress, chunks_total, chunks_done,
			result_path, result_url, subtitle_path, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Filename, j.SourcePath, j.TargetLanguage, j.Mode, j.Status,
		j.FailReason, j.Error, j.Progress, j.ChunksTotal, j.ChunksDone,
		j.ResultPath, j.ResultURL, j.SubtitlePath, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", j.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, source_path, target_language, mode, status,
			fail_reason, error, progress, chunks_total, chunks_done,
			result_path, result_url, subtitle_path, created_at, updated_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteStore) Update(ctx context.Context, j *Job) error {
	var current Status
	err := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, j.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("updating job %s: %w", j.ID, err)
	}
	// The transition into a terminal status is the last write allowed.
	if current.Terminal() {
		return ErrTerminal
	}

	j.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET
			status = ?, fail_reason = ?, error = ?, progress = ?,
			chunks_total = ?, chunks_done = ?,
			result_path = ?, result_url = ?, subtitle_path = ?, updated_at = ?
		WHERE id = ?`,
		j.Status, j.FailReason, j.Error, j.Progress,
		j.ChunksTotal, j.ChunksDone,
		j.ResultPath, j.ResultURL, j.SubtitlePath, j.UpdatedAt,
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", j.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, source_path, target_language, mode, status,
			fail_reason, error, progress, chunks_total, chunks_done,
			result_path, result_url, subtitle_path, created_at, updated_at
		FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateChunk(ctx context.Context, c *Chunk) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_chunks (job_id, idx, start_seconds, end_seconds, local_path, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.JobID, c.Index, c.Start.Seconds(), c.End.Seconds(), c.LocalPath, c.Status,
	)
	if err != nil {
		return fmt.Errorf("inserting chunk %d of job %s: %w", c.Index, c.JobID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateChunkStatus(ctx context.Context, jobID string, index int, status ChunkStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_chunks SET status = ? WHERE job_id = ? AND idx = ?`,
		status, jobID, index,
	)
	if err != nil {
		return fmt.Errorf("updating chunk %d of job %s: %w", index, jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetJobChunks(ctx context.Context, jobID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, idx, start_seconds, end_seconds, local_path, status
		FROM job_chunks WHERE job_id = ? ORDER BY idx`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks of job %s: %w", jobID, err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		var start, end float64
		if err := rows.Scan(&c.JobID, &c.Index, &start, &end, &c.LocalPath, &c.Status); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		c.Start = time.Duration(start * float64(time.Second))
		c.End = time.Duration(end * float64(time.Second))
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*Job, error) {
	var j Job
	err := r.Scan(
		&j.ID, &j.Filename, &j.SourcePath, &j.TargetLanguage, &j.Mode, &j.Status,
		&j.FailReason, &j.Error, &j.Progress, &j.ChunksTotal, &j.ChunksDone,
		&j.ResultPath, &j.ResultURL, &j.SubtitlePath, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job row: %w", err)
	}
	return &j, nil
}
