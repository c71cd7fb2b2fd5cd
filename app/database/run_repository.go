package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ RunRepository = (*SQLRunRepository)(nil)

var ErrRunNotFound = errors.New("run not found")

// SQLRunRepository handles database operations for crawl runs
type SQLRunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *SQLRunRepository {
	return &SQLRunRepository{db: db}
}

// CreateRun stores a finished run together with its per-source results
func (r *SQLRunRepository) CreateRun(run Run) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (
			id, reason, status, started_at, finished_at, sources, failed_sources,
			links, records, added, updated, total, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Reason, run.Status, run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout), run.Sources, run.FailedSources,
		run.Links, run.Records, run.Added, run.Updated, run.Total, run.Error)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, src := range run.SourceResults {
		_, err := tx.Exec(`
			INSERT INTO run_sources (run_id, source, platform, status, links, records, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, src.Source, src.Platform, src.Status, src.Links, src.Records, src.Error)
		if err != nil {
			return fmt.Errorf("failed to insert run source %s: %w", src.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// GetRecentRuns returns the latest runs without per-source results
func (r *SQLRunRepository) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, reason, status, started_at, finished_at, sources, failed_sources,
		       links, records, added, updated, total, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

// GetRun returns a run with its per-source results, or ErrRunNotFound
func (r *SQLRunRepository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, reason, status, started_at, finished_at, sources, failed_sources,
		       links, records, added, updated, total, error
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT source, platform, status, links, records, error
		FROM run_sources
		WHERE run_id = ?
		ORDER BY source
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src RunSource
		if err := rows.Scan(&src.Source, &src.Platform, &src.Status, &src.Links, &src.Records, &src.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run source row: %w", err)
		}
		run.SourceResults = append(run.SourceResults, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run source rows: %w", err)
	}

	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt string

	err := row.Scan(&run.ID, &run.Reason, &run.Status, &startedAt, &finishedAt,
		&run.Sources, &run.FailedSources, &run.Links, &run.Records,
		&run.Added, &run.Updated, &run.Total, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}

	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	run.FinishedAt, _ = time.Parse(timeLayout, finishedAt)

	return &run, nil
}
