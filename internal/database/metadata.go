package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// StartRun records the beginning of an index run.
func (d *Database) StartRun(ctx context.Context, root, strategy string) (run Run, err error) {
	start := time.Now()
	defer func() { recordQuery("start_run", start, err) }()

	run = Run{
		ID:        uuid.NewString(),
		Root:      root,
		Strategy:  strategy,
		StartedAt: time.Now().UTC(),
		Status:    RunRunning,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO index_run (id, root, strategy, started_at, status) VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Root, run.Strategy, run.StartedAt.Unix(), run.Status)
	if err != nil {
		return Run{}, fmt.Errorf("record run start: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status and counts of run.
func (d *Database) FinishRun(ctx context.Context, run Run) (err error) {
	start := time.Now()
	defer func() { recordQuery("finish_run", start, err) }()

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE index_run SET
			finished_at = ?, status = ?, error = ?,
			processed = ?, duplicates = ?, non_container = ?, failed = ?, already_visited = ?
		WHERE id = ?
	`, run.FinishedAt.Unix(), run.Status, sql.NullString{String: run.Error, Valid: run.Error != ""},
		run.Counts.Processed, run.Counts.Duplicates, run.Counts.NonContainer, run.Counts.Failed, run.Counts.AlreadyVisited,
		run.ID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record run finish: unknown run %s", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (d *Database) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	start := time.Now()
	defer func() { recordQuery("list_runs", start, err) }()

	if limit <= 0 {
		limit = -1
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM index_run ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun returns one run by id. A missing run is reported as sql.ErrNoRows,
// which IsNotFound recognizes.
func (d *Database) GetRun(ctx context.Context, id string) (run Run, err error) {
	start := time.Now()
	defer func() { recordQuery("get_run", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM index_run WHERE id = ?
	`, id)
	return scanRun(row)
}

const runColumns = `id, root, strategy, started_at, finished_at, status, error,
			processed, duplicates, non_container, failed, already_visited`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var startedAt int64
	var finishedAt sql.NullInt64
	var runErr sql.NullString
	if err := s.Scan(&r.ID, &r.Root, &r.Strategy, &startedAt, &finishedAt, &r.Status, &runErr,
		&r.Counts.Processed, &r.Counts.Duplicates, &r.Counts.NonContainer, &r.Counts.Failed, &r.Counts.AlreadyVisited); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		r.FinishedAt = time.Unix(finishedAt.Int64, 0).UTC()
	}
	r.Error = runErr.String
	return r, nil
}

// IsNotFound reports whether err means a missing metadata key or run.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
