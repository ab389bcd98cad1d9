// Package storage archives finished simulation runs to a local SQLite file:
// run metadata, every recorded metric sample, and the reward series. The
// archive is write-once per run and read back by analysis tooling; it is not
// consulted during a running simulation.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/buildsim/emsgo/internal/series"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	model_file   TEXT NOT NULL,
	weather_file TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	timesteps    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS samples (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	category  TEXT NOT NULL,
	metric    TEXT NOT NULL,
	step      INTEGER NOT NULL,
	zone_step INTEGER NOT NULL,
	datetime  TIMESTAMP,
	value     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_run_metric_step ON samples (run_id, metric, step);
`

// DB wraps the archive database handle.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the archive file and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// The archive is written by one session at a time.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}
	return &DB{db: db, logger: logger}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Run is one archived simulation run.
type Run struct {
	ID          uuid.UUID
	ModelFile   string
	WeatherFile string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Timesteps   int
}

// CreateRun inserts run metadata at simulation start.
func (d *DB) CreateRun(ctx context.Context, run Run) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO runs (id, model_file, weather_file, status, started_at, timesteps)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.ModelFile, run.WeatherFile, run.Status, run.StartedAt.UTC(), run.Timesteps,
	)
	if err != nil {
		return fmt.Errorf("storage: create run: %w", err)
	}
	return nil
}

// CompleteRun records the terminal status and elapsed timestep count.
func (d *DB) CompleteRun(ctx context.Context, id uuid.UUID, status string, completedAt time.Time, timesteps int) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, timesteps = ? WHERE id = ?`,
		status, completedAt.UTC(), timesteps, id.String(),
	)
	if err != nil {
		return fmt.Errorf("storage: complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: complete run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun retrieves run metadata by ID.
func (d *DB) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var (
		run   Run
		rawID string
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, model_file, weather_file, status, started_at, completed_at, timesteps
		 FROM runs WHERE id = ?`, id.String(),
	).Scan(&rawID, &run.ModelFile, &run.WeatherFile, &run.Status,
		&run.StartedAt, &run.CompletedAt, &run.Timesteps)
	if err != nil {
		if err == sql.ErrNoRows {
			return Run{}, fmt.Errorf("storage: run %s: %w", id, ErrNotFound)
		}
		return Run{}, fmt.Errorf("storage: get run: %w", err)
	}
	run.ID, err = uuid.Parse(rawID)
	if err != nil {
		return Run{}, fmt.Errorf("storage: parse run id: %w", err)
	}
	return run, nil
}

// InsertTable archives every cell of a materialized table inside one
// transaction. Padding cells (NaN) are skipped by the caller's table layout
// staying dense; SQLite stores NaN as NULL, which we avoid by filtering here.
func (d *DB) InsertTable(ctx context.Context, runID uuid.UUID, t series.Table) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, category, metric, step, zone_step, datetime, value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare samples: %w", err)
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		for j, name := range t.Columns {
			v := row.Values[j]
			if v != v { // NaN padding
				continue
			}
			var at any
			if !row.Time.IsZero() {
				at = row.Time.UTC()
			}
			if _, err := stmt.ExecContext(ctx,
				runID.String(), t.Category, name, row.Step, row.ZoneStep, at, v); err != nil {
				return fmt.Errorf("storage: insert sample %s/%s: %w", t.Category, name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit samples: %w", err)
	}
	return nil
}

// Samples reads back one metric's archived series for a run, ordered by step.
func (d *DB) Samples(ctx context.Context, runID uuid.UUID, metric string) ([]series.Point, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT step, value FROM samples WHERE run_id = ? AND metric = ? ORDER BY step, rowid`,
		runID.String(), metric)
	if err != nil {
		return nil, fmt.Errorf("storage: query samples: %w", err)
	}
	defer rows.Close()

	var pts []series.Point
	for rows.Next() {
		var p series.Point
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("storage: scan sample: %w", err)
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate samples: %w", err)
	}
	return pts, nil
}
