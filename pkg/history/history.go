// Package history persists run results in a local DuckDB database so
// regressions can be tracked across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logvet/logvet/internal/model"
)

// Store is a DuckDB-backed run archive.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id    VARCHAR NOT NULL,
			suite     VARCHAR NOT NULL,
			started   TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL,
			examples  INTEGER NOT NULL,
			failed_examples INTEGER NOT NULL,
			checks_passed INTEGER NOT NULL,
			checks_failed INTEGER NOT NULL,
			checks_skipped INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checks (
			run_id    VARCHAR NOT NULL,
			example   VARCHAR NOT NULL,
			name      VARCHAR NOT NULL,
			kind      VARCHAR NOT NULL,
			status    VARCHAR NOT NULL,
			value     DOUBLE,
			target    DOUBLE,
			tolerance DOUBLE,
			message   VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate history database: %w", err)
		}
	}
	return nil
}

// Append records a finished run and all its check outcomes.
func (s *Store) Append(ctx context.Context, run *model.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	passed, failed, skipped := run.Counts()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Suite, run.Started, run.Duration.Milliseconds(),
		len(run.Examples), run.FailedExamples(), passed, failed, skipped,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checks VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare check insert: %w", err)
	}
	defer stmt.Close()

	for i := range run.Examples {
		ex := &run.Examples[i]
		for _, check := range ex.Checks {
			var value, target, tolerance interface{}
			if check.Kind == model.KindValue {
				target = check.Target
				tolerance = check.Tolerance
				if check.Found {
					value = check.Value
				}
			}
			_, err := stmt.ExecContext(ctx,
				run.RunID, ex.Example, check.Name, check.Kind.String(),
				check.Status.String(), value, target, tolerance, check.Message,
			)
			if err != nil {
				return fmt.Errorf("failed to insert check: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history transaction: %w", err)
	}
	return nil
}

// RunSummary is one archived run.
type RunSummary struct {
	RunID          string
	Suite          string
	Started        time.Time
	Duration       time.Duration
	Examples       int
	FailedExamples int
	ChecksPassed   int
	ChecksFailed   int
	ChecksSkipped  int
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, suite, started, duration_ms, examples, failed_examples,
		        checks_passed, checks_failed, checks_skipped
		 FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var durMS int64
		if err := rows.Scan(&r.RunID, &r.Suite, &r.Started, &durMS,
			&r.Examples, &r.FailedExamples,
			&r.ChecksPassed, &r.ChecksFailed, &r.ChecksSkipped); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrendPoint is one observation of a check value over time.
type TrendPoint struct {
	RunID   string
	Started time.Time
	Status  string
	Value   sql.NullFloat64
	Target  sql.NullFloat64
}

// Trend returns the recorded values of one check within one example,
// newest first, so drifting quantities can be spotted before they
// leave tolerance.
func (s *Store) Trend(ctx context.Context, example, check string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.run_id, r.started, c.status, c.value, c.target
		 FROM checks c JOIN runs r ON c.run_id = r.run_id
		 WHERE c.example = ? AND c.name = ?
		 ORDER BY r.started DESC LIMIT ?`, example, check, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.RunID, &p.Started, &p.Status, &p.Value, &p.Target); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
