package trace

import (
	"context"
	"database/sql"
	"fmt"
)

// ListRuns returns all run headers, most recently started first (token
// breaks ties for determinism).
//
// Returns an empty slice (not nil) when the journal has no runs.
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT token, graph_name, graph_hash, engine_version, shadow, started_at, stopped_at
		FROM runs
		ORDER BY started_at DESC, token ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves a single run header by token.
// Returns sql.ErrNoRows if not found.
func (j *Journal) GetRun(ctx context.Context, token string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT token, graph_name, graph_hash, engine_version, shadow, started_at, stopped_at
		FROM runs
		WHERE token = ?
	`, token)

	return scanRun(row)
}

// ListSteps returns a run's committed state changes.
// Results are ordered deterministically per CP-4: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) when the run has no steps.
func (j *Journal) ListSteps(ctx context.Context, token string) ([]Step, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_token, seq, at, kind, event, from_state, to_state
		FROM steps
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var step Step
		var at string
		if err := rows.Scan(&step.RunToken, &step.Seq, &at, &step.Kind, &step.Event, &step.From, &step.To); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if step.At, err = parseTime(at); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	return steps, nil
}

// ListErrors returns a run's recoverable errors.
// Results are ordered deterministically per CP-4: ORDER BY seq ASC.
//
// Returns an empty slice (not nil) when the run recorded no errors.
func (j *Journal) ListErrors(ctx context.Context, token string) ([]ErrorRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_token, seq, at, code, message, state_id, event
		FROM sim_errors
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	recs := []ErrorRecord{}
	for rows.Next() {
		var rec ErrorRecord
		var at string
		if err := rows.Scan(&rec.RunToken, &rec.Seq, &at, &rec.Code, &rec.Message, &rec.StateID, &rec.Event); err != nil {
			return nil, fmt.Errorf("scan error record: %w", err)
		}
		if rec.At, err = parseTime(at); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error records: %w", err)
	}

	return recs, nil
}

// scanner abstracts sql.Row and sql.Rows for the shared run scanner.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var shadow int
	var started string
	var stopped sql.NullString

	if err := s.Scan(&run.Token, &run.GraphName, &run.GraphHash, &run.EngineVersion, &shadow, &started, &stopped); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Shadow = shadow != 0

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if stopped.Valid {
		t, err := parseTime(stopped.String)
		if err != nil {
			return Run{}, err
		}
		run.StoppedAt = &t
	}

	return run, nil
}
