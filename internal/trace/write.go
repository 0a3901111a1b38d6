package trace

import (
	"context"
	"fmt"
	"time"
)

// BeginRun inserts the run header.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - rerunning a begin for
// the same token is silently ignored.
func (j *Journal) BeginRun(ctx context.Context, run Run) error {
	shadow := 0
	if run.Shadow {
		shadow = 1
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(token, graph_name, graph_hash, engine_version, shadow, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		run.Token,
		run.GraphName,
		run.GraphHash,
		run.EngineVersion,
		shadow,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	return nil
}

// FinishRun stamps the run's stop time. The first stamp wins; finishing an
// already finished run is a no-op, and finishing an unknown token is not an
// error (the header write may have been lost with the database file).
func (j *Journal) FinishRun(ctx context.Context, token string, at time.Time) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET stopped_at = ?
		WHERE token = ? AND stopped_at IS NULL
	`,
		formatTime(at),
		token,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	return nil
}

// AppendStep inserts one committed state change.
// Uses ON CONFLICT DO NOTHING for idempotency - (run_token, seq) identifies
// the step, so a repeated append of the same step is silently ignored.
//
// Note: The run referenced by RunToken must exist (foreign key constraint).
func (j *Journal) AppendStep(ctx context.Context, step Step) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO steps
		(run_token, seq, at, kind, event, from_state, to_state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		step.RunToken,
		step.Seq,
		formatTime(step.At),
		step.Kind,
		step.Event,
		step.From,
		step.To,
	)
	if err != nil {
		return fmt.Errorf("append step: %w", err)
	}

	return nil
}

// AppendError inserts one recoverable simulation error.
// Uses ON CONFLICT DO NOTHING for idempotency, same identity rule as steps.
//
// Note: The run referenced by RunToken must exist (foreign key constraint).
func (j *Journal) AppendError(ctx context.Context, rec ErrorRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sim_errors
		(run_token, seq, at, code, message, state_id, event)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.RunToken,
		rec.Seq,
		formatTime(rec.At),
		rec.Code,
		rec.Message,
		rec.StateID,
		rec.Event,
	)
	if err != nil {
		return fmt.Errorf("append error: %w", err)
	}

	return nil
}
