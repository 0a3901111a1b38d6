package trace

import (
	"context"
	"log/slog"
	"time"

	"github.com/protoboard/protoboard/internal/engine"
)

// Recorder adapts a Journal to the engine's recorder contract. Journal
// write failures are logged and swallowed: a broken trace file must never
// take the simulation down, and every write is idempotent so nothing is
// lost that a retry could have saved.
//
// Calls arrive on the engine's goroutines and use a short write timeout so
// a wedged filesystem cannot stall the loop indefinitely.
type Recorder struct {
	journal *Journal
	log     *slog.Logger
	timeout time.Duration
}

const writeTimeout = 5 * time.Second

// NewRecorder wraps a journal. A nil logger falls back to slog.Default().
func NewRecorder(j *Journal, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{journal: j, log: log, timeout: writeTimeout}
}

var _ engine.Recorder = (*Recorder)(nil)

func (r *Recorder) RunStarted(info engine.RunInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.journal.BeginRun(ctx, Run{
		Token:         info.Token,
		GraphName:     info.GraphName,
		GraphHash:     info.GraphHash,
		EngineVersion: info.EngineVersion,
		Shadow:        info.Shadow,
		StartedAt:     info.StartedAt,
	})
	if err != nil {
		r.log.Error("trace journal write failed", "op", "begin_run", "run", info.Token, "err", err)
	}
}

func (r *Recorder) Step(info engine.StepInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.journal.AppendStep(ctx, Step{
		RunToken: info.RunToken,
		Seq:      info.Seq,
		At:       info.At,
		Kind:     string(info.Kind),
		Event:    info.Event,
		From:     info.From,
		To:       info.To,
	})
	if err != nil {
		r.log.Error("trace journal write failed", "op", "append_step", "run", info.RunToken, "seq", info.Seq, "err", err)
	}
}

func (r *Recorder) RunError(info engine.ErrorInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.journal.AppendError(ctx, ErrorRecord{
		RunToken: info.RunToken,
		Seq:      info.Seq,
		At:       info.At,
		Code:     string(info.Code),
		Message:  info.Message,
		StateID:  info.StateID,
		Event:    info.Event,
	})
	if err != nil {
		r.log.Error("trace journal write failed", "op", "append_error", "run", info.RunToken, "seq", info.Seq, "err", err)
	}
}

func (r *Recorder) RunStopped(token string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.journal.FinishRun(ctx, token, at); err != nil {
		r.log.Error("trace journal write failed", "op", "finish_run", "run", token, "err", err)
	}
}
