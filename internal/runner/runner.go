// Package runner orchestrates one download run end to end: it filters the
// edition stream against the ledger, drives the worker pool, and reports
// the final summary.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vfrank66/lucas-download/internal/diario"
	"github.com/vfrank66/lucas-download/internal/ledger"
	"github.com/vfrank66/lucas-download/internal/pool"
	"github.com/vfrank66/lucas-download/internal/progress"
)

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// Runner owns the ledger and pool lifecycles for a single run. Running the
// same range repeatedly is safe: completed editions are skipped before they
// ever occupy a worker, and a fully-complete range terminates without any
// network traffic.
type Runner struct {
	led     ledger.Ledger
	pool    *pool.Pool
	emitter progress.Emitter
	ids     IDGenerator
	clock   Clock
	logger  *zap.Logger
}

// New builds a Runner.
func New(
	led ledger.Ledger,
	p *pool.Pool,
	emitter progress.Emitter,
	ids IDGenerator,
	clock Clock,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{led: led, pool: p, emitter: emitter, ids: ids, clock: clock, logger: logger}
}

// Run drains src through the pool and returns the summary. The ledger is
// flushed and closed before the summary is reported, so a clean shutdown
// never loses completions. Per-item failures are reflected in the summary,
// not in the returned error; the error is reserved for setup and ledger
// flush failures.
func (r *Runner) Run(ctx context.Context, src pool.Source) (pool.Summary, error) {
	rawID, err := r.ids.NewRawID()
	if err != nil {
		return pool.Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	runID := progress.UUIDToBytes(rawID)

	start := r.clock.Now()
	r.logger.Info("run starting",
		zap.String("run_id", rawID.String()),
		zap.Int("already_completed", r.led.Len()))
	if r.emitter != nil {
		r.emitter.Emit(progress.Event{RunID: runID, TS: start, Stage: progress.StageRunStart})
	}

	filtered := &ledgerFilter{src: src, led: r.led}
	sum := r.pool.Run(ctx, runID, filtered)
	sum.AlreadyDone += filtered.already
	// Dates the archive is known to have no edition for are skipped without
	// a probe but still reported as not found.
	sum.NotFound += filtered.missing
	sum.Elapsed = r.clock.Now().Sub(start)

	// Flush completions even when the run was canceled mid-stream.
	if err := r.led.Close(context.WithoutCancel(ctx)); err != nil {
		return sum, fmt.Errorf("close ledger: %w", err)
	}

	if r.emitter != nil {
		r.emitter.Emit(progress.Event{
			RunID: runID,
			TS:    r.clock.Now(),
			Stage: progress.StageRunDone,
			Dur:   sum.Elapsed,
			Note:  sum.String(),
		})
	}
	r.logger.Info("run finished",
		zap.String("run_id", rawID.String()),
		zap.Int("success", sum.Success),
		zap.Int("already_done", sum.AlreadyDone),
		zap.Int("not_found", sum.NotFound),
		zap.Int("failed", sum.Failed),
		zap.Int("canceled", sum.Canceled),
		zap.Int64("bytes", sum.Bytes),
		zap.Duration("elapsed", sum.Elapsed))
	return sum, nil
}

// ledgerFilter skips editions the ledger already accounts for, so completed
// work never occupies a worker slot.
type ledgerFilter struct {
	src     pool.Source
	led     ledger.Ledger
	already int
	missing int
}

func (f *ledgerFilter) Next() (diario.Edition, bool) {
	for {
		ed, ok := f.src.Next()
		if !ok {
			return diario.Edition{}, false
		}
		key := ed.Key()
		if f.led.Contains(key) {
			f.already++
			continue
		}
		if f.led.IsMissing(key) {
			f.missing++
			continue
		}
		return ed, true
	}
}
