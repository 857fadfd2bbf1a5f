package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/empenhos/internal/logging"
	"github.com/JonMunkholm/empenhos/internal/source"
)

// Runner drives a RowProcessor over every row of a source.
type Runner struct {
	proc *RowProcessor
	opts Options
}

// NewRunner creates a runner. Only Workers, DryRun and ProgressEvery are read
// from opts; the processor carries its own copy for row behaviour.
func NewRunner(proc *RowProcessor, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	return &Runner{proc: proc, opts: opts}
}

// Run imports every row of src and returns the run summary.
//
// A failed row never stops the run. The returned error is non-nil only when
// the source itself breaks or ctx is cancelled; the summary is always
// returned and covers the rows attempted so far.
func (r *Runner) Run(ctx context.Context, src source.Reader) (*Summary, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.FromContext(ctx)

	start := time.Now()
	summary := newSummary(runID, r.opts.DryRun)

	log.Info("import started",
		"tables", r.proc.Spec().Len(),
		"workers", r.opts.Workers,
		"dry_run", r.opts.DryRun,
	)
	for _, m := range ValidateHeaders(src.Header(), r.proc.Spec()) {
		log.Warn("mapped field not in source header, reading it as null",
			"field", m.Field,
			"tables", m.Tables,
		)
	}

	var mu sync.Mutex
	record := func(res RowResult) {
		mu.Lock()
		defer mu.Unlock()

		summary.record(res)
		if res.Failed() {
			logging.WithFields(ctx, "row", res.Ordinal, "line", res.Line).Warn("row failed",
				"table", res.Table,
				"kind", res.Kind,
				"code", res.Code,
				"error", res.Err,
			)
		}
		if summary.Total%r.opts.ProgressEvery == 0 {
			log.Info("import progress",
				"rows", summary.Total,
				"imported", summary.Imported,
				"failed", summary.Failed,
			)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var readErr *source.ReadError
			if errors.As(err, &readErr) {
				record(RowResult{
					Ordinal: row.Ordinal,
					Line:    readErr.Line,
					Status:  StatusFailed,
					Kind:    KindSource,
					Code:    MapError(err).Code,
					Err:     &RowError{Ordinal: row.Ordinal, Line: readErr.Line, Err: err},
				})
				continue
			}
			runErr = fmt.Errorf("read source: %w", err)
			break
		}

		g.Go(func() error {
			record(r.proc.Process(ctx, row))
			return nil
		})
	}
	_ = g.Wait()

	summary.sortFailures()
	summary.Duration = time.Since(start)

	log.Info("import finished",
		"total", summary.Total,
		"imported", summary.Imported,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration_ms", summary.Duration.Milliseconds(),
		"dry_run", summary.DryRun,
	)

	if runErr == nil {
		runErr = ctx.Err()
	}
	return summary, runErr
}
