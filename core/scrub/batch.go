package scrub

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
)

// Batch processes paths with at most opts.Workers files in flight and
// returns results in input order. Files not started before ctx is canceled
// are reported as skipped. All results share one history run id.
func (e *Engine) Batch(ctx context.Context, paths []string, mode Mode, opts Options) []core.Result {
	results := make([]core.Result, len(paths))
	if len(paths) == 0 {
		return results
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(paths))

	runID := uuid.NewString()
	e.logger.Info("batch started", "run_id", runID, "files", len(paths), "workers", workers, "mode", mode.String())

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.process(ctx, runID, paths[i], mode, opts)
			}
		}()
	}

	next := 0
feed:
	for ; next < len(paths); next++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(paths); i++ {
		results[i] = e.process(ctx, runID, paths[i], mode, opts)
	}

	s := core.Summarize(results)
	e.logger.Info("batch finished",
		"run_id", runID,
		"succeeded", s.Succeeded,
		"previewed", s.Previewed,
		"skipped", s.Skipped,
		"failed", s.Failed,
	)
	return results
}
