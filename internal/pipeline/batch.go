package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zgr-ai/sow-cli/internal/model"
)

// RunBatch processes notices concurrently with a bounded worker count.
// Notices are fully isolated: one notice's failure, including a fatal
// persist failure, never aborts the others. Results come back in input
// order.
func (p *Pipeline) RunBatch(ctx context.Context, noticeIDs []string, workers int) []*model.RunResult {
	if workers <= 0 {
		workers = p.cfg.Pipeline.MaxConcurrentNotices
	}
	if workers <= 0 {
		workers = 1
	}

	zap.L().Info("pipeline: starting batch",
		zap.Int("notices", len(noticeIDs)),
		zap.Int("workers", workers))

	results := make([]*model.RunResult, len(noticeIDs))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, id := range noticeIDs {
		g.Go(func() error {
			res := p.Run(gCtx, id)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; per-notice failures live in the results.
	_ = g.Wait()

	var done, partial, failed int
	for _, r := range results {
		switch r.Status {
		case model.RunStatusDone:
			done++
		case model.RunStatusPartial:
			partial++
		case model.RunStatusFailed:
			failed++
		}
	}
	zap.L().Info("pipeline: batch finished",
		zap.Int("done", done),
		zap.Int("partial", partial),
		zap.Int("failed", failed))
	return results
}
