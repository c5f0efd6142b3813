package operations

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one workbook in a batch.
type BatchResult struct {
	Path     string               `json:"path"`
	RunID    string               `json:"run_id"`
	Status   OperationStatusValue `json:"status"`
	Duration time.Duration        `json:"duration"`
	Error    string               `json:"error,omitempty"`
	Audit    *Audit               `json:"-"`
	Err      error                `json:"-"`
}

// BatchProgress is broadcast as each workbook finishes.
type BatchProgress struct {
	BatchID    string  `json:"batch_id"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	ETA        string  `json:"eta"`
	Last       string  `json:"last"`
}

// RunBatch audits every path with at most Config.BatchConcurrency runs at once.
// seed builds the starting audit for a path; nil seeds only the input. A failing
// workbook does not stop the others. Results keep the order of paths, and the
// returned error is non-nil only when ctx ends.
func (m *Manager) RunBatch(ctx context.Context, paths []string, seed func(path string) *Audit) ([]BatchResult, error) {
	batchID := uuid.NewString()
	results := make([]BatchResult, len(paths))
	tracker := newBatchTracker(batchID, len(paths))

	limit := m.config.BatchConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	m.logger.InfoContext(ctx, "batch_start",
		slog.String("batch_id", batchID),
		slog.Int("workbooks", len(paths)),
		slog.Int("concurrency", limit))

	for i, path := range paths {
		g.Go(func() error {
			audit := &Audit{Input: path}
			if seed != nil {
				if a := seed(path); a != nil {
					audit = a
					audit.Input = path
				}
			}

			resp, err := m.Execute(gctx, OperationRequest{Audit: audit})
			res := BatchResult{Path: path, Audit: audit, Err: err}
			if resp != nil {
				res.RunID = resp.ID
				res.Status = resp.Status
				res.Duration = resp.Duration
			}
			if err != nil {
				res.Error = err.Error()
			}
			results[i] = res

			m.broadcastBatch(tracker.Done(filepath.Base(path), err != nil))
			return nil
		})
	}

	_ = g.Wait()
	m.logger.InfoContext(ctx, "batch_complete",
		slog.String("batch_id", batchID),
		slog.Int("failed", tracker.Failed()),
		slog.String("elapsed", tracker.Elapsed()))
	return results, ctx.Err()
}

func (m *Manager) broadcastBatch(p BatchProgress) {
	if m.hub == nil {
		return
	}
	status := "running"
	if p.Completed >= p.Total {
		status = "completed"
	}
	m.hub.BroadcastUpdate(EventTypeBatch, p.BatchID, status, p)
}
