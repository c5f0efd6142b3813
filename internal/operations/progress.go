package operations

import (
	"fmt"
	"sync"
	"time"
)

// batchTracker counts finished workbooks of one batch. Done is called from the
// batch goroutines.
type batchTracker struct {
	mu      sync.Mutex
	id      string
	total   int
	done    int
	failed  int
	started time.Time
}

func newBatchTracker(id string, total int) *batchTracker {
	return &batchTracker{id: id, total: total, started: time.Now()}
}

// Done records one finished workbook and returns the progress after it.
func (b *batchTracker) Done(name string, failed bool) BatchProgress {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	if failed {
		b.failed++
	}
	p := BatchProgress{
		BatchID:   b.id,
		Completed: b.done,
		Failed:    b.failed,
		Total:     b.total,
		ETA:       b.etaLocked(),
		Last:      name,
	}
	if b.total > 0 {
		p.Percentage = float64(b.done) / float64(b.total) * 100
	}
	return p
}

// Failed returns the number of failed workbooks so far.
func (b *batchTracker) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failed
}

// Elapsed formats the time since the batch started.
func (b *batchTracker) Elapsed() string {
	return formatSeconds(time.Since(b.started).Seconds())
}

// etaLocked extrapolates the remaining time from the mean time per workbook.
func (b *batchTracker) etaLocked() string {
	if b.done >= b.total {
		return formatSeconds(0)
	}
	if b.done == 0 {
		return "calculating..."
	}
	perItem := time.Since(b.started).Seconds() / float64(b.done)
	return formatSeconds(perItem * float64(b.total-b.done))
}

func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.0f seconds", s)
	case s < 3600:
		return fmt.Sprintf("%.1f minutes", s/60)
	default:
		return fmt.Sprintf("%.1f hours", s/3600)
	}
}
