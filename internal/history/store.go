package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/config"
)

// Run status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultLimit caps List when the caller passes a non-positive limit.
const DefaultLimit = 50

// Run is one audit run as recorded in history.
type Run struct {
	ID                string    `json:"id" db:"id"`
	InputFile         string    `json:"input_file" db:"input_file"`
	Digest            string    `json:"digest" db:"digest"`
	SchoolYear        string    `json:"school_year" db:"school_year"`
	Location          string    `json:"location" db:"location"`
	SchoolName        string    `json:"school_name" db:"school_name"`
	Months            []int     `json:"months" db:"-"`
	RawCount          int       `json:"raw_count" db:"raw_count"`
	ConsolidatedCount int       `json:"consolidated_count" db:"consolidated_count"`
	Total             float64   `json:"total" db:"total"`
	Status            string    `json:"status" db:"status"`
	Error             string    `json:"error,omitempty" db:"error"`
	StartedAt         time.Time `json:"started_at" db:"started_at"`
	FinishedAt        time.Time `json:"finished_at" db:"finished_at"`
}

// Duration is the wall time the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists audit runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	// List returns runs newest first.
	List(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// MemoryStore keeps up to max runs in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []Run
	max  int
}

// NewMemoryStore creates a store holding at most max runs. max <= 0 means 500.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 500
	}
	return &MemoryStore{max: max}
}

// Record appends a run, evicting the oldest once full.
func (s *MemoryStore) Record(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run.Months = append([]int(nil), run.Months...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	if len(s.runs) > s.max {
		s.runs = s.runs[len(s.runs)-s.max:]
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	out := make([]Run, len(s.runs))
	copy(out, s.runs)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Open picks the store described by cfg: SQL when a DSN is set, memory otherwise.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Info("run history kept in memory")
		}
		return NewMemoryStore(0), nil
	}
	store, err := NewSQLStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("run history backed by database", slog.String("driver", store.Driver()))
	}
	return store, nil
}
