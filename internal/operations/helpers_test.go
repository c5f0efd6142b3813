package operations

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

type hubEvent struct {
	eventType string
	step      string
	status    string
	payload   interface{}
}

type recordingHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *recordingHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{eventType, step, status, metadata})
}

func (h *recordingHub) ofType(eventType string) []hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hubEvent
	for _, e := range h.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeStep runs fn and counts calls.
type fakeStep struct {
	BaseStep
	calls atomic.Int32
	fn    func(ctx context.Context, call int) error
}

func newFakeStep(id string, fn func(ctx context.Context, call int) error, deps ...string) *fakeStep {
	return &fakeStep{BaseStep: NewBaseStep(id, id, deps...), fn: fn}
}

func (s *fakeStep) Execute(ctx context.Context, _ *OperationState) error {
	n := int(s.calls.Add(1))
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, n)
}

func fastConfig() *Config {
	return NewConfigBuilder().
		WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}).
		Build()
}

func sampleWorkbook(t *testing.T) string {
	t.Helper()
	return testutil.WriteSampleWorkbook(t, t.TempDir(), "PrintMonthlyAttendanceSummaryTotals_1.xlsx")
}

func key(program string, month int, band string) attendance.Key {
	return attendance.Key{Program: program, Month: month, AgeBand: band}
}
