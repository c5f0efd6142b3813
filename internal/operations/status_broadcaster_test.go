package operations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditSnapshots(ids ...string) []StepSnapshot {
	out := make([]StepSnapshot, len(ids))
	for i, id := range ids {
		out[i] = StepSnapshot{ID: id, Milestone: StepMilestones[id]}
	}
	return out
}

func TestStatusBroadcasterMilestones(t *testing.T) {
	hub := &recordingHub{}
	sb := NewStatusBroadcaster(hub, nil)
	defer sb.Stop()

	sb.CreateOperation("op", auditSnapshots(StepIDLoad, StepIDScan, StepIDBoundaries, StepIDExtract, StepIDConsolidate, StepIDExport))
	sb.StartOperation("op")

	tests := []struct {
		step string
		want int
	}{
		{StepIDLoad, 10},
		{StepIDScan, 30},
		{StepIDBoundaries, 40},
		{StepIDExtract, 60},
		{StepIDConsolidate, 80},
		{StepIDExport, 100},
	}
	for _, tt := range tests {
		sb.UpdateStepProgress("op", tt.step, 50, "working")
		sb.CompleteStep("op", tt.step, "done")
		snap, ok := sb.GetSnapshot("op")
		require.True(t, ok)
		assert.Equal(t, tt.want, snap.Progress, tt.step)
	}

	sb.CompleteOperation("op", "finished")
	snap, _ := sb.GetSnapshot("op")
	assert.Equal(t, "completed", snap.Status)
	assert.NotNil(t, snap.CompletedAt)

	events := hub.ofType(EventTypeSnapshot)
	require.NotEmpty(t, events)
	assert.Equal(t, "op", events[0].step)
	assert.IsType(t, &OperationSnapshot{}, events[0].payload)
}

func TestStatusBroadcasterAverageWithoutMilestones(t *testing.T) {
	sb := NewStatusBroadcaster(nil, nil)
	defer sb.Stop()

	sb.CreateOperation("op", []StepSnapshot{{ID: "a"}, {ID: "b"}})
	sb.UpdateStepProgress("op", "a", 100, "done")
	sb.UpdateStepProgress("op", "b", 50, "half")

	snap, _ := sb.GetSnapshot("op")
	assert.Equal(t, 75, snap.Progress)
	assert.Equal(t, "b", snap.CurrentStep)
}

func TestStatusBroadcasterStepProgressIsMonotonic(t *testing.T) {
	sb := NewStatusBroadcaster(nil, nil)
	defer sb.Stop()

	sb.CreateOperation("op", []StepSnapshot{{ID: "a", Name: "Step A"}})
	sb.UpdateStepProgress("op", "a", 60, "sixty")
	sb.UpdateStepProgress("op", "a", 20, "late event")

	snap, _ := sb.GetSnapshot("op")
	assert.Equal(t, 60, snap.Steps[0].Progress)
	assert.Equal(t, "late event", snap.Steps[0].Message)
	assert.Equal(t, "Step A", snap.CurrentStep)
}

func TestStatusBroadcasterUnknownStepIsAppended(t *testing.T) {
	sb := NewStatusBroadcaster(nil, nil)
	defer sb.Stop()

	sb.UpdateStepProgress("op", "extra", 150, "overflow")
	snap, ok := sb.GetSnapshot("op")
	require.True(t, ok)
	require.Len(t, snap.Steps, 1)
	assert.Equal(t, 100, snap.Steps[0].Progress)
	assert.Equal(t, "completed", snap.Steps[0].Status)
}

func TestStatusBroadcasterFailureAndCleanup(t *testing.T) {
	sb := NewStatusBroadcaster(nil, nil)
	defer sb.Stop()

	sb.CreateOperation("op", auditSnapshots(StepIDLoad, StepIDScan))
	sb.FailStep("op", StepIDLoad, errors.New("unreadable"))
	sb.SkipStep("op", StepIDScan, "Dependency load failed")
	sb.FailOperation("op", errors.New("unreadable"))

	snap, _ := sb.GetSnapshot("op")
	assert.Equal(t, "failed", snap.Status)
	assert.Equal(t, "unreadable", snap.Steps[0].Error)
	assert.Equal(t, "skipped", snap.Steps[1].Status)
	assert.Equal(t, 0, snap.Progress)

	assert.Equal(t, 0, sb.CleanupOldOperations(time.Hour))
	assert.Equal(t, 1, sb.CleanupOldOperations(-time.Second))
	assert.Empty(t, sb.GetAllSnapshots())
}

func TestStatusBroadcasterStopUnblocksUpdates(t *testing.T) {
	sb := NewStatusBroadcaster(nil, nil)
	sb.Stop()
	sb.Stop()

	done := make(chan struct{})
	go func() {
		sb.StartOperation("op")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update blocked after Stop")
	}
}
