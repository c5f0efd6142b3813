package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchTracker(t *testing.T) {
	tr := newBatchTracker("b1", 4)

	p := tr.Done("a.xlsx", false)
	assert.Equal(t, "b1", p.BatchID)
	assert.Equal(t, 1, p.Completed)
	assert.Equal(t, 0, p.Failed)
	assert.InDelta(t, 25.0, p.Percentage, 1e-9)
	assert.Equal(t, "a.xlsx", p.Last)

	tr.Done("b.xlsx", true)
	tr.Done("c.xlsx", false)
	p = tr.Done("d.xlsx", true)
	assert.Equal(t, 4, p.Completed)
	assert.Equal(t, 2, p.Failed)
	assert.InDelta(t, 100.0, p.Percentage, 1e-9)
	assert.Equal(t, "0 seconds", p.ETA)
	assert.Equal(t, 2, tr.Failed())
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 12, want: "12 seconds"},
		{in: 90, want: "1.5 minutes"},
		{in: 5400, want: "1.5 hours"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSeconds(tt.in))
	}
}
