package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindRowsByProgramName(t *testing.T) {
	s := newTestSheet(8).
		program("Program C Charter Resident", 2, 3).
		set(5, ProgramColumn, "Program C Charter Resident ").
		set(6, ProgramColumn, "program c charter resident").
		set(7, ProgramColumn, "Program C Charter Resident")

	rows := FindRowsByProgramName(s.Sheet, DefaultLayout(), "Program C Charter Resident")
	assert.Equal(t, []int{2, 3, 7}, rows)
	assert.Empty(t, FindRowsByProgramName(s.Sheet, DefaultLayout(), "Program Z"))
}

func TestFindRowsByMonthNumber(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		month int
		want  []int
	}{
		{name: "integers", cells: []string{"5", "6", "5"}, month: 5, want: []int{1, 3}},
		{name: "integral floats", cells: []string{"5.0", " 5 ", "5.5"}, month: 5, want: []int{1, 2}},
		{name: "text and blanks skipped", cells: []string{"", "Month", "n/a", "9"}, month: 9, want: []int{4}},
		{name: "no match", cells: []string{"1", "2"}, month: 12, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSheet(len(tt.cells))
			for i, c := range tt.cells {
				s.set(i+1, MonthColumn, c)
			}
			assert.Equal(t, tt.want, FindRowsByMonthNumber(s.Sheet, DefaultLayout(), tt.month))
		})
	}
}

func TestScanMonthsKeepsObservedOnly(t *testing.T) {
	s := newTestSheet(4).
		set(1, MonthColumn, "8").
		set(2, MonthColumn, "10").
		set(4, MonthColumn, "8")

	idx := ScanMonths(s.Sheet, DefaultLayout(), Months)
	assert.Equal(t, MonthIndex{8: {1, 4}, 10: {2}}, idx)
	assert.Equal(t, []int{8, 10}, ObservedMonths(idx))
}

func TestSheetCellOutOfRange(t *testing.T) {
	s := Sheet{{"a", "b"}, {"c"}}
	assert.Equal(t, "b", s.Cell(1, 1))
	assert.Equal(t, "", s.Cell(2, 1))
	assert.Equal(t, "", s.Cell(0, 0))
	assert.Equal(t, "", s.Cell(3, 0))
	assert.Equal(t, "", s.Cell(1, -1))
}
