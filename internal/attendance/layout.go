package attendance

// Column indexes of the monthly attendance summary export.
const (
	ProgramColumn = 1  // B
	MonthColumn   = 2  // C
	AgeBandColumn = 4  // E
	ValueColumn   = 35 // AJ
)

// Layout names the 0-based columns the engine reads.
type Layout struct {
	ProgramColumn int `json:"program_column" yaml:"program_column"`
	MonthColumn   int `json:"month_column" yaml:"month_column"`
	AgeBandColumn int `json:"age_band_column" yaml:"age_band_column"`
	ValueColumn   int `json:"value_column" yaml:"value_column"`
}

// DefaultLayout returns the layout of the attendance summary export.
func DefaultLayout() Layout {
	return Layout{
		ProgramColumn: ProgramColumn,
		MonthColumn:   MonthColumn,
		AgeBandColumn: AgeBandColumn,
		ValueColumn:   ValueColumn,
	}
}

// IsZero reports whether no column was configured.
func (l Layout) IsZero() bool {
	return l == Layout{}
}

// Width is the minimum row width needed to read every configured column.
func (l Layout) Width() int {
	w := l.ProgramColumn
	for _, c := range []int{l.MonthColumn, l.AgeBandColumn, l.ValueColumn} {
		if c > w {
			w = c
		}
	}
	return w + 1
}
