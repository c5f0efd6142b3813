package attendance

// testSheet builds a sheet of n empty rows wide enough for the default layout.
type testSheet struct {
	Sheet
}

func newTestSheet(n int) *testSheet {
	s := make(Sheet, n)
	for i := range s {
		s[i] = make([]string, ValueColumn+1)
	}
	return &testSheet{Sheet: s}
}

func (t *testSheet) set(row, col int, v string) *testSheet {
	t.Sheet[row-1][col] = v
	return t
}

// program labels every row in [from, to] with name.
func (t *testSheet) program(name string, from, to int) *testSheet {
	for r := from; r <= to; r++ {
		t.set(r, ProgramColumn, name)
	}
	return t
}

// entry writes a month row.
func (t *testSheet) entry(row int, month, band, value string) *testSheet {
	t.set(row, MonthColumn, month)
	t.set(row, AgeBandColumn, band)
	t.set(row, ValueColumn, value)
	return t
}

func mappingName(code string) string {
	for _, m := range DefaultProgramMappings() {
		if m.Code == code {
			return m.Name
		}
	}
	return ""
}
