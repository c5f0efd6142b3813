package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// ADARow is one line of an attendance export fixture.
type ADARow struct {
	Program string
	Month   interface{}
	Band    string
	Value   interface{}
}

// Sample program names, matching the default mappings.
const (
	ProgramC   = "Program C Charter Resident"
	ProgramCTK = "Program C Charter Resident -  Transitional Kindergarten(TK)"
	ProgramCCM = "Program C Charter Resident -  McClellan(CM)"
	ProgramN   = "Program N Non-Resident Charter"
)

// SampleADARows is a small export laid out like the real one. Written with
// WriteADAWorkbook the header lands on row 1 and the blocks resolve to
// Prog_C 2-4, Prog_C_TK 5, Prog_N 6-7 and Prog_C_CM 8. Months 1 and 2 are
// observed and the consolidated values are:
//
//	Prog_C_Month_1_TK-3    10
//	Prog_C_Month_1_4-6     25  (Prog_C 20 + Prog_C_CM 5)
//	Prog_C_Month_2_4-6     30
//	Prog_C_TK_Month_1_TK-3 7
//	Prog_N_Month_1_7-8     3
//	Prog_N_Month_2_9-12    4.5
func SampleADARows() []ADARow {
	return []ADARow{
		{Program: "Program", Month: "Month", Band: "Grade Span", Value: "ADA"},
		{Program: ProgramC, Month: 1, Band: "TK-3", Value: 10},
		{Program: ProgramC, Month: 1, Band: "4-6", Value: 20},
		{Program: ProgramC, Month: 2, Band: "4-6", Value: 30},
		{Program: ProgramCTK, Month: 1, Band: "TK-3", Value: 7},
		{Program: ProgramN, Month: 1, Band: "7-8", Value: 3},
		{Program: ProgramN, Month: 2, Band: "9-12", Value: 4.5},
		{Program: ProgramCCM, Month: 1, Band: "4-6", Value: 5},
	}
}

// WriteADAWorkbook writes rows into dir/name starting at row 1 and returns the
// path. Columns follow the default layout: B program, C month, E band, AJ value.
func WriteADAWorkbook(t *testing.T, dir, name, sheet string, rows []ADARow) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != f.GetSheetName(0) {
		require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	}

	for i, r := range rows {
		n := i + 1
		set := func(col string, v interface{}) {
			if v == nil {
				return
			}
			cell, err := excelize.JoinCellName(col, n)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
		set("B", r.Program)
		set("C", r.Month)
		set("E", r.Band)
		set("AJ", r.Value)
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// WriteSampleWorkbook writes SampleADARows to dir/name.
func WriteSampleWorkbook(t *testing.T, dir, name string) string {
	t.Helper()
	return WriteADAWorkbook(t, dir, name, "", SampleADARows())
}
