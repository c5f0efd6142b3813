package attendance

import (
	"math"
	"strconv"
	"strings"
)

// Sheet is a read-only grid of cell text as loaded from a workbook. Rows may be ragged.
type Sheet [][]string

// Rows returns the number of rows in the sheet.
func (s Sheet) Rows() int {
	return len(s)
}

// Cell returns the text at a 1-based row and 0-based column, or "" when the
// coordinate lies outside the sheet.
func (s Sheet) Cell(row, col int) string {
	if row < 1 || row > len(s) || col < 0 {
		return ""
	}
	r := s[row-1]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// parseMonth converts a month cell to an integer. Spreadsheet numeric cells often
// come through as "5.0", so integral floats are accepted.
func parseMonth(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(cell); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// parseValue converts an attendance cell to a float. Thousands separators are
// tolerated and unparseable cells read as 0.
func parseValue(cell string) float64 {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cell == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0
	}
	return v
}
