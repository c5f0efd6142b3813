package attendance

import "sort"

// MonthIndex maps a month number to the ascending rows whose month cell holds it.
type MonthIndex map[int][]int

// FindRowsByProgramName returns every row whose program column equals name exactly.
// No trimming or case folding is applied.
func FindRowsByProgramName(sheet Sheet, layout Layout, name string) []int {
	var rows []int
	for row := 1; row <= sheet.Rows(); row++ {
		if sheet.Cell(row, layout.ProgramColumn) == name {
			rows = append(rows, row)
		}
	}
	return rows
}

// FindRowsByMonthNumber returns every row whose month column parses to month.
// Empty and non-numeric cells are skipped.
func FindRowsByMonthNumber(sheet Sheet, layout Layout, month int) []int {
	var rows []int
	for row := 1; row <= sheet.Rows(); row++ {
		if n, ok := parseMonth(sheet.Cell(row, layout.MonthColumn)); ok && n == month {
			rows = append(rows, row)
		}
	}
	return rows
}

// ScanMonths builds a MonthIndex for months. Months without rows are left out, so
// the index keys are exactly the observed months.
func ScanMonths(sheet Sheet, layout Layout, months []int) MonthIndex {
	idx := make(MonthIndex)
	for _, m := range months {
		if rows := FindRowsByMonthNumber(sheet, layout, m); len(rows) > 0 {
			idx[m] = rows
		}
	}
	return idx
}

// ObservedMonths returns the months present in the index in ascending order.
func ObservedMonths(idx MonthIndex) []int {
	months := make([]int, 0, len(idx))
	for m, rows := range idx {
		if len(rows) > 0 {
			months = append(months, m)
		}
	}
	sort.Ints(months)
	return months
}
