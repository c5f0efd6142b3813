// Package dataprocessing turns ADA attendance workbooks on disk into the
// in-memory grid the attendance package works on.
//
//	wb, err := dataprocessing.LoadWorkbook("PrintMonthlyAttendanceSummaryTotals_0925.xlsx", "")
//	if err != nil {
//	    return err
//	}
//	result, err := attendance.Audit(wb.Sheet, attendance.Options{})
//
// Cells are read with their raw values so numeric month and attendance cells
// are not affected by the workbook's display formats. When no sheet name is
// given the first sheet is used.
package dataprocessing
