// Package attendance implements the ADA attendance engine: locating each program's row
// block inside a monthly attendance summary export, repairing overlapping blocks,
// extracting per-cell attendance values and rolling satellite sites up into their
// parent programs.
//
// # Pipeline
//
// The engine is four pure stages:
//
//	Sheet → Row Scanner → Boundary Resolver → Extractor → Consolidator → Values
//
// The Row Scanner finds rows by exact program name (column B) and by month number
// (column C). The Boundary Resolver reduces matched rows to an inclusive [start, stop]
// span per program and then applies an ordered list of RepairRule values. The Extractor
// reads the age band (column E) and the attendance value (column AJ) of every month row
// that falls inside a span. The Consolidator sums child programs into parents for every
// observed month and age band.
//
// # Usage
//
//	result, err := attendance.Audit(sheet, attendance.Options{})
//	if err != nil {
//	    return err
//	}
//	for label, v := range result.Consolidated.Values.Labels() {
//	    fmt.Println(label, v)
//	}
//
// Row numbers are 1-based everywhere; column indexes in Layout are 0-based.
//
// Nothing in this package performs I/O or logs. Workbook loading lives in
// internal/dataprocessing and report writing in internal/exporter.
package attendance
