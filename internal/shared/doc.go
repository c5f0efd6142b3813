// Package shared holds helpers used by more than one layer of the audit
// service. It carries no domain logic.
//
// The testutil subpackage captures slog output so tests can assert on what
// a component logged, and writes small attendance exports with excelize:
//
//	logger, logs := testutil.NewTestLogger(t)
//	input := testutil.WriteSampleWorkbook(t, t.TempDir(), "ADA.xlsx")
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "workbook ready for review")
package shared
