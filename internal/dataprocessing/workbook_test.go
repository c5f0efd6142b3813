package dataprocessing

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

func TestLoadWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteSampleWorkbook(t, dir, "PrintMonthlyAttendanceSummaryTotals_0925.xlsx")

	wb, err := LoadWorkbook(path, "")
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", wb.SheetName)
	assert.Equal(t, "PrintMonthlyAttendanceSummaryTotals_0925.xlsx", wb.Name())
	assert.Equal(t, 8, wb.Sheet.Rows())
	assert.Equal(t, attendance.ValueColumn+1, wb.Columns)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), wb.Digest)

	assert.Equal(t, testutil.ProgramC, wb.Sheet.Cell(2, attendance.ProgramColumn))
	assert.Equal(t, "1", wb.Sheet.Cell(2, attendance.MonthColumn))
	assert.Equal(t, "TK-3", wb.Sheet.Cell(2, attendance.AgeBandColumn))
	assert.Equal(t, "4.5", wb.Sheet.Cell(7, attendance.ValueColumn))
}

func TestLoadWorkbook_FeedsAudit(t *testing.T) {
	path := testutil.WriteSampleWorkbook(t, t.TempDir(), "ada.xlsx")

	wb, err := LoadWorkbook(path, "")
	require.NoError(t, err)

	result, err := attendance.Audit(wb.Sheet, attendance.Options{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, result.Months)
	labels := result.Consolidated.Values.Labels()
	assert.Equal(t, 25.0, labels["Prog_C_Month_1_4-6: "])
	assert.Equal(t, 4.5, labels["Prog_N_Month_2_9-12: "])
	assert.Len(t, labels, 8*2*4)
}

func TestLoadWorkbook_NamedSheet(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteADAWorkbook(t, dir, "named.xlsx", "Totals", testutil.SampleADARows())

	wb, err := LoadWorkbook(path, "Totals")
	require.NoError(t, err)
	assert.Equal(t, "Totals", wb.SheetName)

	_, err = LoadWorkbook(path, "Missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestLoadWorkbook_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadWorkbook(filepath.Join(dir, "absent.xlsx"), "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInput))
	assert.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(dir, "junk.xlsx")
	require.NoError(t, os.WriteFile(junk, []byte("not a workbook"), 0o644))
	_, err = LoadWorkbook(junk, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestSheetNames(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("Second")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "two.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	names, err := SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Second"}, names)
}
