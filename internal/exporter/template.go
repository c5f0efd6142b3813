package exporter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// DefaultWorksheet is the apportionment sheet of the reconciliation workbook.
const DefaultWorksheet = "Template- Apportionment Summary"

// TemplateResult reports what WriteTemplate did.
type TemplateResult struct {
	Path      string `json:"path"`
	Worksheet string `json:"worksheet"`
	Written   int    `json:"written"`
	Appended  int    `json:"appended"`
}

// WriteTemplate fills the worksheet of the workbook at path. Each cell whose
// trimmed text is a key's label, with or without the trailing ": ", receives
// the value in the cell to its right. Keys with no label cell are appended as
// label/value pairs in columns A and B below the last used row. The workbook
// and worksheet are created when missing.
func WriteTemplate(path, worksheet string, values attendance.Values, order []string) (TemplateResult, error) {
	if worksheet == "" {
		worksheet = DefaultWorksheet
	}
	res := TemplateResult{Path: path, Worksheet: worksheet}

	f, err := openOrCreate(path, worksheet)
	if err != nil {
		return res, err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(worksheet); idx < 0 {
		if _, err := f.NewSheet(worksheet); err != nil {
			return res, apperrors.NewStorageError("create worksheet", err)
		}
	}

	byField := make(map[string]attendance.Key, len(values))
	for k := range values {
		byField[k.Field()] = k
	}

	rows, err := f.GetRows(worksheet)
	if err != nil {
		return res, apperrors.NewParsingError(fmt.Sprintf("read worksheet %q", worksheet), err)
	}

	found := make(map[attendance.Key]bool, len(values))
	for r, row := range rows {
		for c, text := range row {
			key, ok := byField[labelField(text)]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+2, r+1)
			if err != nil {
				return res, apperrors.NewStorageError("address cell", err)
			}
			if err := f.SetCellValue(worksheet, cell, values[key]); err != nil {
				return res, apperrors.NewStorageError("write cell", err).WithContext("cell", cell)
			}
			found[key] = true
			res.Written++
		}
	}

	next := len(rows) + 1
	for _, k := range values.SortedKeys(order) {
		if found[k] {
			continue
		}
		if err := f.SetSheetRow(worksheet, fmt.Sprintf("A%d", next), &[]interface{}{k.Label(), values[k]}); err != nil {
			return res, apperrors.NewStorageError("append label", err)
		}
		next++
		res.Appended++
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, apperrors.NewStorageError("create output directory", err)
	}
	if err := f.SaveAs(path); err != nil {
		return res, apperrors.NewStorageError("save workbook", err)
	}

	slog.Info("template written",
		slog.String("path", path),
		slog.String("worksheet", worksheet),
		slog.Int("written", res.Written),
		slog.Int("appended", res.Appended),
	)
	return res, nil
}

// labelField normalizes a cell's text to a key field such as
// "Prog_C_Month_3_4-6".
func labelField(text string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ":"))
}

func openOrCreate(path, worksheet string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NewParsingError("open output workbook", err)
	}
	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), worksheet); err != nil {
		f.Close()
		return nil, apperrors.NewStorageError("name worksheet", err)
	}
	return f, nil
}
