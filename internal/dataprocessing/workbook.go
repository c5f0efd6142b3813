package dataprocessing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// Workbook is a loaded input file.
type Workbook struct {
	Path      string           `json:"path"`
	SheetName string           `json:"sheet_name"`
	Sheet     attendance.Sheet `json:"-"`
	Digest    string           `json:"digest"`
	Columns   int              `json:"columns"`
	LoadedAt  time.Time        `json:"loaded_at"`
}

// Name is the file's base name.
func (w *Workbook) Name() string {
	return filepath.Base(w.Path)
}

// LoadWorkbook reads the workbook at path and records a SHA-256 digest of the
// file bytes alongside the sheet.
func LoadWorkbook(path, sheetName string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInputError(fmt.Sprintf("read workbook %s", path), err)
	}
	wb, err := ReadWorkbook(bytes.NewReader(data), sheetName)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path)
		}
		return nil, err
	}
	sum := sha256.Sum256(data)
	wb.Path = path
	wb.Digest = hex.EncodeToString(sum[:])
	return wb, nil
}

// ReadWorkbook parses a workbook from r. Path and Digest are left empty.
func ReadWorkbook(r io.Reader, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("open workbook", err)
	}
	defer f.Close()

	name, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("read sheet %q", name), err)
	}

	sheet := attendance.Sheet(rows)
	width := widest(sheet)
	logger := slog.Default().With(slog.String("component", "workbook_loader"))
	if need := attendance.DefaultLayout().Width(); width < need {
		logger.Warn("sheet is narrower than the attendance layout",
			slog.String("sheet", name),
			slog.Int("columns", width),
			slog.Int("required", need),
		)
	}
	logger.Debug("sheet loaded",
		slog.String("sheet", name),
		slog.Int("rows", sheet.Rows()),
		slog.Int("columns", width),
	)

	return &Workbook{
		SheetName: name,
		Sheet:     sheet,
		Columns:   width,
		LoadedAt:  time.Now(),
	}, nil
}

// SheetNames lists the sheets of the workbook at path in workbook order.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("open workbook", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func pickSheet(f *excelize.File, name string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", apperrors.NewParsingError("workbook has no sheets", nil)
	}
	if name == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == name {
			return s, nil
		}
	}
	return "", apperrors.NewNotFoundError(fmt.Sprintf("sheet %q", name)).
		WithContext("sheets", sheets)
}

func widest(s attendance.Sheet) int {
	w := 0
	for _, row := range s {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}
