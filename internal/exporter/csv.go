package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/config"
)

// DashboardHeaders is the header row of the dashboard CSV.
var DashboardHeaders = []string{"school_year", "location", "school_name", "program", "month", "age_band", "attendance"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes CSV files, resolving relative paths into the reports directory.
type CSVWriter struct {
	paths *config.Paths
}

func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures WriteCSV.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // lets Excel detect UTF-8
}

// WriteCSV writes a whole file, replacing any existing one, and returns the
// resolved path.
func (w *CSVWriter) WriteCSV(filePath string, opts WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	slog.Info("writing CSV file",
		slog.String("file_path", fullPath),
		slog.Int("record_count", len(opts.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if opts.BOMPrefix {
		if _, err := file.Write(utf8BOM); err != nil {
			return "", fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	if err := writeRecords(file, opts.Headers, opts.Records); err != nil {
		return "", err
	}
	return fullPath, file.Close()
}

// ExportDashboard writes the dashboard CSV for values to filePath.
func (w *CSVWriter) ExportDashboard(filePath string, info attendance.RunInfo, values attendance.Values, order []string) (string, error) {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   DashboardHeaders,
		Records:   DashboardRecords(info, values, order),
		BOMPrefix: true,
	})
}

// WriteDashboard streams the dashboard CSV to w without a BOM.
func WriteDashboard(w io.Writer, info attendance.RunInfo, values attendance.Values, order []string) error {
	return writeRecords(w, DashboardHeaders, DashboardRecords(info, values, order))
}

// DashboardRecords builds one record per key with a non-zero value.
func DashboardRecords(info attendance.RunInfo, values attendance.Values, order []string) [][]string {
	var records [][]string
	for _, k := range values.SortedKeys(order) {
		v := values[k]
		if v == 0 {
			continue
		}
		records = append(records, []string{
			info.SchoolYear,
			info.Location,
			info.SchoolName,
			k.Program,
			strconv.Itoa(k.Month),
			k.AgeBand,
			formatValue(v),
		})
	}
	return records
}

func writeRecords(w io.Writer, headers []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Dir resolves a directory the same way WriteCSV resolves file paths.
func (w *CSVWriter) Dir(dir string) string {
	return w.resolvePath(dir)
}

func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return w.paths.ReportPath(filePath)
}
