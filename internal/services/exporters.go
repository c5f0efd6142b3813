package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/operations"
)

// ReportExporters returns the exporters run after each audit: the plain text
// listing and the dashboard CSV, both named after the input workbook and
// written into dir. A relative dir resolves under the reports directory.
func ReportExporters(csv *exporter.CSVWriter, dir string) []operations.Exporter {
	return []operations.Exporter{
		operations.ExporterFunc{
			Label: "text",
			Fn: func(ctx context.Context, a *operations.Audit) error {
				path := filepath.Join(csv.Dir(dir), reportStem(a.Input)+"_consolidated.txt")
				a.Outputs = append(a.Outputs, path)
				return writeFile(path, func(f *os.File) error {
					return exporter.WriteText(f, a.Consolidated.Values, exporter.ProgramOrder(a.Options.WithDefaults().Rules))
				})
			},
		},
		operations.ExporterFunc{
			Label: "dashboard",
			Fn: func(ctx context.Context, a *operations.Audit) error {
				path, err := csv.ExportDashboard(filepath.Join(dir, reportStem(a.Input)+"_dashboard.csv"),
					a.Info, a.Consolidated.Values, exporter.ProgramOrder(a.Options.WithDefaults().Rules))
				if err != nil {
					return err
				}
				a.Outputs = append(a.Outputs, path)
				return nil
			},
		},
	}
}

func reportStem(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeFile(path string, fn func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
