package profiles

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apperrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// ExportVersion is written into every export document.
const ExportVersion = "1.0"

// Export is the document written by WriteExport.
type Export struct {
	ExportedDate string                `json:"exported_date"`
	Boundaries   attendance.Boundaries `json:"program_boundaries"`
	Mappings     map[string]string     `json:"program_mappings"`
	Info         ExportInfo            `json:"export_info"`
}

// ExportInfo describes where an export came from.
type ExportInfo struct {
	Version     string `json:"version"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

// WriteExport writes boundaries and mappings as an export document.
func WriteExport(w io.Writer, b attendance.Boundaries, mappings []attendance.ProgramMapping, source string) error {
	if !b.Any() {
		return apperrors.NewValidationError("no boundary data to export")
	}
	doc := Export{
		ExportedDate: time.Now().UTC().Format(time.RFC3339),
		Boundaries:   b,
		Mappings:     attendance.NamesFromMappings(mappings),
		Info: ExportInfo{
			Version:     ExportVersion,
			Source:      source,
			Description: "Program boundary settings export",
		},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadExport parses an export document. program_boundaries is required;
// mappings are optional.
func ReadExport(r io.Reader) (Export, error) {
	var raw struct {
		Export
		Boundaries *attendance.Boundaries `json:"program_boundaries"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Export{}, apperrors.NewParsingError("decode boundary export", err)
	}
	if raw.Boundaries == nil {
		return Export{}, apperrors.NewValidationError("invalid settings file format: missing program_boundaries")
	}
	out := raw.Export
	out.Boundaries = *raw.Boundaries
	return out, nil
}

// ProgramMappings returns the export's mappings in extraction order.
func (e Export) ProgramMappings() []attendance.ProgramMapping {
	if len(e.Mappings) == 0 {
		return nil
	}
	return attendance.MappingsFromNames(e.Mappings)
}

// String summarizes the export for logs.
func (e Export) String() string {
	return fmt.Sprintf("export v%s from %s (%d programs)", e.Info.Version, e.Info.Source, len(e.Boundaries))
}
