package attendance

import "sort"

// Program codes of the reference attendance export.
const (
	ProgC    = "Prog_C"
	ProgCTK  = "Prog_C_TK"
	ProgCCM  = "Prog_C_CM"
	ProgCSYC = "Prog_C_SYC"
	ProgN    = "Prog_N"
	ProgNTK  = "Prog_N_TK"
	ProgNCM  = "Prog_N_CM"
	ProgNSYC = "Prog_N_SYC"
	ProgJ    = "Prog_J"
	ProgJTK  = "Prog_J_TK"
	ProgK    = "Prog_K"
	ProgKTK  = "Prog_K_TK"
)

// AgeBands lists the reported age groupings in output order.
var AgeBands = []string{"TK-3", "4-6", "7-8", "9-12"}

// Months lists every calendar month the export can contain.
var Months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

// ProgramMapping ties the program name printed in the sheet to its short code.
type ProgramMapping struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
}

// DefaultProgramMappings returns the reference mappings. Slice order is the
// tie-break order used during extraction.
func DefaultProgramMappings() []ProgramMapping {
	return []ProgramMapping{
		{Name: "Program C Charter Resident", Code: ProgC},
		{Name: "Program C Charter Resident -  Transitional Kindergarten(TK)", Code: ProgCTK},
		{Name: "Program C Charter Resident -  McClellan(CM)", Code: ProgCCM},
		{Name: "Program C Charter Resident -  Sac Youth Center(SYC)", Code: ProgCSYC},
		{Name: "Program N Non-Resident Charter", Code: ProgN},
		{Name: "Program N Non-Resident Charter -  Transitional Kindergarten(TK)", Code: ProgNTK},
		{Name: "Program N Non-Resident Charter -  McClellan(CM)", Code: ProgNCM},
		{Name: "Program N Non-Resident Charter -  Sac Youth Center(SYC)", Code: ProgNSYC},
		{Name: "Program J Indep Study Charter Resident", Code: ProgJ},
		{Name: "Program J Indep Study Charter Non-Resident -  Transitional Kindergarten(TK)", Code: ProgJTK},
		{Name: "Program K Indep Study Charter Non-Resident", Code: ProgK},
		{Name: "Program K Indep Study Charter Non-Resident -  Transitional Kindergarten(TK)", Code: ProgKTK},
	}
}

// MappingsFromNames builds mappings from a name→code table, as stored in saved
// boundary profiles. Entries follow the order of the defaults first, then any
// additional names sorted by code.
func MappingsFromNames(byName map[string]string) []ProgramMapping {
	out := make([]ProgramMapping, 0, len(byName))
	seen := make(map[string]bool, len(byName))
	for _, m := range DefaultProgramMappings() {
		if code, ok := byName[m.Name]; ok {
			out = append(out, ProgramMapping{Name: m.Name, Code: code})
			seen[m.Name] = true
		}
	}
	var extra []ProgramMapping
	for name, code := range byName {
		if !seen[name] {
			extra = append(extra, ProgramMapping{Name: name, Code: code})
		}
	}
	sortMappings(extra)
	return append(out, extra...)
}

// NamesFromMappings is the inverse of MappingsFromNames.
func NamesFromMappings(mappings []ProgramMapping) map[string]string {
	out := make(map[string]string, len(mappings))
	for _, m := range mappings {
		out[m.Name] = m.Code
	}
	return out
}

// Codes returns the program codes of mappings in order.
func Codes(mappings []ProgramMapping) []string {
	out := make([]string, len(mappings))
	for i, m := range mappings {
		out[i] = m.Code
	}
	return out
}

func sortMappings(m []ProgramMapping) {
	sort.Slice(m, func(i, j int) bool {
		if m[i].Code != m[j].Code {
			return m[i].Code < m[j].Code
		}
		return m[i].Name < m[j].Name
	})
}

// ConsolidationRule lists the programs whose values roll up into Parent. The parent
// is expected to appear among its own children.
type ConsolidationRule struct {
	Parent   string   `json:"parent" yaml:"parent"`
	Children []string `json:"children" yaml:"children"`
}

// DefaultConsolidationRules folds the McClellan and Sac Youth Center sites into
// Program C and Program N. Every other reported program stands alone.
func DefaultConsolidationRules() []ConsolidationRule {
	return []ConsolidationRule{
		{Parent: ProgC, Children: []string{ProgC, ProgCCM, ProgCSYC}},
		{Parent: ProgCTK, Children: []string{ProgCTK}},
		{Parent: ProgN, Children: []string{ProgN, ProgNCM, ProgNSYC}},
		{Parent: ProgNTK, Children: []string{ProgNTK}},
		{Parent: ProgJ, Children: []string{ProgJ}},
		{Parent: ProgJTK, Children: []string{ProgJTK}},
		{Parent: ProgK, Children: []string{ProgK}},
		{Parent: ProgKTK, Children: []string{ProgKTK}},
	}
}
