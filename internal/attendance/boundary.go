package attendance

import (
	"fmt"
	"sort"
)

// Boundary is the inclusive row span of one program. A nil end means the program
// was not found.
type Boundary struct {
	Start *int `json:"start"`
	Stop  *int `json:"stop"`
}

// Complete reports whether both ends are present.
func (b Boundary) Complete() bool {
	return b.Start != nil && b.Stop != nil
}

// Contains reports whether row lies inside a complete span.
func (b Boundary) Contains(row int) bool {
	return b.Complete() && *b.Start <= row && row <= *b.Stop
}

// String renders the span as "start-stop" with "none" for absent ends.
func (b Boundary) String() string {
	return fmt.Sprintf("%s-%s", formatEnd(b.Start), formatEnd(b.Stop))
}

func formatEnd(v *int) string {
	if v == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *v)
}

// Row returns a pointer to a copy of n, for building boundaries.
func Row(n int) *int {
	return &n
}

func copyEnd(v *int) *int {
	if v == nil {
		return nil
	}
	return Row(*v)
}

// Boundaries holds one Boundary per program code.
type Boundaries map[string]Boundary

// Clone returns a deep copy so repairs and overrides never alias the input.
func (b Boundaries) Clone() Boundaries {
	out := make(Boundaries, len(b))
	for code, v := range b {
		out[code] = Boundary{Start: copyEnd(v.Start), Stop: copyEnd(v.Stop)}
	}
	return out
}

// Codes returns the program codes in lexical order.
func (b Boundaries) Codes() []string {
	codes := make([]string, 0, len(b))
	for code := range b {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Any reports whether at least one program has a detected end.
func (b Boundaries) Any() bool {
	for _, v := range b {
		if v.Start != nil || v.Stop != nil {
			return true
		}
	}
	return false
}

// ResolveBoundary reduces matched rows to (min, max). Both ends are nil for empty
// input. Contiguity is not checked.
func ResolveBoundary(rows []int) (start, stop *int) {
	if len(rows) == 0 {
		return nil, nil
	}
	lo, hi := rows[0], rows[0]
	for _, r := range rows[1:] {
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	return Row(lo), Row(hi)
}

// ResolveBoundaries resolves every mapped program independently. Programs with no
// matching rows get an empty Boundary.
func ResolveBoundaries(sheet Sheet, layout Layout, mappings []ProgramMapping) Boundaries {
	out := make(Boundaries, len(mappings))
	for _, m := range mappings {
		start, stop := ResolveBoundary(FindRowsByProgramName(sheet, layout, m.Name))
		out[m.Code] = Boundary{Start: start, Stop: stop}
	}
	return out
}
