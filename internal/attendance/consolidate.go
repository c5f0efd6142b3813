package attendance

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Part is one child's contribution to a consolidated figure.
type Part struct {
	Program string  `json:"program"`
	Value   float64 `json:"value"`
}

// Breakdown explains a non-zero consolidated figure.
type Breakdown struct {
	Key   Key     `json:"key"`
	Parts []Part  `json:"parts"`
	Total float64 `json:"total"`
}

// String renders "Prog_C_Month_3_4-6 = Prog_C: 10 + Prog_C_CM: 5 = 15".
func (b Breakdown) String() string {
	parts := make([]string, len(b.Parts))
	for i, p := range b.Parts {
		parts[i] = fmt.Sprintf("%s: %s", p.Program, formatNumber(p.Value))
	}
	return fmt.Sprintf("%s = %s = %s", b.Key.Field(), strings.Join(parts, " + "), formatNumber(b.Total))
}

// Consolidation is the output of Consolidate.
type Consolidation struct {
	Values     Values      `json:"-"`
	Breakdowns []Breakdown `json:"breakdowns"`
}

// Consolidate sums every rule's children into the parent for each month and age
// band. Missing, NaN and zero children contribute nothing. Every parent × month ×
// band key is stored, including zero totals. Only the months passed in are visited;
// callers pass ObservedMonths of the scan so absent months produce no keys.
func Consolidate(raw Values, rules []ConsolidationRule, months []int, bands []string) Consolidation {
	out := Consolidation{Values: make(Values, len(rules)*len(months)*len(bands))}
	for _, rule := range rules {
		for _, month := range months {
			for _, band := range bands {
				key := Key{Program: rule.Parent, Month: month, AgeBand: band}
				var total float64
				var parts []Part
				for _, child := range rule.Children {
					v, ok := raw[Key{Program: child, Month: month, AgeBand: band}]
					if !ok || math.IsNaN(v) || v == 0 {
						continue
					}
					total += v
					parts = append(parts, Part{Program: child, Value: v})
				}
				out.Values[key] = total
				if total != 0 && len(parts) > 0 {
					out.Breakdowns = append(out.Breakdowns, Breakdown{Key: key, Parts: parts, Total: total})
				}
			}
		}
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
