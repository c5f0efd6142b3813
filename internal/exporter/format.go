package exporter

import (
	"strconv"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
)

func formatValue(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ProgramOrder returns the parent codes of rules in rule order.
func ProgramOrder(rules []attendance.ConsolidationRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Parent
	}
	return out
}
