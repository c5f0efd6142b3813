package exporter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
)

const (
	textTitle = "ADA Audit Process - Consolidated Attendance Data"
	textNote  = "Note: This data includes consolidation of McClellan (CM) and Sac Youth Center (SYC)\n" +
		"with their respective parent programs for audit compliance."
)

// WriteText writes the review listing: a title block followed by one
// "{label}{value}" line per key.
func WriteText(w io.Writer, values attendance.Values, order []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, textTitle)
	fmt.Fprintln(bw, strings.Repeat("=", 55))
	fmt.Fprintln(bw, textNote)
	fmt.Fprintln(bw)
	for _, k := range values.SortedKeys(order) {
		fmt.Fprintf(bw, "%s%s\n", k.Label(), formatValue(values[k]))
	}
	return bw.Flush()
}
