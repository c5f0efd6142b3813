package exporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
)

// Report is the content of an HTML run summary.
type Report struct {
	Info        attendance.RunInfo
	Source      string
	GeneratedAt time.Time
	Boundaries  attendance.Boundaries
	Mappings    []attendance.ProgramMapping
	Months      *attendance.MonthReport
	Values      attendance.Values
	Breakdowns  []attendance.Breakdown
	Order       []string
}

// Markdown renders the report as GitHub-flavoured markdown.
func (r Report) Markdown() string {
	var b strings.Builder

	title := "ADA Audit Summary"
	if r.Info.SchoolName != "" {
		title += " - " + r.Info.SchoolName
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| School year | %s |\n", cellText(r.Info.SchoolYear))
	fmt.Fprintf(&b, "| Location | %s |\n", cellText(r.Info.Location))
	fmt.Fprintf(&b, "| Source | %s |\n", cellText(r.Source))
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "| Generated | %s |\n", r.GeneratedAt.Format(time.RFC3339))
	}

	b.WriteString("\n## Program boundaries\n\n| Program | Start | Stop |\n|---|---|---|\n")
	codes := attendance.Codes(r.Mappings)
	if len(codes) == 0 {
		codes = r.Boundaries.Codes()
	}
	for _, code := range codes {
		bd := r.Boundaries[code]
		fmt.Fprintf(&b, "| %s | %s | %s |\n", code, endText(bd.Start), endText(bd.Stop))
	}

	if r.Months != nil {
		b.WriteString("\n## Month availability\n\n")
		fmt.Fprintf(&b, "Available: %s\n\n", joinInts(r.Months.Available))
		if len(r.Months.Unavailable) > 0 {
			fmt.Fprintf(&b, "Unavailable: %s\n\n", joinInts(r.Months.Unavailable))
		}
		b.WriteString("| Month | Rows | Sum | Mean | Median | Max |\n|---|---|---|---|---|---|\n")
		for _, m := range r.Months.Available {
			st := r.Months.Stats[m]
			fmt.Fprintf(&b, "| %d | %d | %.2f | %.2f | %.2f | %.2f |\n",
				m, r.Months.RowCounts[m], st.Sum, st.Mean, st.Median, st.Max)
		}
	}

	b.WriteString("\n## Consolidated attendance\n\n| Label | Value |\n|---|---|\n")
	for _, k := range r.Values.SortedKeys(r.Order) {
		v := r.Values[k]
		if v == 0 {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", k.Field(), formatValue(v))
	}
	fmt.Fprintf(&b, "\nTotal: **%s**\n", formatValue(r.Values.Total()))

	if len(r.Breakdowns) > 0 {
		b.WriteString("\n## Consolidation breakdown\n\n")
		lines := make([]string, len(r.Breakdowns))
		for i, bd := range r.Breakdowns {
			lines[i] = bd.String()
		}
		sort.Strings(lines)
		for _, l := range lines {
			fmt.Fprintf(&b, "- `%s`\n", l)
		}
	}
	return b.String()
}

// RenderHTML writes the report as a complete HTML page.
func RenderHTML(w io.Writer, r Report) error {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(r.Markdown()))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage,
		Title: "ADA Audit Summary",
	})
	_, err := w.Write(markdown.Render(doc, renderer))
	return err
}

func endText(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "none"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func cellText(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
