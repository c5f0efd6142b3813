package attendance

import (
	"github.com/montanaflynn/stats"
)

// SampleRow is the first row found for a month, showing the four columns the
// engine reads.
type SampleRow struct {
	Row     int    `json:"row"`
	Program string `json:"program"`
	Month   string `json:"month"`
	AgeBand string `json:"age_band"`
	Value   string `json:"value"`
}

// MonthStats summarizes the value column over one month's rows.
type MonthStats struct {
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// MonthReport describes which months a sheet actually contains.
type MonthReport struct {
	Available      []int              `json:"available"`
	Unavailable    []int              `json:"unavailable"`
	RowCounts      map[int]int        `json:"row_counts"`
	Samples        map[int]SampleRow  `json:"samples"`
	Stats          map[int]MonthStats `json:"stats"`
	Recommendation string             `json:"recommendation,omitempty"`
}

// CheckMonths scans every calendar month and reports availability, row counts, a
// sample row and value statistics for each month present.
func CheckMonths(sheet Sheet, layout Layout) MonthReport {
	idx := ScanMonths(sheet, layout, Months)
	rep := MonthReport{
		Available: ObservedMonths(idx),
		RowCounts: make(map[int]int, len(idx)),
		Samples:   make(map[int]SampleRow, len(idx)),
		Stats:     make(map[int]MonthStats, len(idx)),
	}
	for _, m := range Months {
		rows, ok := idx[m]
		if !ok {
			rep.Unavailable = append(rep.Unavailable, m)
			continue
		}
		rep.RowCounts[m] = len(rows)
		first := rows[0]
		rep.Samples[m] = SampleRow{
			Row:     first,
			Program: sheet.Cell(first, layout.ProgramColumn),
			Month:   sheet.Cell(first, layout.MonthColumn),
			AgeBand: sheet.Cell(first, layout.AgeBandColumn),
			Value:   sheet.Cell(first, layout.ValueColumn),
		}
		data := make(stats.Float64Data, 0, len(rows))
		for _, r := range rows {
			data = append(data, parseValue(sheet.Cell(r, layout.ValueColumn)))
		}
		rep.Stats[m] = summarize(data)
	}
	if len(rep.Unavailable) > 0 && len(rep.Available) > 0 {
		rep.Recommendation = "consolidate only the available months; unavailable months would report zero totals"
	}
	return rep
}

func summarize(data stats.Float64Data) MonthStats {
	var ms MonthStats
	ms.Sum, _ = stats.Sum(data)
	ms.Mean, _ = stats.Mean(data)
	ms.Median, _ = stats.Median(data)
	ms.Max, _ = stats.Max(data)
	return ms
}
