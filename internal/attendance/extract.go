package attendance

// Extract reads one attendance figure for every indexed row that falls inside a
// program boundary. Months are visited in ascending order and, for each row, the
// first mapping whose complete span contains it wins. A key written twice keeps the
// later value.
func Extract(idx MonthIndex, boundaries Boundaries, sheet Sheet, layout Layout, mappings []ProgramMapping) Values {
	raw := make(Values)
	for _, month := range ObservedMonths(idx) {
		for _, row := range idx[month] {
			code, ok := owner(row, boundaries, mappings)
			if !ok {
				continue
			}
			m, ok := parseMonth(sheet.Cell(row, layout.MonthColumn))
			if !ok {
				m = month
			}
			key := Key{
				Program: code,
				Month:   m,
				AgeBand: sheet.Cell(row, layout.AgeBandColumn),
			}
			raw[key] = parseValue(sheet.Cell(row, layout.ValueColumn))
		}
	}
	return raw
}

func owner(row int, boundaries Boundaries, mappings []ProgramMapping) (string, bool) {
	for _, m := range mappings {
		if b, ok := boundaries[m.Code]; ok && b.Contains(row) {
			return m.Code, true
		}
	}
	return "", false
}
