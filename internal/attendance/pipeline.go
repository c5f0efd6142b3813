package attendance

// RunInfo identifies the school and reporting period an audit covers.
type RunInfo struct {
	Location   string `json:"location" yaml:"location"`
	SchoolYear string `json:"school_year" yaml:"school_year"`
	SchoolName string `json:"school_name" yaml:"school_name"`
}

// Options configures Audit. Zero fields fall back to the reference defaults.
type Options struct {
	Layout    Layout
	Mappings  []ProgramMapping
	Rules     []ConsolidationRule
	Repairs   []RepairRule
	AgeBands  []string
	Overrides map[string]Boundary
}

// WithDefaults fills zero fields with the reference defaults.
func (o Options) WithDefaults() Options {
	if o.Layout.IsZero() {
		o.Layout = DefaultLayout()
	}
	if len(o.Mappings) == 0 {
		o.Mappings = DefaultProgramMappings()
	}
	if len(o.Rules) == 0 {
		o.Rules = DefaultConsolidationRules()
	}
	if o.Repairs == nil {
		o.Repairs = DefaultRepairRules()
	}
	if len(o.AgeBands) == 0 {
		o.AgeBands = AgeBands
	}
	return o
}

// Result is everything one audit run produces.
type Result struct {
	Detected     Boundaries    `json:"detected"`
	Boundaries   Boundaries    `json:"boundaries"`
	MonthIndex   MonthIndex    `json:"month_index"`
	Months       []int         `json:"months"`
	Raw          Values        `json:"-"`
	Consolidated Consolidation `json:"consolidated"`
}

// Detect scans the sheet and returns repaired boundaries together with the month
// index. It is the first half of Audit, exposed so callers can review and override
// boundaries before extracting.
func Detect(sheet Sheet, opts Options) (Boundaries, MonthIndex) {
	opts = opts.WithDefaults()
	idx := ScanMonths(sheet, opts.Layout, Months)
	b := Repair(ResolveBoundaries(sheet, opts.Layout, opts.Mappings), opts.Repairs)
	return b, idx
}

// Compute extracts and consolidates with boundaries the caller has already settled.
func Compute(sheet Sheet, boundaries Boundaries, idx MonthIndex, opts Options) (Values, Consolidation, []int) {
	opts = opts.WithDefaults()
	raw := Extract(idx, boundaries, sheet, opts.Layout, opts.Mappings)
	months := ObservedMonths(idx)
	return raw, Consolidate(raw, opts.Rules, months, opts.AgeBands), months
}

// Audit runs the full pipeline. Overrides are applied after repair; an invalid
// override is returned as an error and nothing is extracted.
func Audit(sheet Sheet, opts Options) (Result, error) {
	opts = opts.WithDefaults()
	detected, idx := Detect(sheet, opts)
	final, err := ApplyOverrides(detected, opts.Overrides)
	if err != nil {
		return Result{}, err
	}
	raw, cons, months := Compute(sheet, final, idx, opts)
	return Result{
		Detected:     detected,
		Boundaries:   final,
		MonthIndex:   idx,
		Months:       months,
		Raw:          raw,
		Consolidated: cons,
	}, nil
}
