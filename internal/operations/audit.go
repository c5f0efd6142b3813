package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/cache"
	"github.com/shwndea/automated-padc-processor/internal/dataprocessing"
	"github.com/shwndea/automated-padc-processor/internal/files"
)

// Audit is the working set of one run, shared by its steps.
type Audit struct {
	Input     string
	SheetName string
	Digest    string
	Info      attendance.RunInfo
	Options   attendance.Options

	Sheet      attendance.Sheet
	Index      attendance.MonthIndex
	Detected   attendance.Boundaries
	Boundaries attendance.Boundaries

	Months       []int
	Raw          attendance.Values
	Consolidated attendance.Consolidation
	CacheHit     bool
	Outputs      []string
}

// Loaded reports whether a sheet is present.
func (a *Audit) Loaded() bool { return a != nil && a.Sheet != nil }

// Computed reports whether consolidated values are present.
func (a *Audit) Computed() bool { return a != nil && a.Consolidated.Values != nil }

// Result projects the audit onto the pipeline result shape.
func (a *Audit) Result() attendance.Result {
	return attendance.Result{
		Detected:     a.Detected,
		Boundaries:   a.Boundaries,
		MonthIndex:   a.Index,
		Months:       a.Months,
		Raw:          a.Raw,
		Consolidated: a.Consolidated,
	}
}

// AuditFrom returns the audit carried by state.
func AuditFrom(state *OperationState) (*Audit, error) {
	if state == nil || state.audit == nil {
		return nil, NewFatalError("audit missing from operation state", nil)
	}
	return state.audit, nil
}

// WorkbookLoader reads the attendance sheet of a workbook.
type WorkbookLoader func(path, sheet string) (*dataprocessing.Workbook, error)

// LoadStep resolves the input workbook and reads its sheet.
type LoadStep struct {
	BaseStep
	resolver files.Resolver
	load     WorkbookLoader
	logger   *slog.Logger
}

// NewLoadStep creates the load step. A nil loader uses dataprocessing.LoadWorkbook.
func NewLoadStep(resolver files.Resolver, load WorkbookLoader, logger *slog.Logger) *LoadStep {
	if load == nil {
		load = dataprocessing.LoadWorkbook
	}
	return &LoadStep{
		BaseStep: NewBaseStep(StepIDLoad, StepNameLoad),
		resolver: resolver,
		load:     load,
		logger:   stepLogger(logger, StepIDLoad),
	}
}

// Validate requires an explicit input or a resolver.
func (s *LoadStep) Validate(state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	if a.Input == "" && s.resolver == nil {
		return errors.New("no input workbook and no resolver configured")
	}
	return nil
}

// Execute loads the workbook into the audit.
func (s *LoadStep) Execute(ctx context.Context, state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	path := a.Input
	if path == "" {
		if path, err = s.resolver.Resolve(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wb, err := s.load(path, a.SheetName)
	if err != nil {
		return err
	}
	a.Input = wb.Path
	a.SheetName = wb.SheetName
	a.Digest = wb.Digest
	a.Sheet = wb.Sheet

	if st := state.GetStep(StepIDLoad); st != nil {
		st.SetMetadata("file", wb.Name())
		st.SetMetadata("rows", wb.Sheet.Rows())
	}
	s.logger.InfoContext(ctx, "workbook loaded",
		slog.String("file", wb.Path),
		slog.String("sheet", wb.SheetName),
		slog.Int("rows", wb.Sheet.Rows()))
	return nil
}

// ScanStep indexes rows by month number.
type ScanStep struct {
	BaseStep
}

// NewScanStep creates the scan step.
func NewScanStep() *ScanStep {
	return &ScanStep{BaseStep: NewBaseStep(StepIDScan, StepNameScan, StepIDLoad)}
}

// Validate requires a loaded sheet.
func (s *ScanStep) Validate(state *OperationState) error {
	return requireLoaded(state)
}

// Execute scans every calendar month.
func (s *ScanStep) Execute(ctx context.Context, state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	opts := a.Options.WithDefaults()
	a.Index = attendance.ScanMonths(a.Sheet, opts.Layout, attendance.Months)
	a.Months = attendance.ObservedMonths(a.Index)
	if st := state.GetStep(StepIDScan); st != nil {
		st.SetMetadata("months", a.Months)
	}
	return ctx.Err()
}

// BoundariesStep resolves, repairs and overrides program boundaries.
type BoundariesStep struct {
	BaseStep
}

// NewBoundariesStep creates the boundaries step.
func NewBoundariesStep() *BoundariesStep {
	return &BoundariesStep{BaseStep: NewBaseStep(StepIDBoundaries, StepNameBoundaries, StepIDLoad)}
}

// Validate requires a loaded sheet.
func (s *BoundariesStep) Validate(state *OperationState) error {
	return requireLoaded(state)
}

// Execute sets Detected and Boundaries. Overrides in the audit options are
// applied on top of the repaired spans.
func (s *BoundariesStep) Execute(ctx context.Context, state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	opts := a.Options.WithDefaults()
	a.Detected = attendance.Repair(attendance.ResolveBoundaries(a.Sheet, opts.Layout, opts.Mappings), opts.Repairs)
	final, err := attendance.ApplyOverrides(a.Detected, opts.Overrides)
	if err != nil {
		return err
	}
	a.Boundaries = final
	return ctx.Err()
}

// ExtractStep reads raw values, or restores a cached result.
type ExtractStep struct {
	BaseStep
	cache  cache.Cache
	logger *slog.Logger
}

// NewExtractStep creates the extract step. c may be nil.
func NewExtractStep(c cache.Cache, logger *slog.Logger) *ExtractStep {
	return &ExtractStep{
		BaseStep: NewBaseStep(StepIDExtract, StepNameExtract, StepIDScan, StepIDBoundaries),
		cache:    c,
		logger:   stepLogger(logger, StepIDExtract),
	}
}

// Validate requires a sheet, a month index and boundaries.
func (s *ExtractStep) Validate(state *OperationState) error {
	if err := requireLoaded(state); err != nil {
		return err
	}
	a, _ := AuditFrom(state)
	if a.Index == nil || a.Boundaries == nil {
		return errors.New("boundaries have not been resolved")
	}
	return nil
}

// Execute fills Raw. On a cache hit Consolidated is filled too.
func (s *ExtractStep) Execute(ctx context.Context, state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	opts := a.Options.WithDefaults()
	a.CacheHit = false
	a.Months = attendance.ObservedMonths(a.Index)

	if s.cache != nil && a.Digest != "" {
		entry, err := s.cache.Get(ctx, cache.Key(a.Digest, a.SheetName, a.Boundaries, opts))
		switch {
		case err == nil:
			raw, cons, rerr := entry.Result()
			if rerr == nil {
				a.Raw, a.Consolidated, a.CacheHit = raw, cons, true
				s.logger.InfoContext(ctx, "result restored from cache", slog.String("digest", a.Digest))
				return nil
			}
			s.logger.WarnContext(ctx, "discarding unreadable cache entry", slog.String("error", rerr.Error()))
		case !errors.Is(err, cache.ErrCacheMiss):
			s.logger.WarnContext(ctx, "cache lookup failed", slog.String("error", err.Error()))
		}
	}

	a.Raw = attendance.Extract(a.Index, a.Boundaries, a.Sheet, opts.Layout, opts.Mappings)
	a.Consolidated = attendance.Consolidation{}
	if st := state.GetStep(StepIDExtract); st != nil {
		st.SetMetadata("values", len(a.Raw))
	}
	return ctx.Err()
}

// ConsolidateStep folds child programs into their parents.
type ConsolidateStep struct {
	BaseStep
	cache  cache.Cache
	logger *slog.Logger
}

// NewConsolidateStep creates the consolidate step. c may be nil.
func NewConsolidateStep(c cache.Cache, logger *slog.Logger) *ConsolidateStep {
	return &ConsolidateStep{
		BaseStep: NewBaseStep(StepIDConsolidate, StepNameConsolidate, StepIDExtract),
		cache:    c,
		logger:   stepLogger(logger, StepIDConsolidate),
	}
}

// Validate requires extracted values.
func (s *ConsolidateStep) Validate(state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	if a.Raw == nil {
		return errors.New("attendance has not been extracted")
	}
	return nil
}

// Execute consolidates over the observed months and stores the result in the cache.
func (s *ConsolidateStep) Execute(ctx context.Context, state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	if a.CacheHit {
		return nil
	}
	opts := a.Options.WithDefaults()
	a.Consolidated = attendance.Consolidate(a.Raw, opts.Rules, a.Months, opts.AgeBands)
	if st := state.GetStep(StepIDConsolidate); st != nil {
		st.SetMetadata("breakdowns", len(a.Consolidated.Breakdowns))
	}

	if s.cache != nil && a.Digest != "" {
		key := cache.Key(a.Digest, a.SheetName, a.Boundaries, opts)
		if err := s.cache.Set(ctx, key, cache.NewEntry(a.Raw, a.Consolidated, a.Months)); err != nil {
			s.logger.WarnContext(ctx, "cache store failed", slog.String("error", err.Error()))
		}
	}
	return ctx.Err()
}

// ExportStep runs the configured exporters in order.
type ExportStep struct {
	BaseStep
	exporters []Exporter
	logger    *slog.Logger
}

// NewExportStep creates the export step.
func NewExportStep(logger *slog.Logger, exporters ...Exporter) *ExportStep {
	return &ExportStep{
		BaseStep:  NewBaseStep(StepIDExport, StepNameExport, StepIDConsolidate),
		exporters: exporters,
		logger:    stepLogger(logger, StepIDExport),
	}
}

// Validate requires consolidated values.
func (s *ExportStep) Validate(state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	if !a.Computed() {
		return errors.New("attendance has not been consolidated")
	}
	return nil
}

// Execute calls every exporter, stopping at the first failure.
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	for _, e := range s.exporters {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := e.Export(ctx, a); err != nil {
			return fmt.Errorf("%s export: %w", e.Name(), err)
		}
		s.logger.InfoContext(ctx, "export written",
			slog.String("exporter", e.Name()),
			slog.Duration("duration", time.Since(start)))
	}
	return nil
}

func requireLoaded(state *OperationState) error {
	a, err := AuditFrom(state)
	if err != nil {
		return err
	}
	if !a.Loaded() {
		return errors.New("no workbook loaded")
	}
	return nil
}

func stepLogger(logger *slog.Logger, step string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", "audit_step"), slog.String("step", step))
}

// AuditDeps are the collaborators of the audit steps.
type AuditDeps struct {
	Resolver  files.Resolver
	Loader    WorkbookLoader
	Cache     cache.Cache
	Exporters []Exporter
	Tracer    *Tracer
	Logger    *slog.Logger
}

// NewAuditManager builds a manager with the six audit steps registered.
func NewAuditManager(hub WebSocketHub, cfg *Config, deps AuditDeps) *Manager {
	m := NewManager(hub, NewRegistry(), cfg, deps.Logger)
	m.SetTracer(deps.Tracer)
	steps := []Step{
		NewLoadStep(deps.Resolver, deps.Loader, deps.Logger),
		NewScanStep(),
		NewBoundariesStep(),
		NewExtractStep(deps.Cache, deps.Logger),
		NewConsolidateStep(deps.Cache, deps.Logger),
		NewExportStep(deps.Logger, deps.Exporters...),
	}
	for _, s := range steps {
		// ids are fixed and unique
		_ = m.RegisterStep(s)
	}
	return m
}
