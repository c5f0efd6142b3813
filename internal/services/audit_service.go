package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/config"
	"github.com/shwndea/automated-padc-processor/internal/dataprocessing"
	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/files"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/operations"
)

// Export formats
const (
	FormatText = "text"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// ExportFormats lists the formats Export accepts.
var ExportFormats = []string{FormatText, FormatCSV, FormatHTML}

// ContentType returns the response content type of an export format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ExportFileName is the download name used for an export format.
func ExportFileName(format string) string {
	switch format {
	case FormatCSV:
		return "consolidated_attendance.csv"
	case FormatHTML:
		return "ada_audit_summary.html"
	default:
		return "consolidated_attendance.txt"
	}
}

// AuditDeps are the collaborators of AuditService.
type AuditDeps struct {
	Manager *operations.Manager
	Files   *files.Manager
	History history.Store
	Paths   *config.Paths
	Config  config.AuditConfig
	Logger  *slog.Logger
}

// AuditService owns the working audit of the process.
type AuditService struct {
	manager *operations.Manager
	files   *files.Manager
	history history.Store
	paths   *config.Paths
	cfg     config.AuditConfig
	logger  *slog.Logger

	mu      sync.RWMutex
	audit   *operations.Audit
	version uint64
	lastRun string

	running atomic.Bool
}

// NewAuditService creates the service. Manager and History are required.
func NewAuditService(deps AuditDeps) *AuditService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{
		manager: deps.Manager,
		files:   deps.Files,
		history: deps.History,
		paths:   deps.Paths,
		cfg:     deps.Config,
		logger:  logger.With(slog.String("component", "audit_service")),
	}
}

// BoundaryView is one row of the boundary review table.
type BoundaryView struct {
	Code       string              `json:"code"`
	Name       string              `json:"name"`
	Start      *int                `json:"start"`
	Stop       *int                `json:"stop"`
	Detected   attendance.Boundary `json:"detected"`
	Overridden bool                `json:"overridden"`
}

// BoundariesView describes the loaded workbook and its program spans.
type BoundariesView struct {
	Input    string         `json:"input"`
	Sheet    string         `json:"sheet"`
	Rows     int            `json:"rows"`
	Months   []int          `json:"months"`
	Programs []BoundaryView `json:"programs"`
	Computed bool           `json:"computed"`
}

// ResultsView is the consolidated outcome of the last run.
type ResultsView struct {
	RunID      string             `json:"run_id,omitempty"`
	Input      string             `json:"input"`
	Months     []int              `json:"months"`
	Values     map[string]float64 `json:"values"`
	Total      float64            `json:"total"`
	Breakdowns []string           `json:"breakdowns"`
	CacheHit   bool               `json:"cache_hit"`
}

func (s *AuditService) options() attendance.Options {
	return attendance.Options{Layout: s.cfg.Layout()}
}

func (s *AuditService) newAudit(path string) *operations.Audit {
	return &operations.Audit{
		Input:     path,
		SheetName: s.cfg.InputSheet,
		Info:      s.cfg.RunInfo(),
		Options:   s.options(),
	}
}

// resolveInput places bare file names in the downloads directory.
func (s *AuditService) resolveInput(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || s.paths == nil || filepath.IsAbs(path) || strings.ContainsAny(path, `/\`) {
		return path
	}
	return s.paths.DownloadPath(path)
}

// Load reads a workbook and resolves its boundaries. An empty path picks the
// newest matching export in the downloads directory.
func (s *AuditService) Load(ctx context.Context, path string) (BoundariesView, error) {
	a := s.newAudit(s.resolveInput(path))
	resp, err := s.manager.Execute(ctx, operations.OperationRequest{
		Steps: operations.DetectSteps,
		Audit: a,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "workbook load failed", slog.String("input", a.Input), slog.String("error", err.Error()))
		return BoundariesView{}, err
	}

	s.mu.Lock()
	s.audit = a
	s.version++
	s.lastRun = ""
	view := s.viewLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "workbook ready for review",
		slog.String("operation_id", resp.ID),
		slog.String("input", a.Input),
		slog.Int("programs", len(a.Boundaries)),
		slog.Any("months", a.Months))
	return view, nil
}

// LoadDownload is Load confined to the downloads directory. name must be a bare
// file name; an empty name picks the newest matching export.
func (s *AuditService) LoadDownload(ctx context.Context, name string) (BoundariesView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.Load(ctx, "")
	}
	clean, err := files.SafeName(name)
	if err != nil {
		return BoundariesView{}, err
	}
	if clean != name || s.paths == nil {
		return BoundariesView{}, apierrors.NewValidationError(
			fmt.Sprintf("workbook %q must be a file name in the downloads directory", name))
	}
	return s.Load(ctx, s.paths.DownloadPath(clean))
}

// Sheets lists the worksheets of a workbook. path is resolved like Load.
func (s *AuditService) Sheets(ctx context.Context, path string) ([]string, error) {
	path = s.resolveInput(path)
	if path == "" {
		if s.paths == nil {
			return nil, apierrors.NewInputError("no input workbook and no downloads directory", nil)
		}
		var err error
		resolver := files.LatestResolver{Dir: s.paths.DownloadsDir, Pattern: s.cfg.InputPattern}
		if path, err = resolver.Resolve(ctx); err != nil {
			return nil, err
		}
	}
	return dataprocessing.SheetNames(path)
}

// Upload stores an uploaded workbook in the downloads directory and loads it.
func (s *AuditService) Upload(ctx context.Context, name string, r io.Reader, limit int64) (BoundariesView, error) {
	stored, err := s.files.SaveUpload(name, r, limit)
	if err != nil {
		return BoundariesView{}, err
	}
	return s.Load(ctx, stored)
}

// Boundaries returns the review table of the loaded workbook.
func (s *AuditService) Boundaries() (BoundariesView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.audit.Loaded() {
		return BoundariesView{}, ErrNoWorkbook
	}
	return s.viewLocked(), nil
}

// Override replaces the span of one program. Results of an earlier run are
// dropped because they no longer match the boundaries.
func (s *AuditService) Override(code string, b attendance.Boundary) (BoundariesView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.audit.Loaded() {
		return BoundariesView{}, ErrNoWorkbook
	}
	if err := s.audit.Boundaries.Override(code, b.Start, b.Stop); err != nil {
		return BoundariesView{}, err
	}
	s.invalidateLocked()
	s.logger.Info("boundary overridden",
		slog.String("program", code),
		slog.String("span", s.audit.Boundaries[code].String()))
	return s.viewLocked(), nil
}

// ApplyBoundaries replaces every span with b, as when a profile is applied.
// Programs missing from b are left empty. Non-empty mappings replace the
// program mappings used for extraction.
func (s *AuditService) ApplyBoundaries(b attendance.Boundaries, mappings []attendance.ProgramMapping) (BoundariesView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.audit.Loaded() {
		return BoundariesView{}, ErrNoWorkbook
	}
	next := b.Clone()
	for code := range s.audit.Boundaries {
		if _, ok := next[code]; !ok {
			next[code] = attendance.Boundary{}
		}
	}
	s.audit.Boundaries = next
	if len(mappings) > 0 {
		s.audit.Options.Mappings = mappings
	}
	s.invalidateLocked()
	s.logger.Info("boundaries replaced", slog.Int("programs", len(next)))
	return s.viewLocked(), nil
}

// Snapshot returns copies of the current boundaries and mappings together with
// the input they were resolved from.
func (s *AuditService) Snapshot() (attendance.Boundaries, []attendance.ProgramMapping, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.audit.Loaded() {
		return nil, nil, "", ErrNoWorkbook
	}
	opts := s.audit.Options.WithDefaults()
	return s.audit.Boundaries.Clone(), append([]attendance.ProgramMapping(nil), opts.Mappings...), s.audit.Input, nil
}

// Run extracts and consolidates with the current boundaries and records the
// run in history. Only one run may be in flight.
func (s *AuditService) Run(ctx context.Context) (history.Run, error) {
	if !s.running.CompareAndSwap(false, true) {
		return history.Run{}, ErrAuditRunning
	}
	defer s.running.Store(false)

	s.mu.RLock()
	if !s.audit.Loaded() {
		s.mu.RUnlock()
		return history.Run{}, ErrNoWorkbook
	}
	work := fork(s.audit)
	version := s.version
	s.mu.RUnlock()

	started := time.Now().UTC()
	resp, err := s.manager.Execute(ctx, operations.OperationRequest{
		Steps: operations.ComputeSteps,
		Audit: work,
	})
	run := s.record(ctx, resp, work, started, err)
	if err != nil {
		return run, err
	}

	s.mu.Lock()
	if s.version == version {
		s.audit = work
		s.lastRun = run.ID
	} else {
		s.logger.WarnContext(ctx, "discarding results computed for superseded boundaries", slog.String("run_id", run.ID))
	}
	s.mu.Unlock()
	return run, nil
}

// Running reports whether a run is in flight.
func (s *AuditService) Running() bool {
	return s.running.Load()
}

// Results returns the consolidated values of the last run.
func (s *AuditService) Results() (ResultsView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.audit.Computed() {
		return ResultsView{}, ErrNoResults
	}
	a := s.audit
	lines := make([]string, len(a.Consolidated.Breakdowns))
	for i, b := range a.Consolidated.Breakdowns {
		lines[i] = b.String()
	}
	sort.Strings(lines)
	return ResultsView{
		RunID:      s.lastRun,
		Input:      a.Input,
		Months:     append([]int(nil), a.Months...),
		Values:     a.Consolidated.Values.Labels(),
		Total:      a.Consolidated.Values.Total(),
		Breakdowns: lines,
		CacheHit:   a.CacheHit,
	}, nil
}

// Months reports which calendar months the loaded sheet contains.
func (s *AuditService) Months() (attendance.MonthReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.audit.Loaded() {
		return attendance.MonthReport{}, ErrNoWorkbook
	}
	return attendance.CheckMonths(s.audit.Sheet, s.audit.Options.WithDefaults().Layout), nil
}

// Export writes the last results to w in format.
func (s *AuditService) Export(w io.Writer, format string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.audit.Computed() {
		return ErrNoResults
	}
	a := s.audit
	opts := a.Options.WithDefaults()
	order := exporter.ProgramOrder(opts.Rules)

	switch format {
	case FormatText:
		return exporter.WriteText(w, a.Consolidated.Values, order)
	case FormatCSV:
		return exporter.WriteDashboard(w, a.Info, a.Consolidated.Values, order)
	case FormatHTML:
		months := attendance.CheckMonths(a.Sheet, opts.Layout)
		return exporter.RenderHTML(w, exporter.Report{
			Info:        a.Info,
			Source:      filepath.Base(a.Input),
			GeneratedAt: time.Now().UTC(),
			Boundaries:  a.Boundaries,
			Mappings:    opts.Mappings,
			Months:      &months,
			Values:      a.Consolidated.Values,
			Breakdowns:  a.Consolidated.Breakdowns,
			Order:       order,
		})
	default:
		return ErrUnknownFormat
	}
}

// Write fills the reconciliation workbook in the reports directory. An empty
// output uses the configured file name.
func (s *AuditService) Write(ctx context.Context, output string) (exporter.TemplateResult, error) {
	if output == "" {
		output = s.cfg.OutputFile
	}
	path, err := s.files.ReportPath(output)
	if err != nil {
		return exporter.TemplateResult{}, err
	}

	s.mu.RLock()
	if !s.audit.Computed() {
		s.mu.RUnlock()
		return exporter.TemplateResult{}, ErrNoResults
	}
	values := s.audit.Consolidated.Values
	order := exporter.ProgramOrder(s.audit.Options.WithDefaults().Rules)
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return exporter.TemplateResult{}, err
	}
	res, err := exporter.WriteTemplate(path, s.cfg.Worksheet, values, order)
	if err != nil {
		return res, err
	}
	s.logger.InfoContext(ctx, "reconciliation workbook written",
		slog.String("path", res.Path),
		slog.String("worksheet", res.Worksheet),
		slog.Int("written", res.Written),
		slog.Int("appended", res.Appended))
	return res, nil
}

// History lists recorded runs, newest first.
func (s *AuditService) History(ctx context.Context, limit int) ([]history.Run, error) {
	return s.history.List(ctx, limit)
}

// Batch audits every path end to end, running the manager's exporters for
// each, and records every outcome in history.
func (s *AuditService) Batch(ctx context.Context, paths []string) ([]operations.BatchResult, error) {
	started := time.Now().UTC()
	results, err := s.manager.RunBatch(ctx, paths, s.newAudit)
	for _, res := range results {
		resp := &operations.OperationResponse{ID: res.RunID, Status: res.Status, Duration: res.Duration}
		s.record(ctx, resp, res.Audit, started, res.Err)
	}
	return results, err
}

func (s *AuditService) record(ctx context.Context, resp *operations.OperationResponse, a *operations.Audit, started time.Time, runErr error) history.Run {
	run := history.Run{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Status:     history.StatusCompleted,
	}
	if resp != nil {
		run.ID = resp.ID
		if resp.Duration > 0 {
			run.FinishedAt = started.Add(resp.Duration)
		}
	}
	if a != nil {
		run.InputFile = a.Input
		run.Digest = a.Digest
		run.SchoolYear = a.Info.SchoolYear
		run.Location = a.Info.Location
		run.SchoolName = a.Info.SchoolName
		run.Months = a.Months
		run.RawCount = len(a.Raw)
		run.ConsolidatedCount = len(a.Consolidated.Values)
		run.Total = a.Consolidated.Values.Total()
	}
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	}

	// history must not fail the audit itself
	if err := s.history.Record(context.WithoutCancel(ctx), run); err != nil {
		s.logger.ErrorContext(ctx, "failed to record run history",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()))
	}
	return run
}

func (s *AuditService) invalidateLocked() {
	s.version++
	s.lastRun = ""
	s.audit.Raw = nil
	s.audit.Consolidated = attendance.Consolidation{}
	s.audit.CacheHit = false
}

func (s *AuditService) viewLocked() BoundariesView {
	a := s.audit
	opts := a.Options.WithDefaults()
	view := BoundariesView{
		Input:    a.Input,
		Sheet:    a.SheetName,
		Rows:     a.Sheet.Rows(),
		Months:   append([]int(nil), a.Months...),
		Computed: a.Computed(),
	}

	seen := make(map[string]bool, len(opts.Mappings))
	add := func(code, name string) {
		b := a.Boundaries[code]
		d := a.Detected[code]
		view.Programs = append(view.Programs, BoundaryView{
			Code:       code,
			Name:       name,
			Start:      b.Start,
			Stop:       b.Stop,
			Detected:   d,
			Overridden: !sameEnd(b.Start, d.Start) || !sameEnd(b.Stop, d.Stop),
		})
		seen[code] = true
	}
	for _, m := range opts.Mappings {
		if _, ok := a.Boundaries[m.Code]; ok && !seen[m.Code] {
			add(m.Code, m.Name)
		}
	}
	for _, code := range a.Boundaries.Codes() {
		if !seen[code] {
			add(code, "")
		}
	}
	return view
}

// fork copies a so a run can fill results without touching the shared audit.
func fork(a *operations.Audit) *operations.Audit {
	w := *a
	w.Boundaries = a.Boundaries.Clone()
	w.Months = append([]int(nil), a.Months...)
	w.Raw = nil
	w.Consolidated = attendance.Consolidation{}
	w.CacheHit = false
	w.Outputs = nil
	return &w
}

func sameEnd(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// String summarizes a boundaries view for CLI output.
func (v BoundariesView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d rows, months %v)\n", filepath.Base(v.Input), v.Rows, v.Months)
	for _, p := range v.Programs {
		mark := ""
		if p.Overridden {
			mark = " *"
		}
		fmt.Fprintf(&b, "  %-12s %s%s\n", p.Code, attendance.Boundary{Start: p.Start, Stop: p.Stop}, mark)
	}
	return b.String()
}
