package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/middleware"
	"github.com/shwndea/automated-padc-processor/internal/services"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	uploadField         = "file"
)

// LoadRequest selects the workbook to audit by its file name in the downloads
// directory. An empty path loads the newest matching download.
type LoadRequest struct {
	Path string `json:"path" validate:"max=4096"`
}

// OverrideRequest replaces one program span, either as explicit rows or as
// override text such as "120, 150".
type OverrideRequest struct {
	Start *int   `json:"start" validate:"omitempty,min=1"`
	Stop  *int   `json:"stop" validate:"omitempty,min=1"`
	Range string `json:"range" validate:"omitempty,rowrange"`
}

// Boundary converts the request into a span. Range wins when set.
func (o OverrideRequest) Boundary() (attendance.Boundary, error) {
	if o.Range != "" {
		return attendance.ParseOverride(o.Range)
	}
	return attendance.Boundary{Start: o.Start, Stop: o.Stop}, nil
}

// WriteRequest names the reconciliation workbook under the reports directory.
type WriteRequest struct {
	Output string `json:"output" validate:"omitempty,filename"`
}

// RunResponse is returned by POST /api/audit/run.
type RunResponse struct {
	Run     history.Run          `json:"run"`
	Results services.ResultsView `json:"results"`
}

// AuditHandler serves the audit session under /api/audit.
type AuditHandler struct {
	service     AuditService
	validation  *middleware.ValidationMiddleware
	query       *middleware.QueryParamValidator
	errors      *apierrors.ErrorHandler
	uploadLimit int64
	logger      *slog.Logger
}

func NewAuditHandler(
	service AuditService,
	validation *middleware.ValidationMiddleware,
	errorHandler *apierrors.ErrorHandler,
	uploadLimit int64,
	logger *slog.Logger,
) *AuditHandler {
	return &AuditHandler{
		service:     service,
		validation:  validation,
		query:       middleware.NewQueryParamValidator(errorHandler),
		errors:      errorHandler,
		uploadLimit: uploadLimit,
		logger:      logger.With(slog.String("handler", "audit")),
	}
}

// Routes returns a chi router for audit endpoints
func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/load", h.Load)
	r.Post("/upload", h.Upload)
	r.Get("/boundaries", h.Boundaries)
	r.Put("/boundaries/{code}", h.Override)
	r.Post("/run", h.Run)
	r.Get("/results", h.Results)
	r.Get("/months", h.Months)
	r.Get("/export/{format}", h.Export)
	r.Post("/write", h.Write)
	r.Get("/history", h.History)
	return r
}

// Load handles POST /api/audit/load
func (h *AuditHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	view, err := h.service.LoadDownload(r.Context(), req.Path)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "workbook loaded",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("input", view.Input))
	render.JSON(w, r, view)
}

// Upload handles POST /api/audit/upload
func (h *AuditHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploadLimit > 0 {
		// multipart framing needs some room beyond the file itself
		r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit+64<<10)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.errors.HandleError(w, r, apierrors.ErrValidation(uploadField, fmt.Sprintf("multipart field %q is required: %v", uploadField, err)))
		return
	}
	defer file.Close()

	view, err := h.service.Upload(r.Context(), header.Filename, file, h.uploadLimit)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "workbook uploaded",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))
	h.errors.JSON(w, r, http.StatusCreated, view)
}

// Boundaries handles GET /api/audit/boundaries
func (h *AuditHandler) Boundaries(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Boundaries()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Override handles PUT /api/audit/boundaries/{code}
func (h *AuditHandler) Override(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req OverrideRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	b, err := req.Boundary()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	view, err := h.service.Override(code, b)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Run handles POST /api/audit/run
func (h *AuditHandler) Run(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "audit run failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()))
		h.errors.HandleError(w, r, err)
		return
	}
	// a concurrent override may have superseded the run's boundaries
	results, err := h.service.Results()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, RunResponse{Run: run, Results: results})
}

// Results handles GET /api/audit/results
func (h *AuditHandler) Results(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, results)
}

// Months handles GET /api/audit/months
func (h *AuditHandler) Months(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Months()
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// Export handles GET /api/audit/export/{format}. The body is buffered so a
// failure still produces a problem response.
func (h *AuditHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if !slices.Contains(services.ExportFormats, format) {
		h.errors.HandleError(w, r, services.ErrUnknownFormat)
		return
	}
	disposition, ok := h.query.ValidateEnum(w, r, "disposition", []string{"inline", "attachment"}, "attachment")
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(&buf, format); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", services.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, services.ExportFileName(format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Write handles POST /api/audit/write
func (h *AuditHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	res, err := h.service.Write(r.Context(), req.Output)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// History handles GET /api/audit/history?limit=&status=
func (h *AuditHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxHistoryLimit, defaultHistoryLimit)
	if !ok {
		return
	}
	status, ok := h.query.ValidateEnum(w, r, "status", []string{history.StatusCompleted, history.StatusFailed}, "")
	if !ok {
		return
	}

	runs, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if status != "" {
		runs = slices.DeleteFunc(runs, func(run history.Run) bool { return run.Status != status })
	}
	if runs == nil {
		runs = []history.Run{}
	}
	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
