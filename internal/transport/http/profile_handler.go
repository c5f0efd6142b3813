package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/middleware"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
	"github.com/shwndea/automated-padc-processor/internal/services"
)

const profileExportName = "program_boundaries.json"

// ProfileHandler serves saved boundary profiles under /api/profiles.
type ProfileHandler struct {
	service    ProfileService
	validation *middleware.ValidationMiddleware
	errors     *apierrors.ErrorHandler
	logger     *slog.Logger
}

func NewProfileHandler(
	service ProfileService,
	validation *middleware.ValidationMiddleware,
	errorHandler *apierrors.ErrorHandler,
	logger *slog.Logger,
) *ProfileHandler {
	return &ProfileHandler{
		service:    service,
		validation: validation,
		errors:     errorHandler,
		logger:     logger.With(slog.String("handler", "profiles")),
	}
}

// Routes returns a chi router for profile endpoints. The static export and
// import routes take precedence over {name}.
func (h *ProfileHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Save)
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Get("/{name}", h.Get)
	r.Delete("/{name}", h.Delete)
	r.Post("/{name}/apply", h.Apply)
	return r
}

// List handles GET /api/profiles
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if list == nil {
		list = []profiles.Profile{}
	}
	render.JSON(w, r, map[string]interface{}{
		"profiles": list,
		"count":    len(list),
	})
}

// Get handles GET /api/profiles/{name}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

// Save handles POST /api/profiles
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req services.SaveProfileRequest
	if err := h.validation.Decode(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	p, err := h.service.Save(r.Context(), req)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "profile saved",
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.String("name", p.Name),
		slog.Bool("overwrite", req.Overwrite))
	h.errors.JSON(w, r, http.StatusCreated, p)
}

// Delete handles DELETE /api/profiles/{name}
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.service.Delete(r.Context(), name); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "profile deleted", slog.String("name", name))
	w.WriteHeader(http.StatusNoContent)
}

// Apply handles POST /api/profiles/{name}/apply
func (h *ProfileHandler) Apply(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Apply(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Export handles GET /api/profiles/export
func (h *ProfileHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+profileExportName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Import handles POST /api/profiles/import
func (h *ProfileHandler) Import(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Import(r.Context(), r.Body)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}
