package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"api error", ErrNoWorkbook, http.StatusConflict, TypeConflict},
		{"api validation", ErrValidation("start", "must be positive"), http.StatusBadRequest, TypeValidation},
		{"audit running", ErrAuditRunning, http.StatusConflict, TypeAuditRunning},
		{"unknown program", fmt.Errorf("override Prog_X: %w", attendance.ErrUnknownProgram), http.StatusNotFound, TypeProgramUnknown},
		{"invalid override", fmt.Errorf("%w: start 9 after stop 3", attendance.ErrInvalidOverride), http.StatusBadRequest, TypeOverrideInvalid},
		{"app not found", NewNotFoundError("profile"), http.StatusNotFound, TypeNotFound},
		{"app parsing", NewParsingError("open", nil), http.StatusUnprocessableEntity, TypeWorkbookUnreadable},
		{"app input", NewInputError("no workbook", nil), http.StatusNotFound, TypeInputNotFound},
		{"app storage", NewStorageError("save", nil), http.StatusInternalServerError, TypeInternal},
		{"missing file", fmt.Errorf("open: %w", fs.ErrNotExist), http.StatusNotFound, TypeNotFound},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			req := httptest.NewRequest(http.MethodGet, "/api/audit/results", nil)
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-1"))
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/audit/results", body["instance"])
			assert.Equal(t, "req-1", body["trace_id"])
			assert.NotContains(t, body, "stack")
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Zero(t, rec.Body.Len())
	assert.Zero(t, logs.Count())
}

func TestErrorHandler_LogLevelFollowsStatus(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	req := httptest.NewRequest(http.MethodPut, "/api/audit/boundaries/Prog_C", nil)

	h.HandleError(httptest.NewRecorder(), req, NewValidationError("bad"))
	h.HandleError(httptest.NewRecorder(), req, fmt.Errorf("disk gone"))

	assert.Len(t, logs.RecordsAt(slog.LevelWarn), 1)
	assert.Len(t, logs.RecordsAt(slog.LevelError), 1)
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	rec := httptest.NewRecorder()
	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))

	body := decodeProblem(t, rec)
	assert.Contains(t, body["stack"], "goroutine")
}

func TestErrorHandler_AppErrorContext(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	err := NewValidationError("bad override").WithContext("program", "Prog_C")
	p := h.ErrorToProblem(err, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "VALIDATION", p.Extensions["error_type"])
	assert.Equal(t, map[string]interface{}{"program": "Prog_C"}, p.Extensions["context"])
}

func TestErrorHandler_Middleware(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	panicking := h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("sheet exploded")
	}))

	rec := httptest.NewRecorder()
	panicking.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/audit/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, TypeInternal, decodeProblem(t, rec)["type"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethod(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/api/audit/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, decodeProblem(t, rec)["detail"], "PATCH")
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	p := NewProblemDetails(http.StatusConflict, TypeConflict, "Conflict", "", "/p").
		WithExtension("error_code", "NO_RESULTS").
		WithExtension("trace_id", "")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]interface{}{
		"type":       TypeConflict,
		"title":      "Conflict",
		"status":     float64(http.StatusConflict),
		"instance":   "/p",
		"error_code": "NO_RESULTS",
	}, got)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NotFoundError("run 42"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":{"status_code":404,"error_code":"NOT_FOUND","message":"run 42 not found","details":"run 42"}}`, rec.Body.String())
}
