package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/middleware"
	"github.com/shwndea/automated-padc-processor/internal/services"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

const testUploadLimit = 1 << 20

func newAuditRouter(t *testing.T) (*MockAuditService, http.Handler) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	eh := apierrors.NewErrorHandler(logger, false)
	svc := &MockAuditService{}
	h := NewAuditHandler(svc, middleware.NewValidationMiddleware(logger, eh), eh, testUploadLimit, logger)

	r := chi.NewRouter()
	r.Mount("/api/audit", h.Routes())
	return svc, r
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sampleView() services.BoundariesView {
	return services.BoundariesView{
		Input: "/data/downloads/ADA_2425.xlsx",
		Sheet: "ADA",
		Rows:  8,
		Programs: []services.BoundaryView{
			{Code: attendance.ProgC, Name: "Classroom", Start: attendance.Row(2), Stop: attendance.Row(4)},
		},
	}
}

func TestAuditHandler_Load(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantPath   string
		err        error
		wantStatus int
		wantCall   bool
	}{
		{name: "explicit path", body: `{"path":"ADA_2425.xlsx"}`, wantPath: "ADA_2425.xlsx", wantStatus: http.StatusOK, wantCall: true},
		{name: "empty body resolves newest", wantPath: "", wantStatus: http.StatusOK, wantCall: true},
		{name: "input missing", body: `{"path":"gone.xlsx"}`, wantPath: "gone.xlsx",
			err: apierrors.NewInputError("no input workbook", nil), wantStatus: http.StatusNotFound, wantCall: true},
		{name: "workbook unreadable", body: `{"path":"bad.xlsx"}`, wantPath: "bad.xlsx",
			err: apierrors.NewParsingError("open workbook", fmt.Errorf("zip: not a valid zip file")), wantStatus: http.StatusUnprocessableEntity, wantCall: true},
		{name: "path outside downloads", body: `{"path":"/etc/passwd"}`, wantPath: "/etc/passwd",
			err: apierrors.NewValidationError(`workbook "/etc/passwd" must be a file name in the downloads directory`), wantStatus: http.StatusBadRequest, wantCall: true},
		{name: "unknown field", body: `{"file":"x.xlsx"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := newAuditRouter(t)
			if tt.wantCall {
				svc.On("LoadDownload", mock.Anything, tt.wantPath).Return(sampleView(), tt.err)
			}

			rec := doJSON(t, h, http.MethodPost, "/api/audit/load", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "/data/downloads/ADA_2425.xlsx", decodeBody(t, rec)["input"])
			}
			if !tt.wantCall {
				svc.AssertNotCalled(t, "LoadDownload", mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAuditHandler_Upload(t *testing.T) {
	t.Run("stores the file", func(t *testing.T) {
		svc, h := newAuditRouter(t)
		svc.On("Upload", mock.Anything, "ADA_2425.xlsx", mock.Anything, int64(testUploadLimit)).Return(sampleView(), nil)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "ADA_2425.xlsx")
		require.NoError(t, err)
		_, err = part.Write([]byte("PK fake workbook"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/audit/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("missing file field", func(t *testing.T) {
		svc, h := newAuditRouter(t)

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("note", "no file"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/audit/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuditHandler_Boundaries(t *testing.T) {
	svc, h := newAuditRouter(t)
	svc.On("Boundaries").Return(services.BoundariesView{}, services.ErrNoWorkbook).Once()
	svc.On("Boundaries").Return(sampleView(), nil).Once()

	rec := doJSON(t, h, http.MethodGet, "/api/audit/boundaries", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_WORKBOOK", decodeBody(t, rec)["error_code"])

	rec = doJSON(t, h, http.MethodGet, "/api/audit/boundaries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	programs := decodeBody(t, rec)["programs"].([]interface{})
	require.Len(t, programs, 1)
	assert.Equal(t, attendance.ProgC, programs[0].(map[string]interface{})["code"])
}

func TestAuditHandler_Override(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		body       string
		want       *attendance.Boundary
		err        error
		wantStatus int
	}{
		{name: "explicit rows", code: "CTK", body: `{"start":120,"stop":150}`,
			want: &attendance.Boundary{Start: attendance.Row(120), Stop: attendance.Row(150)}, wantStatus: http.StatusOK},
		{name: "range text", code: "CTK", body: `{"range":"none, 40"}`,
			want: &attendance.Boundary{Stop: attendance.Row(40)}, wantStatus: http.StatusOK},
		{name: "clear both ends", code: "CTK", body: `{}`,
			want: &attendance.Boundary{}, wantStatus: http.StatusOK},
		{name: "malformed range", code: "CTK", body: `{"range":"abc"}`, wantStatus: http.StatusBadRequest},
		{name: "zero row", code: "CTK", body: `{"start":0}`, wantStatus: http.StatusBadRequest},
		{name: "unknown program", code: "ZZ", body: `{"start":3,"stop":4}`,
			want: &attendance.Boundary{Start: attendance.Row(3), Stop: attendance.Row(4)},
			err:  fmt.Errorf("%w: ZZ", attendance.ErrUnknownProgram), wantStatus: http.StatusNotFound},
		{name: "start after stop", code: "CTK", body: `{"start":9,"stop":4}`,
			want: &attendance.Boundary{Start: attendance.Row(9), Stop: attendance.Row(4)},
			err:  fmt.Errorf("%w: start 9 is after stop 4", attendance.ErrInvalidOverride), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := newAuditRouter(t)
			if tt.want != nil {
				svc.On("Override", tt.code, *tt.want).Return(sampleView(), tt.err)
			}

			rec := doJSON(t, h, http.MethodPut, "/api/audit/boundaries/"+tt.code, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.want == nil {
				svc.AssertNotCalled(t, "Override", mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAuditHandler_Run(t *testing.T) {
	t.Run("returns run and results", func(t *testing.T) {
		svc, h := newAuditRouter(t)
		svc.On("Run", mock.Anything).Return(history.Run{ID: "run-1", Status: history.StatusCompleted, Total: 79.5}, nil)
		svc.On("Results").Return(services.ResultsView{
			RunID:  "run-1",
			Values: map[string]float64{"C: M1: TK-3": 10},
			Total:  79.5,
		}, nil)

		rec := doJSON(t, h, http.MethodPost, "/api/audit/run", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp RunResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "run-1", resp.Run.ID)
		assert.InDelta(t, 79.5, resp.Results.Total, 1e-9)
		assert.InDelta(t, 10.0, resp.Results.Values["C: M1: TK-3"], 1e-9)
	})

	t.Run("already running", func(t *testing.T) {
		svc, h := newAuditRouter(t)
		svc.On("Run", mock.Anything).Return(history.Run{}, services.ErrAuditRunning)

		rec := doJSON(t, h, http.MethodPost, "/api/audit/run", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, apierrors.TypeAuditRunning, decodeBody(t, rec)["type"])
		svc.AssertNotCalled(t, "Results")
	})

	t.Run("no workbook", func(t *testing.T) {
		svc, h := newAuditRouter(t)
		svc.On("Run", mock.Anything).Return(history.Run{}, services.ErrNoWorkbook)

		rec := doJSON(t, h, http.MethodPost, "/api/audit/run", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestAuditHandler_ResultsAndMonths(t *testing.T) {
	svc, h := newAuditRouter(t)
	svc.On("Results").Return(services.ResultsView{}, services.ErrNoResults)
	svc.On("Months").Return(attendance.MonthReport{Available: []int{1, 2}}, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/audit/results", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_RESULTS", decodeBody(t, rec)["error_code"])

	rec = doJSON(t, h, http.MethodGet, "/api/audit/months", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestAuditHandler_Export(t *testing.T) {
	tests := []struct {
		name            string
		target          string
		format          string
		body            string
		err             error
		wantStatus      int
		wantType        string
		wantDisposition string
	}{
		{name: "csv attachment", target: "/api/audit/export/csv", format: services.FormatCSV, body: "Program,Value\n",
			wantStatus: http.StatusOK, wantType: "text/csv; charset=utf-8",
			wantDisposition: `attachment; filename="consolidated_attendance.csv"`},
		{name: "html inline", target: "/api/audit/export/html?disposition=inline", format: services.FormatHTML, body: "<html></html>",
			wantStatus: http.StatusOK, wantType: "text/html; charset=utf-8",
			wantDisposition: `inline; filename="ada_audit_summary.html"`},
		{name: "no results", target: "/api/audit/export/text", format: services.FormatText,
			err: services.ErrNoResults, wantStatus: http.StatusConflict},
		{name: "unknown format", target: "/api/audit/export/pdf", wantStatus: http.StatusBadRequest},
		{name: "bad disposition", target: "/api/audit/export/csv?disposition=download", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := newAuditRouter(t)
			if tt.format != "" {
				svc.On("Export", mock.Anything, tt.format).Return(tt.err, tt.body)
			}

			rec := doJSON(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
				assert.Equal(t, tt.wantDisposition, rec.Header().Get("Content-Disposition"))
				assert.Equal(t, tt.body, rec.Body.String())
			}
			if tt.format == "" {
				svc.AssertNotCalled(t, "Export", mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAuditHandler_Write(t *testing.T) {
	t.Run("default output", func(t *testing.T) {
		svc, h := newAuditRouter(t)
		svc.On("Write", mock.Anything, "").Return(exporter.TemplateResult{
			Path: "/data/reports/ADA_Reconciliation.xlsx", Worksheet: "ADA", Written: 6,
		}, nil)

		rec := doJSON(t, h, http.MethodPost, "/api/audit/write", `{}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("path in output rejected", func(t *testing.T) {
		svc, h := newAuditRouter(t)

		rec := doJSON(t, h, http.MethodPost, "/api/audit/write", `{"output":"../escape.xlsx"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
	})
}

func TestAuditHandler_History(t *testing.T) {
	runs := []history.Run{
		{ID: "b", Status: history.StatusFailed},
		{ID: "a", Status: history.StatusCompleted},
	}

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantStatus int
		wantCount  int
	}{
		{name: "default limit", wantLimit: defaultHistoryLimit, wantStatus: http.StatusOK, wantCount: 2},
		{name: "explicit limit", query: "?limit=5", wantLimit: 5, wantStatus: http.StatusOK, wantCount: 2},
		{name: "status filter", query: "?status=completed", wantLimit: defaultHistoryLimit, wantStatus: http.StatusOK, wantCount: 1},
		{name: "limit too small", query: "?limit=0", wantStatus: http.StatusBadRequest},
		{name: "limit not a number", query: "?limit=ten", wantStatus: http.StatusBadRequest},
		{name: "unknown status", query: "?status=running", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, h := newAuditRouter(t)
			if tt.wantLimit > 0 {
				svc.On("History", mock.Anything, tt.wantLimit).Return(append([]history.Run(nil), runs...), nil)
			}

			rec := doJSON(t, h, http.MethodGet, "/api/audit/history"+tt.query, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.EqualValues(t, tt.wantCount, decodeBody(t, rec)["count"])
			}
			svc.AssertExpectations(t)
		})
	}
}
