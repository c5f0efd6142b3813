package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shwndea/automated-padc-processor/internal/config"
	"github.com/shwndea/automated-padc-processor/internal/shared/testutil"
)

const sampleWorkbook = "PrintMonthlyAttendanceSummaryTotals_1.xlsx"

func newTestApp(t *testing.T) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Security.RateLimit.Enabled = false

	paths := config.NewPaths(t.TempDir())
	a, err := New(context.Background(), cfg, paths, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func call(t *testing.T, a *Application, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNew(t *testing.T) {
	a := newTestApp(t)

	require.NotNil(t, a.Router)
	require.NotNil(t, a.Server)
	require.NotNil(t, a.Services)
	assert.NotNil(t, a.Services.Audit)
	assert.NotNil(t, a.Services.Profiles)
	assert.NotNil(t, a.Services.Health)
	assert.NotNil(t, a.History)
	assert.NotNil(t, a.Cache)
	assert.Equal(t, ":0", a.Server.Addr)

	for _, dir := range []string{a.Paths.DownloadsDir, a.Paths.ReportsDir, a.Paths.ProfilesDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestHealthRoutes(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		target     string
		wantStatus int
		wantField  string
		wantValue  string
	}{
		{target: "/api/health", wantStatus: http.StatusOK, wantField: "status", wantValue: "ok"},
		{target: "/api/health/ready", wantStatus: http.StatusOK, wantField: "status", wantValue: "ready"},
		{target: "/api/health/live", wantStatus: http.StatusOK, wantField: "status", wantValue: "alive"},
		{target: "/api/version", wantStatus: http.StatusOK, wantField: "version", wantValue: Version},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := call(t, a, http.MethodGet, tt.target, "")
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantValue, jsonBody(t, rec)[tt.wantField])
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestAuditFlow(t *testing.T) {
	a := newTestApp(t)
	input := testutil.WriteSampleWorkbook(t, a.Paths.DownloadsDir, sampleWorkbook)

	rec := call(t, a, http.MethodPost, "/api/audit/run", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, a, http.MethodPost, "/api/audit/load", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, input, jsonBody(t, rec)["input"])

	rec = call(t, a, http.MethodGet, "/api/audit/months", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{1.0, 2.0}, jsonBody(t, rec)["available"])

	rec = call(t, a, http.MethodPost, "/api/audit/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := jsonBody(t, rec)["results"].(map[string]interface{})
	assert.InDelta(t, 79.5, results["total"], 1e-9)

	rec = call(t, a, http.MethodGet, "/api/audit/export/csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "school_year,location,school_name"))

	rec = call(t, a, http.MethodGet, "/api/audit/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, jsonBody(t, rec)["count"])

	stem := strings.TrimSuffix(sampleWorkbook, ".xlsx")
	for _, name := range []string{stem + "_consolidated.txt", stem + "_dashboard.csv"} {
		_, err := os.Stat(filepath.Join(a.Paths.ReportsDir, reportSubdir, name))
		assert.NoError(t, err, name)
	}

	rec = call(t, a, http.MethodPost, "/api/audit/write", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, err := os.Stat(filepath.Join(a.Paths.ReportsDir, a.Config.Audit.OutputFile))
	assert.NoError(t, err)
}

func TestProfileFlow(t *testing.T) {
	a := newTestApp(t)
	testutil.WriteSampleWorkbook(t, a.Paths.DownloadsDir, sampleWorkbook)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodPost, "/api/audit/load", "").Code)

	rec := call(t, a, http.MethodPut, "/api/audit/boundaries/Prog_C_TK", `{"range":"5, 6"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, a, http.MethodPost, "/api/profiles", `{"name":"fall"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(t, a, http.MethodGet, "/api/profiles/fall", "")
	require.Equal(t, http.StatusOK, rec.Code)
	saved := jsonBody(t, rec)["program_boundaries"].(map[string]interface{})
	assert.EqualValues(t, 6, saved["Prog_C_TK"].(map[string]interface{})["stop"])

	rec = call(t, a, http.MethodPost, "/api/profiles", `{"name":"fall"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, a, http.MethodPost, "/api/profiles/fall/apply", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, a, http.MethodDelete, "/api/profiles/fall", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouterErrors(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "unknown route", method: http.MethodGet, target: "/api/nope", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, target: "/api/audit/results", wantStatus: http.StatusMethodNotAllowed},
		{name: "malformed json", method: http.MethodPost, target: "/api/audit/load", body: `{"path":`, wantStatus: http.StatusBadRequest},
		{name: "absolute workbook path", method: http.MethodPost, target: "/api/audit/load", body: `{"path":"/etc/hosts"}`, wantStatus: http.StatusBadRequest},
		{name: "workbook path escapes downloads", method: http.MethodPost, target: "/api/audit/load", body: `{"path":"../config.yaml"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown export format", method: http.MethodGet, target: "/api/audit/export/pdf", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, a, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "json")
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t)
	require.Equal(t, http.StatusOK, call(t, a, http.MethodGet, "/api/health", "").Code)

	rec := call(t, a, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestWebSocket(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	assert.Eventually(t, func() bool { return a.WebSocketHub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartStop(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx, cancel))
	require.NoError(t, a.Stop(context.Background()))
}
