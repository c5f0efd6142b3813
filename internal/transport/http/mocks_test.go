package http

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
	"github.com/shwndea/automated-padc-processor/internal/services"
)

// MockAuditService is a mock implementation of AuditService
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) LoadDownload(ctx context.Context, name string) (services.BoundariesView, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(services.BoundariesView), args.Error(1)
}

func (m *MockAuditService) Upload(ctx context.Context, name string, r io.Reader, limit int64) (services.BoundariesView, error) {
	args := m.Called(ctx, name, r, limit)
	return args.Get(0).(services.BoundariesView), args.Error(1)
}

func (m *MockAuditService) Boundaries() (services.BoundariesView, error) {
	args := m.Called()
	return args.Get(0).(services.BoundariesView), args.Error(1)
}

func (m *MockAuditService) Override(code string, b attendance.Boundary) (services.BoundariesView, error) {
	args := m.Called(code, b)
	return args.Get(0).(services.BoundariesView), args.Error(1)
}

func (m *MockAuditService) Run(ctx context.Context) (history.Run, error) {
	args := m.Called(ctx)
	return args.Get(0).(history.Run), args.Error(1)
}

func (m *MockAuditService) Results() (services.ResultsView, error) {
	args := m.Called()
	return args.Get(0).(services.ResultsView), args.Error(1)
}

func (m *MockAuditService) Months() (attendance.MonthReport, error) {
	args := m.Called()
	return args.Get(0).(attendance.MonthReport), args.Error(1)
}

func (m *MockAuditService) Export(w io.Writer, format string) error {
	args := m.Called(w, format)
	if body := args.String(1); body != "" {
		_, _ = io.WriteString(w, body)
	}
	return args.Error(0)
}

func (m *MockAuditService) Write(ctx context.Context, output string) (exporter.TemplateResult, error) {
	args := m.Called(ctx, output)
	return args.Get(0).(exporter.TemplateResult), args.Error(1)
}

func (m *MockAuditService) History(ctx context.Context, limit int) ([]history.Run, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]history.Run)
	return runs, args.Error(1)
}

// MockProfileService is a mock implementation of ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) List(ctx context.Context) ([]profiles.Profile, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]profiles.Profile)
	return list, args.Error(1)
}

func (m *MockProfileService) Get(ctx context.Context, name string) (profiles.Profile, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(profiles.Profile), args.Error(1)
}

func (m *MockProfileService) Save(ctx context.Context, req services.SaveProfileRequest) (profiles.Profile, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(profiles.Profile), args.Error(1)
}

func (m *MockProfileService) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockProfileService) Apply(ctx context.Context, name string) (services.BoundariesView, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(services.BoundariesView), args.Error(1)
}

func (m *MockProfileService) Export(ctx context.Context, w io.Writer) error {
	args := m.Called(ctx, w)
	if body := args.String(1); body != "" {
		_, _ = io.WriteString(w, body)
	}
	return args.Error(0)
}

func (m *MockProfileService) Import(ctx context.Context, r io.Reader) (services.BoundariesView, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(services.BoundariesView), args.Error(1)
}

// MockHealthService is a mock implementation of HealthService
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *MockHealthService) Version() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}

func (m *MockHealthService) SystemStats(ctx context.Context) services.SystemStats {
	return m.Called(ctx).Get(0).(services.SystemStats)
}
