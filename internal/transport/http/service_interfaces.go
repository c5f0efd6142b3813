package http

import (
	"context"
	"io"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
	"github.com/shwndea/automated-padc-processor/internal/services"
)

// AuditService is the audit session the handlers drive.
type AuditService interface {
	LoadDownload(ctx context.Context, name string) (services.BoundariesView, error)
	Upload(ctx context.Context, name string, r io.Reader, limit int64) (services.BoundariesView, error)
	Boundaries() (services.BoundariesView, error)
	Override(code string, b attendance.Boundary) (services.BoundariesView, error)
	Run(ctx context.Context) (history.Run, error)
	Results() (services.ResultsView, error)
	Months() (attendance.MonthReport, error)
	Export(w io.Writer, format string) error
	Write(ctx context.Context, output string) (exporter.TemplateResult, error)
	History(ctx context.Context, limit int) ([]history.Run, error)
}

// ProfileService manages saved boundary profiles.
type ProfileService interface {
	List(ctx context.Context) ([]profiles.Profile, error)
	Get(ctx context.Context, name string) (profiles.Profile, error)
	Save(ctx context.Context, req services.SaveProfileRequest) (profiles.Profile, error)
	Delete(ctx context.Context, name string) error
	Apply(ctx context.Context, name string) (services.BoundariesView, error)
	Export(ctx context.Context, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (services.BoundariesView, error)
}

// HealthService reports process and component health.
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
	SystemStats(ctx context.Context) services.SystemStats
}

var (
	_ AuditService   = (*services.AuditService)(nil)
	_ ProfileService = (*services.ProfileService)(nil)
	_ HealthService  = (*services.HealthService)(nil)
)
