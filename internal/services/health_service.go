package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/cache"
	"github.com/shwndea/automated-padc-processor/internal/config"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/operations"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// OperationLister lists runs in flight.
type OperationLister interface {
	ListOperations() []*operations.OperationState
}

// HealthDeps are the components HealthService inspects. Nil entries report
// not_ready.
type HealthDeps struct {
	Version   string
	BuildTime string
	Paths     *config.Paths
	Hub       ClientCounter
	Manager   OperationLister
	History   history.Store
	Cache     cache.Cache
	Logger    *slog.Logger
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Paths
	hub       ClientCounter
	manager   OperationLister
	history   history.Store
	cache     cache.Cache
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TotalFiles       int     `json:"total_files"`
	TotalSizeBytes   int64   `json:"total_size_bytes"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveOperations int     `json:"active_operations"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

const healthProbeKey = "health:probe"

func NewHealthService(deps HealthDeps) *HealthService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "health_service"))
	logger.Info("health service initialized",
		slog.String("version", deps.Version),
		slog.String("build_time", deps.BuildTime))

	return &HealthService{
		version:   deps.Version,
		buildTime: deps.BuildTime,
		paths:     deps.Paths,
		hub:       deps.Hub,
		manager:   deps.Manager,
		history:   deps.History,
		cache:     deps.Cache,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health check", slog.String("uptime", time.Since(hs.startTime).String()))
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"websocket":  hs.checkWebSocket(),
			"operations": hs.checkOperations(),
			"data":       hs.checkData(),
			"history":    hs.checkHistory(ctx),
			"cache":      hs.checkCache(ctx),
		},
	}
	for name, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "component not ready",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.paths != nil {
		_ = filepath.WalkDir(hs.paths.DataDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, ierr := d.Info(); ierr == nil {
				stats.TotalFiles++
				stats.TotalSizeBytes += info.Size()
			}
			return ctx.Err()
		})
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.manager != nil {
		stats.ActiveOperations = len(hs.manager.ListOperations())
	}
	return stats
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     hs.SystemStats(ctx),
	}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "not_ready", Message: "websocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

func (hs *HealthService) checkOperations() ServiceHealth {
	if hs.manager == nil {
		return ServiceHealth{Status: "not_ready", Message: "operation manager not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d runs in flight", len(hs.manager.ListOperations())),
	}
}

// checkData requires the data directory to exist and accept writes.
func (hs *HealthService) checkData() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "not_ready", Message: "paths not configured"}
	}
	if _, err := os.Stat(hs.paths.DataDir); err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("data directory not found: %s", hs.paths.DataDir)}
	}
	f, err := os.CreateTemp(hs.paths.DataDir, ".health-*")
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("cannot write to data directory: %v", err)}
	}
	f.Close()
	os.Remove(f.Name())
	return ServiceHealth{Status: "ready", Message: "data directory is writable"}
}

func (hs *HealthService) checkHistory(ctx context.Context) ServiceHealth {
	if hs.history == nil {
		return ServiceHealth{Status: "not_ready", Message: "history store not initialized"}
	}
	if _, err := hs.history.List(ctx, 1); err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("history store: %v", err)}
	}
	return ServiceHealth{Status: "ready"}
}

// checkCache treats a miss on the probe key as healthy.
func (hs *HealthService) checkCache(ctx context.Context) ServiceHealth {
	if hs.cache == nil {
		return ServiceHealth{Status: "not_ready", Message: "result cache not initialized"}
	}
	if _, err := hs.cache.Get(ctx, healthProbeKey); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("result cache: %v", err)}
	}
	return ServiceHealth{Status: "ready"}
}
