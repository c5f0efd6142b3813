package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shwndea/automated-padc-processor/internal/cache"
	"github.com/shwndea/automated-padc-processor/internal/config"
	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/files"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/infrastructure"
	"github.com/shwndea/automated-padc-processor/internal/operations"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
	"github.com/shwndea/automated-padc-processor/internal/services"
)

// reportSubdir matches the directory the web service writes run reports to.
const reportSubdir = "audits"

// env holds the components one command needs. There is no websocket hub or
// telemetry exporter; progress goes to the logger only.
type env struct {
	cfg      *config.Config
	paths    *config.Paths
	logger   *slog.Logger
	history  history.Store
	cache    cache.Cache
	manager  *operations.Manager
	audit    *services.AuditService
	profiles *services.ProfileService
}

func newEnv(ctx context.Context, g *globalOptions, reportDir string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.sheet != "" {
		cfg.Audit.InputSheet = g.sheet
	}
	cfg.Logging.Format = "text"
	cfg.Logging.Level = "warn"
	if g.verbose {
		cfg.Logging.Level = "debug"
	}
	logger := infrastructure.NewLogger(cfg.Logging, os.Stderr)

	paths, err := config.GetPaths()
	if err != nil {
		return nil, err
	}
	paths = paths.Apply(cfg.Paths)
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	e := &env{cfg: cfg, paths: paths, logger: logger}
	if e.history, err = history.Open(ctx, cfg.Database, logger); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	if e.cache, err = cache.Open(ctx, cfg.Cache, logger); err != nil {
		e.history.Close()
		return nil, fmt.Errorf("failed to open result cache: %w", err)
	}

	if reportDir == "" {
		reportDir = reportSubdir
	}
	opsConfig := operations.NewConfigBuilder().
		WithBatchConcurrency(cfg.Audit.Concurrency).
		Build()
	e.manager = operations.NewAuditManager(nil, opsConfig, operations.AuditDeps{
		Resolver:  files.LatestResolver{Dir: paths.DownloadsDir, Pattern: cfg.Audit.InputPattern},
		Cache:     e.cache,
		Exporters: services.ReportExporters(exporter.NewCSVWriter(paths), reportDir),
		Tracer:    operations.NewTracer(nil),
		Logger:    logger,
	})

	e.audit = services.NewAuditService(services.AuditDeps{
		Manager: e.manager,
		Files:   files.NewManager(paths, logger),
		History: e.history,
		Paths:   paths,
		Config:  cfg.Audit,
		Logger:  logger,
	})
	e.profiles = services.NewProfileService(profiles.NewStore(paths.ProfilesDir, logger), e.audit, logger)
	return e, nil
}

func (e *env) Close() {
	e.manager.Close()
	if err := e.history.Close(); err != nil {
		e.logger.Warn("closing run history", slog.String("error", err.Error()))
	}
	if err := e.cache.Close(); err != nil {
		e.logger.Warn("closing result cache", slog.String("error", err.Error()))
	}
}
