package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/shwndea/automated-padc-processor/internal/cache"
	"github.com/shwndea/automated-padc-processor/internal/config"
	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
	"github.com/shwndea/automated-padc-processor/internal/exporter"
	"github.com/shwndea/automated-padc-processor/internal/files"
	"github.com/shwndea/automated-padc-processor/internal/history"
	"github.com/shwndea/automated-padc-processor/internal/infrastructure"
	customMiddleware "github.com/shwndea/automated-padc-processor/internal/middleware"
	"github.com/shwndea/automated-padc-processor/internal/operations"
	"github.com/shwndea/automated-padc-processor/internal/profiles"
	"github.com/shwndea/automated-padc-processor/internal/services"
	handlers "github.com/shwndea/automated-padc-processor/internal/transport/http"
	ws "github.com/shwndea/automated-padc-processor/internal/websocket"
)

const AppName = "ADA Attendance Audit"

// Set at build time with -ldflags "-X .../internal/app.Version=..."
var (
	Version   = "dev"
	BuildTime = ""
)

const (
	apiTimeout   = 30 * time.Second
	uploadSlack  = 1 << 20
	reportSubdir = "audits"
)

// Application wires configuration, storage, services and the HTTP server.
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	Manager       *operations.Manager
	History       history.Store
	Cache         cache.Cache
	Errors        *apierrors.ErrorHandler
	Services      *ServiceContainer
}

// ServiceContainer holds the services behind the handlers.
type ServiceContainer struct {
	Audit    *services.AuditService
	Profiles *services.ProfileService
	Health   *services.HealthService
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	return New(ctx, cfg, paths.Apply(cfg.Paths), logger)
}

// New builds the application from an explicit configuration.
func New(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Errors:        apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}
	if err := a.initializeServices(ctx); err != nil {
		a.closeStorage()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	hub := ws.NewHub(a.Logger)
	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	hub.SetMetrics(wsMetrics)
	hub.Start()
	a.WebSocketHub = hub

	if a.History, err = history.Open(ctx, a.Config.Database, a.Logger); err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	if a.Cache, err = cache.Open(ctx, a.Config.Cache, a.Logger); err != nil {
		return fmt.Errorf("failed to open result cache: %w", err)
	}

	auditMetrics, err := infrastructure.CreateAuditMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create audit metrics: %w", err)
	}
	opsConfig := operations.NewConfigBuilder().
		WithBatchConcurrency(a.Config.Audit.Concurrency).
		Build()
	a.Manager = operations.NewAuditManager(hub, opsConfig, operations.AuditDeps{
		Resolver:  files.LatestResolver{Dir: a.Paths.DownloadsDir, Pattern: a.Config.Audit.InputPattern},
		Cache:     a.Cache,
		Exporters: services.ReportExporters(exporter.NewCSVWriter(a.Paths), reportSubdir),
		Tracer:    operations.NewTracer(auditMetrics),
		Logger:    a.Logger,
	})

	audit := services.NewAuditService(services.AuditDeps{
		Manager: a.Manager,
		Files:   files.NewManager(a.Paths, a.Logger),
		History: a.History,
		Paths:   a.Paths,
		Config:  a.Config.Audit,
		Logger:  a.Logger,
	})
	a.Services = &ServiceContainer{
		Audit:    audit,
		Profiles: services.NewProfileService(profiles.NewStore(a.Paths.ProfilesDir, a.Logger), audit, a.Logger),
		Health: services.NewHealthService(services.HealthDeps{
			Version:   Version,
			BuildTime: BuildTime,
			Paths:     a.Paths,
			Hub:       hub,
			Manager:   a.Manager,
			History:   a.History,
			Cache:     a.Cache,
			Logger:    a.Logger,
		}),
	}
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter alone runs ahead of the
	// websocket upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Method(http.MethodGet, "/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger))

	r.Group(func(r chi.Router) {
		if otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.OTelProviders.Meter); err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(a.Errors.Middleware)
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Errors, a.Logger).Handler)
		}

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}
	r.NotFound(a.Errors.NotFound)
	r.MethodNotAllowed(a.Errors.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validation := customMiddleware.NewValidationMiddleware(a.Logger, a.Errors)

	health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	audit := handlers.NewAuditHandler(a.Services.Audit, validation, a.Errors, a.Config.Server.MaxUploadBytes, a.Logger)
	profileHandler := handlers.NewProfileHandler(a.Services.Profiles, validation, a.Errors, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.MaxBodySize(a.Config.Server.MaxUploadBytes + uploadSlack))
		r.Use(validation.ValidateRequest)

		r.Get("/version", health.Version)
		r.Get("/stats", health.Stats)
		r.With(customMiddleware.Timeout(apiTimeout)).Mount("/health", health.Routes())
		r.With(customMiddleware.Timeout(apiTimeout)).Mount("/profiles", profileHandler.Routes())
		// runs read whole workbooks and get the longer operation timeout
		r.With(customMiddleware.Timeout(a.Config.Server.OperationTimeout)).Mount("/audit", audit.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if status := a.Services.Health.ReadinessCheck(ctx); status.Status != "ready" {
		a.Logger.WarnContext(ctx, "Startup readiness check reported problems", slog.Any("services", status.Services))
	}
	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if a.Manager != nil {
		a.Manager.Close()
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	a.closeStorage()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) closeStorage() {
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Error("Error closing run history", slog.String("error", err.Error()))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Error("Error closing result cache", slog.String("error", err.Error()))
		}
	}
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
