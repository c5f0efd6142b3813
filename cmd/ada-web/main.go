// Command ada-web serves the attendance audit API, the run progress websocket
// and Prometheus metrics.
//
// Version information is injected at build time:
//
//	go build -ldflags "-X github.com/shwndea/automated-padc-processor/internal/app.Version=1.0.0" ./cmd/ada-web
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/shwndea/automated-padc-processor/internal/app"
)

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	application, err := app.NewApplication(context.Background())
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
