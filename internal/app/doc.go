// Package app wires the audit web service together and manages its lifecycle.
//
// New builds every component from a config.Config and a config.Paths:
//
//	1. OpenTelemetry providers, with a Prometheus registry served at /metrics
//	2. the websocket hub, which receives run progress from the operation manager
//	3. run history (history.Open) and the result cache (cache.Open)
//	4. the audit operation manager with report exporters
//	5. the audit, profile and health services
//	6. the chi router and the http.Server
//
// NewApplication does the same starting from the environment: config.Load,
// infrastructure.InitializeLogger and config.GetPaths.
//
// Run blocks until SIGINT or SIGTERM and then shuts down in reverse order:
// the HTTP server drains, the manager and hub stop, storage closes and the
// telemetry providers flush. Errors are returned to the caller; the package
// never calls os.Exit.
package app
