// Package services holds the audit logic behind the HTTP handlers and the CLI.
//
// # Services
//
//	AuditService    the working audit: load, review and override boundaries,
//	                run, export, write the reconciliation workbook, history
//	ProfileService  saved boundary profiles and their import/export documents
//	HealthService   health, readiness, liveness and version reporting
//
// AuditService keeps one audit per process. Readers take a snapshot under a
// read lock; a run works on a private copy and installs its results only if
// the boundaries were not changed while it ran.
//
// Errors returned here are either *errors.AppError values from the lower
// layers or the predefined *errors.APIError values re-exported in errors.go,
// so handlers pass them straight to the error handler.
package services
