// Package http implements the HTTP handlers of the audit web service.
//
// Handlers stay thin: they decode and validate the request, call a service
// through one of the interfaces in service_interfaces.go, and render the
// result. Failures go through errors.ErrorHandler, which writes RFC 7807
// problem responses.
//
// # Routes
//
//	/api/health            HealthHandler.Routes
//	/api/audit             AuditHandler.Routes
//	/api/profiles          ProfileHandler.Routes
//
// Request bodies are decoded with middleware.ValidationMiddleware.Decode,
// which applies the struct tags on LoadRequest, OverrideRequest, WriteRequest
// and services.SaveProfileRequest. Query parameters go through
// middleware.QueryParamValidator.
package http
