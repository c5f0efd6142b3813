// Package errors carries the error vocabulary of the audit service.
//
// Domain code returns *AppError values (or the sentinel errors of the
// attendance package) and the HTTP layer turns any error into an RFC 7807
// problem document through ErrorHandler. Handlers that already know the
// status they want can return an *APIError instead.
package errors
