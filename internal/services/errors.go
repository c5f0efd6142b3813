package services

import (
	"net/http"

	apierrors "github.com/shwndea/automated-padc-processor/internal/errors"
)

// Service errors
var (
	ErrNoWorkbook   = apierrors.ErrNoWorkbook
	ErrNoResults    = apierrors.ErrNoResults
	ErrAuditRunning = apierrors.ErrAuditRunning

	ErrUnknownFormat = apierrors.New(http.StatusBadRequest, "VALIDATION_FAILED", "export format must be one of: text, csv, html")
	ErrNoBoundaries  = apierrors.New(http.StatusBadRequest, "VALIDATION_FAILED", "profile has no boundary data")
)
