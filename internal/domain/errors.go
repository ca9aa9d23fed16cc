package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions. The pure
// calculators never return errors; malformed input degrades to defined
// defaults instead.
// -----------------------------------------------------------------------------

// Session errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFinalized = errors.New("session already finalized")
)

// Report errors
var (
	ErrReportNotFound = errors.New("grade report not found")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)
