// Package errors provides error handling for absen.
//
// This package re-exports github.com/cockroachdb/errors, providing stack
// traces, error wrapping, and sentinel-based classification. Attendance
// outcomes are classified by wrapping one of the sentinel errors below and
// checking with errors.Is — never by inspecting error text.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Sentinel errors for the attendance domain.
// The session driver wraps these with context (errors.Wrap) so the retry
// classifier and the workflow can branch on errors.Is without ever parsing
// portal-specific messages.
var (
	// ErrAuth indicates the portal rejected the credentials. Never retried;
	// retrying a bad password only risks locking the account.
	ErrAuth = New("authentication failed")

	// ErrAlreadySubmitted signals attendance was already recorded for the
	// current session. Not a failure — a terminal success-adjacent outcome.
	ErrAlreadySubmitted = New("attendance already submitted")

	// ErrCourseNotFound indicates the course link could not be located on
	// the portal dashboard.
	ErrCourseNotFound = New("course not found on portal")

	// ErrSubmissionClosed indicates the attendance activity exists but no
	// longer accepts submissions for this session.
	ErrSubmissionClosed = New("attendance submission closed")

	// ErrPortalUnreachable indicates a network-level failure talking to the
	// portal. Always retryable.
	ErrPortalUnreachable = New("portal unreachable")

	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = New("operation timed out")

	// ErrConfiguration indicates malformed user or schedule input. Fatal to
	// the affected user only; rejected before the workflow runs.
	ErrConfiguration = New("invalid configuration")
)

// IsAuthError reports whether err is or wraps ErrAuth.
func IsAuthError(err error) bool {
	return err != nil && Is(err, ErrAuth)
}

// IsAlreadySubmitted reports whether err is or wraps ErrAlreadySubmitted.
func IsAlreadySubmitted(err error) bool {
	return err != nil && Is(err, ErrAlreadySubmitted)
}

// IsConfigurationError reports whether err is or wraps ErrConfiguration.
func IsConfigurationError(err error) bool {
	return err != nil && Is(err, ErrConfiguration)
}

// NewConfigurationError creates a configuration error with a formatted message.
func NewConfigurationError(format string, args ...interface{}) error {
	return Wrap(ErrConfiguration, Newf(format, args...).Error())
}
