package workflow

import (
	"fmt"
	"time"

	"github.com/absenlab/absen/errors"
)

// Outcome classifies how a pass ended.
type Outcome int

const (
	// OutcomeSuccess means attendance was submitted this run.
	OutcomeSuccess Outcome = iota
	// OutcomeAlreadySubmitted means the portal (or local state) already
	// had attendance recorded for the class.
	OutcomeAlreadySubmitted
	// OutcomeNoActiveClass means no schedule entry matched the window.
	OutcomeNoActiveClass
	// OutcomeSkipped means a pause flag or the daily attempt cap held
	// the pass back.
	OutcomeSkipped
	// OutcomeTransientFailure means retries were exhausted on errors
	// that could clear up later.
	OutcomeTransientFailure
	// OutcomePermanentFailure means retrying is pointless, e.g. bad
	// credentials.
	OutcomePermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadySubmitted:
		return "already_submitted"
	case OutcomeNoActiveClass:
		return "no_active_class"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Failed reports whether the pass ended in a failure outcome.
func (o Outcome) Failed() bool {
	return o == OutcomeTransientFailure || o == OutcomePermanentFailure
}

// SkipReason says why a Skipped pass never reached the portal.
type SkipReason int

const (
	SkipNone SkipReason = iota
	// SkipPaused means a pause flag held the class back.
	SkipPaused
	// SkipAttemptCap means the class burned its daily failed-run budget.
	SkipAttemptCap
	// SkipRecorded means the local log already has the class for today;
	// earlier in the day a run submitted it and told the user. Quiet on
	// every later tick inside the window.
	SkipRecorded
)

// Result is the final word on one user's pass.
type Result struct {
	UserID   string
	Course   string
	Outcome  Outcome
	Reason   SkipReason // set only when Outcome is OutcomeSkipped
	Attempts int
	Err      error
	Duration time.Duration
}

// Message renders the user-facing notification text, or "" when the
// outcome is not worth a message. Failures render only the error
// category; the wrapped chain stays in the logs and must never leak
// portal internals or credentials into a chat message.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeSuccess:
		if r.Attempts > 1 {
			return fmt.Sprintf("✅ Attendance submitted for %s (took %d tries)", r.Course, r.Attempts)
		}
		return fmt.Sprintf("✅ Attendance submitted for %s", r.Course)
	case OutcomeAlreadySubmitted:
		return fmt.Sprintf("ℹ️ Attendance for %s was already recorded", r.Course)
	case OutcomeNoActiveClass:
		return "ℹ️ No class in the attendance window right now"
	case OutcomeSkipped:
		if r.Reason == SkipPaused {
			return fmt.Sprintf("⏸️ Skipped attendance for %s (paused)", r.Course)
		}
		return ""
	case OutcomeTransientFailure:
		return fmt.Sprintf("⚠️ Could not submit attendance for %s after %d tries: %s", r.Course, r.Attempts, failureReason(r.Err))
	case OutcomePermanentFailure:
		return fmt.Sprintf("❌ Attendance for %s failed and will not be retried: %s", r.Course, failureReason(r.Err))
	default:
		return ""
	}
}

// failureReason maps the error chain to a short user-facing category.
func failureReason(err error) string {
	switch {
	case err == nil:
		return "unknown error"
	case errors.Is(err, errors.ErrAuth):
		return "the portal rejected the login, please recheck your credentials"
	case errors.Is(err, errors.ErrCourseNotFound):
		return "the course was not found on the portal"
	case errors.Is(err, errors.ErrSubmissionClosed):
		return "the submission window is closed"
	case errors.Is(err, errors.ErrPortalUnreachable):
		return "the portal is unreachable"
	case errors.Is(err, errors.ErrTimeout):
		return "the attempt timed out"
	case errors.Is(err, errors.ErrConfiguration):
		return "the account is misconfigured"
	default:
		return "an unexpected error"
	}
}
