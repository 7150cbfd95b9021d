// Package driver defines the session driver contract: the abstract
// login/submit surface the attendance workflow runs against. Concrete
// drivers (driver/spada, test fakes) own all portal mechanics; the workflow
// only consumes the three-outcome contract below.
package driver

import "context"

// Credentials is one user's portal credential pair.
type Credentials struct {
	Username string
	Password string
}

// SubmitOutcome distinguishes a fresh submission from one the portal had
// already recorded. AlreadySubmitted is terminal and non-retryable: the
// external state change is irreversible and must happen at most once.
type SubmitOutcome int

const (
	OutcomeSubmitted SubmitOutcome = iota
	OutcomeAlreadySubmitted
)

func (o SubmitOutcome) String() string {
	if o == OutcomeAlreadySubmitted {
		return "already_submitted"
	}
	return "submitted"
}

// Session is an authenticated portal session.
//
// Submit records attendance for the named course. Errors are classified by
// wrapping the sentinel errors in the errors package (ErrCourseNotFound,
// ErrSubmissionClosed, ErrPortalUnreachable, ...); the retry controller
// decides recoverability from those sentinels alone.
type Session interface {
	Submit(ctx context.Context, course string) (SubmitOutcome, error)
	Close() error
}

// Driver opens authenticated sessions against the attendance portal.
//
// Login fails with an error wrapping errors.ErrAuth when the portal rejects
// the credentials, and errors.ErrPortalUnreachable for transport failures.
type Driver interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
}
