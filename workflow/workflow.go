// Package workflow runs one user's attendance pass end to end: schedule
// match, pause check, portal login and submission with retries, state
// recording, and exactly one outcome notification.
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/absenlab/absen/driver"
	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/notify"
	"github.com/absenlab/absen/retry"
	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/state"
)

// User is everything the pass needs for one person.
type User struct {
	ID          string
	Credentials driver.Credentials
	Schedule    schedule.Set
	// Target may be zero-valued; then no notifications are sent.
	Target notify.Target
}

// Workflow executes attendance passes. One Workflow serves all users and
// is safe for concurrent Run calls.
type Workflow struct {
	driver     driver.Driver
	dispatcher *notify.Dispatcher
	store      *state.Store // nil disables persistence checks
	policy     retry.Policy
	classify   retry.Classifier
	attemptCap int // failed runs per class per day; 0 = unlimited
	notifyIdle bool
	log        *zap.SugaredLogger
	now        func() time.Time
}

// Option adjusts a Workflow.
type Option func(*Workflow)

// WithStore enables persistent attended/attempt/pause checks.
func WithStore(s *state.Store) Option {
	return func(w *Workflow) { w.store = s }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(w *Workflow) { w.policy = p }
}

// WithClassifier overrides error classification.
func WithClassifier(c retry.Classifier) Option {
	return func(w *Workflow) { w.classify = c }
}

// WithAttemptCap limits failed runs per class per day. Needs a store.
func WithAttemptCap(cap int) Option {
	return func(w *Workflow) { w.attemptCap = cap }
}

// WithIdleNotifications also messages users when no class matched.
func WithIdleNotifications(enabled bool) Option {
	return func(w *Workflow) { w.notifyIdle = enabled }
}

// WithClock overrides time lookup. Tests pin the schedule window with it.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New creates a workflow over the given portal driver and dispatcher.
func New(drv driver.Driver, dispatcher *notify.Dispatcher, log *zap.SugaredLogger, opts ...Option) *Workflow {
	w := &Workflow{
		driver:     drv,
		dispatcher: dispatcher,
		policy:     retry.DefaultPolicy(),
		classify:   retry.DefaultClassifier,
		log:        log.Named("workflow"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes the pass for one user and always returns a Result; errors
// are carried inside it. Notification failures never change the outcome.
func (w *Workflow) Run(ctx context.Context, user User) Result {
	started := w.now()
	res := w.run(ctx, user, started)
	res.UserID = user.ID
	res.Duration = time.Since(started)

	w.log.Infow("Attendance pass finished",
		"user", user.ID,
		"course", res.Course,
		"outcome", res.Outcome.String(),
		"attempts", res.Attempts,
		"duration", res.Duration,
		"error", res.Err)

	if text := res.Message(); text != "" && user.Target.Channel != "" {
		if res.Outcome == OutcomeNoActiveClass && !w.notifyIdle {
			return res
		}
		// Detached from the workflow deadline: a pass that timed out
		// still owes the user its failure message.
		w.dispatcher.Dispatch(context.WithoutCancel(ctx), user.Target, text)
	}
	return res
}

func (w *Workflow) run(ctx context.Context, user User, now time.Time) Result {
	entry, ok := schedule.FindActiveEntry(user.Schedule, now)
	if !ok {
		return Result{Outcome: OutcomeNoActiveClass}
	}

	if w.store != nil {
		// Pause is checked only once a class matched, so idle ticks cannot
		// burn a one-shot flag before the class it was meant for.
		paused, err := w.store.ConsumePause(ctx, user.ID, entry.Course)
		if err != nil {
			w.log.Warnw("Pause check failed, continuing", "user", user.ID, "error", err)
		} else if paused {
			return Result{Course: entry.Course, Outcome: OutcomeSkipped, Reason: SkipPaused}
		}

		attended, err := w.store.HasAttended(ctx, user.ID, entry.Course, now)
		if err != nil {
			w.log.Warnw("Attendance check failed, continuing", "user", user.ID, "error", err)
		} else if attended {
			// Whoever recorded it already messaged the user that day;
			// later ticks inside the window stay quiet.
			return Result{Course: entry.Course, Outcome: OutcomeSkipped, Reason: SkipRecorded}
		}

		if w.attemptCap > 0 {
			attempts, err := w.store.Attempts(ctx, user.ID, entry.Course, now)
			if err != nil {
				w.log.Warnw("Attempt count lookup failed, continuing", "user", user.ID, "error", err)
			} else if attempts >= w.attemptCap {
				w.log.Infow("Daily attempt cap reached, skipping class",
					"user", user.ID, "course", entry.Course, "attempts", attempts)
				return Result{Course: entry.Course, Outcome: OutcomeSkipped, Reason: SkipAttemptCap}
			}
		}
	}

	var submitOutcome driver.SubmitOutcome
	attempts, err := retry.Do(ctx, w.policy, w.classify, func(ctx context.Context) error {
		sess, err := w.driver.Login(ctx, user.Credentials)
		if err != nil {
			return errors.Wrap(err, "login")
		}
		defer sess.Close()

		outcome, err := sess.Submit(ctx, entry.Course)
		if err != nil {
			return errors.Wrapf(err, "submit %s", entry.Course)
		}
		submitOutcome = outcome
		return nil
	})

	if err != nil {
		return w.failure(ctx, user, entry.Course, now, attempts, err)
	}

	outcome := OutcomeSuccess
	recorded := state.OutcomeSubmitted
	if submitOutcome == driver.OutcomeAlreadySubmitted {
		outcome = OutcomeAlreadySubmitted
		recorded = state.OutcomeAlreadySubmitted
	}
	if w.store != nil {
		if err := w.store.RecordAttendance(ctx, user.ID, entry.Course, now, recorded, attempts); err != nil {
			w.log.Warnw("Failed to record attendance", "user", user.ID, "error", err)
		}
	}
	return Result{Course: entry.Course, Outcome: outcome, Attempts: attempts}
}

func (w *Workflow) failure(ctx context.Context, user User, course string, now time.Time, attempts int, err error) Result {
	outcome := OutcomeTransientFailure
	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		// The pass ran out of time; the portal may have been fine.
		err = errors.Wrap(errors.ErrTimeout, err.Error())
	} else if w.classify(err) == retry.Permanent {
		outcome = OutcomePermanentFailure
	}

	if w.store != nil {
		// Count the whole run as one failed try toward the daily cap.
		if _, serr := w.store.IncrementAttempts(context.WithoutCancel(ctx), user.ID, course, now); serr != nil {
			w.log.Warnw("Failed to bump attempt counter", "user", user.ID, "error", serr)
		}
	}
	return Result{Course: course, Outcome: outcome, Attempts: attempts, Err: err}
}
