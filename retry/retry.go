// Package retry wraps fallible operations with bounded retries and
// exponential backoff. Whether an error is worth retrying is decided by an
// explicit Classifier — a single, testable policy point — never inferred
// from error text.
package retry

import (
	"context"
	"net"
	"time"

	"github.com/absenlab/absen/errors"
)

// Class says whether a failure is worth another attempt.
type Class int

const (
	// Transient failures (timeouts, flaky portal pages) are retried until
	// the attempt budget runs out.
	Transient Class = iota
	// Permanent failures (bad credentials, malformed input) stop
	// immediately; retrying cannot help and may do harm.
	Permanent
)

func (c Class) String() string {
	if c == Permanent {
		return "permanent"
	}
	return "transient"
}

// Classifier maps an error to its Class.
type Classifier func(error) Class

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int           // total invocations, including the first
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  float64       // exponential factor per further attempt
}

// DefaultPolicy mirrors the portal's tolerance: three tries, a couple of
// seconds apart, doubling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the wait before the given retry (attempt is 1-based; the
// delay applies after attempt n fails and before attempt n+1 runs).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// DefaultClassifier treats credential and configuration failures as
// permanent and everything else — network errors, timeouts, unexpected
// portal pages — as transient. The portal renders inconsistently under
// load, so unknown failures default to retryable.
func DefaultClassifier(err error) Class {
	if errors.IsAuthError(err) || errors.IsConfigurationError(err) {
		return Permanent
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Transient
}

// Do invokes op until it succeeds, is classified permanent, exhausts
// policy.MaxAttempts, or ctx is cancelled. It returns the number of
// invocations made and the final error (nil on success).
//
// Cancellation is never swallowed: when ctx expires mid-loop, the context
// error is returned as-is so callers can report a timeout rather than a
// portal failure.
func Do(ctx context.Context, policy Policy, classify Classifier, op func(context.Context) error) (int, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if classify == nil {
		classify = DefaultClassifier
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return attempt, nil
		}

		// A cancelled context surfaces through op as well; keep it distinct
		// from portal failures.
		if errors.IsAny(lastErr, context.Canceled, context.DeadlineExceeded) {
			return attempt, lastErr
		}

		if classify(lastErr) == Permanent {
			return attempt, lastErr
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return policy.MaxAttempts, lastErr
}
