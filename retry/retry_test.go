package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenlab/absen/errors"
)

// fastPolicy keeps test runtime negligible.
func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2.0}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), DefaultClassifier, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), DefaultClassifier, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.Wrap(errors.ErrPortalUnreachable, "flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttemptsOnTransient(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), DefaultClassifier, func(context.Context) error {
		calls++
		return errors.Wrap(errors.ErrPortalUnreachable, "always down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls, "a transiently-failing op runs exactly MaxAttempts times")
	assert.True(t, errors.Is(err, errors.ErrPortalUnreachable))
}

func TestDoStopsImmediatelyOnPermanent(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(5), DefaultClassifier, func(context.Context) error {
		calls++
		return errors.Wrap(errors.ErrAuth, "wrong password")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls, "permanent failures are never retried")
	assert.True(t, errors.IsAuthError(err))
}

func TestDoPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	attempts, err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: time.Hour, Multiplier: 2}, DefaultClassifier,
		func(context.Context) error {
			calls++
			cancel() // cancelled mid-run, while the backoff sleep would block
			return errors.Wrap(errors.ErrPortalUnreachable, "transient")
		})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "cancellation must not be reported as a portal failure")
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsDeadlineErrorFromOp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	_, err := Do(ctx, fastPolicy(3), DefaultClassifier, func(context.Context) error {
		return context.DeadlineExceeded
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDelayGrowsExponentially(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2.0}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
}

func TestDefaultClassifier(t *testing.T) {
	assert.Equal(t, Permanent, DefaultClassifier(errors.Wrap(errors.ErrAuth, "bad creds")))
	assert.Equal(t, Permanent, DefaultClassifier(errors.NewConfigurationError("bad row")))
	assert.Equal(t, Transient, DefaultClassifier(errors.Wrap(errors.ErrPortalUnreachable, "net")))
	assert.Equal(t, Transient, DefaultClassifier(errors.Wrap(errors.ErrCourseNotFound, "render lag")))
	assert.Equal(t, Transient, DefaultClassifier(errors.New("anything unknown")))
}
