package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/absenlab/absen/workflow"
)

func TestTickerRunsImmediatelyAndRepeats(t *testing.T) {
	var runs int32
	stub := &stubRunner{run: func(ctx context.Context, user workflow.User) workflow.Result {
		atomic.AddInt32(&runs, 1)
		return workflow.Result{UserID: user.ID, Outcome: workflow.OutcomeNoActiveClass}
	}}
	c := newCoordinator(stub, CoordinatorConfig{Concurrency: 1})

	tk := NewTicker(context.Background(), c, func() []workflow.User {
		return users("u1")
	}, 20*time.Millisecond, zap.NewNop().Sugar())

	tk.Start()
	time.Sleep(70 * time.Millisecond)
	tk.Stop()

	got := atomic.LoadInt32(&runs)
	assert.GreaterOrEqual(t, got, int32(2), "first pass fires without waiting an interval")

	_, ticks := tk.LastTick()
	assert.GreaterOrEqual(t, ticks, int64(2))
}

func TestTickerDailySweepRunsOncePerDay(t *testing.T) {
	stub := &stubRunner{}
	c := newCoordinator(stub, CoordinatorConfig{Concurrency: 1})

	var sweeps int32
	tk := NewTicker(context.Background(), c, func() []workflow.User { return nil },
		10*time.Millisecond, zap.NewNop().Sugar())
	tk.OnDailySweep(func(ctx context.Context) {
		atomic.AddInt32(&sweeps, 1)
	})

	tk.Start()
	time.Sleep(50 * time.Millisecond)
	tk.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeps), "same-day ticks must not re-sweep")
}

func TestTickerStopHaltsLoop(t *testing.T) {
	var runs int32
	stub := &stubRunner{run: func(ctx context.Context, user workflow.User) workflow.Result {
		atomic.AddInt32(&runs, 1)
		return workflow.Result{UserID: user.ID, Outcome: workflow.OutcomeNoActiveClass}
	}}
	c := newCoordinator(stub, CoordinatorConfig{Concurrency: 1})

	tk := NewTicker(context.Background(), c, func() []workflow.User {
		return users("u1")
	}, 10*time.Millisecond, zap.NewNop().Sugar())

	tk.Start()
	time.Sleep(25 * time.Millisecond)
	tk.Stop()

	settled := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&runs))
}
