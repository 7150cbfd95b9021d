// Package runner fans attendance passes out over a bounded worker pool
// and drives the daemon's scheduler tick.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/workflow"
)

// PassRunner executes one user's pass. Satisfied by *workflow.Workflow.
type PassRunner interface {
	Run(ctx context.Context, user workflow.User) workflow.Result
}

// Coordinator runs a batch of users with bounded concurrency. Users are
// dispatched in input order; at most Concurrency passes run at once.
type Coordinator struct {
	runner      PassRunner
	concurrency int
	stagger     time.Duration
	timeout     time.Duration
	log         *zap.SugaredLogger
}

// CoordinatorConfig tunes a Coordinator.
type CoordinatorConfig struct {
	Concurrency int           // parallel passes (default: 4)
	Stagger     time.Duration // delay between user starts
	Timeout     time.Duration // per-user deadline, 0 = none
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		Concurrency: 4,
		Stagger:     2 * time.Second,
		Timeout:     3 * time.Minute,
	}
}

// NewCoordinator creates a coordinator over the given pass runner.
func NewCoordinator(runner PassRunner, cfg CoordinatorConfig, log *zap.SugaredLogger) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Coordinator{
		runner:      runner,
		concurrency: cfg.Concurrency,
		stagger:     cfg.Stagger,
		timeout:     cfg.Timeout,
		log:         log.Named("runner"),
	}
}

// RunAll executes a pass for every user and returns results in input
// order. A panicking pass is confined to its own slot; cancellation stops
// dispatching new users but lets running passes see their own deadline.
func (c *Coordinator) RunAll(ctx context.Context, users []workflow.User) []workflow.Result {
	results := make([]workflow.Result, len(users))
	if len(users) == 0 {
		return results
	}

	// Each pass gets an id so one user's log lines can be tied to the
	// batch that spawned them.
	passID := uuid.NewString()[:8]
	log := c.log.With("pass", passID)
	log.Infow("Pass started", "users", len(users), "concurrency", c.concurrency)

	type job struct {
		idx  int
		user workflow.User
	}
	jobs := make(chan job)
	dispatched := make([]bool, len(users))

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = c.runOne(ctx, j.user)
			}
		}()
	}

feed:
	for i, user := range users {
		if i > 0 && c.stagger > 0 {
			select {
			case <-ctx.Done():
				break feed
			case <-time.After(c.stagger):
			}
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{idx: i, user: user}:
			dispatched[i] = true
		}
	}
	close(jobs)
	wg.Wait()
	log.Infow("Pass finished")

	// Users never dispatched get an explicit cancellation result
	// instead of a zero value that reads like success.
	for i := range results {
		if !dispatched[i] {
			results[i] = workflow.Result{
				UserID:  users[i].ID,
				Outcome: workflow.OutcomeTransientFailure,
				Err:     errors.Wrap(ctx.Err(), "pass never started"),
			}
		}
	}
	return results
}

func (c *Coordinator) runOne(ctx context.Context, user workflow.User) (res workflow.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("Attendance pass panicked", "user", user.ID, "panic", r)
			res = workflow.Result{
				UserID:  user.ID,
				Outcome: workflow.OutcomeTransientFailure,
				Err:     errors.Newf("pass panicked: %v", r),
			}
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.runner.Run(ctx, user)
}
