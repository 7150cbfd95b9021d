package runner

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/workflow"
)

// memoryPressurePercent is where we start warning; portal drivers backed
// by real browsers have drowned small VPSes before.
const memoryPressurePercent = 90.0

// Ticker drives the daemon: every interval it resolves the current user
// list and runs a full pass over it. Users are resolved per tick so a
// config reload takes effect without restarting.
type Ticker struct {
	coordinator *Coordinator
	users       func() []workflow.User
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	log         *zap.SugaredLogger

	// housekeeping runs once per calendar day, e.g. pruning old run state.
	housekeeping func(ctx context.Context)
	lastSweepDay string

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
}

// NewTicker creates a ticker bound to a parent context.
func NewTicker(ctx context.Context, coordinator *Coordinator, users func() []workflow.User, interval time.Duration, log *zap.SugaredLogger) *Ticker {
	tickerCtx, cancel := context.WithCancel(ctx)
	return &Ticker{
		coordinator: coordinator,
		users:       users,
		interval:    interval,
		ctx:         tickerCtx,
		cancel:      cancel,
		log:         log.Named("ticker"),
	}
}

// OnDailySweep registers a housekeeping callback run once per day.
func (t *Ticker) OnDailySweep(fn func(ctx context.Context)) {
	t.housekeeping = fn
}

// Start begins the tick loop. The first pass runs immediately rather
// than waiting out a full interval.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.log.Infow("Scheduler started", "interval", t.interval)
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.log.Infow("Scheduler stopped")
}

func (t *Ticker) run() {
	defer t.wg.Done()

	t.tick(time.Now())

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.tick(tickTime)
		}
	}
}

func (t *Ticker) tick(now time.Time) {
	t.mu.Lock()
	t.lastTickAt = now
	t.ticksSinceStart++
	tickNum := t.ticksSinceStart
	t.mu.Unlock()

	t.checkMemoryPressure()
	t.sweepIfNewDay(now)

	users := t.users()
	if len(users) == 0 {
		t.log.Debugw("No users configured, skipping tick", "tick", tickNum)
		return
	}

	t.logUpcomingClasses(users, now)

	results := t.coordinator.RunAll(t.ctx, users)

	var acted int
	for _, res := range results {
		if res.Outcome != workflow.OutcomeNoActiveClass {
			acted++
		}
	}
	if acted > 0 {
		t.log.Infow("Pass complete", "tick", tickNum, "users", len(users), "acted", acted)
	}
}

// logUpcomingClasses tells the log when the next class starts so an idle
// daemon is distinguishable from a broken one.
func (t *Ticker) logUpcomingClasses(users []workflow.User, now time.Time) {
	for _, user := range users {
		next, ok := schedule.NextEntry(user.Schedule, now)
		if !ok {
			continue
		}
		t.log.Debugw("Next class today",
			"user", user.ID,
			"course", next.Course,
			"starts", next.Start.String())
	}
}

func (t *Ticker) sweepIfNewDay(now time.Time) {
	if t.housekeeping == nil {
		return
	}
	day := now.Format("2006-01-02")
	if day == t.lastSweepDay {
		return
	}
	t.lastSweepDay = day
	t.housekeeping(t.ctx)
}

func (t *Ticker) checkMemoryPressure() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	if vm.UsedPercent >= memoryPressurePercent {
		t.log.Warnw("Memory pressure high before pass",
			"used_percent", vm.UsedPercent,
			"available_mb", vm.Available/1024/1024)
	}
}

// LastTick reports when the loop last fired and how many ticks have run.
func (t *Ticker) LastTick() (time.Time, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTickAt, t.ticksSinceStart
}
