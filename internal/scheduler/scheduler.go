// Package scheduler triggers pipeline runs on a cron schedule. It is a thin
// driver: every tick runs extract, clean and load in order through a Runner
// and stops at the first failure. Missed ticks are never caught up.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/internal/etl"
	"github.com/BartekS5/dailyetl/pkg/logger"
)

// ErrBeforeStart is returned by Tick before the workflow's start date.
var ErrBeforeStart = errors.New("workflow start date not reached")

// Runner executes one full run.
type Runner interface {
	Run(ctx context.Context) (*etl.RunReport, error)
}

type Scheduler struct {
	cfg      config.ScheduleConfig
	runner   Runner
	locker   Locker
	start    time.Time
	loc      *time.Location
	schedule cron.Schedule
	cron     *cron.Cron

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	ctx        context.Context
	cancelRuns context.CancelFunc
	last       *etl.RunReport
	immediate  sync.WaitGroup
}

func New(cfg config.ScheduleConfig, runner Runner, locker Locker) (*Scheduler, error) {
	start, err := cfg.Start()
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	schedule, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
	}

	s := &Scheduler{
		cfg:      cfg,
		runner:   runner,
		locker:   locker,
		start:    start,
		loc:      loc,
		schedule: schedule,
		now:      time.Now,
		sleep:    sleepContext,
	}
	s.ctx, s.cancelRuns = context.WithCancel(context.Background())

	l := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.fire))
	return s, nil
}

// Start begins firing on schedule. Runs see the values of ctx but not its
// cancellation: a run in progress is only interrupted when Stop gives up
// waiting for it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancelRuns()
	s.ctx, s.cancelRuns = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()

	s.cron.Start()
	logger.Infow("scheduler started",
		"workflow", s.cfg.Workflow,
		"cron", s.cfg.Cron,
		"timezone", s.loc.String(),
		"next_run", s.NextRun(),
	)
}

// RunNow triggers one run outside the schedule. Stop waits for it.
func (s *Scheduler) RunNow() {
	s.immediate.Add(1)
	go func() {
		defer s.immediate.Done()
		s.trigger("immediate")
	}()
}

// Stop stops firing and waits for runs in progress to finish. If ctx ends
// first, those runs are cancelled and ctx's error is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	finished := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.immediate.Wait()
		close(finished)
	}()

	s.mu.Lock()
	cancel := s.cancelRuns
	s.mu.Unlock()
	defer cancel()

	select {
	case <-finished:
		logger.Infow("scheduler stopped", "workflow", s.cfg.Workflow)
		return nil
	case <-ctx.Done():
		logger.Warnf("scheduler stop timed out, cancelling runs in progress: %v", ctx.Err())
		return ctx.Err()
	}
}

func (s *Scheduler) fire() {
	s.trigger("scheduled")
}

func (s *Scheduler) trigger(kind string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	_, err := s.Tick(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrBeforeStart), errors.Is(err, ErrLocked):
		logger.Infof("%s run of %s skipped: %v", kind, s.cfg.Workflow, err)
	default:
		logger.Errorf("%s run of %s failed: %v", kind, s.cfg.Workflow, err)
	}
}

// Tick performs one scheduled trigger: it takes the run lock and runs the
// pipeline, retrying a failed run up to Retries times with RetryDelay in
// between. Every retry is a fresh run starting from extraction.
func (s *Scheduler) Tick(ctx context.Context) (*etl.RunReport, error) {
	if now := s.now(); now.Before(s.start) {
		return nil, fmt.Errorf("%w: starts at %s", ErrBeforeStart, s.start.Format(time.RFC3339))
	}

	release, err := s.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		report, err := s.runner.Run(ctx)
		s.setLast(report)
		if err == nil {
			return report, nil
		}
		if attempt > s.cfg.Retries {
			return report, err
		}

		logger.Warnw("run failed, retrying",
			"workflow", s.cfg.Workflow,
			"attempt", attempt,
			"retries", s.cfg.Retries,
			"retry_delay", s.cfg.RetryDelay,
			"error", err,
		)
		if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
			return report, err
		}
	}
}

func (s *Scheduler) setLast(r *etl.RunReport) {
	if r == nil {
		return
	}
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}

// LastRun returns a copy of the most recent run report, or nil.
func (s *Scheduler) LastRun() *etl.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	r.History = append([]etl.State(nil), s.last.History...)
	return &r
}

// NextRun returns the next time the schedule fires, never before the start
// date.
func (s *Scheduler) NextRun() time.Time {
	from := s.now()
	if from.Before(s.start) {
		from = s.start
	}
	return s.schedule.Next(from.In(s.loc))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cronLogger routes cron's own logging through the zap logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.S().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
