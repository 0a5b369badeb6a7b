package collector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-co-op/gocron/v2"

	"team-ingest/internal/logging"
)

// RunFunc performs one complete pipeline run.
type RunFunc func(ctx context.Context) error

// Scheduler repeats a run on a cron expression. Runs never overlap: a tick that
// arrives while a run is in progress is dropped.
type Scheduler struct {
	s      gocron.Scheduler
	job    gocron.Job
	logger *logging.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// NewScheduler registers run under a standard five-field cron expression.
func NewScheduler(ctx context.Context, cron string, run RunFunc, logger *logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(time.Local))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	sched := &Scheduler{s: s, logger: logger.Named("schedule")}

	job, err := s.NewJob(
		gocron.CronJob(cron, false),
		gocron.NewTask(func() { sched.runOnce(ctx, run) }),
		gocron.WithName("ingest"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.Shutdown()
		return nil, errors.Wrapf(err, "invalid schedule %q", cron)
	}
	sched.job = job

	return sched, nil
}

func (s *Scheduler) runOnce(ctx context.Context, run RunFunc) {
	if ctx.Err() != nil {
		return
	}
	n := s.runs.Add(1)
	s.logger.Info("scheduled run starting", "run", n)

	if err := run(ctx); err != nil {
		s.failures.Add(1)
		s.logger.Error("scheduled run failed", "run", n, "error", err)
		return
	}
	s.logger.Info("scheduled run finished", "run", n)
}

func (s *Scheduler) Start() {
	s.s.Start()
	if next, err := s.job.NextRun(); err == nil {
		s.logger.Info("scheduler started", "next_run", next.Format(time.RFC3339))
	}
}

// RunNow triggers the job outside its schedule.
func (s *Scheduler) RunNow() error {
	return s.job.RunNow()
}

// Runs returns how many runs started and how many of them failed.
func (s *Scheduler) Runs() (started, failed int64) {
	return s.runs.Load(), s.failures.Load()
}

// Shutdown stops scheduling and waits for a running job to return.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}
