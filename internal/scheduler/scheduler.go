package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

// Job is one scheduled run. Its error is logged; the schedule keeps going.
type Job func(ctx context.Context) error

type Options struct {
	// Cron overrides schedule.cron when set.
	Cron string
	// RunNow starts the first run immediately instead of at the next tick.
	RunNow bool
	// Timeout bounds a single run; zero means no limit.
	Timeout time.Duration
}

type Opts struct {
	fx.In
	Config *config.Config
	Logger logger.Logger
}

type Scheduler struct {
	config config.ScheduleConfig
	logger logger.Logger
}

func New(opts Opts) *Scheduler {
	return &Scheduler{
		config: opts.Config.Schedule,
		logger: opts.Logger.WithComponent("Scheduler"),
	}
}

func (s *Scheduler) location() *time.Location {
	if s.config.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		s.logger.Warn("Failed to load timezone, using local timezone", "timezone", s.config.Timezone, "error", err)
		return time.Local
	}
	return loc
}

// Run executes job on the cron schedule until ctx is cancelled. Runs never
// overlap: a tick that arrives while a run is in progress is skipped.
func (s *Scheduler) Run(ctx context.Context, opts Options, job Job) error {
	expr := opts.Cron
	if expr == "" {
		expr = s.config.Cron
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(s.location()))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobOpts := []gocron.JobOption{
		gocron.WithName("watch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if opts.RunNow {
		jobOpts = append(jobOpts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	j, err := sched.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			runCtx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}

			s.logger.Info("Scheduled run started")
			start := time.Now()
			if err := job(runCtx); err != nil {
				s.logger.Error("Scheduled run failed", "error", err, "took", time.Since(start))
				return
			}
			s.logger.Info("Scheduled run finished", "took", time.Since(start))
		}),
		jobOpts...,
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule %q: %w", expr, err)
	}

	sched.Start()
	if next, err := j.NextRun(); err == nil {
		s.logger.Info("Watching", "cron", expr, "next_run", next)
	}

	<-ctx.Done()
	s.logger.Info("Stopping scheduler")
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
