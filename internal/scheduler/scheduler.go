package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/nthewara88agent/stock-tracker/utils"
)

type taskFn func(ctx context.Context) error

type Scheduler struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
}

func New(clock clockwork.Clock) *Scheduler {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		panic(err.Error())
	}
	return &Scheduler{scheduler: scheduler, clock: clock}
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down. Contexts handed to running jobs are
// cancelled, the jobs themselves are left to finish.
func (s *Scheduler) Stop() {
	_ = s.scheduler.Shutdown()
}

func (s *Scheduler) createJob(jobDefinition gocron.JobDefinition, name string, fn taskFn, startAt gocron.JobOption) {
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	if startAt != nil {
		opts = append(opts, startAt)
	}

	_, err := s.scheduler.NewJob(
		jobDefinition,
		gocron.NewTask(s.taskWithRecover(fn, name)),
		opts...,
	)

	if err != nil {
		slog.Error("Scheduler creating job error", slog.String("jobName", name), slog.String("err", err.Error()))
		panic(err.Error())
	}
}

func (s *Scheduler) NewIntervalJob(name string, fn taskFn, interval time.Duration, startImmediately bool) {
	var startAt gocron.JobOption
	if startImmediately {
		startAt = gocron.WithStartAt(gocron.WithStartImmediately())
	}
	s.createJob(gocron.DurationJob(interval), name, fn, startAt)
}

// NewDelayedIntervalJob runs fn for the first time after delay and then
// every interval. A delay of zero or less starts the job immediately.
func (s *Scheduler) NewDelayedIntervalJob(name string, fn taskFn, interval, delay time.Duration) {
	startAt := gocron.WithStartAt(gocron.WithStartImmediately())
	if delay > 0 {
		startAt = gocron.WithStartAt(gocron.WithStartDateTime(s.clock.Now().Add(delay)))
	}
	s.createJob(gocron.DurationJob(interval), name, fn, startAt)
}

func (s *Scheduler) NewCrontabJob(name string, fn taskFn, crontab string, startImmediately bool) {
	var startAt gocron.JobOption
	if startImmediately {
		startAt = gocron.WithStartAt(gocron.WithStartImmediately())
	}
	s.createJob(gocron.CronJob(crontab, true), name, fn, startAt)
}

func (s *Scheduler) taskWithRecover(fn taskFn, jobName string) func(ctx context.Context) {
	return func(ctx context.Context) {
		ctx = utils.WithRqID(ctx)
		rqID := utils.GetRequestIDFromCtx(ctx)

		defer func() {
			if r := recover(); r != nil {
				slog.Error(
					"Panic recovered in scheduler job",
					slog.String("rqID", rqID),
					slog.String("jobName", jobName),
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		if ctx.Err() != nil {
			slog.Info("job skipped, scheduler is stopping", slog.String("rqID", rqID), slog.String("jobName", jobName))
			return
		}

		slog.Info("job start", slog.String("rqID", rqID), slog.String("jobName", jobName))

		err := fn(ctx)
		if err != nil {
			slog.Error("job failed", slog.String("rqID", rqID), slog.String("jobName", jobName), slog.Any("error", err))
		} else {
			slog.Info("job completed", slog.String("rqID", rqID), slog.String("jobName", jobName))
		}
	}
}
