package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/ims-weather/internal/logging"
)

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run; zero means the interval.
	Timeout time.Duration
	// Immediate runs the job once at start instead of after the first interval.
	Immediate bool
	Run       func(ctx context.Context) error
}

// Scheduler runs background jobs such as feed refresh and station warm-up.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      []Job
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a Scheduler for jobs. Runs of the same job never overlap.
func New(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		jobs:      jobs,
		logger:    logging.Component(logger, "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules every job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		s.logger.Info("no jobs configured; nothing to schedule")
		return nil
	}

	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			return errors.New("scheduler: job " + job.Name + " needs a positive interval and a run func")
		}

		sched := s.scheduler.Every(job.Interval).Tag(job.Name)
		if !job.Immediate {
			sched = sched.WaitForSchedule()
		}
		if _, err := sched.Do(s.runner(job)); err != nil {
			return err
		}
		s.logger.Info("job scheduled", "job", job.Name, "interval", job.Interval, "immediate", job.Immediate)
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) runner(job Job) func() {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	return func() {
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		start := time.Now()
		s.logger.Debug("job started", "job", job.Name)
		if err := job.Run(ctx); err != nil {
			s.logger.Warn("job failed", "job", job.Name, "duration", time.Since(start), "err", err)
			return
		}
		s.logger.Info("job completed", "job", job.Name, "duration", time.Since(start))
	}
}

// Stop stops the scheduler and cancels running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
