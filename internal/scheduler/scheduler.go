package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const defaultInterval = 15 * time.Minute

// Refresher is refreshed on every tick.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler periodically refreshes the air-quality view.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. Each run gets at most timeout to finish.
func New(target Refresher, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens one interval from now.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.
		Every(s.interval).
		WaitForSchedule().
		SingletonMode().
		Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.target.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", "error", err)
		return
	}
	s.logger.Debug("scheduled refresh completed", "duration", time.Since(start))
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
