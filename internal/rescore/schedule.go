package rescore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	job    *Job
	logger *slog.Logger
}

// NewScheduler registers job under schedule, a standard five-field cron
// expression or a descriptor such as "@every 1h". Passes that would overlap
// a running one are skipped.
func NewScheduler(schedule string, job *Job) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		job:    job,
		logger: job.logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("rescore schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.job.Run(context.Background()); err != nil {
		if errors.Is(err, ErrRunning) {
			s.logger.Info("rescore pass skipped, previous pass still running")
			return
		}
		s.logger.Error("rescore pass failed", "error", err)
	}
}

// Start begins the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("rescore scheduler started")
}

// Stop halts the schedule and waits for a running pass, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("rescore scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("rescore scheduler stop timeout")
		return ctx.Err()
	}
}
