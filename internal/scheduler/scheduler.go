package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"library-circulation-backend/internal/jobs"
	"library-circulation-backend/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler and registers every job. It fails when a
// configured cron spec does not parse.
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// UTC timezone, seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.DispatchNotifications, s.jobs.DispatchNotifications); err != nil {
		return fmt.Errorf("register DispatchNotifications job: %w", err)
	}
	if _, err := s.cron.AddFunc(cfg.SendOverdueReminders, s.jobs.SendOverdueReminders); err != nil {
		return fmt.Errorf("register SendOverdueReminders job: %w", err)
	}

	logger.Info("All cron jobs registered successfully", "count", len(s.cron.Entries()))
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// Entries reports the number of registered jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
