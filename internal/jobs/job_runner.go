package jobs

import (
	"time"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Notifications service.NotificationService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	jobFunc()
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
}

// RunAll enqueues reminders and then dispatches the outbox (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.SendOverdueReminders()
	jr.DispatchNotifications()
}
