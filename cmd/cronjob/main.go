package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/database"
	"library-circulation-backend/internal/jobs"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/repository/memory"
	"library-circulation-backend/internal/repository/postgres"
	"library-circulation-backend/internal/scheduler"
	"library-circulation-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'dispatch-notifications', 'all')")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting library cronjob runner...", "log_level", cfg.Log.Level)

	store, closeStore := openStore(cfg)
	defer closeStore()

	var email service.EmailService
	if cfg.SendGrid.APIKey == "" {
		logger.Warn("SendGrid API key not set; notifications will be logged only")
		email = service.NewLogEmailService()
	} else {
		email = service.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.From, cfg.SendGrid.FromName)
	}

	jobServices := &jobs.Services{
		Notifications: service.NewNotificationService(store, email, metrics.Nop{}),
	}
	jobRunner := jobs.NewJobRunner(jobServices, cfg)

	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		logger.Error("Failed to build scheduler", "error", err)
		log.Fatalf("Failed to build scheduler: %v", err)
	}

	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped")
}

func openStore(cfg *config.Config) (repository.Store, func()) {
	if cfg.Database.Type == config.DatabaseMemory {
		logger.Warn("Cron jobs running against an empty in-memory store")
		return memory.New(), func() {}
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := database.Open(context.Background(), cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connection established")
	return postgres.NewStore(db), func() { db.Close() }
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "dispatch-notifications":
		jobRunner.DispatchNotifications()
	case "send-overdue-reminders":
		jobRunner.SendOverdueReminders()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - dispatch-notifications\n")
		fmt.Printf("  - send-overdue-reminders\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
