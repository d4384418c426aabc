package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "library-circulation-backend/internal/api/http"
	"library-circulation-backend/internal/config"
	"library-circulation-backend/internal/database"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/metrics"
	"library-circulation-backend/internal/repository"
	"library-circulation-backend/internal/repository/memory"
	"library-circulation-backend/internal/repository/postgres"
	"library-circulation-backend/internal/security"
	"library-circulation-backend/internal/service"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting library circulation server...", "log_level", cfg.Log.Level, "store", cfg.Database.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	tokens := security.NewTokenManager(cfg.JWT.Secret, cfg.AccessTokenTTL())
	email := newEmailService(cfg)

	router := httpapi.NewRouter(httpapi.Services{
		Circulation:   service.NewCirculationService(store, collector),
		Moderation:    service.NewModerationService(store, collector),
		Submissions:   service.NewSubmissionService(store, security.NewContentSanitizer(), collector),
		Policy:        service.NewPolicyService(store),
		Auth:          service.NewAuthService(cfg.Staff, tokens),
		Notifications: service.NewNotificationService(store, email, collector),
	}, httpapi.RouterOptions{
		Tokens:         tokens,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		RateLimiter:    httpapi.NewRateLimiter(cfg.RateLimit),
	})

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

// openStore returns the configured store and a close function.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.Type == config.DatabaseMemory {
		logger.Warn("Using in-memory store; state is lost on restart")
		return memory.New(), func() {}, nil
	}

	dsn := cfg.GetDatabaseConnectionString()
	if cfg.Database.RunMigrations {
		logger.Info("Applying database migrations...")
		if err := database.RunMigrations(dsn); err != nil {
			return nil, nil, err
		}
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connection established")
	return postgres.NewStore(db), func() { db.Close() }, nil
}

func newEmailService(cfg *config.Config) service.EmailService {
	if cfg.SendGrid.APIKey == "" {
		logger.Warn("SendGrid API key not set; notifications will be logged only")
		return service.NewLogEmailService()
	}
	return service.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.From, cfg.SendGrid.FromName)
}
