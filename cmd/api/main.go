package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicbudget/internal/cache"
	"civicbudget/internal/config"
	"civicbudget/internal/database"
	"civicbudget/internal/logger"
	"civicbudget/internal/middleware"
	"civicbudget/internal/scheduler"
	"civicbudget/internal/server"
	"civicbudget/internal/services"
	"civicbudget/internal/validator"
)

// @title           Civic Budget API
// @version         1.0
// @description     Participatory budgeting: categories with spending limits, voting phases, proposals, votes and approvals.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Pipeline API key.

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Sweep lock: redis across instances, in-process otherwise
	var locker cache.Locker
	lockKey := "phase-sweep"
	if appConfig.RedisURL != "" {
		client, err := cache.NewClient(appConfig.RedisURL, appConfig.Env)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warnf("redis close error: %v", err)
			}
		}()
		locker = cache.NewRedisLocker(client)
		lockKey = client.KeyBuilder.KeyPhaseSweepLock()
	} else {
		log.Warn("REDIS_URL not set, phase sweep lock is process-local")
		locker = cache.NewMemoryLocker()
	}

	db := dbManager.DB()
	sweeps := scheduler.New(services.NewPhaseSweeper(db), locker, lockKey, appConfig.SweepLockTTL)
	if err := sweeps.Start(appConfig.PhaseSweepSchedule); err != nil {
		return fmt.Errorf("failed to start phase sweep scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	voteLimiter := middleware.NewLimiterStore(appConfig.VoteRateLimitRPS, appConfig.VoteRateLimitBurst)
	voteLimiter.StartJanitor(ctx, 2*time.Minute)

	router := server.NewRouter(server.Options{
		DB:             db,
		Sweeper:        sweeps,
		VoteLimiter:    voteLimiter,
		PipelineAPIKey: appConfig.PipelineAPIKey,
		Swagger:        appConfig.Env != "production",
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting civic budget server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http shutdown error: %v", err)
	}
	if err := sweeps.Stop(shutdownCtx); err != nil {
		log.Warnf("scheduler stop error: %v", err)
	}
	return nil
}
