package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pgcarpool/carpool/internal/api/handlers"
	"github.com/pgcarpool/carpool/internal/api/routes"
	"github.com/pgcarpool/carpool/internal/config"
	"github.com/pgcarpool/carpool/internal/repository/postgres"
	"github.com/pgcarpool/carpool/internal/service/lifecycle"
	"github.com/pgcarpool/carpool/internal/service/matching"
	"github.com/pgcarpool/carpool/internal/service/notify"
	"github.com/pgcarpool/carpool/internal/service/registry"
	"github.com/pgcarpool/carpool/pkg/cache"
	"github.com/pgcarpool/carpool/pkg/database"
	"github.com/pgcarpool/carpool/pkg/logger"
	"github.com/pgcarpool/carpool/pkg/monitoring"
	"github.com/pgcarpool/carpool/pkg/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting carpool coordination service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
	)

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp = nil
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized",
			logger.String("app_name", cfg.NewRelic.AppName))
	}
	if nrApp != nil {
		defer nrApp.Shutdown(10 * time.Second)
	}

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	if err != nil {
		appLogger.Warn("Redis unavailable, serving without cache", logger.Err(err))
		redisClient = nil
	} else {
		defer cache.Close(redisClient)
		appLogger.Info("Connected to Redis")
	}

	// Initialize PostgreSQL
	postgresDB, err := database.NewPostgresDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConnections,
		MaxIdle:  cfg.Database.MaxIdleConns,
	})
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", logger.Err(err))
	}
	defer postgresDB.Close()

	appLogger.Info("Connected to PostgreSQL")

	// Repositories
	rideRepo := postgres.NewRideRepository(postgresDB, cfg.Database.OpTimeout)
	locationRepo := postgres.NewLocationRepository(postgresDB, cfg.Database.OpTimeout)

	// WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run()

	// Services
	notifier := notify.New(wsHub, redisClient, nrApp, appLogger)
	matchingSvc := matching.NewService(rideRepo, locationRepo, notifier, appLogger, matching.Config{
		Window:               cfg.Matching.Window,
		DefaultMaxPassengers: cfg.Matching.DefaultMaxPassengers,
		ServiceHours: matching.ServiceHours{
			Enabled:   cfg.ServiceHours.Enabled,
			OpenHour:  cfg.ServiceHours.OpenHour,
			CloseHour: cfg.ServiceHours.CloseHour,
		},
	})
	sweeper := lifecycle.NewSweeper(rideRepo, notifier, appLogger, lifecycle.Config{
		RetentionDays: cfg.Lifecycle.RetentionDays,
		SweepHour:     cfg.Lifecycle.SweepHour,
		SweepInterval: cfg.Lifecycle.SweepInterval,
	})
	registrySvc := registry.NewService(locationRepo, rideRepo, appLogger)

	// Lifecycle sweeper runs until shutdown
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	// Handlers
	h := handlers.NewHandlers(matchingSvc, sweeper, registrySvc, rideRepo,
		redisClient, appLogger, wsHub, cfg.Cache.TTLWaitingRides)

	// Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	var nrApplication *monitoring.NewRelicApp
	if nrApp != nil && nrApp.IsEnabled() {
		nrApplication = nrApp
	}
	if nrApplication != nil {
		routes.SetupRoutes(router, h, nrApplication.Application)
	} else {
		routes.SetupRoutes(router, h, nil)
	}

	appLogger.Info("Routes configured")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stopSweeper()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	appLogger.Info("Server stopped gracefully")
}
