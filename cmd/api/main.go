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

	"github.com/medicare/medicare/backend/internal/adapters/cache"
	"github.com/medicare/medicare/backend/internal/adapters/database"
	"github.com/medicare/medicare/backend/internal/adapters/events"
	"github.com/medicare/medicare/backend/internal/adapters/locks"
	"github.com/medicare/medicare/backend/internal/adapters/memory"
	"github.com/medicare/medicare/backend/internal/api/handlers"
	"github.com/medicare/medicare/backend/internal/api/middleware"
	"github.com/medicare/medicare/backend/internal/api/routes"
	"github.com/medicare/medicare/backend/internal/application/services"
	"github.com/medicare/medicare/backend/internal/domain/entities"
	"github.com/medicare/medicare/backend/internal/domain/providers"
	"github.com/medicare/medicare/backend/internal/domain/repositories"
	"github.com/medicare/medicare/backend/internal/infrastructure/clients/postgres"
	"github.com/medicare/medicare/backend/internal/infrastructure/clients/redis"
	"github.com/medicare/medicare/backend/internal/infrastructure/observability"
	"github.com/medicare/medicare/backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.ServiceName, cfg.Environment)
	logger := observability.GetLogger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Storage
	var (
		appointmentRepo repositories.AppointmentRepository
		doctorRepo      repositories.DoctorRepository
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		appointmentRepo = memory.NewAppointmentStore()
		doctorRepo = memory.NewDoctorStore(demoDoctors()...)
		logger.Warn().Msg("Using in-memory storage; data is lost on restart")
	default:
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()

		if cfg.Database.AutoMigrate {
			if err := pgClient.Migrate(ctx); err != nil {
				logger.Fatal().Err(err).Msg("Failed to apply database migrations")
			}
		}
		appointmentRepo = database.NewAppointmentAdapter(pgClient, metrics)
		doctorRepo = database.NewDoctorAdapter(pgClient, metrics)
	}

	// Redis backs the cache, the event bus and the distributed locks. Without
	// it every replica falls back to in-process implementations.
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
		locker        providers.LockProvider
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Redis client; using in-process cache, bus and locks")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
			locker = locks.NewRedisLocker(redisClient, cfg.Scheduling.LockTTL)
		}
	}
	if cacheProvider == nil {
		cacheProvider = memory.NewCache()
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
	}
	if locker == nil {
		locker = locks.NewLocalLocker()
	}

	doctorRepo = database.NewCachedDoctorAdapter(doctorRepo, cacheProvider, metrics)

	// Initialize services
	appointmentService := services.NewAppointmentService(appointmentRepo, doctorRepo, locker,
		services.WithLockWait(cfg.Scheduling.LockWait))
	appointmentService.SetEventBus(eventBus)
	appointmentService.SetMetrics(metrics)

	availabilityService := services.NewAvailabilityService(doctorRepo, appointmentRepo, cacheProvider, services.AvailabilityConfig{
		HorizonDays:     cfg.Scheduling.HorizonDays,
		StepMinutes:     cfg.Scheduling.StepMinutes,
		SlotCacheTTLSec: cfg.Scheduling.SlotCacheTTLSeconds,
	})
	availabilityService.SetMetrics(metrics)

	cacheInvalidationService := services.NewCacheInvalidationService(cacheProvider, eventBus)
	if err := cacheInvalidationService.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start cache invalidation service")
	}

	warmingService := services.NewCacheWarmingService(availabilityService)
	go warmingService.StartPeriodicWarming(ctx, 5*time.Minute)

	// Set up router
	router := routes.NewRouter(
		handlers.NewAppointmentHandler(appointmentService),
		handlers.NewDoctorHandler(availabilityService),
		handlers.NewSSEHandler(eventBus),
		middleware.NewAuthenticator(cfg.Auth.JWTSecret),
		middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		metrics,
		cfg.Server.AllowedOrigins,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No write timeout: event streams stay open indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Str("storage", cfg.Storage.Driver).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Closing the bus first ends open event streams so Shutdown can drain.
	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing event bus")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}
	cacheInvalidationService.Stop()

	logger.Info().Msg("Server stopped")
}

// demoDoctors is the roster served by the in-memory driver
func demoDoctors() []*entities.Doctor {
	now := time.Now().UTC()
	return []*entities.Doctor{
		{
			ID:                 "demo-doctor-1",
			Email:              "amara.okafor@medicare.test",
			FirstName:          "Amara",
			LastName:           "Okafor",
			Specialty:          "Cardiology",
			YearsExperience:    12,
			AvailabilityRecord: entities.DefaultAvailabilityRecord(),
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		{
			ID:              "demo-doctor-2",
			Email:           "tomas.lindqvist@medicare.test",
			FirstName:       "Tomas",
			LastName:        "Lindqvist",
			Specialty:       "Dermatology",
			YearsExperience: 7,
			AvailabilityRecord: entities.AvailabilityRecord{
				WorkingDays: "tuesday,thursday",
				StartTime:   "10:00",
				EndTime:     "16:00",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}
