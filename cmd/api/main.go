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

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/hospitalcare/appointments/internal/adapters/cache"
	"github.com/hospitalcare/appointments/internal/adapters/clock"
	"github.com/hospitalcare/appointments/internal/adapters/database"
	"github.com/hospitalcare/appointments/internal/adapters/events"
	"github.com/hospitalcare/appointments/internal/adapters/memory"
	"github.com/hospitalcare/appointments/internal/adapters/providers/calendar"
	"github.com/hospitalcare/appointments/internal/adapters/providers/meeting"
	"github.com/hospitalcare/appointments/internal/api/handlers"
	"github.com/hospitalcare/appointments/internal/api/routes"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/domain/repositories"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/redis"
	"github.com/hospitalcare/appointments/internal/infrastructure/notifications"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	"github.com/hospitalcare/appointments/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	systemClock := clock.NewSystemClock(nil)
	loc := cfg.Scheduling.Location()

	// Redis is optional; every consumer has an in-process fallback
	var (
		cacheProvider providers.CacheProvider = cache.NewMemoryAdapter()
		locker        providers.Locker        = cache.NewLocalLocker()
		eventBus      providers.EventBus      = events.NewMemoryEventBus()
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process cache, locks and events")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			locker = cache.NewRedisLocker(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("redis client initialized")
		}
	}

	var (
		appointmentRepo  repositories.AppointmentRepository
		scheduleRepo     repositories.ScheduleRepository
		meetingRepo      repositories.MeetingRepository
		notificationRepo repositories.NotificationRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		appointmentRepo = memory.NewAppointmentStore()
		scheduleRepo = memory.NewScheduleStore()
		meetingRepo = memory.NewMeetingStore()
		notificationRepo = memory.NewNotificationStore()
	default:
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()

		if cfg.Database.AutoMigrate {
			if err := database.EnsureSchema(ctx, pgClient.DB()); err != nil {
				log.Fatal().Err(err).Msg("failed to apply schema")
			}
		}

		appointmentRepo = database.NewAppointmentAdapter(pgClient, metrics)
		scheduleRepo = database.NewCachedScheduleAdapter(
			database.NewScheduleAdapter(pgClient, metrics), cacheProvider, cfg.Scheduling.ScheduleCacheTTL, metrics)
		meetingRepo = database.NewMeetingAdapter(pgClient, metrics)
		notificationRepo = database.NewNotificationAdapter(sqlx.NewDb(pgClient.DB(), "postgres"))
		log.Info().Str("database", cfg.Database.Database).Msg("PostgreSQL client initialized")
	}

	httpClient := &http.Client{Timeout: cfg.Integrations.RequestTimeout}

	calendarProvider, err := calendar.NewProvider(cfg.Integrations, cacheProvider, systemClock, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure calendar provider")
	}
	meetingProvider, err := meeting.NewProvider(cfg.Integrations, cacheProvider, systemClock, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure meeting provider")
	}
	emailSender := notifications.NewEmailSender(cfg.Integrations, httpClient)

	gateway := services.NewGateway(calendarProvider, meetingProvider, emailSender, meetingRepo, systemClock, metrics)
	notifier := services.NewNotificationService(gateway, notificationRepo, systemClock, loc)
	availability := services.NewAvailabilityService(scheduleRepo, locker, loc)
	slots := services.NewSlotChecker(appointmentRepo, cfg.Scheduling.SlotPolicy, cfg.Scheduling.ServiceDuration)
	appointmentService := services.NewAppointmentService(
		appointmentRepo, meetingRepo, availability, slots, gateway, notifier, eventBus, systemClock, metrics)

	sweepAt, err := entities.ParseTimeOfDay(cfg.Scheduling.SweepAt)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sweep time")
	}
	sweeper := services.NewSweeperService(appointmentRepo, notifier, locker, eventBus, systemClock, metrics, services.SweeperConfig{
		At:       sweepAt,
		Interval: cfg.Scheduling.SweepInterval,
		LockTTL:  cfg.Scheduling.SweepLockTTL,
		Notify:   cfg.Scheduling.SweepNotify,
		Location: loc,
	})
	go sweeper.StartPeriodic(ctx)

	var paymentWebhookHandler *handlers.PaymentWebhookHandler
	if cfg.Payments.WebhookSecret != "" {
		paymentWebhookHandler = handlers.NewPaymentWebhookHandler(
			appointmentService, cacheProvider, cfg.Payments.WebhookSecret, cfg.Payments.IdempotencyTTL)
	} else {
		log.Warn().Msg("PAYMENT_WEBHOOK_SECRET is not set; payment callbacks disabled")
	}

	router := routes.NewRouter(
		handlers.NewAppointmentHandler(appointmentService),
		handlers.NewDoctorHandler(availability, slots),
		handlers.NewAdminHandler(sweeper, availability),
		paymentWebhookHandler,
		handlers.NewSSEHandler(eventBus, cfg.Server.StreamHeartbeat),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	// WriteTimeout stays unset so event streams are not cut off
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("slot_policy", string(slots.Policy())).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("server stopped")
}
