package main

import (
	"context"
	"flag"
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
	"github.com/hospitalcare/appointments/internal/adapters/providers/calendar"
	"github.com/hospitalcare/appointments/internal/adapters/providers/meeting"
	"github.com/hospitalcare/appointments/internal/application/services"
	"github.com/hospitalcare/appointments/internal/domain/providers"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/postgres"
	"github.com/hospitalcare/appointments/internal/infrastructure/clients/redis"
	"github.com/hospitalcare/appointments/internal/infrastructure/notifications"
	"github.com/hospitalcare/appointments/internal/infrastructure/observability"
	"github.com/hospitalcare/appointments/pkg/config"
)

// sweeper runs one missed-appointment sweep and exits, for use from cron.
func main() {
	var notify bool
	var timeout time.Duration

	flag.BoolVar(&notify, "notify", false, "Email patients whose appointments were marked missed")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != "postgres" {
		fmt.Fprintln(os.Stderr, "the sweeper needs DB_DRIVER=postgres")
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sweeper", cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	var (
		cacheProvider providers.CacheProvider = cache.NewMemoryAdapter()
		locker        providers.Locker
		eventBus      providers.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, sweeping without the cluster lease")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			locker = cache.NewRedisLocker(redisClient)
			bus := events.NewRedisEventBus(redisClient)
			defer bus.Close()
			eventBus = bus
		}
	}

	systemClock := clock.NewSystemClock(nil)
	loc := cfg.Scheduling.Location()
	appointmentRepo := database.NewAppointmentAdapter(pgClient, nil)

	var notifier *services.NotificationService
	if notify || cfg.Scheduling.SweepNotify {
		httpClient := &http.Client{Timeout: cfg.Integrations.RequestTimeout}
		calendarProvider, err := calendar.NewProvider(cfg.Integrations, cacheProvider, systemClock, httpClient)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure calendar provider")
		}
		meetingProvider, err := meeting.NewProvider(cfg.Integrations, cacheProvider, systemClock, httpClient)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure meeting provider")
		}
		meetingRepo := database.NewMeetingAdapter(pgClient, nil)
		gateway := services.NewGateway(calendarProvider, meetingProvider,
			notifications.NewEmailSender(cfg.Integrations, httpClient), meetingRepo, systemClock, nil)
		notifier = services.NewNotificationService(gateway,
			database.NewNotificationAdapter(sqlx.NewDb(pgClient.DB(), "postgres")), systemClock, loc)
	}

	sweeper := services.NewSweeperService(appointmentRepo, notifier, locker, eventBus, systemClock, nil, services.SweeperConfig{
		LockTTL:  cfg.Scheduling.SweepLockTTL,
		Notify:   notifier != nil,
		Location: loc,
	})

	start := time.Now()
	result, err := sweeper.RunOnce(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("sweep failed")
	}
	if result.Skipped {
		log.Info().Msg("another sweeper holds the lease; nothing to do")
		return
	}
	log.Info().
		Int("missed", len(result.MissedIDs)).
		Time("cutoff", result.Cutoff).
		Dur("elapsed", time.Since(start)).
		Msg("sweep complete")
}
