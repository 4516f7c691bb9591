package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clinicbook/internal/api"
	"clinicbook/internal/audit"
	"clinicbook/internal/availability"
	"clinicbook/internal/config"
	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/reminders"
	"clinicbook/internal/repository"
	"clinicbook/internal/service"
	"clinicbook/internal/treedb"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CLINICBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	store, err := treedb.NewSQLiteStore(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	doctors := repository.NewDoctors(store, &logger)
	appointments := repository.NewAppointments(store, &logger)

	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		doctors.UseRedisCache(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second)
		logger.Info().Str("address", cfg.Redis.Address).Msg("Redis cache enabled")
	}

	resolver := availability.NewResolver(doctors, appointments, &logger)

	bus := events.NewEventBus()
	for _, eventType := range []string{
		events.TypeAppointmentCreated,
		events.TypeAppointmentCancelled,
		events.TypeAvailabilityUpdated,
	} {
		bus.Subscribe(eventType, func(e events.Event) error {
			logger.Info().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("Event")
			return nil
		})
	}

	rules := service.BookingRules{
		MinAdvanceHours: cfg.Booking.MinAdvanceHours,
		MaxAdvanceDays:  cfg.Booking.MaxAdvanceDays,
	}
	booking := service.NewBookingService(appointments, resolver, doctors, bus, rules, &logger)

	exporter := audit.NewExporter(appointments, doctors, &logger)

	server := api.NewHTTPServer(api.Options{
		Addr:            cfg.Server.Address,
		APIKeys:         cfg.Server.APIKeys,
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
	}, resolver, booking, exporter, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Backup.Enabled {
		backup := treedb.NewBackupService(cfg.Database.Path, treedb.BackupConfig{
			Enabled:       true,
			IntervalHours: cfg.Backup.IntervalHours,
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	if cfg.Reminders.Enabled {
		reminderCfg := reminders.DefaultConfig()
		reminderCfg.Timezone = cfg.Reminders.Timezone
		reminderCfg.DailyHour = cfg.Reminders.DailyHour
		reminderCfg.DailyMinute = cfg.Reminders.DailyMinute

		scheduler, err := reminders.NewScheduler(reminderCfg, appointments, bus, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create reminder scheduler")
		}
		go scheduler.Start(ctx)
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	logger.Info().Msg("Clinic booking service started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("API server error")
	}
	logger.Info().Msg("Clinic booking service stopped")
}

func startHealthServer(ctx context.Context, port int, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
