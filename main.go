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

	"campus-events/internal/analytics"
	"campus-events/internal/api"
	"campus-events/internal/auth"
	"campus-events/internal/config"
	"campus-events/internal/database"
	"campus-events/internal/database/migrations"
	"campus-events/internal/events"
	"campus-events/internal/feedback"
	"campus-events/internal/kafka"
	"campus-events/internal/lock"
	"campus-events/internal/logger"
	"campus-events/internal/metrics"
	"campus-events/internal/notifications"
	"campus-events/internal/passes"
	"campus-events/internal/registrations"
	"campus-events/internal/sse"
	"campus-events/internal/store"
	"campus-events/internal/users"
	"campus-events/internal/utils"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func prepareSchema(ctx context.Context, cfg config.DatabaseConfig, db *bun.DB, log *logger.Logger) error {
	if cfg.Driver == database.DriverSQLite {
		log.Info("DATABASE", "Creating SQLite schema from models")
		return database.CreateSchema(ctx, db)
	}
	if !cfg.AutoMigrate {
		log.Info("DATABASE", "AUTO_MIGRATE disabled, skipping migrations")
		return nil
	}
	// The runner is not closed: closing the migrator closes the shared *sql.DB.
	runner := migrations.NewRunner(db, migrations.MigrateOptions{
		MigrationsDir: cfg.MigrationsDir,
		AutoMigrate:   cfg.AutoMigrate,
	}, log)
	return runner.RunMigrations()
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger("campus-events", cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	log.Info("APP", "Starting campus events service")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	if err := prepareSchema(ctx, cfg.Database, db, log); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to prepare schema: %v", err))
	}

	loc, err := utils.LoadLocation(cfg.Campus.TimeZone)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid CAMPUS_TIMEZONE %q: %v", cfg.Campus.TimeZone, err))
	}

	var locker lock.Locker
	var revocations auth.Revocations = auth.NewMemoryRevocations()
	if cfg.Redis.Enabled {
		client, err := auth.ConnectRedis(ctx, cfg.Redis.Addr, log)
		if err != nil {
			log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, cfg.Redis.LockTTL, log)
		revocations = auth.NewRedisRevocations(client)
	} else {
		log.Info("REDIS", "Redis disabled, using in-process event locks")
	}

	topics := kafka.NewTopics(cfg.Kafka.TopicPrefix)
	var publisher kafka.Publisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}
	emitter := kafka.NewEmitter(publisher, topics, log)
	hub := sse.NewHub()
	emitter.Sink = hub

	var verifier auth.Verifier = auth.NewHMACVerifier(cfg.Auth.JWTSecret, revocations)
	if cfg.Auth.OIDCIssuer != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCClientID)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		verifier = auth.Chain{verifier, oidcVerifier}
		log.Info("AUTH", "Accepting local tokens and ID tokens from "+cfg.Auth.OIDCIssuer)
	}

	gen, err := passes.NewGenerator(cfg.Auth.PassSecret)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid PASS_SECRET: %v", err))
	}

	st := store.New(db)
	m := metrics.New()
	usersSvc := users.NewService(st, auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), log, users.WithRevocations(revocations))
	handler := &api.Handler{
		Events:        events.NewService(st, emitter, m, log, events.WithLocation(loc)),
		Registrations: registrations.NewService(st, locker, emitter, m, log, registrations.WithPasses(gen)),
		Feedback: feedback.NewService(st, emitter, m, log,
			feedback.WithLocation(loc), feedback.WithWindowDays(cfg.Campus.FeedbackWindowDays)),
		Users:         usersSvc,
		Notifications: notifications.NewService(st),
		Analytics:     analytics.NewService(db, analytics.WithLocation(loc)),
		Stream:        hub,
		Verifier:      auth.WithAccounts(verifier, usersSvc),
		Metrics:       m,
		Logger:        log,
		CORSOrigin:    cfg.Server.CORSOrigin,
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", "Campus events service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Campus events service shutdown complete")
	}
}
