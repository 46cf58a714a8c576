// Command feedback-reminders notifies attendees of recently started events
// that have not left feedback yet. Meant to run from cron.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"campus-events/internal/actor"
	"campus-events/internal/config"
	"campus-events/internal/database"
	"campus-events/internal/feedback"
	"campus-events/internal/kafka"
	"campus-events/internal/logger"
	"campus-events/internal/metrics"
	"campus-events/internal/store"
	"campus-events/internal/utils"

	"github.com/joho/godotenv"
)

var system = actor.Actor{UserID: "system", Role: actor.RoleAdmin}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger("campus-events-reminders", cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	loc, err := utils.LoadLocation(cfg.Campus.TimeZone)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid CAMPUS_TIMEZONE %q: %v", cfg.Campus.TimeZone, err))
	}

	topics := kafka.NewTopics(cfg.Kafka.TopicPrefix)
	var publisher kafka.Publisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = producer
	}

	svc := feedback.NewService(store.New(db), kafka.NewEmitter(publisher, topics, log), metrics.New(), log,
		feedback.WithLocation(loc), feedback.WithWindowDays(cfg.Campus.FeedbackWindowDays))

	sent, err := svc.SendReminders(ctx, system)
	if err != nil {
		log.Error("FEEDBACK", fmt.Sprintf("Reminder run failed: %v", err))
		os.Exit(1)
	}
	log.Info("FEEDBACK", fmt.Sprintf("Reminder run complete, %d notifications sent", sent))
}
