package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/landslide-monitor/internal/api"
	"github.com/smukkama/landslide-monitor/internal/database"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/notification"
	"github.com/smukkama/landslide-monitor/internal/queue"
	"github.com/smukkama/landslide-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level)
	log := logger.WithComponent("notifier")
	log.Info().Msg("Starting Alert Notifier...")

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Connected to database")

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	mailer := notification.NewEmailNotifier(&cfg.SMTP)
	if !mailer.Configured() {
		log.Info().Msg("SMTP not configured, alerts will be journaled and logged only")
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.GroupID)
	defer consumer.Close()
	log.Info().Str("topic", cfg.Kafka.TopicAlerts).Str("group", cfg.Kafka.GroupID).Msg("Kafka consumer initialized")

	handler := notification.NewAlertHandler(db, mailer)

	// Alerts are rare; small batches keep latency low.
	batchWriter := queue.NewBatchWriter(consumer, handler.HandleBatch, 20, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batchWriter.Start(ctx)

	server := api.NewServer("notifier", cfg.HTTP.NotifierPort, api.NewNotifierRouter(api.NewAlertsHandler(db), cfg.HTTP.AllowedOrigins), cfg.HTTP.ShutdownTimeout)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	fmt.Println("\n✓ Alert Notifier is running")
	fmt.Println("✓ Journaling alerts to PostgreSQL and forwarding by email")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down gracefully...")
	batchWriter.Stop()
	cancel()
	server.Stop()
	log.Info().Msg("Alert Notifier stopped")
}
