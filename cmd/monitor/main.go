package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/landslide-monitor/internal/alarming"
	"github.com/smukkama/landslide-monitor/internal/api"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/queue"
	"github.com/smukkama/landslide-monitor/internal/refresh"
	"github.com/smukkama/landslide-monitor/internal/source"
	"github.com/smukkama/landslide-monitor/internal/websocket"
	"github.com/smukkama/landslide-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level)
	log := logger.WithComponent("monitor")
	log.Info().Str("site", cfg.Monitor.Site).Msg("Starting Landslide Monitor...")

	thresholds, err := config.LoadThresholds(cfg.Monitor.ThresholdsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load thresholds")
	}
	log.Info().
		Float64("soil_moisture", thresholds.SoilMoisture).
		Float64("displacement", thresholds.Displacement).
		Float64("rainfall", thresholds.Rainfall).
		Float64("vibration", thresholds.Vibration).
		Msg("Thresholds loaded")

	synthetic := source.NewSynthetic(time.Now().UnixNano())

	var src source.Adapter
	switch cfg.Monitor.Source {
	case config.SourceSynthetic:
		src = synthetic
	default:
		src = source.NewHTTPSource(cfg.Monitor.SourceURL, cfg.Monitor.FetchTimeout)
	}
	log.Info().Str("source", cfg.Monitor.Source).Str("url", cfg.Monitor.SourceURL).Msg("Reading source configured")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	publishers := refresh.NewFanout().Add("websocket", hub)

	if cfg.Kafka.Enabled {
		if err := queue.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 1, 1); err != nil {
			log.Warn().Err(err).Msg("Could not ensure alert topic, relying on broker auto-creation")
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()

		publishers.Add("kafka", refresh.NewAlertPublisher(alarming.NewKafkaSink(producer), 10*time.Second))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.TopicAlerts).Msg("Kafka alert producer initialized")
	}

	loop := refresh.New(src, publishers, refresh.Options{
		Site:           cfg.Monitor.Site,
		Interval:       cfg.Monitor.RefreshInterval,
		FetchTimeout:   cfg.Monitor.FetchTimeout,
		MaxBackoff:     cfg.Monitor.MaxBackoff,
		WindowCapacity: cfg.Monitor.WindowCapacity,
		Thresholds:     thresholds,
	})

	if cfg.Monitor.SeedHistory {
		// Daily demonstration history so charts are not empty on start.
		history := synthetic.History(cfg.Monitor.WindowCapacity, time.Now(), 24*time.Hour)
		snap := loop.Seed(history)
		log.Info().Int("readings", len(snap.Window)).Str("level", snap.Level.String()).Msg("Window seeded")
	}

	handler := api.NewMonitorHandler(loop, hub)
	server := api.NewServer("monitor", cfg.HTTP.MonitorPort, api.NewMonitorRouter(handler, cfg.HTTP.AllowedOrigins), cfg.HTTP.ShutdownTimeout)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	loop.Start()

	fmt.Println("\n✓ Landslide Monitor is running")
	fmt.Printf("✓ Refreshing every %s | window of %d readings\n", cfg.Monitor.RefreshInterval, cfg.Monitor.WindowCapacity)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down gracefully...")
	loop.Stop()
	server.Stop()
	cancel()
	log.Info().Msg("Landslide Monitor stopped")
}
