package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/landslide-monitor/internal/api"
	"github.com/smukkama/landslide-monitor/internal/device"
	"github.com/smukkama/landslide-monitor/internal/logger"
	"github.com/smukkama/landslide-monitor/internal/source"
	"github.com/smukkama/landslide-monitor/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level)
	log := logger.WithComponent("bridge")
	log.Info().Msg("Starting Device Bridge...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Latest device payload: Redis when configured, otherwise in memory
	var store device.LatestStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		ttl := cfg.Redis.KeyTTL
		if ttl == 0 {
			ttl = cfg.Device.StaleAfter
		}
		store = device.NewRedisStore(redisClient, device.LatestKey(cfg.Monitor.Site), ttl)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	} else {
		store = device.NewMemoryStore(cfg.Device.StaleAfter)
	}

	reader := device.NewReader(device.ReaderConfig{
		Port:           cfg.Serial.Port,
		BaudRate:       cfg.Serial.BaudRate,
		VendorHints:    cfg.Serial.VendorHints,
		ReconnectDelay: cfg.Serial.ReconnectDelay,
	}, store)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		reader.Run(ctx)
	}()

	src := source.NewDeviceSource(store, source.NewSynthetic(time.Now().UnixNano()))
	handler := api.NewBridgeHandler(store, src)

	server := api.NewServer("bridge", cfg.HTTP.BridgePort, api.NewBridgeRouter(handler, cfg.HTTP.AllowedOrigins), cfg.HTTP.ShutdownTimeout)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	fmt.Println("\n✓ Device Bridge is running")
	fmt.Printf("✓ GET /data and /api/sensor-data on :%d\n", cfg.HTTP.BridgePort)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down gracefully...")
	server.Stop()
	cancel()
	<-readerDone
	log.Info().Msg("Device Bridge stopped")
}
