// Command pulsed runs the patient-flow decision daemon: it connects to
// Redis, seeds the state store from config and runs the agent pipeline until
// terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adaptivecare/pulse/internal/config"
	"github.com/adaptivecare/pulse/internal/logging"
	"github.com/adaptivecare/pulse/internal/orchestrator"
	"github.com/adaptivecare/pulse/pkg/bus"
)

func main() {
	configPath := flag.String("config", "pulse.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Environment overrides for container deployments.
	if v := os.Getenv("PULSE_INSTANCE_NAME"); v != "" {
		cfg.Instance = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379"
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid redis URL", zap.Error(err))
	}

	client, err := bus.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		logger.Fatal("failed to create bus client", zap.Error(err))
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	engine, err := orchestrator.NewEngine(cfg, client, logger)
	if err != nil {
		logger.Fatal("failed to build pipeline", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("pulsed starting",
		zap.String("instance", cfg.Instance),
		zap.String("health_addr", cfg.HealthAddr))

	if err := engine.Run(ctx); err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		os.Exit(1)
	}
}
