package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	pkgcfg "github.com/Skotchmaster/telemetry_hub/pkg/config"
	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/simulator"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/upstream"
)

func main() {
	pkgcfg.LoadEnv()

	logger := logging.New("sensorsim", pkgcfg.EnvDefault("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	brokers := pkgcfg.EnvCSVDefault("KAFKA_BROKERS", []string{"localhost:9092"})
	interval := pkgcfg.EnvDurationDefault("SIM_INTERVAL", 10*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var topics []string
	for _, s := range simulator.DefaultSensors {
		topics = append(topics, s.Topic)
	}
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := upstream.EnsureTopics(initCtx, brokers[0], topics...); err != nil {
		cancel()
		log.Fatalf("kafka topics: %v", err)
	}
	cancel()

	pub := upstream.NewPublisher(brokers)
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("publisher close", "error", err)
		}
	}()

	sim := simulator.New(pub, simulator.DefaultSensors, time.Now().UnixNano(), logger)
	logger.Info("publishing readings", "brokers", brokers, "interval", interval)
	sim.Run(ctx, interval)
	logger.Info("stopped")
}
