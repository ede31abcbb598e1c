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
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/alerting"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/relay"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/upstream"
)

func main() {
	pkgcfg.LoadEnv()

	logger := logging.New("alerter", pkgcfg.EnvDefault("LOG_LEVEL", "info"))
	slog.SetDefault(logger)

	brokers := pkgcfg.EnvCSVDefault("KAFKA_BROKERS", []string{"localhost:9092"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := upstream.EnsureTopics(initCtx, brokers[0], append([]string{alerting.Topic}, alerting.SensorTopics...)...); err != nil {
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

	det := alerting.New(pub, logger.With("component", "detector"))
	det.Window = pkgcfg.EnvIntDefault("ALERT_WINDOW", alerting.DefaultWindow)

	sub := upstream.NewSubscriber(brokers, alerting.SensorTopics, logger.With("component", "upstream"))
	sub.Backoff = pkgcfg.EnvDurationDefault("KAFKA_RETRY_BACKOFF", 5*time.Second)

	events := make(chan relay.Event, 64)
	go sub.Run(ctx, events)

	logger.Info("watching sensors", "brokers", brokers, "topics", alerting.SensorTopics, "window", det.Window)
	det.Run(ctx, events)
	logger.Info("stopped")
}
