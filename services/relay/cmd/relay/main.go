package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgcfg "github.com/Skotchmaster/telemetry_hub/pkg/config"
	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	loggingmw "github.com/Skotchmaster/telemetry_hub/pkg/middleware/logging"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/config"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/httpserver"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/relay"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/upstream"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	pkgcfg.LoadEnv()
	cfg := config.Load()

	logger := logging.New("relay", cfg.LogLevel)
	slog.SetDefault(logger)

	rl := relay.New(logger)

	ctx, cancel := context.WithCancel(logging.IntoContext(context.Background(), logger))
	events := make(chan relay.Event, 64)

	sub := upstream.NewSubscriber(cfg.KafkaBrokers, cfg.Topics, logger.With("component", "upstream"))
	sub.Backoff = cfg.RetryBackoff

	upstreamDone := make(chan struct{})
	go func() {
		defer close(upstreamDone)
		sub.Run(ctx, events)
	}()
	go rl.Run(ctx, events)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		WSHandler: httpserver.NewWSHandler(rl, cfg.AllowedOrigins),
	})

	go func() {
		logger.Info("starting relay", "addr", cfg.ListenAddr, "topics", cfg.Topics, "brokers", cfg.KafkaBrokers)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	rl.CloseAll()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}

	select {
	case <-upstreamDone:
	case <-shutdownCtx.Done():
		logger.Warn("upstream did not stop in time")
	}

	logger.Info("shutdown complete")
}
