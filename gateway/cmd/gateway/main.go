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

	"github.com/Skotchmaster/telemetry_hub/gateway/internal/config"
	"github.com/Skotchmaster/telemetry_hub/gateway/internal/httpserver"
	"github.com/Skotchmaster/telemetry_hub/pkg/authclient"
	pkgcfg "github.com/Skotchmaster/telemetry_hub/pkg/config"
	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	"github.com/labstack/echo/v4"
)

func main() {
	pkgcfg.LoadEnv()
	cfg := config.Load()

	logger := logging.New("gateway", cfg.LogLevel)
	slog.SetDefault(logger)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadHeaderTimeout = 3 * time.Second

	if err := httpserver.Register(e, &httpserver.Deps{
		AuthURL:        cfg.AuthURL,
		RelayURL:       cfg.RelayURL,
		Authorizer:     authclient.NewClient(cfg.AuthURL),
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	}); err != nil {
		log.Fatal(err)
	}

	go func() {
		logger.Info("starting gateway", "addr", cfg.ListenAddr, "auth", cfg.AuthURL, "relay", cfg.RelayURL)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
