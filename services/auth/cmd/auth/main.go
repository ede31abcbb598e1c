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
	"github.com/Skotchmaster/telemetry_hub/pkg/db"
	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	loggingmw "github.com/Skotchmaster/telemetry_hub/pkg/middleware/logging"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/config"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/httpserver"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/repo"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/revcache"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	pkgcfg.LoadEnv()
	cfg := config.Load()

	logger := logging.New("auth", cfg.LogLevel)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := cfg.InitDB(initCtx)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var cache revcache.Cache = revcache.Noop{}
	var redisCache *revcache.Redis
	if cfg.RedisAddr != "" {
		redisCache, err = revcache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("revocation cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = redisCache
		}
	}

	store := repo.New(gdb)
	svc := service.NewAuthService(store, cfg.Signer(), cache)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.CORS())

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc},
		Ready:       store.Ping,
	})

	sweepCtx, stopSweep := context.WithCancel(logging.IntoContext(context.Background(), logger))
	go svc.RunCleanup(sweepCtx, cfg.CleanupInterval)

	go func() {
		logger.Info("starting auth service", "addr", cfg.ListenAddr)
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

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	stopSweep()

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("redis close", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close", "error", err)
	}

	logger.Info("shutdown complete")
}
