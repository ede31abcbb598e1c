package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/Skotchmaster/telemetry_hub/gateway/internal/middleware"
	authmw "github.com/Skotchmaster/telemetry_hub/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	AuthURL  string
	RelayURL string

	// Authorizer decides whether a /ws caller may reach the relay.
	Authorizer     authmw.Authorizer
	Logger         *slog.Logger
	AllowedOrigins []string
}

func Register(e *echo.Echo, d *Deps) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, m := range middleware.Common(logger, d.AllowedOrigins) {
		e.Use(m)
	}

	authProxy, err := newProxy(d.AuthURL, "/api/v1/auth")
	if err != nil {
		return err
	}

	relayProxy, err := newProxy(d.RelayURL, "", authmw.QueryToken)
	if err != nil {
		return err
	}

	e.Any("/api/v1/auth/*", authProxy)

	wsAuth := &authmw.BearerAuth{Authorizer: d.Authorizer, AllowQuery: true}
	e.GET("/ws", relayProxy, wsAuth.RequireAuth)

	return nil
}
