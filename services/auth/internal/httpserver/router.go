package httpserver

import (
	"context"
	"net/http"

	middleware "github.com/Skotchmaster/telemetry_hub/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Ready       func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = &RequestValidator{}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMw := middleware.NewBearerAuth(d.AuthHandler.Svc)

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/refresh-token", d.AuthHandler.Refresh)
	e.POST("/logout", d.AuthHandler.LogOut)

	e.GET("/protected", d.AuthHandler.Protected, authMw.RequireAuth)
	e.GET("/authorize", d.AuthHandler.Authorize, authMw.RequireAuth)
}
