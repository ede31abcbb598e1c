package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	WSHandler *WSHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		return c.JSON(http.StatusOK, d.WSHandler.Relay.Stats())
	})

	e.GET("/ws", d.WSHandler.Stream)
}
