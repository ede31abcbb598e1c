package middleware

import (
	"log/slog"

	loggingmw "github.com/Skotchmaster/telemetry_hub/pkg/middleware/logging"
	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
)

func Common(logger *slog.Logger, allowedOrigins []string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		loggingmw.RequestLogger(logger),
		ecM.Secure(),
		ecM.CORSWithConfig(ecM.CORSConfig{
			AllowOrigins: allowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}),
	}
}
