package loggingmw

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
)

type Config struct {
	Logger *slog.Logger
	// Skip suppresses the completion line. The request still gets a logger.
	Skip func(c echo.Context) bool
}

func skipHealth(c echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/health/")
}

// RequestLogger logs one line per request and skips health checks.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return RequestLoggerWithConfig(Config{Logger: base, Skip: skipHealth})
}

// RequestLoggerWithConfig puts a request-scoped logger into the request
// context. WebSocket upgrades are logged when the stream ends, with its
// lifetime instead of a response size.
func RequestLoggerWithConfig(cfg Config) echo.MiddlewareFunc {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = req.Header.Get(echo.HeaderXRequestID)
			}

			l := cfg.Logger.With("method", req.Method, "path", c.Path(), "remote_ip", c.RealIP())
			if rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			if err == nil && cfg.Skip != nil && cfg.Skip(c) {
				return nil
			}

			attrs := []any{"status", c.Response().Status, "duration_ms", time.Since(start).Milliseconds()}
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				attrs = append(attrs, "user_id", uid)
			}

			if strings.EqualFold(req.Header.Get(echo.HeaderUpgrade), "websocket") {
				l.Info("stream closed", attrs...)
				return nil
			}

			status := c.Response().Status
			switch {
			case status >= 500:
				l.Error("request completed", append(attrs, "error", errString(err))...)
			case status >= 400:
				l.Warn("request completed", attrs...)
			default:
				l.Info("request completed", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
