package httpserver

import (
	"errors"
	"net/http"

	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	middleware "github.com/Skotchmaster/telemetry_hub/pkg/middleware/auth"
	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/service"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/transport"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

// httpError maps service errors to responses. Internal details never reach
// the client.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request: missing or malformed fields")
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, "user already exists")
	case errors.Is(err, service.ErrAuthentication):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func bind[T any](c echo.Context, req *T) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request: missing or malformed fields")
	}
	return nil
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := bind(c, &req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return err
	}

	if err := h.Svc.Register(ctx, req.Name, req.Username, req.Password); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, transport.MessageResponse{
		Message: "user registered successfully",
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := bind(c, &req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.LoginResponse{
		Token:        res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req transport.RefreshRequest
	if err := bind(c, &req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return err
	}

	res, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.RefreshResponse{
		Token:     res.AccessToken,
		ExpiresIn: res.ExpiresIn,
	})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	token, err := middleware.BearerToken(c)
	if err != nil {
		l.Warn("logout_error", "status", 400, "reason", "no token provided")
		return echo.NewHTTPError(http.StatusBadRequest, "no token provided")
	}

	var req transport.LogoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("logout_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.Logout(ctx, token, req.RefreshToken); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{
		Message: "logged out successfully",
	})
}

func (h *AuthHTTP) Protected(c echo.Context) error {
	return c.JSON(http.StatusOK, transport.MessageResponse{
		Message: "access granted to protected resource",
	})
}

// Authorize reports the verified claims of the presented token. The edge
// gateway calls it before letting a client reach the relay.
func (h *AuthHTTP) Authorize(c echo.Context) error {
	claims, ok := c.Get(middleware.CtxClaims).(*tokens.AccessClaims)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	return c.JSON(http.StatusOK, transport.AuthorizeResponse{
		Subject:   claims.Subject,
		Username:  claims.Username,
		Name:      claims.Name,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
}
