package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxClaims   = "claims"

	// QueryToken is consulted only when AllowQuery is set: browsers cannot
	// attach headers to a WebSocket handshake.
	QueryToken = "access_token"
)

var ErrMissingToken = errors.New("missing bearer token")

// Authorizer performs the full trust decision for a bearer token: signature,
// expiry and revocation. Rejections must wrap tokens.ErrInvalid.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*tokens.AccessClaims, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c echo.Context) (string, error) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

type BearerAuth struct {
	Authorizer Authorizer
	AllowQuery bool
}

func NewBearerAuth(a Authorizer) *BearerAuth {
	return &BearerAuth{Authorizer: a}
}

func (m *BearerAuth) token(c echo.Context) (string, error) {
	token, err := BearerToken(c)
	if err == nil || !m.AllowQuery {
		return token, err
	}
	if q := c.QueryParam(QueryToken); q != "" {
		return q, nil
	}
	return "", ErrMissingToken
}

func (m *BearerAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("mw", "require_auth")

		token, err := m.token(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims, err := m.Authorizer.Authorize(ctx, token)
		if err != nil {
			if errors.Is(err, tokens.ErrInvalid) {
				l.Info("auth_rejected", "status", 401, "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or revoked token")
			}
			l.Error("auth_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxClaims, claims)

		return next(c)
	}
}
