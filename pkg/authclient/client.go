package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
)

// Client asks the credential service whether a bearer token may be trusted.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type AuthorizeResponse struct {
	Subject   string `json:"sub"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	JTI       string `json:"jti"`
	ExpiresAt int64  `json:"exp"`
}

// Authorize calls GET /authorize. A 401 answer is reported as tokens.ErrInvalid,
// anything else unexpected as a plain error.
func (c *Client) Authorize(ctx context.Context, token string) (*tokens.AccessClaims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/authorize", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: rejected by auth service", tokens.ErrInvalid)
	default:
		return nil, fmt.Errorf("authorize failed with status: %d", resp.StatusCode)
	}

	var result AuthorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &tokens.AccessClaims{
		Type:     tokens.TypeAccess,
		Username: result.Username,
		Name:     result.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   result.Subject,
			ID:        result.JTI,
			ExpiresAt: jwt.NewNumericDate(time.Unix(result.ExpiresAt, 0)),
		},
	}, nil
}
