package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalid   = errors.New("invalid token")
	ErrWrongType = errors.New("unexpected token type")
)

// Signer mints and verifies HS256 access and refresh tokens.
type Signer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	// Now is used for issuance and expiry checks; nil means time.Now.
	Now func() time.Time
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Signer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
	if s.Audience != "" {
		rc.Audience = jwt.ClaimStrings{s.Audience}
	}
	return rc
}

func (s *Signer) CreateAccessToken(sub Subject) (string, *AccessClaims, error) {
	claims := &AccessClaims{
		Type:             TypeAccess,
		Username:         sub.Username,
		Name:             sub.Name,
		RegisteredClaims: s.registered(sub.ID, s.AccessTTL),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.AccessSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return token, claims, nil
}

func (s *Signer) CreateRefreshToken(userID string) (string, *RefreshClaims, error) {
	claims := &RefreshClaims{
		Type:             TypeRefresh,
		RegisteredClaims: s.registered(userID, s.RefreshTTL),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.RefreshSecret)
	if err != nil {
		return "", nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return token, claims, nil
}

func (s *Signer) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	if s.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.Audience))
	}
	return opts
}

func (s *Signer) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, s.parserOptions()...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !tkn.Valid {
		return ErrInvalid
	}
	return nil
}

// AccessClaimsFromToken verifies signature, expiry, issuer and audience
// before returning the claims.
func (s *Signer) AccessClaimsFromToken(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := s.parse(tokenStr, &claims, s.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, ErrWrongType)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalid)
	}
	return &claims, nil
}

func (s *Signer) RefreshClaimsFromToken(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.parse(tokenStr, &claims, s.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, ErrWrongType)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalid)
	}
	return &claims, nil
}
