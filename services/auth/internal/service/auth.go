package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkg_hash "github.com/Skotchmaster/telemetry_hub/pkg/hash"
	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/models"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/repo"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/revcache"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence contract of the credential service.
type Store interface {
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)

	AddRefreshToken(ctx context.Context, rt *models.RefreshToken) error
	FindActiveRefresh(ctx context.Context, jti, digest string, now int64) (*models.RefreshToken, error)

	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, entry *models.BlacklistEntry, refreshDigest string) error

	DeleteExpiredBlacklist(ctx context.Context, now int64) (int64, error)
	DeleteExpiredRefresh(ctx context.Context, now int64) (int64, error)
}

var _ Store = (*repo.GormRepo)(nil)

type AuthService struct {
	Repo   Store
	Tokens *tokens.Signer
	Cache  revcache.Cache

	Now func() time.Time
}

func NewAuthService(store Store, signer *tokens.Signer, cache revcache.Cache) *AuthService {
	if cache == nil {
		cache = revcache.Noop{}
	}
	return &AuthService{Repo: store, Tokens: signer, Cache: cache}
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	AccessExp    time.Time
	RefreshExp   time.Time
}

type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
	AccessExp   time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) cache() revcache.Cache {
	if s.Cache == nil {
		return revcache.Noop{}
	}
	return s.Cache
}

func (s *AuthService) expiresIn() int64 {
	return int64(s.Tokens.AccessTTL / time.Second)
}

func subjectOf(u *models.User) tokens.Subject {
	return tokens.Subject{
		ID:       strconv.FormatUint(uint64(u.ID), 10),
		Username: u.Username,
		Name:     u.Name,
	}
}

func parseUserID(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return uint(id), nil
}

func (s *AuthService) Register(ctx context.Context, name, username, password string) error {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	name, username = strings.TrimSpace(name), strings.TrimSpace(username)
	if name == "" || username == "" || password == "" {
		return fmt.Errorf("name, username and password are required: %w", ErrValidation)
	}
	if len(password) > pkg_hash.MaxPasswordBytes {
		l.Warn("register_error", "status", 400, "reason", "password too long", "bytes", len(password))
		return fmt.Errorf("password exceeds %d bytes: %w", pkg_hash.MaxPasswordBytes, ErrValidation)
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("password too long: %w", ErrValidation)
		}
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return ErrInternal
	}

	user := models.User{
		Name:         name,
		Username:     username,
		PasswordHash: pwHash,
	}

	if err := s.Repo.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 400, "reason", "user already exist", "username", username)
			return ErrConflict
		}
		l.Error("register_error", "status", 500, "reason", "cannot store user", "error", err)
		return ErrInternal
	}

	l.Info("user_registered", "user_id", user.ID)
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrValidation)
	}

	user, err := s.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown username")
			return nil, ErrAuthentication
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "password mismatch")
		return nil, ErrAuthentication
	}

	accessToken, accessClaims, err := s.Tokens.CreateAccessToken(subjectOf(user))
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	refreshToken, refreshClaims, err := s.Tokens.CreateRefreshToken(strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	if err := s.Repo.AddRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     pkg_hash.Sha256Hex(refreshToken),
		JTI:       refreshClaims.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Unix(),
	}); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, ErrInternal
	}

	l.Info("login_successful", "user_id", user.ID)
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.expiresIn(),
		AccessExp:    accessClaims.ExpiresAt.Time,
		RefreshExp:   refreshClaims.ExpiresAt.Time,
	}, nil
}

// Refresh mints a new access token for the owner of a live refresh token.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required: %w", ErrValidation)
	}

	claims, err := s.Tokens.RefreshClaimsFromToken(refreshToken)
	if err != nil {
		l.Info("refresh_rejected", "status", 401, "error", err)
		return nil, ErrInvalidToken
	}

	userID, err := parseUserID(claims.Subject)
	if err != nil {
		return nil, err
	}

	stored, err := s.Repo.FindActiveRefresh(ctx, claims.ID, pkg_hash.Sha256Hex(refreshToken), s.now().Unix())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Info("refresh_rejected", "status", 401, "reason", "refresh token not stored", "jti", claims.ID)
			return nil, fmt.Errorf("%w: refresh token revoked or expired", ErrInvalidToken)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}
	if stored.UserID != userID {
		l.Warn("refresh_rejected", "status", 401, "reason", "subject mismatch", "jti", claims.ID)
		return nil, ErrInvalidToken
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrInvalidToken)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	accessToken, accessClaims, err := s.Tokens.CreateAccessToken(subjectOf(user))
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}

	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   s.expiresIn(),
		AccessExp:   accessClaims.ExpiresAt.Time,
	}, nil
}

// Authorize verifies the token cryptographically first and only then checks
// the blacklist. Both checks must pass.
func (s *AuthService) Authorize(ctx context.Context, token string) (*tokens.AccessClaims, error) {
	l := logging.FromContext(ctx).With("svc", "auth.authorize")

	claims, err := s.Tokens.AccessClaimsFromToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		l.Error("authorize_failed", "status", 500, "error", err)
		return nil, ErrInternal
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}

	return claims, nil
}

func (s *AuthService) isRevoked(ctx context.Context, jti string) (bool, error) {
	l := logging.FromContext(ctx)

	cached, err := s.cache().IsRevoked(ctx, jti)
	if err != nil {
		l.Warn("revocation_cache_error", "op", "get", "error", err)
	} else if cached {
		return true, nil
	}

	return s.Repo.IsBlacklisted(ctx, jti)
}

// Logout revokes accessToken and, if given, deletes refreshToken in a single
// transaction.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	claims, err := s.Authorize(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			l.Info("logout_rejected", "status", 401, "error", err)
		}
		return err
	}

	userID, err := parseUserID(claims.Subject)
	if err != nil {
		return err
	}

	entry := &models.BlacklistEntry{
		JTI:    claims.ID,
		Token:  pkg_hash.Sha256Hex(accessToken),
		UserID: userID,
		Expiry: claims.ExpiresAt.Unix(),
	}

	var refreshDigest string
	if refreshToken != "" {
		refreshDigest = pkg_hash.Sha256Hex(refreshToken)
	}

	if err := s.Repo.Revoke(ctx, entry, refreshDigest); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke tokens", "error", err)
		return ErrInternal
	}

	if err := s.cache().MarkRevoked(ctx, entry.JTI, claims.ExpiresAt.Time); err != nil {
		l.Warn("revocation_cache_error", "op", "set", "error", err)
	}

	l.Info("successful_logout", "user_id", userID, "refresh_revoked", refreshDigest != "")
	return nil
}
