package tests

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Skotchmaster/telemetry_hub/pkg/db"
	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/models"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/repo"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type integrationEnv struct {
	db  *gorm.DB
	svc *service.AuthService
	rp  *repo.GormRepo
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	dsn := os.Getenv("AUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUTH_TEST_DATABASE_URL is required for tests")
	}

	gdb, err := db.Open(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(models.All()...))

	rp := repo.New(gdb)
	env := &integrationEnv{
		db: gdb,
		rp: rp,
		svc: service.NewAuthService(rp, &tokens.Signer{
			AccessSecret:  []byte("test-jwt-secret"),
			RefreshSecret: []byte("test-refresh-secret"),
			Issuer:        "telemetry-auth",
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
		}, nil),
	}

	t.Cleanup(func() {
		truncateTables(t, gdb)
		_ = db.Close(gdb)
	})

	return env
}

func truncateTables(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	gdb.Exec("TRUNCATE TABLE token_blacklist, refresh_tokens, users RESTART IDENTITY CASCADE")
}

func uniqueUsername() string {
	return "u_" + uuid.NewString()
}

func TestAuthService_Register_SuccessAndConflict(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	username := uniqueUsername()

	require.NoError(t, env.svc.Register(ctx, "Test", username, "Secret123"))
	assert.ErrorIs(t, env.svc.Register(ctx, "Test", username, "Secret123"), service.ErrConflict)
}

func TestAuthService_LogOut_RevokesBothTokens(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	username := uniqueUsername()

	require.NoError(t, env.svc.Register(ctx, "Test", username, "Secret123"))
	loginRes, err := env.svc.Login(ctx, username, "Secret123")
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, loginRes.AccessToken, loginRes.RefreshToken))

	_, err = env.svc.Authorize(ctx, loginRes.AccessToken)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	res, err := env.svc.Refresh(ctx, loginRes.RefreshToken)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Cleanup_KeepsLiveRows(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	username := uniqueUsername()

	require.NoError(t, env.svc.Register(ctx, "Test", username, "Secret123"))
	loginRes, err := env.svc.Login(ctx, username, "Secret123")
	require.NoError(t, err)
	require.NoError(t, env.svc.Logout(ctx, loginRes.AccessToken, ""))

	env.svc.Cleanup(ctx)

	var n int64
	require.NoError(t, env.db.Model(&models.BlacklistEntry{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	require.NoError(t, env.db.Model(&models.RefreshToken{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
