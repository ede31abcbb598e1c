package service

import (
	"context"
	"testing"
	"time"

	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCleanupRows(t *testing.T, svc *AuthService, now int64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Alice", "alice", "secret123"))

	store := svc.Repo
	for _, e := range []*models.BlacklistEntry{
		{JTI: "bl-expired-1", Token: "t1", UserID: 1, Expiry: now - 60},
		{JTI: "bl-expired-2", Token: "t2", UserID: 1, Expiry: now - 1},
		{JTI: "bl-live", Token: "t3", UserID: 1, Expiry: now + 3600},
	} {
		require.NoError(t, store.Revoke(ctx, e, ""))
	}
	require.NoError(t, store.AddRefreshToken(ctx, &models.RefreshToken{UserID: 1, Token: "d-old", JTI: "rt-expired", ExpiresAt: now - 1}))
	require.NoError(t, store.AddRefreshToken(ctx, &models.RefreshToken{UserID: 1, Token: "d-new", JTI: "rt-live", ExpiresAt: now + 3600}))
}

func TestAuthService_Cleanup_RemovesOnlyExpiredRows(t *testing.T) {
	t.Parallel()

	svc, rp := newTestAuthService(t)
	ctx := context.Background()
	now := time.Now().Unix()
	seedCleanupRows(t, svc, now)

	res := svc.Cleanup(ctx)
	assert.Equal(t, CleanupResult{Blacklist: 2, Refresh: 1}, res)

	var blacklist []models.BlacklistEntry
	require.NoError(t, rp.DB.Find(&blacklist).Error)
	require.Len(t, blacklist, 1)
	assert.Equal(t, "bl-live", blacklist[0].JTI)

	var refresh []models.RefreshToken
	require.NoError(t, rp.DB.Find(&refresh).Error)
	require.Len(t, refresh, 1)
	assert.Equal(t, "rt-live", refresh[0].JTI)

	// idempotent
	assert.Equal(t, CleanupResult{}, svc.Cleanup(ctx))
}

func TestAuthService_Cleanup_NeverPurgesRevokedUnexpiredToken(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	res := registerAndLogin(t, svc, "alice", "secret123")
	require.NoError(t, svc.Logout(ctx, res.AccessToken, res.RefreshToken))

	svc.Cleanup(ctx)

	_, err := svc.Authorize(ctx, res.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_Cleanup_LogsStorageErrors(t *testing.T) {
	t.Parallel()

	svc, rp := newTestAuthService(t)
	sqlDB, err := rp.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		assert.Equal(t, CleanupResult{}, svc.Cleanup(context.Background()))
	})
}

func TestAuthService_RunCleanup_SweepsUntilCancelled(t *testing.T) {
	t.Parallel()

	svc, rp := newTestAuthService(t)
	seedCleanupRows(t, svc, time.Now().Unix())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.RunCleanup(ctx, time.Hour)
	}()

	require.Eventually(t, func() bool {
		var n int64
		rp.DB.Model(&models.RefreshToken{}).Count(&n)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunCleanup did not stop after cancel")
	}
}
