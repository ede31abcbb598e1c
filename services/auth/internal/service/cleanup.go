package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/telemetry_hub/pkg/logging"
)

type CleanupResult struct {
	Blacklist int64
	Refresh   int64
}

// Cleanup purges blacklist and refresh rows whose expiry has passed. Rows
// that are still live are never touched. Errors are logged, not returned.
func (s *AuthService) Cleanup(ctx context.Context) CleanupResult {
	l := logging.FromContext(ctx).With("svc", "auth.cleanup")
	now := s.now().Unix()

	var res CleanupResult
	var err error

	res.Blacklist, err = s.Repo.DeleteExpiredBlacklist(ctx, now)
	if err != nil {
		l.Error("cleanup_failed", "table", "token_blacklist", "error", err)
	}

	res.Refresh, err = s.Repo.DeleteExpiredRefresh(ctx, now)
	if err != nil {
		l.Error("cleanup_failed", "table", "refresh_tokens", "error", err)
	}

	l.Info("cleanup_done", "blacklist_removed", res.Blacklist, "refresh_removed", res.Refresh)
	return res
}

// RunCleanup sweeps once right away and then every interval until ctx ends.
func (s *AuthService) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx)
		}
	}
}
