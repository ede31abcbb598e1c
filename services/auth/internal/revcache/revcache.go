// Package revcache keeps a positive cache of revoked jtis in front of the
// blacklist table. Only revocations are cached, never their absence, so a
// stale or missing entry can only cost a database lookup.
package revcache

import (
	"context"
	"time"
)

type Cache interface {
	// MarkRevoked remembers jti as revoked until the token expires.
	MarkRevoked(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Noop struct{}

var _ Cache = Noop{}

func (Noop) MarkRevoked(context.Context, string, time.Time) error { return nil }

func (Noop) IsRevoked(context.Context, string) (bool, error) { return false, nil }
