package revcache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v7"
)

const keyPrefix = "revoked:"

type Redis struct {
	client *redis.Client
}

var _ Cache = (*Redis)(nil)

func NewRedis(addr, pwd string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pwd,
		DB:       db,
	})

	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{client: client}, nil
}

func (r *Redis) MarkRevoked(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.WithContext(ctx).Set(keyPrefix+jti, "1", ttl).Err()
}

func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.WithContext(ctx).Exists(keyPrefix + jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
