package repo

import (
	"context"
	"errors"

	"github.com/Skotchmaster/telemetry_hub/pkg/db"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// GormRepo is the relational store for users, refresh tokens and the
// revocation blacklist. It holds no state besides the connection pool and is
// safe for concurrent use.
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) Ping(ctx context.Context) error {
	return db.Ping(ctx, r.DB)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
