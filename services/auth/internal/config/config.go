package config

import (
	"context"
	"os"
	"time"

	pkgcfg "github.com/Skotchmaster/telemetry_hub/pkg/config"
	"github.com/Skotchmaster/telemetry_hub/pkg/db"
	"github.com/Skotchmaster/telemetry_hub/pkg/tokens"
	"github.com/Skotchmaster/telemetry_hub/services/auth/internal/models"
	"gorm.io/gorm"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	DatabaseURL string

	JWTSecret     []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func Load() *Config {
	secret := pkgcfg.MustNonEmpty(os.Getenv("JWT_SECRET"), "JWT_SECRET")

	return &Config{
		ListenAddr: pkgcfg.EnvDefault("AUTH_ADDR", ":3000"),
		LogLevel:   pkgcfg.EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: pkgcfg.MustNonEmpty(os.Getenv("DATABASE_URL"), "DATABASE_URL"),

		JWTSecret:     []byte(secret),
		RefreshSecret: []byte(pkgcfg.EnvDefault("REFRESH_SECRET", secret)),
		Issuer:        pkgcfg.EnvDefault("JWT_ISSUER", "telemetry-auth"),
		Audience:      pkgcfg.EnvDefault("JWT_AUDIENCE", "telemetry-dashboard"),
		AccessTTL:     pkgcfg.EnvDurationDefault("ACCESS_TTL", time.Hour),
		RefreshTTL:    pkgcfg.EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),

		CleanupInterval: pkgcfg.EnvDurationDefault("CLEANUP_INTERVAL", 24*time.Hour),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       pkgcfg.EnvIntDefault("REDIS_DB", 0),
	}
}

func (c *Config) Signer() *tokens.Signer {
	return &tokens.Signer{
		AccessSecret:  c.JWTSecret,
		RefreshSecret: c.RefreshSecret,
		Issuer:        c.Issuer,
		Audience:      c.Audience,
		AccessTTL:     c.AccessTTL,
		RefreshTTL:    c.RefreshTTL,
	}
}

// InitDB opens the store and migrates the credential schema.
func (c *Config) InitDB(ctx context.Context) (*gorm.DB, error) {
	gdb, err := db.Open(ctx, c.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := gdb.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	return gdb, nil
}
