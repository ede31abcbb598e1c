package config

import (
	"os"

	pkgcfg "github.com/Skotchmaster/telemetry_hub/pkg/config"
)

type Config struct {
	ListenAddr     string
	LogLevel       string
	AuthURL        string
	RelayURL       string
	AllowedOrigins []string
}

func Load() *Config {
	cfg := &Config{
		ListenAddr:     pkgcfg.EnvDefault("GATEWAY_ADDR", ":8000"),
		LogLevel:       pkgcfg.EnvDefault("LOG_LEVEL", "info"),
		AuthURL:        pkgcfg.MustNonEmpty(os.Getenv("AUTH_URL"), "AUTH_URL"),
		RelayURL:       pkgcfg.MustNonEmpty(os.Getenv("RELAY_URL"), "RELAY_URL"),
		AllowedOrigins: pkgcfg.EnvCSVDefault("ALLOWED_ORIGINS", []string{"*"}),
	}
	return cfg
}
