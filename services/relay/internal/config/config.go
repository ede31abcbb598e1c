package config

import (
	"time"

	pkgcfg "github.com/Skotchmaster/telemetry_hub/pkg/config"
	"github.com/Skotchmaster/telemetry_hub/services/relay/internal/upstream"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	KafkaBrokers []string
	Topics       []string
	RetryBackoff time.Duration

	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		ListenAddr: pkgcfg.EnvDefault("RELAY_ADDR", ":8080"),
		LogLevel:   pkgcfg.EnvDefault("LOG_LEVEL", "info"),

		KafkaBrokers: pkgcfg.EnvCSVDefault("KAFKA_BROKERS", []string{"localhost:9092"}),
		Topics:       pkgcfg.EnvCSVDefault("RELAY_TOPICS", upstream.DefaultTopics),
		RetryBackoff: pkgcfg.EnvDurationDefault("KAFKA_RETRY_BACKOFF", 5*time.Second),

		AllowedOrigins: pkgcfg.CSV(pkgcfg.EnvDefault("ALLOWED_ORIGINS", "")),
	}
}
