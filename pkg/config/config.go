package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// LoadEnv parses the common command line flags and loads the env file they
// point to. A missing file is not an error: the process environment wins.
func LoadEnv() {
	envFile := pflag.String("env-file", ".env", "path to a dotenv file with service settings")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("notice: %s not loaded: %v, using process environment", *envFile, err)
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDurationDefault accepts Go duration strings ("1h", "168h").
func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func EnvCSVDefault(key string, def []string) []string {
	if out := CSV(os.Getenv(key)); len(out) > 0 {
		return out
	}
	return def
}
