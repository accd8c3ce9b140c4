package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process configuration. Zero values fall back to defaults
// suitable for a development kiosk; production deployments set everything
// through the environment.
type Config struct {
	Addr            string
	DatabaseURL     string
	RedisURL        string
	OCRBaseURL      string
	OCRAPIKey       string
	OCRMonthlyQuota int64
	FileRoot        string
	JWTSigningKey   string
	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("GARITA_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("GARITA_DATABASE_URL"),
		RedisURL:        os.Getenv("GARITA_REDIS_URL"),
		OCRBaseURL:      os.Getenv("GARITA_OCR_URL"),
		OCRAPIKey:       os.Getenv("GARITA_OCR_API_KEY"),
		OCRMonthlyQuota: envInt("GARITA_OCR_MONTHLY_QUOTA", 1000),
		FileRoot:        envOr("GARITA_FILE_ROOT", "data/files"),
		JWTSigningKey:   os.Getenv("GARITA_JWT_SIGNING_KEY"),
		ShutdownTimeout: 15 * time.Second,
	}
	if cfg.JWTSigningKey == "" {
		// Development fallback; production must override.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
