// Package config loads runtime configuration from a .env file (when
// present) and environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Addr     string
	CertFile string
	KeyFile  string

	// Object store (S3-compatible).
	Region string
	Bucket string

	// Recording registry (DynamoDB table).
	RegistryTable string

	// Reassembly session bounds.
	SessionMaxBytes int64
}

// Load reads configuration, preferring environment variables over the
// optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading from environment")
	}
	return &Config{
		Addr:            env("ADDR", ":4443"),
		CertFile:        env("CERT_FILE", ""),
		KeyFile:         env("CERT_KEY", ""),
		Region:          env("AWS_REGION", ""),
		Bucket:          env("AWS_S3_VOD_BUCKET", ""),
		RegistryTable:   env("AWS_DB_VOD_NAME", ""),
		SessionMaxBytes: envInt64("SESSION_MAX_BYTES", 1<<30),
	}
}

// Get the value of an environment variable, or the default.
func env(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt64(key string, def int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		slog.Warn("ignoring malformed environment variable", "key", key, "value", val)
		return def
	}
	return n
}
