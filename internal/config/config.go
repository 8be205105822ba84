package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultSyncWorkers = 4
)

type Config struct {
	DatabaseURL   string
	HTTPAddr      string
	MetricsAddr   string
	APIToken      string
	EncryptionKey []byte
	SyncWorkers   int
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		APIToken:    strings.TrimSpace(os.Getenv("API_TOKEN")),
		SyncWorkers: getenvIntDefault("SYNC_WORKERS", defaultSyncWorkers),
	}

	if v := strings.TrimSpace(os.Getenv("ENCRYPTION_KEY")); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return cfg, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return cfg, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.EncryptionKey = key
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
