package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	Storage     string

	ScanWorkers     int
	ScanInterval    time.Duration
	ScanTimeout     time.Duration
	ScanParallelism int
	RulesFile       string

	NatsURL string

	EscalationWebhookURL     string
	EscalationWebhookTimeout time.Duration
}

// ErrNoDatabase is returned alongside a usable Config when postgres storage is
// selected without DATABASE_URL.
var ErrNoDatabase = errors.New("DATABASE_URL not set")

// Load reads the environment after loading an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                      getenv("APP_ENV", "development"),
		ListenAddr:               getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		Storage:                  getenv("STORAGE", StoragePostgres),
		ScanWorkers:              getenvInt("SCAN_WORKERS", 1),
		ScanInterval:             getenvDuration("SCAN_INTERVAL", 0),
		ScanTimeout:              getenvDuration("SCAN_TIMEOUT", 2*time.Minute),
		ScanParallelism:          getenvInt("SCAN_PARALLELISM", 4),
		RulesFile:                os.Getenv("RULES_FILE"),
		NatsURL:                  os.Getenv("NATS_URL"),
		EscalationWebhookURL:     os.Getenv("ESCALATION_WEBHOOK_URL"),
		EscalationWebhookTimeout: getenvDuration("ESCALATION_WEBHOOK_TIMEOUT", 5*time.Second),
	}
	switch cfg.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return cfg, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}
	if cfg.Storage == StoragePostgres && cfg.DatabaseURL == "" {
		// Not fatal for local runs; callers decide.
		return cfg, ErrNoDatabase
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
