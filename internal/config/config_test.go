package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 2*time.Minute, cfg.ScanTimeout)
	assert.Equal(t, time.Duration(0), cfg.ScanInterval)
	assert.Equal(t, 4, cfg.ScanParallelism)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/esg")
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("SCAN_INTERVAL", "15m")
	t.Setenv("SCAN_TIMEOUT", "bogus")
	t.Setenv("RULES_FILE", "configs/rules.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ScanWorkers)
	assert.Equal(t, 15*time.Minute, cfg.ScanInterval)
	assert.Equal(t, 2*time.Minute, cfg.ScanTimeout)
	assert.Equal(t, "configs/rules.yaml", cfg.RulesFile)
}

func TestLoadReportsMissingDatabase(t *testing.T) {
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE", "redis")
	_, err := Load()
	assert.Error(t, err)
}
