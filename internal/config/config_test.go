package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9000"
  api_keys: ["k1", "k2"]
  rate_limit_per_sec: 10
database:
  path: "`+filepath.Join(t.TempDir(), "db", "clinic.db")+`"
redis:
  enabled: true
  address: "localhost:6379"
booking:
  min_advance_hours: 2
  max_advance_days: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2, cfg.Booking.MinAdvanceHours)
	assert.Equal(t, 30, cfg.Booking.MaxAdvanceDays)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "data/clinicbook.db", cfg.Database.Path)
	assert.Equal(t, 300, cfg.Redis.CacheTTLSeconds)
	assert.Equal(t, 90, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("CLINIC_API_KEY", "secret-key")

	path := writeConfig(t, `
server:
  api_keys: ["${CLINIC_API_KEY}"]
database:
  path: "`+filepath.Join(t.TempDir(), "clinic.db")+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"secret-key"}, cfg.Server.APIKeys)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
