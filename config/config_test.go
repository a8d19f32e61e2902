package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{"APP_PORT", "DB_PATH", "SALE_TIMEZONE", "LOG_LEVEL", "CORS_ORIGINS", "LEDGER_FORBID_NEGATIVE"}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "shop.db", cfg.Storage.DBPath)
	assert.Equal(t, "Local", cfg.Sales.Timezone)
	assert.False(t, cfg.Sales.ForbidNegative)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("SALE_TIMEZONE", "Asia/Bangkok")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "http://till.local, http://back.office ,")
	t.Setenv("LEDGER_FORBID_NEGATIVE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"http://till.local", "http://back.office"}, cfg.Server.CORSOrigins)
	assert.Equal(t, ":memory:", cfg.Storage.DBPath)
	assert.True(t, cfg.Sales.ForbidNegative)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", loc.String())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=7070\nDB_PATH=/tmp/shop.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "/tmp/shop.db", cfg.Storage.DBPath)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"port":     {"APP_PORT", "http"},
		"timezone": {"SALE_TIMEZONE", "Mars/Olympus"},
		"level":    {"LOG_LEVEL", "loud"},
		"floor":    {"LEDGER_FORBID_NEGATIVE", "sometimes"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())

	cfg := &Config{
		Server:  ServerConfig{Port: "8080"},
		Storage: StorageConfig{DBPath: "shop.db"},
		Sales:   SalesConfig{Timezone: "UTC"},
		Log:     LogConfig{Level: "warn"},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Storage.DBPath = ""
	assert.Error(t, cfg.Validate())
}
