package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"ENV", "HEXAGRAM_BASE_URL", "HEXAGRAM_DB", "HEXAGRAM_VARIANT", "HEXAGRAM_SCHEMA_FILE",
	"HEXAGRAM_AUTO_SYNC", "HEXAGRAM_SYNC_DELAY_MS", "HEXAGRAM_REDIS_ADDR", "HEXAGRAM_REDIS_PASSWORD",
	"HEXAGRAM_NATS_URL", "HEXAGRAM_NATS_SUBJECT", "PROXY_PORT", "HEXAGRAM_UPSTREAM_URL",
	"DEVSERVER_PORT", "JWT_SECRET",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultVariant, cfg.Variant)
	assert.Empty(t, cfg.SchemaFile)
	assert.Nil(t, cfg.AutoSync)
	assert.Equal(t, time.Second, cfg.SyncDelay)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, DefaultNATSSubject, cfg.NATS.Subject)
	assert.Equal(t, DefaultProxyPort, cfg.Proxy.Port)
	assert.Equal(t, DefaultDevPort, cfg.Dev.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEXAGRAM_BASE_URL", "https://api.example.com/")
	t.Setenv("HEXAGRAM_VARIANT", "matching")
	t.Setenv("HEXAGRAM_AUTO_SYNC", "false")
	t.Setenv("HEXAGRAM_SYNC_DELAY_MS", "250")
	t.Setenv("HEXAGRAM_REDIS_ADDR", "localhost:6379")
	t.Setenv("PROXY_PORT", "9000")

	cfg := LoadConfig()
	assert.Equal(t, "https://api.example.com", cfg.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "matching", cfg.Variant)
	require.NotNil(t, cfg.AutoSync)
	assert.False(t, *cfg.AutoSync)
	assert.Equal(t, 250*time.Millisecond, cfg.SyncDelay)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 9000, cfg.Proxy.Port)
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROXY_PORT", "eighty")
	t.Setenv("HEXAGRAM_AUTO_SYNC", "sometimes")

	cfg := LoadConfig()
	assert.Equal(t, DefaultProxyPort, cfg.Proxy.Port)
	assert.Nil(t, cfg.AutoSync)
}

func TestLoadConfig_DotEnvInDev(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HEXAGRAM_VARIANT=matching\nJWT_SECRET=from-file\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("ENV", "dev")
	t.Setenv("JWT_SECRET", "from-env")

	cfg := LoadConfig()
	assert.Equal(t, "matching", cfg.Variant)
	assert.Equal(t, "from-env", cfg.Dev.JWTSecret, "environment wins over .env")

	// godotenv sets process env; undo for other tests.
	os.Unsetenv("HEXAGRAM_VARIANT")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := LoadConfig()
	cfg.SyncDelay = 0
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.BaseURL = ""
	assert.Error(t, cfg.Validate())
}
