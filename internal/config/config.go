// Package config reads hexagram settings from the environment.
//
// When ENV=dev a .env file in the working directory is loaded first. Values
// already present in the environment win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved client, proxy and dev-server configuration.
type Config struct {
	// BaseURL is where the client sends auth and profile requests. Usually
	// the proxy.
	BaseURL string

	// DBPath is the SQLite file holding the durable tier.
	DBPath string

	Variant    string
	SchemaFile string

	// AutoSync overrides the variant's auto-sync default when set.
	AutoSync  *bool
	SyncDelay time.Duration

	Redis RedisConfig
	NATS  NATSConfig
	Proxy ProxyConfig
	Dev   DevServerConfig
}

// RedisConfig selects Redis as the durable tier when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
}

// NATSConfig enables notification publishing when URL is set.
type NATSConfig struct {
	URL     string
	Subject string
}

type ProxyConfig struct {
	Port        int
	UpstreamURL string
}

type DevServerConfig struct {
	Port      int
	JWTSecret string
}

// Defaults.
const (
	DefaultBaseURL     = "http://localhost:8787"
	DefaultDBPath      = "hexagram.db"
	DefaultVariant     = "standard"
	DefaultSyncDelay   = 1000 * time.Millisecond
	DefaultNATSSubject = "hexagram.notifications"
	DefaultProxyPort   = 8787
	DefaultUpstreamURL = "http://localhost:8788"
	DefaultDevPort     = 8788
	DefaultJWTSecret   = "hexagram-dev-secret"
)

// LoadConfig reads the environment.
func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		BaseURL:    strings.TrimRight(getEnv("HEXAGRAM_BASE_URL", DefaultBaseURL), "/"),
		DBPath:     getEnv("HEXAGRAM_DB", DefaultDBPath),
		Variant:    getEnv("HEXAGRAM_VARIANT", DefaultVariant),
		SchemaFile: getEnv("HEXAGRAM_SCHEMA_FILE", ""),
		AutoSync:   getEnvBool("HEXAGRAM_AUTO_SYNC"),
		SyncDelay:  time.Duration(getEnvInt("HEXAGRAM_SYNC_DELAY_MS", int(DefaultSyncDelay/time.Millisecond))) * time.Millisecond,
		Redis: RedisConfig{
			Addr:     getEnv("HEXAGRAM_REDIS_ADDR", ""),
			Password: getEnv("HEXAGRAM_REDIS_PASSWORD", ""),
		},
		NATS: NATSConfig{
			URL:     getEnv("HEXAGRAM_NATS_URL", ""),
			Subject: getEnv("HEXAGRAM_NATS_SUBJECT", DefaultNATSSubject),
		},
		Proxy: ProxyConfig{
			Port:        getEnvInt("PROXY_PORT", DefaultProxyPort),
			UpstreamURL: strings.TrimRight(getEnv("HEXAGRAM_UPSTREAM_URL", DefaultUpstreamURL), "/"),
		},
		Dev: DevServerConfig{
			Port:      getEnvInt("DEVSERVER_PORT", DefaultDevPort),
			JWTSecret: getEnv("JWT_SECRET", DefaultJWTSecret),
		},
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("HEXAGRAM_BASE_URL is empty")
	}
	if c.SyncDelay <= 0 {
		return fmt.Errorf("HEXAGRAM_SYNC_DELAY_MS must be positive, got %s", c.SyncDelay)
	}
	if c.Proxy.Port <= 0 || c.Dev.Port <= 0 {
		return fmt.Errorf("ports must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvBool returns nil when key is unset or unparseable.
func getEnvBool(key string) *bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return nil
	}
	return &value
}
