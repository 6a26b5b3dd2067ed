// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	QuickBooks QuickBooksConfig
	Notify     NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    string
	Timeout time.Duration
}

// DatabaseConfig holds local store settings.
type DatabaseConfig struct {
	Path string
}

// RedisConfig holds optional Redis settings. When Addresses is empty the
// server runs with an in-memory credential store only.
type RedisConfig struct {
	Addresses []string
	Password  string
	DB        int
	KeyPrefix string
}

// Enabled reports whether a Redis credential mirror is configured.
func (c RedisConfig) Enabled() bool {
	return len(c.Addresses) > 0
}

// QuickBooksConfig holds QuickBooks OAuth and API settings. AccessToken,
// RefreshToken and AccessTokenExpiry seed the credential record at startup;
// they are optional because the connect flow can establish them at runtime.
type QuickBooksConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	Scope             string
	AuthURL           string
	TokenURL          string
	APIBaseURL        string
	RealmID           string
	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time
	SessionSecret     string
}

// NotifyConfig holds failure-alerting settings.
type NotifyConfig struct {
	AdminEmail string
}

// Load reads configuration from FSSERVER_* environment variables and returns
// a validated Config. QuickBooks client credentials are required; seed tokens
// and Redis are optional.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:    getEnv("FSSERVER_PORT", "8080"),
			Timeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path: getEnv("FSSERVER_DB_PATH", "fsserver.db"),
		},
		QuickBooks: QuickBooksConfig{
			ClientID:      os.Getenv("FSSERVER_QB_CLIENT_ID"),
			ClientSecret:  os.Getenv("FSSERVER_QB_CLIENT_SECRET"),
			RedirectURI:   getEnv("FSSERVER_QB_REDIRECT_URI", "http://localhost:8080/quickbooks/callback"),
			Scope:         getEnv("FSSERVER_QB_SCOPE", "com.intuit.quickbooks.accounting"),
			AuthURL:       getEnv("FSSERVER_QB_AUTH_URL", "https://appcenter.intuit.com/connect/oauth2"),
			TokenURL:      getEnv("FSSERVER_QB_TOKEN_URL", "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"),
			APIBaseURL:    getEnv("FSSERVER_QB_API_BASE_URL", "https://sandbox-quickbooks.api.intuit.com"),
			RealmID:       os.Getenv("FSSERVER_QB_REALM_ID"),
			AccessToken:   os.Getenv("FSSERVER_QB_ACCESS_TOKEN"),
			RefreshToken:  os.Getenv("FSSERVER_QB_REFRESH_TOKEN"),
			SessionSecret: getEnv("FSSERVER_SESSION_SECRET", "fsserver-dev-session-secret"),
		},
		Notify: NotifyConfig{
			AdminEmail: getEnv("FSSERVER_ADMIN_EMAIL", "ops@example.com"),
		},
	}

	if v, ok := os.LookupEnv("FSSERVER_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("FSSERVER_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.Server.Timeout = d
	}

	if cfg.QuickBooks.ClientID == "" || cfg.QuickBooks.ClientSecret == "" {
		return Config{}, fmt.Errorf("FSSERVER_QB_CLIENT_ID and FSSERVER_QB_CLIENT_SECRET are required")
	}

	if v, ok := os.LookupEnv("FSSERVER_QB_TOKEN_EXPIRY"); ok {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Config{}, fmt.Errorf("FSSERVER_QB_TOKEN_EXPIRY has invalid timestamp %q: %w", v, err)
		}
		cfg.QuickBooks.AccessTokenExpiry = t
	}

	if v, ok := os.LookupEnv("FSSERVER_REDIS_ADDRESSES"); ok && v != "" {
		for _, addr := range strings.Split(v, ",") {
			addr = strings.TrimSpace(addr)
			if addr != "" {
				cfg.Redis.Addresses = append(cfg.Redis.Addresses, addr)
			}
		}
		cfg.Redis.Password = os.Getenv("FSSERVER_REDIS_PASSWORD")
		cfg.Redis.KeyPrefix = getEnv("FSSERVER_REDIS_KEY_PREFIX", "fsserver")

		if db, ok := os.LookupEnv("FSSERVER_REDIS_DB"); ok {
			n, err := strconv.Atoi(db)
			if err != nil {
				return Config{}, fmt.Errorf("FSSERVER_REDIS_DB has invalid value %q: %w", db, err)
			}
			cfg.Redis.DB = n
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
