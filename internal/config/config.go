// Package config provides application configuration management.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServerConfig interface for HTTP server configuration.
type ServerConfig interface {
	GetServerPort() string
	GetReadTimeout() time.Duration
	GetWriteTimeout() time.Duration
	GetIdleTimeout() time.Duration
	GetEnvironment() string
	IsProduction() bool
}

// SecurityConfig interface for security-related configuration.
type SecurityConfig interface {
	GetJWTSecret() string
	GetCredentialKey() []byte
}

// LinkingConfig interface for linking engine tunables.
type LinkingConfig interface {
	GetSessionTTL() time.Duration
	GetReapInterval() time.Duration
	GetTierCatalogPath() string
}

// RedisConfig interface for Redis-backed session storage.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

// DatabaseConfig interface for the relational store.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// ProviderConfig interface for the external account-data provider.
type ProviderConfig interface {
	GetProviderBaseURL() string
	GetProviderClientID() string
	GetProviderClientSecret() string
	GetProviderTokenURL() string
	UseSandboxProvider() bool
}

// AppConfig implements all configuration interfaces.
type AppConfig struct {
	serverPort     string
	environment    string
	logLevel       string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	jwtSecret      string
	credentialKey  []byte
	sessionTTL     time.Duration
	reapInterval   time.Duration
	tierCatalog    string
	redisAddr      string
	redisPassword  string
	redisDB        int
	databaseURL    string
	providerBase   string
	providerID     string
	providerSecret string
	providerToken  string
	sandboxMode    bool
}

// NewConfig creates a configuration instance with defaults overridden
// from environment variables.
func NewConfig() (*AppConfig, error) {
	key, err := loadCredentialKey()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		serverPort:     getEnvString("SERVER_PORT", "8080"),
		environment:    getEnvString("ENVIRONMENT", "development"),
		logLevel:       getEnvString("LOG_LEVEL", "info"),
		readTimeout:    getEnvDuration("READ_TIMEOUT", "15s"),
		writeTimeout:   getEnvDuration("WRITE_TIMEOUT", "15s"),
		idleTimeout:    getEnvDuration("IDLE_TIMEOUT", "60s"),
		jwtSecret:      getEnvString("JWT_SECRET", generateFallbackSecret()),
		credentialKey:  key,
		sessionTTL:     getEnvDuration("LINKING_SESSION_TTL", "2h"),
		reapInterval:   getEnvDuration("LINKING_REAP_INTERVAL", "60s"),
		tierCatalog:    getEnvString("TIER_CATALOG_PATH", ""),
		redisAddr:      getEnvString("REDIS_ADDR", ""),
		redisPassword:  getEnvString("REDIS_PASSWORD", ""),
		redisDB:        getEnvInt("REDIS_DB", 0),
		databaseURL:    getEnvString("DATABASE_URL", ""),
		providerBase:   getEnvString("PROVIDER_BASE_URL", ""),
		providerID:     getEnvString("PROVIDER_CLIENT_ID", ""),
		providerSecret: getEnvString("PROVIDER_CLIENT_SECRET", ""),
		providerToken:  getEnvString("PROVIDER_TOKEN_URL", ""),
		sandboxMode:    getEnvBool("PROVIDER_SANDBOX", true),
	}, nil
}

// GetServerPort returns the HTTP listen port.
func (c *AppConfig) GetServerPort() string { return c.serverPort }

// GetEnvironment returns the deployment environment name.
func (c *AppConfig) GetEnvironment() string { return c.environment }

// GetLogLevel returns the configured log level.
func (c *AppConfig) GetLogLevel() string { return c.logLevel }

// IsProduction reports whether the environment is production.
func (c *AppConfig) IsProduction() bool { return c.environment == "production" }

// GetReadTimeout returns the HTTP read timeout.
func (c *AppConfig) GetReadTimeout() time.Duration { return c.readTimeout }

// GetWriteTimeout returns the HTTP write timeout.
func (c *AppConfig) GetWriteTimeout() time.Duration { return c.writeTimeout }

// GetIdleTimeout returns the HTTP idle timeout.
func (c *AppConfig) GetIdleTimeout() time.Duration { return c.idleTimeout }

// GetJWTSecret returns the JWT signing secret.
func (c *AppConfig) GetJWTSecret() string { return c.jwtSecret }

// GetCredentialKey returns the 32-byte credential encryption key.
func (c *AppConfig) GetCredentialKey() []byte { return c.credentialKey }

// GetSessionTTL returns the absolute lifetime of a linking session.
func (c *AppConfig) GetSessionTTL() time.Duration { return c.sessionTTL }

// GetReapInterval returns the reaper sweep interval.
func (c *AppConfig) GetReapInterval() time.Duration { return c.reapInterval }

// GetTierCatalogPath returns the optional tier catalog YAML path.
func (c *AppConfig) GetTierCatalogPath() string { return c.tierCatalog }

// GetRedisAddr returns the Redis address, empty for in-memory sessions.
func (c *AppConfig) GetRedisAddr() string { return c.redisAddr }

// GetRedisPassword returns the Redis password.
func (c *AppConfig) GetRedisPassword() string { return c.redisPassword }

// GetRedisDB returns the Redis database index.
func (c *AppConfig) GetRedisDB() int { return c.redisDB }

// GetDatabaseURL returns the Postgres DSN, empty for in-memory storage.
func (c *AppConfig) GetDatabaseURL() string { return c.databaseURL }

// GetProviderBaseURL returns the provider API base URL.
func (c *AppConfig) GetProviderBaseURL() string { return c.providerBase }

// GetProviderClientID returns the provider OAuth client id.
func (c *AppConfig) GetProviderClientID() string { return c.providerID }

// GetProviderClientSecret returns the provider OAuth client secret.
func (c *AppConfig) GetProviderClientSecret() string { return c.providerSecret }

// GetProviderTokenURL returns the provider OAuth token endpoint.
func (c *AppConfig) GetProviderTokenURL() string { return c.providerToken }

// UseSandboxProvider reports whether the in-process sandbox provider is
// selected instead of the REST adapter.
func (c *AppConfig) UseSandboxProvider() bool { return c.sandboxMode }

// Validate checks for configuration combinations that cannot work.
func (c *AppConfig) Validate() error {
	if len(c.credentialKey) != 32 {
		return fmt.Errorf("credential key must be 32 bytes, got %d", len(c.credentialKey))
	}
	if !c.sandboxMode && c.providerBase == "" {
		return fmt.Errorf("PROVIDER_BASE_URL is required when PROVIDER_SANDBOX is disabled")
	}
	if c.IsProduction() && os.Getenv("JWT_SECRET") == "" {
		return fmt.Errorf("JWT_SECRET must be set explicitly in production")
	}
	if c.IsProduction() && os.Getenv("CREDENTIAL_KEY") == "" {
		return fmt.Errorf("CREDENTIAL_KEY must be set explicitly in production")
	}
	return nil
}

// loadCredentialKey reads CREDENTIAL_KEY (base64, 32 bytes decoded) or
// generates an ephemeral key for development.
func loadCredentialKey() ([]byte, error) {
	encoded := os.Getenv("CREDENTIAL_KEY")
	if encoded == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating ephemeral credential key: %w", err)
		}
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("CREDENTIAL_KEY is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("CREDENTIAL_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func generateFallbackSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "development-only-secret"
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func getEnvString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key, fallback string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		value = fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		parsed, _ = time.ParseDuration(fallback)
	}
	return parsed
}
