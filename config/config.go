package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Credential storage: "mongo" (default) or "redis".
	CredentialBackend string `mapstructure:"CREDENTIAL_BACKEND"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisKeyPrefix    string `mapstructure:"REDIS_KEY_PREFIX"`

	// How long a credential may be served from the in-memory cache.
	CredentialCacheTTLSec int `mapstructure:"CREDENTIAL_CACHE_TTL_SEC"`

	// Provider endpoints. Overridable for tests and sandboxes.
	FitbitAPIBaseURL string `mapstructure:"FITBIT_API_BASE_URL"`
	FitbitAuthURL    string `mapstructure:"FITBIT_AUTH_URL"`
	FitbitTokenURL   string `mapstructure:"FITBIT_TOKEN_URL"`

	// Fixed UTC offset applied to the provider's local weight-log timestamps.
	FitbitUTCOffset string `mapstructure:"FITBIT_UTC_OFFSET"`

	// Fetch-window overlap below the checkpoint, in hours.
	SyncOverlapHours int `mapstructure:"SYNC_OVERLAP_HOURS"`

	// How many clients one sweep processes in parallel.
	SyncConcurrency int `mapstructure:"SYNC_CONCURRENCY"`

	// TickTable maps a tick id (a cron-like expression delivered by the
	// external scheduler) to "refresh" or to a metric stream name. Empty
	// means the built-in default table.
	TickTable map[string]string `mapstructure:"TICK_TABLE"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/fitsync/")
	v.AddConfigPath("$HOME/.fitsync")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/fitsync_dev")
	v.SetDefault("MONGO_DB_NAME", "fitsync_dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "fitsync-server")
	v.SetDefault("CREDENTIAL_BACKEND", "mongo")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_KEY_PREFIX", "fitsync")
	v.SetDefault("CREDENTIAL_CACHE_TTL_SEC", 30)
	v.SetDefault("FITBIT_API_BASE_URL", "https://api.fitbit.com")
	v.SetDefault("FITBIT_AUTH_URL", "https://www.fitbit.com/oauth2/authorize")
	v.SetDefault("FITBIT_TOKEN_URL", "https://api.fitbit.com/oauth2/token")
	v.SetDefault("FITBIT_UTC_OFFSET", "-04:00")
	v.SetDefault("SYNC_OVERLAP_HOURS", 24)
	v.SetDefault("SYNC_CONCURRENCY", 4)

	if err := v.ReadInConfig(); err != nil {
		// ConfigFileNotFoundError is acceptable, means we use defaults/env vars.
		// Other errors (e.g. permission issues, malformed config) should be returned.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
