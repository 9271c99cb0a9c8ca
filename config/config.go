package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the gateway pipeline.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	ServiceName string `mapstructure:"SERVICE_NAME"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	CacheKeyPrefix string `mapstructure:"CACHE_KEY_PREFIX"`

	// JWT configuration. Symmetric algorithms (HS*) use JWT_SECRET_KEY,
	// asymmetric ones (RS*/ES*) use the PEM key pair. Key material is
	// validated fail-fast at signer construction, before serving traffic.
	JWTAlgorithm        string `mapstructure:"JWT_ALGORITHM"`
	JWTSecretKey        string `mapstructure:"JWT_SECRET_KEY"`
	JWTPrivateKeyPEM    string `mapstructure:"JWT_PRIVATE_KEY_PEM"`
	JWTPublicKeyPEM     string `mapstructure:"JWT_PUBLIC_KEY_PEM"`
	JWTIssuer           string `mapstructure:"JWT_ISSUER"`
	JWTAudience         string `mapstructure:"JWT_AUDIENCE"`
	AccessTokenTTLMin   int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLHour int    `mapstructure:"REFRESH_TOKEN_TTL_HOUR"`

	// Shared secret for internal service-to-service calls that bypass
	// bearer-token auth. Empty disables the internal header path.
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	IdempotencyTTLHour int `mapstructure:"IDEMPOTENCY_TTL_HOUR"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/authgate/")
	v.AddConfigPath("$HOME/.authgate")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SERVICE_NAME", "authgate")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/authgate_dev")
	v.SetDefault("MONGO_DB_NAME", "authgate_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_KEY_PREFIX", "authgate")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_ISSUER", "authgate")
	v.SetDefault("JWT_AUDIENCE", "platform-services")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)    // 1 hour
	v.SetDefault("REFRESH_TOKEN_TTL_HOUR", 720) // 30 days
	v.SetDefault("IDEMPOTENCY_TTL_HOUR", 24)

	if err := v.ReadInConfig(); err != nil {
		// ConfigFileNotFoundError is acceptable, means we use defaults/env vars.
		// Other errors (e.g., permission issues, malformed config) should be returned.
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
