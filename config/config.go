// Package config loads multitokend settings from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	multitoken "github.com/goliatone/go-multitoken"
)

// Config holds the daemon configuration.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on
	HTTPAddr string `mapstructure:"MULTITOKEN_HTTP_ADDR"`
	// RoutePrefix mounts the auth routes under a group, e.g. /api/auth
	RoutePrefix string `mapstructure:"MULTITOKEN_ROUTE_PREFIX"`
	// DBDialect is sqlite or postgres
	DBDialect string `mapstructure:"MULTITOKEN_DB_DIALECT"`
	// DBDSN is a sqlite file URI or a postgres URL
	DBDSN string `mapstructure:"MULTITOKEN_DB_DSN"`
	// RedisAddr enables the token lookup cache when set
	RedisAddr string `mapstructure:"MULTITOKEN_REDIS_ADDR"`
	// CacheTTL is how long a token lookup stays cached (e.g. "60s")
	CacheTTL string `mapstructure:"MULTITOKEN_CACHE_TTL"`
	// LogLevel is an hclog level name
	LogLevel string `mapstructure:"MULTITOKEN_LOG_LEVEL"`
	// Debug dumps created records in the logs
	Debug bool `mapstructure:"MULTITOKEN_DEBUG"`
	// BcryptCost is the cost used when setting passwords
	BcryptCost int `mapstructure:"MULTITOKEN_BCRYPT_COST"`

	ResetTokenExpiryHours int    `mapstructure:"MULTITOKEN_RESET_TOKEN_EXPIRY_HOURS"`
	EnableSuperuserLogin  bool   `mapstructure:"MULTITOKEN_ENABLE_SUPERUSER_LOGIN"`
	AuthHeaderKeyword     string `mapstructure:"MULTITOKEN_AUTH_HEADER_KEYWORD"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("MULTITOKEN_HTTP_ADDR", ":8080")
	v.SetDefault("MULTITOKEN_ROUTE_PREFIX", "/auth")
	v.SetDefault("MULTITOKEN_DB_DIALECT", "sqlite")
	v.SetDefault("MULTITOKEN_DB_DSN", "file:multitoken.db?cache=shared")
	v.SetDefault("MULTITOKEN_REDIS_ADDR", "")
	v.SetDefault("MULTITOKEN_CACHE_TTL", "60s")
	v.SetDefault("MULTITOKEN_LOG_LEVEL", "info")
	v.SetDefault("MULTITOKEN_DEBUG", false)
	v.SetDefault("MULTITOKEN_BCRYPT_COST", 10)
	v.SetDefault("MULTITOKEN_RESET_TOKEN_EXPIRY_HOURS", multitoken.DefaultResetTokenExpiryHours)
	v.SetDefault("MULTITOKEN_ENABLE_SUPERUSER_LOGIN", true)
	v.SetDefault("MULTITOKEN_AUTH_HEADER_KEYWORD", multitoken.DefaultAuthHeaderKeyword)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: MULTITOKEN_HTTP_ADDR must be set")
	}

	switch cfg.DBDialect {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("config: unsupported MULTITOKEN_DB_DIALECT %q", cfg.DBDialect)
	}

	if cfg.ResetTokenExpiryHours <= 0 {
		return nil, errors.New("config: MULTITOKEN_RESET_TOKEN_EXPIRY_HOURS must be positive")
	}

	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: MULTITOKEN_BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// Options returns the auth flow options
func (c *Config) Options() multitoken.Options {
	return multitoken.Options{
		ResetTokenExpiryHours: c.ResetTokenExpiryHours,
		EnableSuperuserLogin:  c.EnableSuperuserLogin,
		AuthHeaderKeyword:     c.AuthHeaderKeyword,
	}
}

// TokenCacheTTL parses CacheTTL. Returns 60s if unset or invalid.
func (c *Config) TokenCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
