// Package config provides environment-based configuration for the
// Permafrost permissions service.
//
// Configuration is loaded from environment variables using Viper, with
// sensible defaults for development.
//
// # Environment Variables
//
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: permafrost.db
//   - SKIP_AUTO_MIGRATE: Skip automatic database migrations. Default: false
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//   - CHECK_CACHE_SIZE: Verdict cache entry bound. Default: 4096
//   - CHECK_MAX_DEPTH: Recursion ceiling for checks. Default: 10
//   - AUDIT_ENABLED: Persist audit events. Default: true
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	Port            int    `mapstructure:"PORT"`
	CheckCacheSize  int    `mapstructure:"CHECK_CACHE_SIZE"`
	CheckMaxDepth   int    `mapstructure:"CHECK_MAX_DEPTH"`
	AuditEnabled    bool   `mapstructure:"AUDIT_ENABLED"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "permafrost.db")
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("CHECK_CACHE_SIZE", 4096)
	viper.SetDefault("CHECK_MAX_DEPTH", 10)
	viper.SetDefault("AUDIT_ENABLED", true)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
