package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const DefaultDatabasePath = "one_to_many.db"

// Config holds the store settings.
type Config struct {
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	DatabasePath             string `mapstructure:"DATABASE_PATH"`
	LogLevel                 string `mapstructure:"LOG_LEVEL"`
	SlowQueryMillis          int    `mapstructure:"SLOW_QUERY_MS"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeSeconds int    `mapstructure:"DB_CONN_MAX_LIFETIME_SECONDS"`
}

func Default() Config {
	return Config{
		DatabasePath:             DefaultDatabasePath,
		LogLevel:                 "warn",
		SlowQueryMillis:          200,
		DBMaxOpenConns:           1,
		DBMaxIdleConns:           1,
		DBConnMaxLifetimeSeconds: 300,
	}
}

// Load reads the configuration from the environment, falling back to Default
// for anything unset.
func Load() (Config, error) {
	def := Default()
	v := viper.New()
	v.SetDefault("DATABASE_URL", def.DatabaseURL)
	v.SetDefault("DATABASE_PATH", def.DatabasePath)
	v.SetDefault("LOG_LEVEL", def.LogLevel)
	v.SetDefault("SLOW_QUERY_MS", def.SlowQueryMillis)
	v.SetDefault("DB_MAX_OPEN_CONNS", def.DBMaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", def.DBMaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME_SECONDS", def.DBConnMaxLifetimeSeconds)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	switch cfg.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		return Config{}, fmt.Errorf("unknown LOG_LEVEL %q", cfg.LogLevel)
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = def.DatabasePath
	}
	return cfg, nil
}
