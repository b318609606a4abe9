package db

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"game-reviews/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the store described by cfg. A postgres DATABASE_URL wins
// over the SQLite file path.
func Open(cfg config.Config) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dial, &gorm.Config{
		Logger: newLogger(cfg),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second)
	}
	return conn, nil
}

func dialector(cfg config.Config) (gorm.Dialector, error) {
	if cfg.DatabaseURL != "" {
		if !isPostgresURL(cfg.DatabaseURL) {
			return nil, fmt.Errorf("unsupported DATABASE_URL scheme in %q", redactURL(cfg.DatabaseURL))
		}
		return postgres.Open(cfg.DatabaseURL), nil
	}
	path := cfg.DatabasePath
	if path == "" {
		path = config.DefaultDatabasePath
	}
	return sqlite.Open(sqliteDSN(path)), nil
}

// redactURL keeps only the scheme so credentials do not end up in logs.
func redactURL(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// sqliteDSN turns foreign key enforcement on; SQLite leaves it off per connection.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

func newLogger(cfg config.Config) logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Duration(cfg.SlowQueryMillis) * time.Millisecond,
			LogLevel:                  logLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func logLevel(name string) logger.LogLevel {
	switch name {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates the games and reviews tables if they are absent.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("db connection is nil")
	}
	if err := conn.AutoMigrate(
		&Game{},
		&Review{},
	); err != nil {
		return err
	}
	log.Println("database migration complete")
	return nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) error {
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
