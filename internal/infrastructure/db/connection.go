package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/statustracker/backend/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	schemeSQLite = "sqlite://"
)

// IsSQLURL reports whether url is served by the gorm backends.
func IsSQLURL(url string) bool {
	return strings.HasPrefix(url, schemeSQLite) ||
		strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(url, schemeSQLite):
		path := strings.TrimPrefix(url, schemeSQLite)
		if path != "" && !strings.HasPrefix(path, "file:") && !strings.Contains(path, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, false, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(path), true, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported database URL format: %s", url)
	}
}

func NewConnection(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	dialector, isSQLite, err := dialectorFor(cfg.URL)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Warn)
	if strings.EqualFold(logLevel, "debug") {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	database, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if isSQLite {
		// one writer keeps conditional updates from tripping over SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return database, nil
}

func Close(database *gorm.DB) error {
	if database == nil {
		return nil
	}
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
