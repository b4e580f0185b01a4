package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feedsync/config"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects the api server database chosen by cfg.DBDriver.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		dialector = mysql.Open(dsn)
	case "sqlite", "":
		if err := ensureDir(cfg.SQLitePath); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger(cfg.AppEnv)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.DBDriver == "mysql" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	zap.L().Info("database connected", zap.String("driver", db.Dialector.Name()))
	return db, nil
}

// OpenLocal opens the on-device SQLite file backing the entity cache and the
// session record.
func OpenLocal(path string, env string) (*gorm.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger(env)})
	if err != nil {
		return nil, fmt.Errorf("open local db %s: %w", path, err)
	}
	// SQLite allows one writer at a time.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormLogger(env string) logger.Interface {
	if env == "dev" {
		return logger.Default.LogMode(logger.Warn)
	}
	return logger.Default.LogMode(logger.Error)
}

func ensureDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
