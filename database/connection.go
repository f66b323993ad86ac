package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/delivery-backend/internal/config"
	"github.com/Ananth-NQI/delivery-backend/internal/logger"
)

// Connect opens the database configured in cfg. Postgres is the production
// driver; sqlite serves local runs and tests.
func Connect(cfg config.DatabaseConfig, logLevel string, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel)),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:delivery.db?_foreign_keys=on"
		}
		dialector = sqlite.Open(dsn)
		log.Info("Connecting to sqlite", zap.String("dsn", dsn))
	default:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
				cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
		}
		dialector = postgres.Open(dsn)
		log.Info("Connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("database", cfg.Name))
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("Database connected successfully")
	return db, nil
}
