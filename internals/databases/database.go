package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"impactacademy_backend/internals/configs"
)

var DB *gorm.DB

// ConnectDB opens the postgres pool. PreferSimpleProtocol keeps it usable
// behind PgBouncer in transaction pooling mode.
func ConnectDB(cfg configs.DBConfig, logger *zap.Logger) (*gorm.DB, error) {
	logger.Info("🔌 connecting to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.Name))

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(logger),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	DB = db
	logger.Info("✅ DB connected")
	return db, nil
}

func TunePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("pool tune: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return nil
}

// Ping checks the pool with a short deadline; used by /health and warm-up.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func WarmUp(db *gorm.DB, logger *zap.Logger) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := Ping(context.Background(), db); err != nil {
			logger.Warn("warm-up ping failed", zap.Error(err))
		}
	}()
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
