package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rohits-web03/meetingvault/internal/config"
	"github.com/rohits-web03/meetingvault/internal/logger"
	"github.com/rohits-web03/meetingvault/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect picks the gorm driver for the configured database type.
func Dialect(cfg config.DBConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case config.DBTypeMySQL:
		dsn := cfg.URL
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
				cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		}
		return mysql.Open(dsn), nil
	case config.DBTypePostgres:
		dsn := cfg.URL
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
				cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
		}
		return postgres.Open(dsn), nil
	case config.DBTypeSQLite:
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

// OpenDatabase connects, verifies connectivity, applies pool limits and makes sure the meetings table exists.
func OpenDatabase(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialect, &gorm.Config{
		Logger: logger.NewGormLogger(log, gormlogger.Warn, 200*time.Millisecond),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %w", models.ErrPersistence, cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", models.ErrPersistence, cfg.Type, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&models.Meeting{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate meetings table: %w", models.ErrPersistence, err)
	}

	log.Info("Successfully connected to database", zap.String("type", cfg.Type))
	return db, nil
}

func CloseDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
