package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/models"
)

func OpenPostgres(dsn string, opts Options) (*Store, error) {
	return openGorm(postgres.Open(dsn), "postgres", false, opts)
}

// OpenSQLite opens a sqlite database file; ":memory:" and
// "file:…?mode=memory" DSNs are pinned to a single connection so every
// query sees the same database.
func OpenSQLite(path string, opts Options) (*Store, error) {
	inMemory := strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
	return openGorm(sqlite.Open(path), "sqlite", inMemory, opts)
}

func openGorm(dialector gorm.Dialector, backend string, singleConn bool, opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(
			slog.NewLogLogger(opts.Logger.Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	if singleConn {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Review{}, &models.PasswordResetToken{}, &sessionRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", backend, err)
	}

	return &Store{
		Backend:  backend,
		Users:    &gormUsers{db: db},
		Reviews:  &gormReviews{db: db},
		Tokens:   &gormTokens{db: db},
		Sessions: &gormSessions{db: db, now: time.Now},
		close: func(context.Context) error {
			return sqlDB.Close()
		},
	}, nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}
