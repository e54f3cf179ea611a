// Package sqlstore implements the storage backends on top of gorm and SQLite.
package sqlstore

import (
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/storage/password"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	log.Warn().Str("module", "storage.sql").Msgf(format, args...)
}

// Open connects to the SQLite database at dsn and migrates the schema.
// SQLite allows one writer, so the pool is capped at one connection.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info().Str("module", "storage.sql").Str("dsn", dsn).Msg("database ready")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&roomModel{}, &messageModel{}, &archiveModel{}, &userModel{}, &uploadModel{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// NewBackend wires every store onto db.
func NewBackend(db *gorm.DB, hasher *password.Hasher, historyLimit int) core.Backend {
	return core.Backend{
		Rooms:    NewRoomRepository(db, historyLimit),
		Archives: NewArchiveRepository(db),
		Auth:     NewUserRepository(db, hasher),
		Blobs:    NewUploadRepository(db),
	}
}
