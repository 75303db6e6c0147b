package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SlotEntry is the row behind one durable slot.
type SlotEntry struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     []byte    `gorm:"type:bytea;not null"`
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name used by the raw pgx queries.
func (SlotEntry) TableName() string {
	return "slot_entries"
}

// NewGorm returns a gorm.DB configured for the application's Postgres instance.
func NewGorm(cfg config.PostgresConfig) (*gorm.DB, error) {
	dsn := ConnString(cfg)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: open gorm connection: %w", model.ErrStorage, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres: retrieve sql db: %w", err)
	}

	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate creates the slot table, then releases the gorm connection; all
// slot traffic goes through the pgx pool.
func Migrate(ctx context.Context, cfg config.PostgresConfig) error {
	db, err := NewGorm(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres: retrieve sql db: %w", err)
	}
	defer sqlDB.Close()

	return AutoMigrate(ctx, db, &SlotEntry{})
}

// AutoMigrate uses GORM to perform schema migrations for the provided models.
func AutoMigrate(ctx context.Context, db *gorm.DB, models ...interface{}) error {
	if db == nil || len(models) == 0 {
		return nil
	}

	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("%w: postgres: auto migrate: %w", model.ErrStorage, err)
	}

	return nil
}
