package infra

import (
	"fmt"

	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// to create / update all tables, then applies idempotent SQL patches GORM
// cannot express (partial indexes, mostly).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the schema. Also used by integration tests against
// throwaway containers.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Store{},
		&model.PreferredStore{},
		&model.Category{},
		&model.Product{},
		&model.Price{},
		&model.Receipt{},
		&model.ReceiptItem{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Safe to re-run on an already-patched schema.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// At most one current approved observation per (product, store).
		// The approval transaction maintains this; the index makes a race
		// between two approvals a constraint error instead of silent
		// duplicate "current" rows.
		{"unique current price per product+store", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_prices_one_current') THEN
    CREATE UNIQUE INDEX idx_prices_one_current
        ON prices (product_id, store_id)
        WHERE is_active AND status = 'approved';
  END IF;
END $$`},
		// Partial index for the retry cron query over stuck receipts.
		{"receipts retry scan index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_receipts_stuck_retry') THEN
    CREATE INDEX idx_receipts_stuck_retry
        ON receipts (next_retry_at)
        WHERE status = 'processing' AND next_retry_at IS NOT NULL;
  END IF;
END $$`},
		// Moderation queues are scanned by status constantly.
		{"pending moderation indexes", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_prices_pending') THEN
    CREATE INDEX idx_prices_pending ON prices (status) WHERE status = 'pending';
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
