package infra

import (
	"fmt"
	"strings"

	"github.com/Khaledxab/mygym-backend/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection, runs AutoMigrate for every model, then
// applies the idempotent SQL patches that GORM cannot express (CHECK
// constraints, composite indexes).
//
// postgres:// and postgresql:// DSNs use Postgres; anything else is handed to
// the SQLite driver (file path or in-memory DSN, used for local runs and tests).
func NewDatabase(dsn string) (*gorm.DB, error) {
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")

	var dialector gorm.Dialector
	if isPostgres {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if isPostgres {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	} else {
		// SQLite has a single writer; one connection serializes units of work
		// instead of surfacing SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates all tables and applies schema patches.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Account{},
		&model.Gym{},
		&model.GymAdmin{},
		&model.QRSession{},
		&model.Transaction{},
		&model.AccessEvent{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that AutoMigrate cannot
// handle on its own. Each statement is guarded by an existence check so
// re-running on an already-patched DB is a no-op. Postgres only; SQLite relies
// on the ledger engine alone for the non-negative balance rule.
func applySchemaPatches(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	patches := []string{
		// balance can never go negative, even through a bug in a caller
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_accounts_balance_non_negative') THEN
		    ALTER TABLE accounts ADD CONSTRAINT chk_accounts_balance_non_negative CHECK (balance >= 0);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_transactions_amount_positive') THEN
		    ALTER TABLE transactions ADD CONSTRAINT chk_transactions_amount_positive CHECK (amount > 0);
		  END IF;
		END $$`,
		// history listing: newest first per account
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_created
		    ON transactions (account_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_access_events_gym_decided
		    ON access_events (gym_id, decided_at DESC)`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
