package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates or updates every table and installs the append-only guard
// on ledger_entries. The guard is a database trigger so that no code path,
// including ad-hoc SQL, can rewrite history.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Account{},
		&LedgerTransaction{},
		&LedgerEntry{},
		&AccountingPeriod{},
		&LedgerLock{},
		&Settlement{},
		&ReconciliationBatch{},
		&ReconciliationItem{},
		&OverrideRequest{},
		&AuditRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := installEntryGuards(db); err != nil {
		return fmt.Errorf("install entry guards: %w", err)
	}
	return nil
}

func installEntryGuards(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "postgres":
		return installPostgresEntryGuards(db)
	case "sqlite":
		return installSQLiteEntryGuards(db)
	default:
		return fmt.Errorf("unsupported dialect %q", db.Dialector.Name())
	}
}

func installPostgresEntryGuards(db *gorm.DB) error {
	statements := []string{
		`CREATE OR REPLACE FUNCTION ledger_entries_immutable() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'ledger entries are append-only';
END;
$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS ledger_entries_no_update ON ledger_entries`,
		`CREATE TRIGGER ledger_entries_no_update BEFORE UPDATE ON ledger_entries
FOR EACH ROW EXECUTE FUNCTION ledger_entries_immutable()`,
		`DROP TRIGGER IF EXISTS ledger_entries_no_delete ON ledger_entries`,
		`CREATE TRIGGER ledger_entries_no_delete BEFORE DELETE ON ledger_entries
FOR EACH ROW EXECUTE FUNCTION ledger_entries_immutable()`,
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}

func installSQLiteEntryGuards(db *gorm.DB) error {
	statements := []string{
		`CREATE TRIGGER IF NOT EXISTS ledger_entries_no_update BEFORE UPDATE ON ledger_entries
BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS ledger_entries_no_delete BEFORE DELETE ON ledger_entries
BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
	}
	for _, statement := range statements {
		if err := db.Exec(statement).Error; err != nil {
			return err
		}
	}
	return nil
}

// Seed inserts the fixed chart of accounts. Existing rows are left alone, so
// seeding is safe to repeat on every startup.
func Seed(ctx context.Context, db *gorm.DB, now time.Time) error {
	for _, def := range ledger.SystemAccounts() {
		model := Account{
			Code:          def.Code,
			Name:          def.Name,
			Type:          string(def.Type),
			Category:      string(def.Category),
			NormalBalance: string(def.NormalBalance),
			ScopeRef:      def.ScopeRef,
			Status:        string(ledger.AccountActive),
			CreatedAt:     now,
		}
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
			Create(&model).Error
		if err != nil {
			return fmt.Errorf("seed account %s: %w", def.Code, err)
		}
	}
	return nil
}
