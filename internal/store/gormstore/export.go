package gormstore

import (
	"context"
	"time"

	"github.com/altipay/ledgercore/internal/export"
	"gorm.io/gorm"
)

// ExportStore reads entry rows for CSV export. It implements export.Source.
type ExportStore struct {
	db *gorm.DB
}

// NewExportStore returns an ExportStore backed by gorm.DB.
func NewExportStore(db *gorm.DB) *ExportStore {
	return &ExportStore{db: db}
}

// EntryRows returns every entry whose transaction falls in [from, to],
// ordered by transaction reference then account code for stable output.
func (store *ExportStore) EntryRows(ctx context.Context, from, to time.Time) ([]export.Row, error) {
	var rows []struct {
		TransactionRef string
		EventType      string
		SourceRef      string
		Status         string
		EffectiveDate  time.Time
		AccountCode    string
		EntryType      string
		AmountMinor    int64
		Currency       string
		Description    string
		CreatedAt      time.Time
	}
	err := store.db.WithContext(ctx).
		Table("ledger_entries").
		Select(`ledger_transactions.transaction_ref,
			ledger_transactions.event_type,
			ledger_transactions.source_ref,
			ledger_transactions.status,
			ledger_transactions.effective_date,
			ledger_entries.account_code,
			ledger_entries.entry_type,
			ledger_entries.amount_minor,
			ledger_entries.currency,
			ledger_entries.description,
			ledger_entries.created_at`).
		Joins("JOIN ledger_transactions ON ledger_transactions.transaction_id = ledger_entries.transaction_id").
		Where("ledger_transactions.effective_date >= ? AND ledger_transactions.effective_date <= ?", from, to).
		Order("ledger_transactions.transaction_ref, ledger_entries.account_code, ledger_entries.entry_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}
	exportRows := make([]export.Row, 0, len(rows))
	for _, row := range rows {
		exportRows = append(exportRows, export.Row(row))
	}
	return exportRows, nil
}
