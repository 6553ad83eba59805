package gormstore

import (
	"context"
	"errors"

	"github.com/altipay/ledgercore/internal/settlement"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const errorSubjectSettlement = "settlement"

// SettlementStore implements settlement.Store using GORM.
type SettlementStore struct {
	db *gorm.DB
}

// NewSettlementStore returns a SettlementStore backed by gorm.DB.
func NewSettlementStore(db *gorm.DB) *SettlementStore {
	return &SettlementStore{db: db}
}

// WithTx executes fn within a storage transaction.
func (store *SettlementStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore settlement.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &SettlementStore{db: transaction})
	})
}

// InsertSettlement persists a new settlement.
func (store *SettlementStore) InsertSettlement(ctx context.Context, value settlement.Settlement) error {
	model := unmapSettlement(value)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectSettlement, errorCodeDuplicate, settlement.ErrDuplicateSettlement)
	}
	if err != nil {
		return wrapStoreError(errorSubjectSettlement, errorCodeInsert, err)
	}
	return nil
}

// GetSettlementForUpdate fetches one settlement with a row lock.
func (store *SettlementStore) GetSettlementForUpdate(ctx context.Context, id string) (settlement.Settlement, error) {
	return store.get(ctx, id, true)
}

// GetSettlement fetches one settlement without locking.
func (store *SettlementStore) GetSettlement(ctx context.Context, id string) (settlement.Settlement, error) {
	return store.get(ctx, id, false)
}

func (store *SettlementStore) get(ctx context.Context, id string, forUpdate bool) (settlement.Settlement, error) {
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model Settlement
	err := query.Where("settlement_id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settlement.Settlement{}, wrapStoreError(errorSubjectSettlement, errorCodeGet, settlement.ErrUnknownSettlement)
		}
		return settlement.Settlement{}, wrapStoreError(errorSubjectSettlement, errorCodeGet, err)
	}
	return mapSettlement(model)
}

// UpdateSettlement writes back a settlement, guarded on the state the
// caller read, so a concurrent transition loses cleanly.
func (store *SettlementStore) UpdateSettlement(ctx context.Context, value settlement.Settlement, fromState settlement.State) error {
	model := unmapSettlement(value)
	result := store.db.WithContext(ctx).
		Model(&Settlement{}).
		Where("settlement_id = ? AND state = ?", value.ID, string(fromState)).
		Updates(map[string]interface{}{
			"state":                 model.State,
			"utr":                   model.UTR,
			"retry_count":           model.RetryCount,
			"ledger_transaction_id": model.LedgerTransactionID,
			"updated_at":            model.UpdatedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectSettlement, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSettlement, errorCodeUpdate, settlement.ErrInvalidTransition)
	}
	return nil
}

// ListSettlements returns a merchant's settlements, newest first. An empty
// merchant id lists across merchants.
func (store *SettlementStore) ListSettlements(ctx context.Context, merchantID string, limit int) ([]settlement.Settlement, error) {
	query := store.db.WithContext(ctx).Model(&Settlement{})
	if merchantID != "" {
		query = query.Where("merchant_id = ?", merchantID)
	}
	var rows []Settlement
	if err := query.Order("created_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectSettlement, errorCodeList, err)
	}
	settlements := make([]settlement.Settlement, 0, len(rows))
	for _, row := range rows {
		mapped, mapErr := mapSettlement(row)
		if mapErr != nil {
			return nil, mapErr
		}
		settlements = append(settlements, mapped)
	}
	return settlements, nil
}

func mapSettlement(model Settlement) (settlement.Settlement, error) {
	state, err := settlement.ParseState(model.State)
	if err != nil {
		return settlement.Settlement{}, wrapStoreError(errorSubjectSettlement, errorCodeInvalid, err)
	}
	return settlement.Settlement{
		ID:                  model.SettlementID,
		MerchantID:          model.MerchantID,
		SettlementRef:       model.SettlementRef,
		State:               state,
		GrossMinor:          model.GrossMinor,
		FeesMinor:           model.FeesMinor,
		NetMinor:            model.NetMinor,
		Currency:            model.Currency,
		BankAccountRef:      model.BankAccountRef,
		UTR:                 model.UTR,
		RetryCount:          model.RetryCount,
		LedgerTransactionID: stringOrEmpty(model.LedgerTransactionID),
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}, nil
}

func unmapSettlement(value settlement.Settlement) Settlement {
	return Settlement{
		SettlementID:        value.ID,
		MerchantID:          value.MerchantID,
		SettlementRef:       value.SettlementRef,
		State:               string(value.State),
		GrossMinor:          value.GrossMinor,
		FeesMinor:           value.FeesMinor,
		NetMinor:            value.NetMinor,
		Currency:            value.Currency,
		BankAccountRef:      value.BankAccountRef,
		UTR:                 value.UTR,
		RetryCount:          value.RetryCount,
		LedgerTransactionID: emptyToNil(value.LedgerTransactionID),
		CreatedAt:           value.CreatedAt,
		UpdatedAt:           value.UpdatedAt,
	}
}
