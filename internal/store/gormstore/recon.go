package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/pkg/ledger"
	"gorm.io/gorm"
)

const (
	errorSubjectBatch = "recon_batch"
	errorSubjectItem  = "recon_item"
)

// ReconStore implements recon.Store using GORM. Its ledger access is
// limited to the read-only InternalRecords query.
type ReconStore struct {
	db *gorm.DB
}

// NewReconStore returns a ReconStore backed by gorm.DB.
func NewReconStore(db *gorm.DB) *ReconStore {
	return &ReconStore{db: db}
}

// WithTx executes fn within a storage transaction.
func (store *ReconStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore recon.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &ReconStore{db: transaction})
	})
}

// InsertBatch persists a new batch.
func (store *ReconStore) InsertBatch(ctx context.Context, batch recon.Batch) error {
	model := ReconciliationBatch{
		BatchID:         batch.ID,
		BatchType:       batch.BatchType,
		Source:          batch.Source,
		PeriodID:        batch.PeriodID,
		Status:          string(batch.Status),
		ExpectedMinor:   batch.ExpectedMinor,
		ActualMinor:     batch.ActualMinor,
		DifferenceMinor: batch.DifferenceMinor,
		CreatedBy:       batch.CreatedBy,
		CreatedAt:       batch.CreatedAt,
		CompletedAt:     batch.CompletedAt,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectBatch, errorCodeInsert, err)
	}
	return nil
}

// GetBatch fetches one batch.
func (store *ReconStore) GetBatch(ctx context.Context, id string) (recon.Batch, error) {
	var model ReconciliationBatch
	err := store.db.WithContext(ctx).Where("batch_id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recon.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeGet, recon.ErrUnknownBatch)
		}
		return recon.Batch{}, wrapStoreError(errorSubjectBatch, errorCodeGet, err)
	}
	return mapBatch(model), nil
}

// ListBatches returns recent batches, newest first.
func (store *ReconStore) ListBatches(ctx context.Context, limit int) ([]recon.Batch, error) {
	var rows []ReconciliationBatch
	err := store.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBatch, errorCodeList, err)
	}
	batches := make([]recon.Batch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, mapBatch(row))
	}
	return batches, nil
}

// CompleteBatch stamps the totals and flips the batch to COMPLETED, guarded
// on IN_PROGRESS.
func (store *ReconStore) CompleteBatch(ctx context.Context, id string, expected, actual, difference int64, completedAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&ReconciliationBatch{}).
		Where("batch_id = ? AND status = ?", id, string(recon.BatchInProgress)).
		Updates(map[string]interface{}{
			"status":           string(recon.BatchCompleted),
			"expected_minor":   expected,
			"actual_minor":     actual,
			"difference_minor": difference,
			"completed_at":     completedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBatch, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBatch, errorCodeUpdate, recon.ErrBatchNotOpen)
	}
	return nil
}

// InsertItems persists a batch's classified items.
func (store *ReconStore) InsertItems(ctx context.Context, items []recon.Item) error {
	for _, item := range items {
		model := ReconciliationItem{
			ItemID:           item.ID,
			BatchID:          item.BatchID,
			OrderRef:         item.OrderRef,
			InternalMinor:    item.InternalMinor,
			ExternalMinor:    item.ExternalMinor,
			DifferenceMinor:  item.DifferenceMinor,
			MatchStatus:      string(item.MatchStatus),
			ResolutionStatus: string(item.ResolutionStatus),
			ResolutionNotes:  item.ResolutionNotes,
			ResolvedBy:       item.ResolvedBy,
			ResolvedAt:       item.ResolvedAt,
			CreatedAt:        item.CreatedAt,
		}
		if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
			return wrapStoreError(errorSubjectItem, errorCodeInsert, err)
		}
	}
	return nil
}

// ListItems returns a batch's items in reference order.
func (store *ReconStore) ListItems(ctx context.Context, batchID string) ([]recon.Item, error) {
	var rows []ReconciliationItem
	err := store.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("order_ref asc, item_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectItem, errorCodeList, err)
	}
	items := make([]recon.Item, 0, len(rows))
	for _, row := range rows {
		item, mapErr := mapItem(row)
		if mapErr != nil {
			return nil, mapErr
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateItemResolution records the human outcome on one item.
func (store *ReconStore) UpdateItemResolution(ctx context.Context, itemID string, status recon.ResolutionStatus, notes string, resolvedBy string, resolvedAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&ReconciliationItem{}).
		Where("item_id = ?", itemID).
		Updates(map[string]interface{}{
			"resolution_status": string(status),
			"resolution_notes":  notes,
			"resolved_by":       resolvedBy,
			"resolved_at":       resolvedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectItem, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectItem, errorCodeUpdate, recon.ErrUnknownItem)
	}
	return nil
}

// CountUnresolvedItems counts items still awaiting a human outcome.
func (store *ReconStore) CountUnresolvedItems(ctx context.Context, batchID string) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&ReconciliationItem{}).
		Where("batch_id = ? AND resolution_status = ?", batchID, string(recon.ResolutionUnresolved)).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectItem, errorCodeList, err)
	}
	return count, nil
}

// InternalRecords reads posted ledger transactions in the window as the
// internal side of a reconciliation. Read-only by construction.
func (store *ReconStore) InternalRecords(ctx context.Context, from, to time.Time, eventType string) ([]recon.Record, error) {
	query := store.db.WithContext(ctx).
		Model(&LedgerTransaction{}).
		Select("source_ref as order_ref, amount_minor").
		Where("status = ?", string(ledger.TransactionPosted)).
		Where("effective_date >= ? AND effective_date <= ?", from, to)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	var rows []struct {
		OrderRef    string
		AmountMinor int64
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTx, errorCodeList, err)
	}
	records := make([]recon.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, recon.Record{OrderRef: row.OrderRef, AmountMinor: row.AmountMinor})
	}
	return records, nil
}

func mapBatch(model ReconciliationBatch) recon.Batch {
	return recon.Batch{
		ID:              model.BatchID,
		BatchType:       model.BatchType,
		Source:          model.Source,
		PeriodID:        model.PeriodID,
		Status:          recon.BatchStatus(model.Status),
		ExpectedMinor:   model.ExpectedMinor,
		ActualMinor:     model.ActualMinor,
		DifferenceMinor: model.DifferenceMinor,
		CreatedBy:       model.CreatedBy,
		CreatedAt:       model.CreatedAt,
		CompletedAt:     model.CompletedAt,
	}
}

func mapItem(model ReconciliationItem) (recon.Item, error) {
	resolution, err := recon.ParseResolutionStatus(model.ResolutionStatus)
	if err != nil {
		return recon.Item{}, wrapStoreError(errorSubjectItem, errorCodeInvalid, err)
	}
	return recon.Item{
		ID:               model.ItemID,
		BatchID:          model.BatchID,
		OrderRef:         model.OrderRef,
		InternalMinor:    model.InternalMinor,
		ExternalMinor:    model.ExternalMinor,
		DifferenceMinor:  model.DifferenceMinor,
		MatchStatus:      recon.MatchStatus(model.MatchStatus),
		ResolutionStatus: resolution,
		ResolutionNotes:  model.ResolutionNotes,
		ResolvedBy:       model.ResolvedBy,
		ResolvedAt:       model.ResolvedAt,
		CreatedAt:        model.CreatedAt,
	}, nil
}
