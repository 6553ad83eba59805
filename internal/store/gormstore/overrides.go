package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/altipay/ledgercore/internal/override"
	"github.com/altipay/ledgercore/pkg/ledger"
	"gorm.io/gorm"
)

// OverrideStore implements override.Store using GORM.
type OverrideStore struct {
	db *gorm.DB
}

// NewOverrideStore returns an OverrideStore backed by gorm.DB.
func NewOverrideStore(db *gorm.DB) *OverrideStore {
	return &OverrideStore{db: db}
}

// InsertOverride persists a new pending request.
func (store *OverrideStore) InsertOverride(ctx context.Context, request ledger.OverrideRequest) error {
	model, err := unmapOverride(request)
	if err != nil {
		return err
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectOverride, errorCodeInsert, err)
	}
	return nil
}

// GetOverride fetches one request.
func (store *OverrideStore) GetOverride(ctx context.Context, id string) (ledger.OverrideRequest, error) {
	var model OverrideRequest
	err := store.db.WithContext(ctx).Where("override_id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeGet, override.ErrUnknownOverride)
		}
		return ledger.OverrideRequest{}, wrapStoreError(errorSubjectOverride, errorCodeGet, err)
	}
	return mapOverride(model)
}

// DecideOverride flips a pending request to its decided status. The guard on
// status=pending makes the decision race-free: the second decider affects
// zero rows.
func (store *OverrideStore) DecideOverride(ctx context.Context, id string, to ledger.OverrideStatus, approverID string, reason string, decidedAt time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&OverrideRequest{}).
		Where("override_id = ? AND status = ?", id, string(ledger.OverridePending)).
		Updates(map[string]interface{}{
			"status":          string(to),
			"approver_id":     approverID,
			"approval_reason": reason,
			"decided_at":      decidedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOverride, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOverride, errorCodeUpdate, override.ErrAlreadyDecided)
	}
	return nil
}

// ListOverrides returns requests, newest first, optionally filtered by status.
func (store *OverrideStore) ListOverrides(ctx context.Context, status ledger.OverrideStatus, limit int) ([]ledger.OverrideRequest, error) {
	query := store.db.WithContext(ctx).Order("requested_at desc").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var rows []OverrideRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectOverride, errorCodeList, err)
	}
	requests := make([]ledger.OverrideRequest, 0, len(rows))
	for _, row := range rows {
		request, mapErr := mapOverride(row)
		if mapErr != nil {
			return nil, mapErr
		}
		requests = append(requests, request)
	}
	return requests, nil
}
