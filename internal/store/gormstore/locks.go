package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/altipay/ledgercore/internal/lock"
	"github.com/altipay/ledgercore/pkg/ledger"
	"gorm.io/gorm"
)

// LockStore implements lock.Store using GORM.
type LockStore struct {
	db *gorm.DB
}

// NewLockStore returns a LockStore backed by gorm.DB.
func NewLockStore(db *gorm.DB) *LockStore {
	return &LockStore{db: db}
}

// InsertLock persists a new lock.
func (store *LockStore) InsertLock(ctx context.Context, value ledger.Lock) error {
	return insertLock(ctx, store.db, value)
}

// GetLock fetches one lock.
func (store *LockStore) GetLock(ctx context.Context, id string) (ledger.Lock, error) {
	var model LedgerLock
	err := store.db.WithContext(ctx).Where("lock_id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Lock{}, wrapStoreError(errorSubjectLock, errorCodeGet, lock.ErrUnknownLock)
		}
		return ledger.Lock{}, wrapStoreError(errorSubjectLock, errorCodeGet, err)
	}
	return mapLock(model)
}

// ReleaseLock stamps the release fields. The guard refuses PERIOD locks and
// double releases in one atomic update.
func (store *LockStore) ReleaseLock(ctx context.Context, id string, releasedBy string, releasedAt time.Time, notes string) error {
	result := store.db.WithContext(ctx).
		Model(&LedgerLock{}).
		Where("lock_id = ? AND released_at IS NULL AND lock_type <> ?", id, string(ledger.LockPeriod)).
		Updates(map[string]interface{}{
			"released_by":   releasedBy,
			"released_at":   releasedAt,
			"release_notes": notes,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectLock, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLock, errorCodeUpdate, lock.ErrAlreadyReleased)
	}
	return nil
}

// ListLocks returns locks, optionally only those active at the given time.
func (store *LockStore) ListLocks(ctx context.Context, activeOnly bool, at time.Time) ([]ledger.Lock, error) {
	query := store.db.WithContext(ctx).Model(&LedgerLock{})
	if activeOnly {
		query = query.Where("released_at IS NULL AND from_ts <= ? AND to_ts >= ?", at, at)
	}
	var rows []LedgerLock
	if err := query.Order("locked_at desc").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectLock, errorCodeList, err)
	}
	locks := make([]ledger.Lock, 0, len(rows))
	for _, row := range rows {
		mapped, mapErr := mapLock(row)
		if mapErr != nil {
			return nil, mapErr
		}
		locks = append(locks, mapped)
	}
	return locks, nil
}

func insertLock(ctx context.Context, db *gorm.DB, value ledger.Lock) error {
	model := LedgerLock{
		LockID:       value.ID,
		LockType:     string(value.Type),
		Scope:        value.Scope,
		FromTs:       value.FromTs,
		ToTs:         value.ToTs,
		Reason:       value.Reason,
		LockedBy:     value.LockedBy,
		LockedAt:     value.LockedAt,
		ReleasedBy:   value.ReleasedBy,
		ReleasedAt:   value.ReleasedAt,
		ReleaseNotes: value.ReleaseNotes,
	}
	if err := db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectLock, errorCodeInsert, err)
	}
	return nil
}
