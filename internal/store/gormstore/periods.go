package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/altipay/ledgercore/internal/period"
	"github.com/altipay/ledgercore/pkg/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PeriodStore implements period.Store using GORM.
type PeriodStore struct {
	db *gorm.DB
}

// NewPeriodStore returns a PeriodStore backed by gorm.DB.
func NewPeriodStore(db *gorm.DB) *PeriodStore {
	return &PeriodStore{db: db}
}

// WithTx executes fn within a storage transaction.
func (store *PeriodStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore period.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &PeriodStore{db: transaction})
	})
}

// LatestPeriod returns the period with the greatest start date, locked so a
// concurrent create cannot slip a sibling in.
func (store *PeriodStore) LatestPeriod(ctx context.Context) (ledger.Period, bool, error) {
	var model AccountingPeriod
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("start_date desc").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Period{}, false, nil
	}
	if err != nil {
		return ledger.Period{}, false, wrapStoreError(errorSubjectPeriod, errorCodeGet, err)
	}
	mapped, mapErr := mapPeriod(model)
	if mapErr != nil {
		return ledger.Period{}, false, mapErr
	}
	return mapped, true, nil
}

// GetPeriod fetches one period with a row lock.
func (store *PeriodStore) GetPeriod(ctx context.Context, id string) (ledger.Period, error) {
	var model AccountingPeriod
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("period_id = ?", id).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Period{}, wrapStoreError(errorSubjectPeriod, errorCodeGet, period.ErrUnknownPeriod)
		}
		return ledger.Period{}, wrapStoreError(errorSubjectPeriod, errorCodeGet, err)
	}
	return mapPeriod(model)
}

// InsertPeriod persists a new period.
func (store *PeriodStore) InsertPeriod(ctx context.Context, value ledger.Period) error {
	model := AccountingPeriod{
		PeriodID:     value.ID,
		StartDate:    value.StartDate,
		EndDate:      value.EndDate,
		Type:         string(value.Type),
		Status:       string(value.Status),
		ClosedBy:     value.ClosedBy,
		ClosedAt:     value.ClosedAt,
		ClosureNotes: value.ClosureNotes,
		CreatedAt:    time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectPeriod, errorCodeDuplicate, period.ErrOverlap)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPeriod, errorCodeInsert, err)
	}
	return nil
}

// UpdatePeriodStatus moves a period between statuses, guarded on the set of
// statuses the transition may leave. HARD_CLOSED never appears in a from
// set, which makes it terminal at the storage layer too.
func (store *PeriodStore) UpdatePeriodStatus(ctx context.Context, id string, from []ledger.PeriodStatus, to ledger.PeriodStatus, closedBy string, closedAt time.Time, notes string) error {
	fromValues := make([]string, 0, len(from))
	for _, status := range from {
		fromValues = append(fromValues, string(status))
	}
	result := store.db.WithContext(ctx).
		Model(&AccountingPeriod{}).
		Where("period_id = ? AND status IN ?", id, fromValues).
		Updates(map[string]interface{}{
			"status":        string(to),
			"closed_by":     closedBy,
			"closed_at":     closedAt,
			"closure_notes": notes,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectPeriod, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectPeriod, errorCodeUpdate, period.ErrBadTransition)
	}
	return nil
}

// InsertLock persists the PERIOD lock a hard close creates.
func (store *PeriodStore) InsertLock(ctx context.Context, value ledger.Lock) error {
	return insertLock(ctx, store.db, value)
}

// ListPeriods returns recent periods, newest first.
func (store *PeriodStore) ListPeriods(ctx context.Context, limit int) ([]ledger.Period, error) {
	var rows []AccountingPeriod
	err := store.db.WithContext(ctx).Order("start_date desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPeriod, errorCodeList, err)
	}
	periods := make([]ledger.Period, 0, len(rows))
	for _, row := range rows {
		mapped, mapErr := mapPeriod(row)
		if mapErr != nil {
			return nil, mapErr
		}
		periods = append(periods, mapped)
	}
	return periods, nil
}
