package gormstore

import (
	"context"

	"github.com/altipay/ledgercore/pkg/ledger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditStore appends audit records to the audit_records table. It implements
// ledger.AuditSink. Write failures are logged, never propagated: the business
// operation has already committed by the time the sink fires.
type AuditStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAuditStore returns an AuditStore backed by gorm.DB.
func NewAuditStore(db *gorm.DB, logger *zap.Logger) *AuditStore {
	return &AuditStore{db: db, logger: logger}
}

// Record appends one audit row.
func (store *AuditStore) Record(ctx context.Context, record ledger.AuditRecord) {
	detail := ""
	if record.Error != nil {
		detail = record.Error.Error()
	}
	model := AuditRecord{
		Actor:     record.Actor,
		Action:    record.Action,
		Subject:   record.Subject,
		SubjectID: record.SubjectID,
		Reason:    record.Reason,
		Status:    record.Status,
		Detail:    detail,
		At:        record.At,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		store.logger.Error("audit record write failed",
			zap.String("action", record.Action),
			zap.String("subject", record.Subject),
			zap.String("subject_id", record.SubjectID),
			zap.Error(err))
	}
}
