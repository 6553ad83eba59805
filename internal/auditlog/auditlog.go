// Package auditlog emits audit records to structured logs. It is usually
// combined with the storage sink through ledger.MultiSink so that every
// financial decision is both durable and greppable.
package auditlog

import (
	"context"

	"github.com/altipay/ledgercore/pkg/ledger"
	"go.uber.org/zap"
)

// Sink writes one log line per audit record.
type Sink struct {
	logger *zap.Logger
}

// NewSink returns a Sink writing to logger.
func NewSink(logger *zap.Logger) *Sink {
	return &Sink{logger: logger}
}

// Record logs the record at info for successes and warn for failures.
func (sink *Sink) Record(_ context.Context, record ledger.AuditRecord) {
	fields := []zap.Field{
		zap.String("actor", record.Actor),
		zap.String("action", record.Action),
		zap.String("subject", record.Subject),
		zap.String("subject_id", record.SubjectID),
		zap.String("status", record.Status),
		zap.Time("at", record.At),
	}
	if record.Reason != "" {
		fields = append(fields, zap.String("reason", record.Reason))
	}
	if record.Error != nil {
		fields = append(fields, zap.Error(record.Error))
		sink.logger.Warn("audit", fields...)
		return
	}
	sink.logger.Info("audit", fields...)
}
