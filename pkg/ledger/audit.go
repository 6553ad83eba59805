package ledger

import (
	"context"
	"time"
)

// AuditSink receives one record for every financial decision made anywhere
// in the system. Implementations must be append-only.
type AuditSink interface {
	Record(ctx context.Context, record AuditRecord)
}

// AuditRecord describes who did what to which subject, and why.
type AuditRecord struct {
	Actor     string
	Action    string
	Subject   string
	SubjectID string
	Reason    string
	Status    string
	Error     error
	At        time.Time
}

const (
	AuditStatusOK    = "ok"
	AuditStatusError = "error"
)

// NopSink discards every record. Useful for tests that do not assert on
// audit output.
type NopSink struct{}

// Record is a no-op.
func (NopSink) Record(context.Context, AuditRecord) {}

// MultiSink fans records out to several sinks in order.
type MultiSink []AuditSink

// Record forwards to every sink.
func (sinks MultiSink) Record(ctx context.Context, record AuditRecord) {
	for _, sink := range sinks {
		if sink != nil {
			sink.Record(ctx, record)
		}
	}
}
