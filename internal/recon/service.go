// Package recon compares ledger-derived aggregates against external
// statements and records discrepancies for human resolution. It never
// writes to the ledger: fixing a discrepancy means writing it off or
// raising a manual adjustment through the posting service.
package recon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/google/uuid"
)

// Errors returned by the reconciliation engine.
var (
	ErrInvalidResolution = errors.New("invalid resolution status")
	ErrUnknownBatch      = errors.New("unknown reconciliation batch")
	ErrUnknownItem       = errors.New("unknown reconciliation item")
	ErrBatchNotOpen      = errors.New("batch is not in progress")
	ErrUnresolvedItems   = errors.New("batch has unresolved items")
)

// Store is the persistence contract used by the reconciliation engine.
// Ledger access is strictly read-only.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	InsertBatch(ctx context.Context, batch Batch) error
	GetBatch(ctx context.Context, id string) (Batch, error)
	ListBatches(ctx context.Context, limit int) ([]Batch, error)
	CompleteBatch(ctx context.Context, id string, expected, actual, difference int64, completedAt time.Time) error
	InsertItems(ctx context.Context, items []Item) error
	ListItems(ctx context.Context, batchID string) ([]Item, error)
	UpdateItemResolution(ctx context.Context, itemID string, status ResolutionStatus, notes string, resolvedBy string, resolvedAt time.Time) error
	CountUnresolvedItems(ctx context.Context, batchID string) (int64, error)
	// InternalRecords reads a consistent snapshot of posted ledger
	// transactions for the window, keyed by source reference.
	InternalRecords(ctx context.Context, from, to time.Time, eventType string) ([]Record, error)
}

// Service runs reconciliation batches over a Store.
type Service struct {
	store Store
	nowFn func() time.Time
	idFn  func() string
	audit ledger.AuditSink
}

// NewService wires a reconciliation engine.
func NewService(store Store, now func() time.Time, audit ledger.AuditSink) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if audit == nil {
		audit = ledger.NopSink{}
	}
	return &Service{store: store, nowFn: now, idFn: uuid.NewString, audit: audit}, nil
}

// CreateBatch opens a batch in IN_PROGRESS for one period and source.
func (service *Service) CreateBatch(ctx context.Context, batchType string, source string, periodID string, actor ledger.ActorID) (Batch, error) {
	var created Batch
	operationError := func() error {
		if batchType == "" || source == "" || periodID == "" {
			return ledger.WrapError("recon", "batch", "input", fmt.Errorf("%w: type, source, and period are required", ledger.ErrValidation))
		}
		created = Batch{
			ID:        service.idFn(),
			BatchType: batchType,
			Source:    source,
			PeriodID:  periodID,
			Status:    BatchInProgress,
			CreatedBy: actor.String(),
			CreatedAt: service.nowFn().UTC(),
		}
		return service.store.InsertBatch(ctx, created)
	}()
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "recon.batch_create",
		Subject:   "recon_batch",
		SubjectID: created.ID,
		Error:     operationError,
	})
	return created, operationError
}

// Match classifies internal against external records and stores one item
// per classification.
func (service *Service) Match(ctx context.Context, batchID string, internal []Record, external []Record, actor ledger.ActorID) ([]Item, error) {
	var items []Item
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		batch, err := txStore.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != BatchInProgress {
			return ledger.WrapError("recon", "match", "status", fmt.Errorf("%w: %s", ErrBatchNotOpen, batch.Status))
		}
		now := service.nowFn().UTC()
		classifications := MatchRecords(internal, external)
		items = make([]Item, 0, len(classifications))
		for _, classification := range classifications {
			resolution := ResolutionUnresolved
			if classification.Status == StatusMatched {
				resolution = ResolutionResolved
			}
			items = append(items, Item{
				ID:               service.idFn(),
				BatchID:          batchID,
				OrderRef:         classification.OrderRef,
				InternalMinor:    classification.InternalMinor,
				ExternalMinor:    classification.ExternalMinor,
				DifferenceMinor:  classification.DifferenceMinor,
				MatchStatus:      classification.Status,
				ResolutionStatus: resolution,
				CreatedAt:        now,
			})
		}
		return txStore.InsertItems(ctx, items)
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "recon.match",
		Subject:   "recon_batch",
		SubjectID: batchID,
		Error:     operationError,
	})
	if operationError != nil {
		return nil, operationError
	}
	return items, nil
}

// MatchStatement pulls the internal side from posted ledger transactions in
// the window and the external side from a statement stream, then matches.
func (service *Service) MatchStatement(ctx context.Context, batchID string, statement io.Reader, from, to time.Time, eventType string, actor ledger.ActorID) ([]Item, error) {
	external, err := ParseStatement(statement)
	if err != nil {
		return nil, ledger.WrapError("recon", "statement", "parse", err)
	}
	internal, err := service.store.InternalRecords(ctx, from, to, eventType)
	if err != nil {
		return nil, err
	}
	return service.Match(ctx, batchID, internal, external, actor)
}

// ResolveItem records the human outcome for a discrepancy. Resolving never
// touches the ledger; a correction goes through the posting service as a
// manual adjustment.
func (service *Service) ResolveItem(ctx context.Context, itemID string, status ResolutionStatus, notes string, actor ledger.ActorID) error {
	operationError := func() error {
		if _, err := ParseResolutionStatus(string(status)); err != nil {
			return ledger.WrapError("recon", "item", "resolution", err)
		}
		if status != ResolutionUnresolved && notes == "" {
			return ledger.WrapError("recon", "item", "notes", fmt.Errorf("%w: resolution requires notes", ledger.ErrValidation))
		}
		return service.store.UpdateItemResolution(ctx, itemID, status, notes, actor.String(), service.nowFn().UTC())
	}()
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "recon.item_resolve",
		Subject:   "recon_item",
		SubjectID: itemID,
		Reason:    notes,
		Error:     operationError,
	})
	return operationError
}

// CompleteBatch closes a batch once every item has a resolution, recording
// expected-vs-actual totals for audit reporting.
func (service *Service) CompleteBatch(ctx context.Context, batchID string, actor ledger.ActorID) (Batch, error) {
	var completed Batch
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		batch, err := txStore.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Status != BatchInProgress {
			return ledger.WrapError("recon", "complete", "status", fmt.Errorf("%w: %s", ErrBatchNotOpen, batch.Status))
		}
		unresolved, err := txStore.CountUnresolvedItems(ctx, batchID)
		if err != nil {
			return err
		}
		if unresolved > 0 {
			return ledger.WrapError("recon", "complete", "unresolved", fmt.Errorf("%w: %d remaining", ErrUnresolvedItems, unresolved))
		}
		items, err := txStore.ListItems(ctx, batchID)
		if err != nil {
			return err
		}
		var expected, actual int64
		for _, item := range items {
			if item.InternalMinor != nil {
				expected += *item.InternalMinor
			}
			if item.ExternalMinor != nil {
				actual += *item.ExternalMinor
			}
		}
		now := service.nowFn().UTC()
		if err := txStore.CompleteBatch(ctx, batchID, expected, actual, expected-actual, now); err != nil {
			return err
		}
		batch.Status = BatchCompleted
		batch.ExpectedMinor = expected
		batch.ActualMinor = actual
		batch.DifferenceMinor = expected - actual
		batch.CompletedAt = &now
		completed = batch
		return nil
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "recon.batch_complete",
		Subject:   "recon_batch",
		SubjectID: batchID,
		Error:     operationError,
	})
	return completed, operationError
}

// Batch returns one batch.
func (service *Service) Batch(ctx context.Context, id string) (Batch, error) {
	return service.store.GetBatch(ctx, id)
}

// Items returns a batch's items.
func (service *Service) Items(ctx context.Context, batchID string) ([]Item, error) {
	return service.store.ListItems(ctx, batchID)
}

// Batches returns recent batches, newest first.
func (service *Service) Batches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return service.store.ListBatches(ctx, limit)
}

func (service *Service) record(ctx context.Context, record ledger.AuditRecord) {
	record.At = service.nowFn().UTC()
	if record.Status == "" {
		if record.Error != nil {
			record.Status = ledger.AuditStatusError
		} else {
			record.Status = ledger.AuditStatusOK
		}
	}
	service.audit.Record(ctx, record)
}
