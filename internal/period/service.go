// Package period owns the accounting-period lifecycle: a contiguous,
// non-overlapping timeline of date ranges that are eventually frozen.
package period

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/google/uuid"
)

// Errors returned by the period manager.
var (
	ErrOverlap       = errors.New("period overlaps an existing period")
	ErrGap           = errors.New("period leaves a gap after the latest period")
	ErrBadRange      = errors.New("period range is invalid")
	ErrUnknownPeriod = errors.New("unknown period")
	ErrHardClosed    = errors.New("period is hard closed")
	ErrBadTransition = errors.New("period close not allowed from current status")
)

// CloseMode selects soft or hard closure.
type CloseMode string

const (
	CloseSoft CloseMode = "SOFT"
	CloseHard CloseMode = "HARD"
)

// Store is the persistence contract used by the period manager.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	LatestPeriod(ctx context.Context) (ledger.Period, bool, error)
	GetPeriod(ctx context.Context, id string) (ledger.Period, error)
	InsertPeriod(ctx context.Context, period ledger.Period) error
	UpdatePeriodStatus(ctx context.Context, id string, from []ledger.PeriodStatus, to ledger.PeriodStatus, closedBy string, closedAt time.Time, notes string) error
	InsertLock(ctx context.Context, lock ledger.Lock) error
	ListPeriods(ctx context.Context, limit int) ([]ledger.Period, error)
}

// Service manages accounting periods over a Store.
type Service struct {
	store Store
	nowFn func() time.Time
	idFn  func() string
	audit ledger.AuditSink
}

// NewService wires a period manager.
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

// Create opens a new period. The timeline must stay contiguous: the new
// range starts the day after the latest period ends, with no gap and no
// overlap, so no posting date ever falls between periods.
func (service *Service) Create(ctx context.Context, startDate, endDate time.Time, periodType ledger.PeriodType, actor ledger.ActorID) (ledger.Period, error) {
	var created ledger.Period
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		start := startDate.UTC().Truncate(24 * time.Hour)
		end := endDate.UTC().Truncate(24 * time.Hour)
		if end.Before(start) {
			return ledger.WrapError("period", "create", "range", fmt.Errorf("%w: end before start", ErrBadRange))
		}
		latest, found, err := txStore.LatestPeriod(ctx)
		if err != nil {
			return err
		}
		if found {
			expectedStart := latest.EndDate.Add(24 * time.Hour)
			if start.Before(expectedStart) {
				return ledger.WrapError("period", "create", "overlap", fmt.Errorf("%w: starts %s, latest ends %s", ErrOverlap, start.Format("2006-01-02"), latest.EndDate.Format("2006-01-02")))
			}
			if start.After(expectedStart) {
				return ledger.WrapError("period", "create", "gap", fmt.Errorf("%w: expected start %s", ErrGap, expectedStart.Format("2006-01-02")))
			}
		}
		created = ledger.Period{
			ID:        service.idFn(),
			StartDate: start,
			EndDate:   end,
			Type:      periodType,
			Status:    ledger.PeriodOpen,
		}
		return txStore.InsertPeriod(ctx, created)
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "period.create",
		Subject:   "period",
		SubjectID: created.ID,
		Error:     operationError,
	})
	return created, operationError
}

// Close soft- or hard-closes a period. A hard close stamps the closure
// fields and atomically creates a PERIOD lock over the period's range; no
// API path reopens a hard-closed period.
func (service *Service) Close(ctx context.Context, id string, mode CloseMode, notes string, actor ledger.ActorID) (ledger.Period, error) {
	var closed ledger.Period
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		target, err := txStore.GetPeriod(ctx, id)
		if err != nil {
			return err
		}
		if target.Status == ledger.PeriodHardClosed {
			return ledger.WrapError("period", "close", "terminal", fmt.Errorf("%w: period %s", ErrHardClosed, id))
		}
		now := service.nowFn().UTC()
		switch mode {
		case CloseSoft:
			if target.Status != ledger.PeriodOpen {
				return ledger.WrapError("period", "close", "status", fmt.Errorf("%w: %s is %s", ErrBadTransition, id, target.Status))
			}
			if err := txStore.UpdatePeriodStatus(ctx, id, []ledger.PeriodStatus{ledger.PeriodOpen}, ledger.PeriodSoftClosed, actor.String(), now, notes); err != nil {
				return err
			}
			target.Status = ledger.PeriodSoftClosed
		case CloseHard:
			from := []ledger.PeriodStatus{ledger.PeriodOpen, ledger.PeriodSoftClosed}
			if err := txStore.UpdatePeriodStatus(ctx, id, from, ledger.PeriodHardClosed, actor.String(), now, notes); err != nil {
				return err
			}
			lock := ledger.Lock{
				ID:       service.idFn(),
				Type:     ledger.LockPeriod,
				Scope:    ledger.ScopeAll,
				FromTs:   target.StartDate,
				ToTs:     target.EndDate,
				Reason:   "hard close of period " + id,
				LockedBy: actor.String(),
				LockedAt: now,
			}
			if err := txStore.InsertLock(ctx, lock); err != nil {
				return err
			}
			target.Status = ledger.PeriodHardClosed
		default:
			return ledger.WrapError("period", "close", "mode", fmt.Errorf("%w: unknown close mode %q", ErrBadTransition, mode))
		}
		target.ClosedBy = actor.String()
		target.ClosedAt = &now
		target.ClosureNotes = notes
		closed = target
		return nil
	})
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "period.close_" + string(mode),
		Subject:   "period",
		SubjectID: id,
		Reason:    notes,
		Error:     operationError,
	})
	return closed, operationError
}

// Get returns one period.
func (service *Service) Get(ctx context.Context, id string) (ledger.Period, error) {
	return service.store.GetPeriod(ctx, id)
}

// List returns recent periods, newest first.
func (service *Service) List(ctx context.Context, limit int) ([]ledger.Period, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return service.store.ListPeriods(ctx, limit)
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
