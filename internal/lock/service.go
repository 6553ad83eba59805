// Package lock manages time-boxed read-only windows over ledger scopes.
// Locks gate writes through the posting service; reads never block.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/google/uuid"
)

// Errors returned by the lock manager.
var (
	ErrUnknownLock     = errors.New("unknown lock")
	ErrAlreadyReleased = errors.New("lock already released")
	ErrPeriodLock      = errors.New("period locks release only with their period")
	ErrBadWindow       = errors.New("lock window is invalid")
	ErrReasonRequired  = errors.New("lock operations require a reason")
)

// Store is the persistence contract used by the lock manager.
type Store interface {
	InsertLock(ctx context.Context, lock ledger.Lock) error
	GetLock(ctx context.Context, id string) (ledger.Lock, error)
	ReleaseLock(ctx context.Context, id string, releasedBy string, releasedAt time.Time, notes string) error
	ListLocks(ctx context.Context, activeOnly bool, at time.Time) ([]ledger.Lock, error)
}

// Service manages ledger locks over a Store.
type Service struct {
	store Store
	nowFn func() time.Time
	idFn  func() string
	audit ledger.AuditSink
}

// NewService wires a lock manager.
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

// Apply records a lock. From commit onward the posting service rejects
// matching writes until the window passes or the lock is released.
func (service *Service) Apply(ctx context.Context, lockType ledger.LockType, scope string, fromTs, toTs time.Time, reason string, actor ledger.ActorID) (ledger.Lock, error) {
	var applied ledger.Lock
	operationError := service.apply(ctx, lockType, scope, fromTs, toTs, reason, actor, &applied)
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "lock.apply",
		Subject:   "lock",
		SubjectID: applied.ID,
		Reason:    reason,
		Error:     operationError,
	})
	return applied, operationError
}

func (service *Service) apply(ctx context.Context, lockType ledger.LockType, scope string, fromTs, toTs time.Time, reason string, actor ledger.ActorID, applied *ledger.Lock) error {
	if _, err := ledger.ParseLockType(string(lockType)); err != nil {
		return ledger.WrapError("lock", "apply", "type", err)
	}
	if lockType == ledger.LockPeriod {
		// Period locks exist only as a byproduct of hard closes.
		return ledger.WrapError("lock", "apply", "period", ErrPeriodLock)
	}
	if toTs.Before(fromTs) {
		return ledger.WrapError("lock", "apply", "window", fmt.Errorf("%w: to before from", ErrBadWindow))
	}
	if reason == "" {
		return ledger.WrapError("lock", "apply", "reason", ErrReasonRequired)
	}
	if scope == "" {
		scope = ledger.ScopeAll
	}
	lock := ledger.Lock{
		ID:       service.idFn(),
		Type:     lockType,
		Scope:    scope,
		FromTs:   fromTs.UTC(),
		ToTs:     toTs.UTC(),
		Reason:   reason,
		LockedBy: actor.String(),
		LockedAt: service.nowFn().UTC(),
	}
	if err := service.store.InsertLock(ctx, lock); err != nil {
		return err
	}
	*applied = lock
	return nil
}

// Release lifts an AUDIT or RECONCILIATION lock with a justification.
// PERIOD locks are refused: they fall only with a period reopen, which hard
// close forbids, so in practice they are permanent.
func (service *Service) Release(ctx context.Context, id string, notes string, actor ledger.ActorID) error {
	operationError := service.release(ctx, id, notes, actor)
	service.record(ctx, ledger.AuditRecord{
		Actor:     actor.String(),
		Action:    "lock.release",
		Subject:   "lock",
		SubjectID: id,
		Reason:    notes,
		Error:     operationError,
	})
	return operationError
}

func (service *Service) release(ctx context.Context, id string, notes string, actor ledger.ActorID) error {
	if notes == "" {
		return ledger.WrapError("lock", "release", "reason", ErrReasonRequired)
	}
	lock, err := service.store.GetLock(ctx, id)
	if err != nil {
		return err
	}
	if lock.Type == ledger.LockPeriod {
		return ledger.WrapError("lock", "release", "period", ErrPeriodLock)
	}
	if lock.ReleasedAt != nil {
		return ledger.WrapError("lock", "release", "released", fmt.Errorf("%w: lock %s", ErrAlreadyReleased, id))
	}
	return service.store.ReleaseLock(ctx, id, actor.String(), service.nowFn().UTC(), notes)
}

// List returns locks, optionally only those active now.
func (service *Service) List(ctx context.Context, activeOnly bool) ([]ledger.Lock, error) {
	return service.store.ListLocks(ctx, activeOnly, service.nowFn().UTC())
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
