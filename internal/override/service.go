// Package override implements the dual-confirmation workflow that is the
// only sanctioned path to post outside normal period and lock validation.
package override

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/altipay/ledgercore/pkg/ledger"
	"github.com/google/uuid"
)

// Errors returned by the override workflow.
var (
	ErrRoleForbidden   = errors.New("role not allowed")
	ErrAlreadyDecided  = errors.New("override already decided")
	ErrUnknownOverride = errors.New("unknown override request")
	ErrEmptyRequest    = errors.New("override request is incomplete")
)

// Store is the persistence contract used by the override workflow.
type Store interface {
	InsertOverride(ctx context.Context, request ledger.OverrideRequest) error
	GetOverride(ctx context.Context, id string) (ledger.OverrideRequest, error)
	// DecideOverride flips a pending request to approved or rejected; the
	// update is guarded on status=pending so racing deciders cannot both
	// win.
	DecideOverride(ctx context.Context, id string, to ledger.OverrideStatus, approverID string, reason string, decidedAt time.Time) error
	ListOverrides(ctx context.Context, status ledger.OverrideStatus, limit int) ([]ledger.OverrideRequest, error)
}

// Service runs the override workflow over a Store.
type Service struct {
	store Store
	nowFn func() time.Time
	idFn  func() string
	audit ledger.AuditSink
}

// NewService wires an override workflow service.
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

// Request opens a pending override. Only the finance role raises requests;
// the approval role never does.
func (service *Service) Request(ctx context.Context, requestType string, justification string, affectedRefs []string, requestor Actor) (ledger.OverrideRequest, error) {
	var created ledger.OverrideRequest
	operationError := service.request(ctx, requestType, justification, affectedRefs, requestor, &created)
	service.record(ctx, ledger.AuditRecord{
		Actor:     requestor.ID.String(),
		Action:    "override.request",
		Subject:   "override",
		SubjectID: created.ID,
		Reason:    justification,
		Error:     operationError,
	})
	return created, operationError
}

func (service *Service) request(ctx context.Context, requestType string, justification string, affectedRefs []string, requestor Actor, created *ledger.OverrideRequest) error {
	if err := AssertRoleAllowed(requestor, RoleFinance); err != nil {
		return ledger.WrapError("override", "request", "role", err)
	}
	if requestType == "" || justification == "" || len(affectedRefs) == 0 {
		return ledger.WrapError("override", "request", "input", fmt.Errorf("%w: type, justification, and affected refs are required", ErrEmptyRequest))
	}
	request := ledger.OverrideRequest{
		ID:            service.idFn(),
		RequestType:   requestType,
		RequestorID:   requestor.ID.String(),
		Justification: justification,
		AffectedRefs:  affectedRefs,
		Status:        ledger.OverridePending,
		RequestedAt:   service.nowFn().UTC(),
	}
	if err := service.store.InsertOverride(ctx, request); err != nil {
		return err
	}
	*created = request
	return nil
}

// Approve grants a pending request. The approver must be a different
// identity than the requestor; a self-approval is rejected before any
// other check.
func (service *Service) Approve(ctx context.Context, id string, approver Actor, reason string) (ledger.OverrideRequest, error) {
	return service.decide(ctx, id, ledger.OverrideApproved, approver, reason)
}

// Reject declines a pending request. The same dual-confirmation rule
// applies: a requestor cannot reject their own request either.
func (service *Service) Reject(ctx context.Context, id string, approver Actor, reason string) (ledger.OverrideRequest, error) {
	return service.decide(ctx, id, ledger.OverrideRejected, approver, reason)
}

func (service *Service) decide(ctx context.Context, id string, to ledger.OverrideStatus, approver Actor, reason string) (ledger.OverrideRequest, error) {
	var decided ledger.OverrideRequest
	operationError := func() error {
		request, err := service.store.GetOverride(ctx, id)
		if err != nil {
			return err
		}
		if err := AssertDistinctActors(request.RequestorID, approver.ID.String()); err != nil {
			return ledger.WrapError("override", "decide", "self_approval", err)
		}
		if err := AssertRoleAllowed(approver, RoleApprover); err != nil {
			return ledger.WrapError("override", "decide", "role", err)
		}
		if request.Status != ledger.OverridePending {
			return ledger.WrapError("override", "decide", "status", fmt.Errorf("%w: status is %s", ErrAlreadyDecided, request.Status))
		}
		if reason == "" {
			return ledger.WrapError("override", "decide", "reason", fmt.Errorf("%w: a decision reason is required", ErrEmptyRequest))
		}
		now := service.nowFn().UTC()
		if err := service.store.DecideOverride(ctx, id, to, approver.ID.String(), reason, now); err != nil {
			return err
		}
		request.Status = to
		request.ApproverID = approver.ID.String()
		request.ApprovalReason = reason
		request.DecidedAt = &now
		decided = request
		return nil
	}()
	service.record(ctx, ledger.AuditRecord{
		Actor:     approver.ID.String(),
		Action:    "override." + string(to),
		Subject:   "override",
		SubjectID: id,
		Reason:    reason,
		Error:     operationError,
	})
	return decided, operationError
}

// Get returns one override request.
func (service *Service) Get(ctx context.Context, id string) (ledger.OverrideRequest, error) {
	return service.store.GetOverride(ctx, id)
}

// List returns override requests filtered by status.
func (service *Service) List(ctx context.Context, status ledger.OverrideStatus, limit int) ([]ledger.OverrideRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return service.store.ListOverrides(ctx, status, limit)
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
