package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/altipay/ledgercore/internal/lock"
	"github.com/altipay/ledgercore/internal/override"
	"github.com/altipay/ledgercore/internal/period"
	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/internal/settlement"
	"github.com/altipay/ledgercore/pkg/ledger"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// statusByError maps each domain sentinel to its HTTP status. Anything not
// listed is a 500: an unexpected error must look unexpected.
var statusByError = []struct {
	target error
	status int
	code   string
}{
	{ledger.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{ledger.ErrUnbalancedEntries, http.StatusBadRequest, "unbalanced_entries"},
	{ledger.ErrUnknownAccount, http.StatusNotFound, "unknown_account"},
	{ledger.ErrAccountClosed, http.StatusConflict, "account_closed"},
	{ledger.ErrNoPeriodForDate, http.StatusConflict, "no_period_for_date"},
	{ledger.ErrLockedPeriod, http.StatusConflict, "period_locked"},
	{ledger.ErrHardClosedPeriod, http.StatusConflict, "period_hard_closed"},
	{ledger.ErrLockedScope, http.StatusConflict, "scope_locked"},
	{ledger.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
	{ledger.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{ledger.ErrTransactionNotReversible, http.StatusConflict, "transaction_not_reversible"},
	{ledger.ErrOverrideNotUsable, http.StatusConflict, "override_not_usable"},
	{ledger.ErrSelfApprovalForbidden, http.StatusForbidden, "self_approval_forbidden"},
	{period.ErrOverlap, http.StatusConflict, "period_overlap"},
	{period.ErrGap, http.StatusConflict, "period_gap"},
	{period.ErrBadRange, http.StatusBadRequest, "bad_period_range"},
	{period.ErrUnknownPeriod, http.StatusNotFound, "unknown_period"},
	{period.ErrHardClosed, http.StatusConflict, "period_hard_closed"},
	{period.ErrBadTransition, http.StatusConflict, "bad_period_transition"},
	{lock.ErrUnknownLock, http.StatusNotFound, "unknown_lock"},
	{lock.ErrAlreadyReleased, http.StatusConflict, "lock_already_released"},
	{lock.ErrPeriodLock, http.StatusConflict, "period_lock_immutable"},
	{lock.ErrBadWindow, http.StatusBadRequest, "bad_lock_window"},
	{lock.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{settlement.ErrInvalidState, http.StatusBadRequest, "invalid_settlement_state"},
	{settlement.ErrInvalidTransition, http.StatusConflict, "invalid_settlement_transition"},
	{settlement.ErrUTRRequired, http.StatusBadRequest, "utr_required"},
	{settlement.ErrRetriesExhausted, http.StatusConflict, "retries_exhausted"},
	{settlement.ErrUnknownSettlement, http.StatusNotFound, "unknown_settlement"},
	{settlement.ErrInvalidAmounts, http.StatusBadRequest, "invalid_settlement_amounts"},
	{settlement.ErrDuplicateSettlement, http.StatusConflict, "duplicate_settlement"},
	{ledger.ErrInvalidTenantID, http.StatusBadRequest, "invalid_tenant_id"},
	{ledger.ErrInvalidActorID, http.StatusBadRequest, "invalid_actor_id"},
	{ledger.ErrInvalidIdempotencyKey, http.StatusBadRequest, "invalid_idempotency_key"},
	{ledger.ErrInvalidCurrency, http.StatusBadRequest, "invalid_currency"},
	{ledger.ErrInvalidAmountMinor, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrInvalidAccountStatus, http.StatusBadRequest, "invalid_account_status"},
	{ledger.ErrInvalidLockType, http.StatusBadRequest, "invalid_lock_type"},
	{ledger.ErrInvalidPeriodStatus, http.StatusBadRequest, "invalid_period_status"},
	{ledger.ErrInvalidTransactionStatus, http.StatusBadRequest, "invalid_transaction_status"},
	{ledger.ErrInvalidOverrideStatus, http.StatusBadRequest, "invalid_override_status"},
	{override.ErrRoleForbidden, http.StatusForbidden, "role_forbidden"},
	{override.ErrAlreadyDecided, http.StatusConflict, "override_already_decided"},
	{override.ErrUnknownOverride, http.StatusNotFound, "unknown_override"},
	{override.ErrEmptyRequest, http.StatusBadRequest, "override_incomplete"},
	{recon.ErrUnknownBatch, http.StatusNotFound, "unknown_batch"},
	{recon.ErrUnknownItem, http.StatusNotFound, "unknown_item"},
	{recon.ErrBatchNotOpen, http.StatusConflict, "batch_not_open"},
	{recon.ErrUnresolvedItems, http.StatusConflict, "unresolved_items"},
	{recon.ErrBadStatement, http.StatusBadRequest, "bad_statement"},
	{recon.ErrInvalidResolution, http.StatusBadRequest, "invalid_resolution"},
}

func (server *Server) writeDomainError(ctx *gin.Context, err error) {
	for _, mapping := range statusByError {
		if errors.Is(err, mapping.target) {
			ctx.JSON(mapping.status, errorBody{Error: mapping.code, Detail: err.Error()})
			return
		}
	}
	server.logger.Error("internal error", zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorBody{Error: "internal_error"})
}

func writeBindError(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, errorBody{Error: "invalid_payload", Detail: err.Error()})
}
