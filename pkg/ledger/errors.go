package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger core.
var (
	ErrValidation               = errors.New("validation failed")
	ErrUnbalancedEntries        = errors.New("debit and credit totals differ")
	ErrUnknownAccount           = errors.New("unknown account")
	ErrAccountClosed            = errors.New("account closed")
	ErrNoPeriodForDate          = errors.New("no accounting period covers date")
	ErrLockedPeriod             = errors.New("accounting period is closed")
	ErrHardClosedPeriod         = errors.New("accounting period is hard closed")
	ErrLockedScope              = errors.New("ledger scope is locked")
	ErrIdempotencyConflict      = errors.New("idempotency key already used")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionNotReversible = errors.New("transaction is not reversible")
	ErrOverrideNotUsable        = errors.New("override not usable for this request")
	ErrSelfApprovalForbidden    = errors.New("requestor cannot decide own request")
	ErrInvalidTenantID          = errors.New("invalid tenant id")
	ErrInvalidActorID           = errors.New("invalid actor id")
	ErrInvalidIdempotencyKey    = errors.New("invalid idempotency key")
	ErrInvalidAccountCode       = errors.New("invalid account code")
	ErrInvalidAmountMinor       = errors.New("invalid minor-unit amount")
	ErrInvalidCurrency          = errors.New("invalid currency")
	ErrInvalidEntrySide         = errors.New("invalid entry side")
	ErrInvalidAccountType       = errors.New("invalid account type")
	ErrInvalidAccountCategory   = errors.New("invalid account category")
	ErrInvalidAccountStatus     = errors.New("invalid account status")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrInvalidPeriodStatus      = errors.New("invalid period status")
	ErrInvalidLockType          = errors.New("invalid lock type")
	ErrInvalidOverrideStatus    = errors.New("invalid override status")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
