package recon

import (
	"fmt"
	"time"
)

// MatchStatus classifies one reconciliation comparison.
type MatchStatus string

const (
	StatusMatched         MatchStatus = "MATCHED"
	StatusMissingInternal MatchStatus = "MISSING_INTERNAL"
	StatusMissingExternal MatchStatus = "MISSING_EXTERNAL"
	StatusAmountMismatch  MatchStatus = "AMOUNT_MISMATCH"
	StatusDuplicate       MatchStatus = "DUPLICATE"
)

// ResolutionStatus tracks the human follow-up on a discrepancy. A
// discrepancy is a first-class recorded outcome, never an error.
type ResolutionStatus string

const (
	ResolutionUnresolved    ResolutionStatus = "unresolved"
	ResolutionInvestigating ResolutionStatus = "investigating"
	ResolutionResolved      ResolutionStatus = "resolved"
	ResolutionWrittenOff    ResolutionStatus = "written_off"
)

// ParseResolutionStatus validates a resolution status.
func ParseResolutionStatus(raw string) (ResolutionStatus, error) {
	switch ResolutionStatus(raw) {
	case ResolutionUnresolved, ResolutionInvestigating, ResolutionResolved, ResolutionWrittenOff:
		return ResolutionStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidResolution, raw)
}

// BatchStatus is the lifecycle state of a reconciliation batch.
type BatchStatus string

const (
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchCompleted  BatchStatus = "COMPLETED"
)

// Batch groups reconciliation items for one period and source.
type Batch struct {
	ID              string
	BatchType       string
	Source          string
	PeriodID        string
	Status          BatchStatus
	ExpectedMinor   int64
	ActualMinor     int64
	DifferenceMinor int64
	CreatedBy       string
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// Item is one classified comparison inside a batch.
type Item struct {
	ID               string
	BatchID          string
	OrderRef         string
	InternalMinor    *int64
	ExternalMinor    *int64
	DifferenceMinor  int64
	MatchStatus      MatchStatus
	ResolutionStatus ResolutionStatus
	ResolutionNotes  string
	ResolvedBy       string
	ResolvedAt       *time.Time
	CreatedAt        time.Time
}

// Record is one side of a comparison: an order reference and its amount in
// minor units.
type Record struct {
	OrderRef    string
	AmountMinor int64
}
