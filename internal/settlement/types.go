package settlement

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a settlement.
type State string

const (
	StateCreated       State = "CREATED"
	StateFundsReserved State = "FUNDS_RESERVED"
	StateSentToBank    State = "SENT_TO_BANK"
	StateBankConfirmed State = "BANK_CONFIRMED"
	StateSettled       State = "SETTLED"
	StateFailed        State = "FAILED"
	StateRetried       State = "RETRIED"
)

// ParseState validates a settlement state.
func ParseState(raw string) (State, error) {
	switch State(raw) {
	case StateCreated, StateFundsReserved, StateSentToBank, StateBankConfirmed, StateSettled, StateFailed, StateRetried:
		return State(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidState, raw)
}

// allowedTransitions is the single source of truth for legal state moves.
// A transition absent from this table is rejected regardless of caller
// role. FAILED is reachable from every active state separately through
// activeStates, and RETRIED is entered only through Service.Retry, which
// owns the attempt counter.
var allowedTransitions = map[State][]State{
	StateCreated:       {StateFundsReserved},
	StateFundsReserved: {StateSentToBank},
	StateSentToBank:    {StateBankConfirmed},
	StateBankConfirmed: {StateSettled},
	StateFailed:        {StateRetried},
	StateRetried:       {StateFundsReserved},
	StateSettled:       {},
}

// activeStates may always move to FAILED.
var activeStates = map[State]bool{
	StateCreated:       true,
	StateFundsReserved: true,
	StateSentToBank:    true,
	StateBankConfirmed: true,
	StateRetried:       true,
}

func transitionAllowed(from, to State) bool {
	if to == StateFailed {
		return activeStates[from]
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no outward transition exists. SETTLED is always
// terminal; FAILED becomes terminal once retries are exhausted, which the
// service checks against its configured maximum.
func (state State) Terminal() bool {
	return state == StateSettled
}

// Settlement tracks one merchant payout from creation to bank-confirmed
// finality. It references, but is independent of, the ledger transaction
// that posts it.
type Settlement struct {
	ID                  string
	MerchantID          string
	SettlementRef       string
	State               State
	GrossMinor          int64
	FeesMinor           int64
	NetMinor            int64
	Currency            string
	BankAccountRef      string
	UTR                 string
	RetryCount          int
	LedgerTransactionID string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
