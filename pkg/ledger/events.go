package ledger

import "fmt"

// EventType tags the closed set of domain events the posting service
// understands.
type EventType string

const (
	EventPaymentSucceeded   EventType = "payment_success"
	EventRefundCompleted    EventType = "refund_completed"
	EventSettlementPosted   EventType = "settlement_posted"
	EventChargebackReceived EventType = "chargeback_received"
	EventManualAdjustment   EventType = "manual_adjustment"
	EventReversal           EventType = "reversal"
)

// EventMeta carries the header fields shared by every event variant.
type EventMeta struct {
	TenantID    string
	SourceRef   string
	Currency    Currency
	AmountMinor int64
}

// Event is the closed union of postable domain events. The unexported
// methods seal the set: a new variant does not compile until it defines its
// own balanced expansion, so there is no silently-ignored default branch.
type Event interface {
	Type() EventType
	Meta() EventMeta
	scopeKeys() []string
	entryLines() ([]EntryLine, error)
}

// EntryLine is one (account, side, amount) tuple produced by expanding an
// event. MustExist lines reference accounts that are never auto-created.
type EntryLine struct {
	Account     AccountDef
	Side        EntrySide
	AmountMinor int64
	Description string
	MustExist   bool
}

// PaymentSucceeded records a captured customer payment routed through a
// gateway into escrow.
type PaymentSucceeded struct {
	TenantID         string
	TransactionID    string
	OrderID          string
	MerchantID       string
	Gateway          string
	AmountMinor      int64
	PlatformFeeMinor int64
	GatewayFeeMinor  int64
	Currency         Currency
}

// Type returns the event tag.
func (event PaymentSucceeded) Type() EventType { return EventPaymentSucceeded }

// Meta returns the shared header fields.
func (event PaymentSucceeded) Meta() EventMeta {
	return EventMeta{TenantID: event.TenantID, SourceRef: event.TransactionID, Currency: event.Currency, AmountMinor: event.AmountMinor}
}

func (event PaymentSucceeded) scopeKeys() []string {
	return []string{tenantScopeKey(event.TenantID), merchantScopeKey(event.MerchantID)}
}

func (event PaymentSucceeded) entryLines() ([]EntryLine, error) {
	if event.MerchantID == "" || event.Gateway == "" {
		return nil, fmt.Errorf("%w: payment event missing merchant or gateway", ErrValidation)
	}
	if event.AmountMinor <= 0 || event.PlatformFeeMinor < 0 || event.GatewayFeeMinor < 0 {
		return nil, fmt.Errorf("%w: payment amounts out of range", ErrValidation)
	}
	netMinor := event.AmountMinor - event.PlatformFeeMinor - event.GatewayFeeMinor
	if netMinor <= 0 {
		return nil, fmt.Errorf("%w: fees meet or exceed payment amount", ErrValidation)
	}
	description := "payment " + event.TransactionID
	lines := []EntryLine{
		{Account: mustSystemDef(CodeEscrowBank), Side: SideDebit, AmountMinor: event.AmountMinor, Description: description},
		{Account: mustSystemDef(CodeEscrowLiability), Side: SideCredit, AmountMinor: event.AmountMinor, Description: description},
		{Account: merchantReceivableDef(event.MerchantID), Side: SideDebit, AmountMinor: netMinor, Description: description},
		{Account: merchantPayableDef(event.MerchantID), Side: SideCredit, AmountMinor: netMinor, Description: description},
	}
	if event.PlatformFeeMinor > 0 {
		lines = append(lines,
			EntryLine{Account: mustSystemDef(CodePlatformFeeReceivable), Side: SideDebit, AmountMinor: event.PlatformFeeMinor, Description: description},
			EntryLine{Account: mustSystemDef(CodePlatformRevenue), Side: SideCredit, AmountMinor: event.PlatformFeeMinor, Description: description},
		)
	}
	if event.GatewayFeeMinor > 0 {
		lines = append(lines,
			EntryLine{Account: gatewayFeeExpenseDef(event.Gateway), Side: SideDebit, AmountMinor: event.GatewayFeeMinor, Description: description},
			EntryLine{Account: gatewayFeePayableDef(event.Gateway), Side: SideCredit, AmountMinor: event.GatewayFeeMinor, Description: description},
		)
	}
	return lines, nil
}

// RefundCompleted unwinds a prior payment, fully or partially, with the
// matching fee refunds.
type RefundCompleted struct {
	TenantID              string
	RefundID              string
	OrderID               string
	MerchantID            string
	Gateway               string
	RefundMinor           int64
	PlatformFeeRefundMinor int64
	GatewayFeeRefundMinor  int64
	Currency              Currency
}

// Type returns the event tag.
func (event RefundCompleted) Type() EventType { return EventRefundCompleted }

// Meta returns the shared header fields.
func (event RefundCompleted) Meta() EventMeta {
	return EventMeta{TenantID: event.TenantID, SourceRef: event.RefundID, Currency: event.Currency, AmountMinor: event.RefundMinor}
}

func (event RefundCompleted) scopeKeys() []string {
	return []string{tenantScopeKey(event.TenantID), merchantScopeKey(event.MerchantID)}
}

func (event RefundCompleted) entryLines() ([]EntryLine, error) {
	if event.MerchantID == "" || event.Gateway == "" {
		return nil, fmt.Errorf("%w: refund event missing merchant or gateway", ErrValidation)
	}
	if event.RefundMinor <= 0 || event.PlatformFeeRefundMinor < 0 || event.GatewayFeeRefundMinor < 0 {
		return nil, fmt.Errorf("%w: refund amounts out of range", ErrValidation)
	}
	netMinor := event.RefundMinor - event.PlatformFeeRefundMinor - event.GatewayFeeRefundMinor
	if netMinor <= 0 {
		return nil, fmt.Errorf("%w: fee refunds meet or exceed refund amount", ErrValidation)
	}
	description := "refund " + event.RefundID
	lines := []EntryLine{
		{Account: mustSystemDef(CodeEscrowLiability), Side: SideDebit, AmountMinor: event.RefundMinor, Description: description},
		{Account: mustSystemDef(CodeEscrowBank), Side: SideCredit, AmountMinor: event.RefundMinor, Description: description},
		{Account: merchantPayableDef(event.MerchantID), Side: SideDebit, AmountMinor: netMinor, Description: description},
		{Account: merchantReceivableDef(event.MerchantID), Side: SideCredit, AmountMinor: netMinor, Description: description},
	}
	if event.PlatformFeeRefundMinor > 0 {
		lines = append(lines,
			EntryLine{Account: mustSystemDef(CodePlatformRevenue), Side: SideDebit, AmountMinor: event.PlatformFeeRefundMinor, Description: description},
			EntryLine{Account: mustSystemDef(CodePlatformFeeReceivable), Side: SideCredit, AmountMinor: event.PlatformFeeRefundMinor, Description: description},
		)
	}
	if event.GatewayFeeRefundMinor > 0 {
		lines = append(lines,
			EntryLine{Account: gatewayFeePayableDef(event.Gateway), Side: SideDebit, AmountMinor: event.GatewayFeeRefundMinor, Description: description},
			EntryLine{Account: gatewayFeeExpenseDef(event.Gateway), Side: SideCredit, AmountMinor: event.GatewayFeeRefundMinor, Description: description},
		)
	}
	return lines, nil
}

// SettlementPosted moves a merchant's settled net amount out of escrow once
// the settlement batch clears.
type SettlementPosted struct {
	TenantID      string
	SettlementRef string
	MerchantID    string
	GrossMinor    int64
	FeesMinor     int64
	NetMinor      int64
	Currency      Currency
}

// Type returns the event tag.
func (event SettlementPosted) Type() EventType { return EventSettlementPosted }

// Meta returns the shared header fields.
func (event SettlementPosted) Meta() EventMeta {
	return EventMeta{TenantID: event.TenantID, SourceRef: event.SettlementRef, Currency: event.Currency, AmountMinor: event.NetMinor}
}

func (event SettlementPosted) scopeKeys() []string {
	return []string{tenantScopeKey(event.TenantID), merchantScopeKey(event.MerchantID)}
}

func (event SettlementPosted) entryLines() ([]EntryLine, error) {
	if event.MerchantID == "" {
		return nil, fmt.Errorf("%w: settlement event missing merchant", ErrValidation)
	}
	if event.NetMinor <= 0 || event.FeesMinor < 0 || event.GrossMinor != event.NetMinor+event.FeesMinor {
		return nil, fmt.Errorf("%w: settlement gross must equal net plus fees", ErrValidation)
	}
	description := "settlement " + event.SettlementRef
	lines := []EntryLine{
		{Account: mustSystemDef(CodeEscrowLiability), Side: SideDebit, AmountMinor: event.NetMinor, Description: description},
		{Account: mustSystemDef(CodeEscrowBank), Side: SideCredit, AmountMinor: event.NetMinor, Description: description},
		{Account: merchantPayableDef(event.MerchantID), Side: SideDebit, AmountMinor: event.NetMinor, Description: description},
		{Account: merchantReceivableDef(event.MerchantID), Side: SideCredit, AmountMinor: event.NetMinor, Description: description},
	}
	if event.FeesMinor > 0 {
		lines = append(lines,
			EntryLine{Account: merchantPayableDef(event.MerchantID), Side: SideDebit, AmountMinor: event.FeesMinor, Description: description},
			EntryLine{Account: mustSystemDef(CodePlatformRevenue), Side: SideCredit, AmountMinor: event.FeesMinor, Description: description},
		)
	}
	return lines, nil
}

// ChargebackReceived claws a disputed amount back out of escrow and the
// merchant's position.
type ChargebackReceived struct {
	TenantID      string
	ChargebackID  string
	OrderID       string
	MerchantID    string
	DisputedMinor int64
	Currency      Currency
}

// Type returns the event tag.
func (event ChargebackReceived) Type() EventType { return EventChargebackReceived }

// Meta returns the shared header fields.
func (event ChargebackReceived) Meta() EventMeta {
	return EventMeta{TenantID: event.TenantID, SourceRef: event.ChargebackID, Currency: event.Currency, AmountMinor: event.DisputedMinor}
}

func (event ChargebackReceived) scopeKeys() []string {
	return []string{tenantScopeKey(event.TenantID), merchantScopeKey(event.MerchantID)}
}

func (event ChargebackReceived) entryLines() ([]EntryLine, error) {
	if event.MerchantID == "" {
		return nil, fmt.Errorf("%w: chargeback event missing merchant", ErrValidation)
	}
	if event.DisputedMinor <= 0 {
		return nil, fmt.Errorf("%w: disputed amount out of range", ErrValidation)
	}
	description := "chargeback " + event.ChargebackID
	return []EntryLine{
		{Account: mustSystemDef(CodeEscrowLiability), Side: SideDebit, AmountMinor: event.DisputedMinor, Description: description},
		{Account: mustSystemDef(CodeEscrowBank), Side: SideCredit, AmountMinor: event.DisputedMinor, Description: description},
		{Account: merchantPayableDef(event.MerchantID), Side: SideDebit, AmountMinor: event.DisputedMinor, Description: description},
		{Account: merchantReceivableDef(event.MerchantID), Side: SideCredit, AmountMinor: event.DisputedMinor, Description: description},
	}, nil
}

// ManualAdjustment is a correction raised by a human, usually out of a
// reconciliation discrepancy. Both accounts must already exist.
type ManualAdjustment struct {
	TenantID        string
	AdjustmentRef   string
	FromAccountCode string
	ToAccountCode   string
	AmountMinor     int64
	Reason          string
	ApprovedBy      string
	Currency        Currency
}

// Type returns the event tag.
func (event ManualAdjustment) Type() EventType { return EventManualAdjustment }

// Meta returns the shared header fields.
func (event ManualAdjustment) Meta() EventMeta {
	return EventMeta{TenantID: event.TenantID, SourceRef: event.AdjustmentRef, Currency: event.Currency, AmountMinor: event.AmountMinor}
}

func (event ManualAdjustment) scopeKeys() []string {
	return []string{tenantScopeKey(event.TenantID)}
}

func (event ManualAdjustment) entryLines() ([]EntryLine, error) {
	if event.FromAccountCode == "" || event.ToAccountCode == "" {
		return nil, fmt.Errorf("%w: adjustment requires both account codes", ErrValidation)
	}
	if event.FromAccountCode == event.ToAccountCode {
		return nil, fmt.Errorf("%w: adjustment accounts must differ", ErrValidation)
	}
	if event.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: adjustment amount out of range", ErrValidation)
	}
	if event.Reason == "" {
		return nil, fmt.Errorf("%w: adjustment requires a reason", ErrValidation)
	}
	description := "adjustment: " + event.Reason
	return []EntryLine{
		{Account: AccountDef{Code: event.FromAccountCode}, Side: SideDebit, AmountMinor: event.AmountMinor, Description: description, MustExist: true},
		{Account: AccountDef{Code: event.ToAccountCode}, Side: SideCredit, AmountMinor: event.AmountMinor, Description: description, MustExist: true},
	}, nil
}

func tenantScopeKey(tenantID string) string {
	return "tenant:" + tenantID
}

func merchantScopeKey(merchantID string) string {
	return "merchant:" + merchantID
}

func mustSystemDef(code string) AccountDef {
	def, ok := systemDef(code)
	if !ok {
		panic("ledger: unknown system account " + code)
	}
	return def
}
