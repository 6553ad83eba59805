package httpapi

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func init() {
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = engine.RegisterValidation("currency3", func(field validator.FieldLevel) bool {
			return currencyPattern.MatchString(field.Field().String())
		})
	}
}

type paymentRequest struct {
	TenantID         string `json:"tenant_id" binding:"required"`
	TransactionID    string `json:"transaction_id" binding:"required"`
	OrderID          string `json:"order_id"`
	MerchantID       string `json:"merchant_id" binding:"required"`
	Gateway          string `json:"gateway" binding:"required"`
	AmountMinor      int64  `json:"amount_minor" binding:"required,gt=0"`
	PlatformFeeMinor int64  `json:"platform_fee_minor" binding:"gte=0"`
	GatewayFeeMinor  int64  `json:"gateway_fee_minor" binding:"gte=0"`
	Currency         string `json:"currency" binding:"required,currency3"`
	IdempotencyKey   string `json:"idempotency_key" binding:"required"`
	EffectiveDate    string `json:"effective_date"`
	OverrideID       string `json:"override_id"`
}

type refundRequest struct {
	TenantID               string `json:"tenant_id" binding:"required"`
	RefundID               string `json:"refund_id" binding:"required"`
	OrderID                string `json:"order_id"`
	MerchantID             string `json:"merchant_id" binding:"required"`
	Gateway                string `json:"gateway" binding:"required"`
	RefundMinor            int64  `json:"refund_minor" binding:"required,gt=0"`
	PlatformFeeRefundMinor int64  `json:"platform_fee_refund_minor" binding:"gte=0"`
	GatewayFeeRefundMinor  int64  `json:"gateway_fee_refund_minor" binding:"gte=0"`
	Currency               string `json:"currency" binding:"required,currency3"`
	IdempotencyKey         string `json:"idempotency_key" binding:"required"`
	EffectiveDate          string `json:"effective_date"`
	OverrideID             string `json:"override_id"`
}

type settlementEventRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	SettlementRef  string `json:"settlement_ref" binding:"required"`
	MerchantID     string `json:"merchant_id" binding:"required"`
	GrossMinor     int64  `json:"gross_minor" binding:"required,gt=0"`
	FeesMinor      int64  `json:"fees_minor" binding:"gte=0"`
	NetMinor       int64  `json:"net_minor" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,currency3"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	EffectiveDate  string `json:"effective_date"`
	OverrideID     string `json:"override_id"`
}

type chargebackRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	ChargebackID   string `json:"chargeback_id" binding:"required"`
	OrderID        string `json:"order_id"`
	MerchantID     string `json:"merchant_id" binding:"required"`
	DisputedMinor  int64  `json:"disputed_minor" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,currency3"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	EffectiveDate  string `json:"effective_date"`
	OverrideID     string `json:"override_id"`
}

type adjustmentRequest struct {
	TenantID        string `json:"tenant_id" binding:"required"`
	AdjustmentRef   string `json:"adjustment_ref" binding:"required"`
	FromAccountCode string `json:"from_account_code" binding:"required"`
	ToAccountCode   string `json:"to_account_code" binding:"required"`
	AmountMinor     int64  `json:"amount_minor" binding:"required,gt=0"`
	Reason          string `json:"reason" binding:"required"`
	Currency        string `json:"currency" binding:"required,currency3"`
	IdempotencyKey  string `json:"idempotency_key" binding:"required"`
	EffectiveDate   string `json:"effective_date"`
	OverrideID      string `json:"override_id"`
}

type reverseRequest struct {
	Reason         string `json:"reason" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	OverrideID     string `json:"override_id"`
}

type accountStatusRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type periodCreateRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Type      string `json:"type" binding:"required,oneof=daily monthly"`
}

type periodCloseRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=SOFT HARD"`
	Notes string `json:"notes"`
}

type lockApplyRequest struct {
	Type   string `json:"type" binding:"required,oneof=AUDIT RECONCILIATION"`
	Scope  string `json:"scope" binding:"required"`
	FromTs string `json:"from_ts" binding:"required"`
	ToTs   string `json:"to_ts" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type lockReleaseRequest struct {
	Notes string `json:"notes" binding:"required"`
}

type overrideCreateRequest struct {
	RequestType   string   `json:"request_type" binding:"required"`
	Justification string   `json:"justification" binding:"required"`
	AffectedRefs  []string `json:"affected_refs" binding:"required,min=1"`
}

type overrideDecisionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type settlementCreateRequest struct {
	MerchantID     string `json:"merchant_id" binding:"required"`
	SettlementRef  string `json:"settlement_ref" binding:"required"`
	GrossMinor     int64  `json:"gross_minor" binding:"required,gt=0"`
	FeesMinor      int64  `json:"fees_minor" binding:"gte=0"`
	NetMinor       int64  `json:"net_minor" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,currency3"`
	BankAccountRef string `json:"bank_account_ref" binding:"required"`
}

type settlementTransitionRequest struct {
	To     string `json:"to" binding:"required"`
	UTR    string `json:"utr"`
	Reason string `json:"reason"`
}

type reconBatchRequest struct {
	BatchType string `json:"batch_type" binding:"required"`
	Source    string `json:"source" binding:"required"`
	PeriodID  string `json:"period_id" binding:"required"`
}

type reconResolveRequest struct {
	Status string `json:"status" binding:"required,oneof=investigating resolved written_off"`
	Notes  string `json:"notes" binding:"required"`
}
