package ledger

import "fmt"

// System account codes. Merchant- and gateway-scoped accounts derive their
// codes from these prefixes plus the scope reference.
const (
	CodeEscrowBank             = "ESCROW_BANK"
	CodeEscrowLiability        = "ESCROW_LIABILITY"
	CodePlatformFeeReceivable  = "PLATFORM_FEE_RECEIVABLE"
	CodePlatformRevenue        = "PLATFORM_REVENUE"
	prefixMerchantReceivable   = "MERCHANT_RECEIVABLE"
	prefixMerchantPayable      = "MERCHANT_PAYABLE"
	prefixGatewayFeeExpense    = "GATEWAY_FEE_EXPENSE"
	prefixGatewayFeePayable    = "GATEWAY_FEE_PAYABLE"
	scopedCodeDelimiter        = ":"
)

// AccountDef describes an account to create on first use. The chart is
// seeded with the escrow and platform accounts; merchant and gateway
// accounts are created lazily when the first event references them.
type AccountDef struct {
	Code          string
	Name          string
	Type          AccountType
	Category      AccountCategory
	NormalBalance EntrySide
	ScopeRef      string
}

// SystemAccounts returns the fixed chart entries every deployment carries.
func SystemAccounts() []AccountDef {
	return []AccountDef{
		{Code: CodeEscrowBank, Name: "Escrow Bank", Type: AccountTypeEscrow, Category: CategoryAsset, NormalBalance: SideDebit},
		{Code: CodeEscrowLiability, Name: "Escrow Liability", Type: AccountTypeEscrow, Category: CategoryLiability, NormalBalance: SideCredit},
		{Code: CodePlatformFeeReceivable, Name: "Platform Fee Receivable", Type: AccountTypePlatformRevenue, Category: CategoryAsset, NormalBalance: SideDebit},
		{Code: CodePlatformRevenue, Name: "Platform Revenue", Type: AccountTypePlatformRevenue, Category: CategoryRevenue, NormalBalance: SideCredit},
	}
}

// MerchantReceivableCode returns the merchant-scoped receivable code.
func MerchantReceivableCode(merchantID string) string {
	return prefixMerchantReceivable + scopedCodeDelimiter + merchantID
}

// MerchantPayableCode returns the merchant-scoped payable code.
func MerchantPayableCode(merchantID string) string {
	return prefixMerchantPayable + scopedCodeDelimiter + merchantID
}

// GatewayFeeExpenseCode returns the gateway-scoped fee expense code.
func GatewayFeeExpenseCode(gateway string) string {
	return prefixGatewayFeeExpense + scopedCodeDelimiter + gateway
}

// GatewayFeePayableCode returns the gateway-scoped fee payable code.
func GatewayFeePayableCode(gateway string) string {
	return prefixGatewayFeePayable + scopedCodeDelimiter + gateway
}

func merchantReceivableDef(merchantID string) AccountDef {
	return AccountDef{
		Code:          MerchantReceivableCode(merchantID),
		Name:          fmt.Sprintf("Merchant Receivable (%s)", merchantID),
		Type:          AccountTypeMerchant,
		Category:      CategoryAsset,
		NormalBalance: SideDebit,
		ScopeRef:      merchantID,
	}
}

func merchantPayableDef(merchantID string) AccountDef {
	return AccountDef{
		Code:          MerchantPayableCode(merchantID),
		Name:          fmt.Sprintf("Merchant Payable (%s)", merchantID),
		Type:          AccountTypeMerchant,
		Category:      CategoryLiability,
		NormalBalance: SideCredit,
		ScopeRef:      merchantID,
	}
}

func gatewayFeeExpenseDef(gateway string) AccountDef {
	return AccountDef{
		Code:          GatewayFeeExpenseCode(gateway),
		Name:          fmt.Sprintf("Gateway Fee Expense (%s)", gateway),
		Type:          AccountTypeGateway,
		Category:      CategoryExpense,
		NormalBalance: SideDebit,
		ScopeRef:      gateway,
	}
}

func gatewayFeePayableDef(gateway string) AccountDef {
	return AccountDef{
		Code:          GatewayFeePayableCode(gateway),
		Name:          fmt.Sprintf("Gateway Fee Payable (%s)", gateway),
		Type:          AccountTypeGateway,
		Category:      CategoryLiability,
		NormalBalance: SideCredit,
		ScopeRef:      gateway,
	}
}

func systemDef(code string) (AccountDef, bool) {
	for _, def := range SystemAccounts() {
		if def.Code == code {
			return def, true
		}
	}
	return AccountDef{}, false
}

// MirroredPairs lists the account pairs whose derived balances must stay
// equal. Divergence is the primary reconciliation health signal.
func MirroredPairs() [][2]string {
	return [][2]string{
		{CodeEscrowBank, CodeEscrowLiability},
	}
}
