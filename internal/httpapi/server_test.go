package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/altipay/ledgercore/internal/export"
	"github.com/altipay/ledgercore/internal/lock"
	"github.com/altipay/ledgercore/internal/override"
	"github.com/altipay/ledgercore/internal/period"
	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/internal/settlement"
	"github.com/altipay/ledgercore/internal/store/gormstore"
	"github.com/altipay/ledgercore/pkg/ledger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	databasePath := filepath.Join(t.TempDir(), "ledgercore-test.db")
	gormDB, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gormstore.Migrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := gormstore.Seed(t.Context(), gormDB, time.Now().UTC()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	logger := zap.NewNop()
	audit := gormstore.NewAuditStore(gormDB, logger)

	ledgerService, err := ledger.NewService(gormstore.New(gormDB), time.Now, ledger.WithAuditSink(audit))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	periodService, err := period.NewService(gormstore.NewPeriodStore(gormDB), time.Now, audit)
	if err != nil {
		t.Fatalf("period service: %v", err)
	}
	lockService, err := lock.NewService(gormstore.NewLockStore(gormDB), time.Now, audit)
	if err != nil {
		t.Fatalf("lock service: %v", err)
	}
	settlementService, err := settlement.NewService(gormstore.NewSettlementStore(gormDB), time.Now, audit)
	if err != nil {
		t.Fatalf("settlement service: %v", err)
	}
	overrideService, err := override.NewService(gormstore.NewOverrideStore(gormDB), time.Now, audit)
	if err != nil {
		t.Fatalf("override service: %v", err)
	}
	reconService, err := recon.NewService(gormstore.NewReconStore(gormDB), time.Now, audit)
	if err != nil {
		t.Fatalf("recon service: %v", err)
	}

	server, err := NewServer(logger, Config{AllowedOrigins: []string{"http://localhost:8000"}}, Services{
		Ledger:      ledgerService,
		Periods:     periodService,
		Locks:       lockService,
		Settlements: settlementService,
		Overrides:   overrideService,
		Recon:       reconService,
		Exporter:    export.New(gormstore.NewExportStore(gormDB)),
	})
	if err != nil {
		t.Fatalf("server init: %v", err)
	}

	testServer := httptest.NewServer(server.Router())
	t.Cleanup(testServer.Close)
	return testServer
}

func execJSON(t *testing.T, server *httptest.Server, method, path, actorID, role string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	contentType := "application/json"
	switch value := payload.(type) {
	case nil:
	case string:
		body = strings.NewReader(value)
		contentType = "text/csv"
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequest(method, server.URL+path, body)
	if err != nil {
		t.Fatalf("request init failed: %v", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", contentType)
	}
	if actorID != "" {
		request.Header.Set(headerActor, actorID)
	}
	if role != "" {
		request.Header.Set(headerRole, role)
	}

	response, err := server.Client().Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	decoded := map[string]any{}
	if len(raw) > 0 && json.Valid(raw) {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode response %q: %v", string(raw), err)
		}
	}
	return response.StatusCode, decoded
}

func openCurrentPeriod(t *testing.T, server *httptest.Server) string {
	t.Helper()
	now := time.Now().UTC()
	status, body := execJSON(t, server, http.MethodPost, "/api/v1/periods", "finance-ops", "", map[string]any{
		"start_date": now.AddDate(0, 0, -15).Format("2006-01-02"),
		"end_date":   now.AddDate(0, 0, 15).Format("2006-01-02"),
		"type":       "monthly",
	})
	if status != http.StatusCreated {
		t.Fatalf("create period: status %d body %v", status, body)
	}
	return body["id"].(string)
}

func paymentPayload(transactionID string) map[string]any {
	return map[string]any{
		"tenant_id":          "tenant-1",
		"transaction_id":     transactionID,
		"order_id":           "order-77",
		"merchant_id":        "M001",
		"gateway":            "razorpay",
		"amount_minor":       100000,
		"platform_fee_minor": 2000,
		"gateway_fee_minor":  1500,
		"currency":           "INR",
		"idempotency_key":    transactionID,
	}
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)
	openCurrentPeriod(t, server)

	status, posted := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", paymentPayload("pay-1001"))
	if status != http.StatusCreated {
		t.Fatalf("post payment: status %d body %v", status, posted)
	}
	if posted["status"] != "posted" {
		t.Fatalf("expected posted transaction, got %v", posted["status"])
	}
	transactionID := posted["id"].(string)

	// Same idempotency key returns the original transaction.
	status, replayed := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", paymentPayload("pay-1001"))
	if status != http.StatusCreated {
		t.Fatalf("replay payment: status %d body %v", status, replayed)
	}
	if replayed["id"] != transactionID {
		t.Fatalf("expected replay to return transaction %s, got %v", transactionID, replayed["id"])
	}

	status, entries := execJSON(t, server, http.MethodGet, "/api/v1/transactions/"+transactionID+"/entries", "ops", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list entries: status %d", status)
	}
	if count := len(entries["entries"].([]any)); count != 8 {
		t.Fatalf("expected 8 entries, got %d", count)
	}

	status, balance := execJSON(t, server, http.MethodGet, "/api/v1/accounts/ESCROW_BANK/balance", "ops", "", nil)
	if status != http.StatusOK {
		t.Fatalf("balance: status %d", status)
	}
	if balance["balance_minor"].(float64) != 100000 {
		t.Fatalf("expected escrow bank balance 100000, got %v", balance["balance_minor"])
	}

	status, drift := execJSON(t, server, http.MethodGet, "/api/v1/reports/drift", "ops", "", nil)
	if status != http.StatusOK {
		t.Fatalf("drift: status %d", status)
	}
	pairs := drift["pairs"].([]any)
	if len(pairs) != 1 {
		t.Fatalf("expected one mirrored pair, got %d", len(pairs))
	}
	if pairs[0].(map[string]any)["drift_minor"].(float64) != 0 {
		t.Fatalf("expected zero drift, got %v", pairs[0])
	}

	status, reversal := execJSON(t, server, http.MethodPost, "/api/v1/transactions/"+transactionID+"/reverse", "ops", "", map[string]any{
		"reason":          "duplicate capture",
		"idempotency_key": "rev-1001",
	})
	if status != http.StatusCreated {
		t.Fatalf("reverse: status %d body %v", status, reversal)
	}
	if reversal["reverses_id"] != transactionID {
		t.Fatalf("expected reversal link to original, got %v", reversal["reverses_id"])
	}

	status, original := execJSON(t, server, http.MethodGet, "/api/v1/transactions/"+transactionID, "ops", "", nil)
	if status != http.StatusOK {
		t.Fatalf("get transaction: status %d", status)
	}
	if original["status"] != "reversed" {
		t.Fatalf("expected original reversed, got %v", original["status"])
	}
	if original["reversed_by_id"] != reversal["id"] {
		t.Fatalf("expected back-link to reversal")
	}

	status, netted := execJSON(t, server, http.MethodGet, "/api/v1/accounts/ESCROW_BANK/balance", "ops", "", nil)
	if status != http.StatusOK {
		t.Fatalf("balance after reversal: status %d", status)
	}
	if netted["balance_minor"].(float64) != 0 {
		t.Fatalf("expected escrow bank to net to zero, got %v", netted["balance_minor"])
	}
}

func TestPeriodGatesAndOverrideOverHTTP(t *testing.T) {
	server := newTestServer(t)
	periodID := openCurrentPeriod(t, server)

	status, body := execJSON(t, server, http.MethodPost, "/api/v1/periods/"+periodID+"/close", "finance-ops", "", map[string]any{
		"mode":  "SOFT",
		"notes": "month-end review",
	})
	if status != http.StatusOK {
		t.Fatalf("soft close: status %d body %v", status, body)
	}

	status, blocked := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", paymentPayload("pay-2001"))
	if status != http.StatusConflict || blocked["error"] != "period_locked" {
		t.Fatalf("expected period_locked conflict, got %d %v", status, blocked)
	}

	status, requested := execJSON(t, server, http.MethodPost, "/api/v1/overrides", "alice", "finance", map[string]any{
		"request_type":  "soft_close_posting",
		"justification": "late gateway webhook for order-77",
		"affected_refs": []string{"pay-2001"},
	})
	if status != http.StatusCreated {
		t.Fatalf("request override: status %d body %v", status, requested)
	}
	overrideID := requested["id"].(string)

	// The requestor cannot decide their own request.
	status, selfDecision := execJSON(t, server, http.MethodPost, "/api/v1/overrides/"+overrideID+"/approve", "alice", "approver", map[string]any{
		"reason": "approving my own request",
	})
	if status != http.StatusForbidden || selfDecision["error"] != "self_approval_forbidden" {
		t.Fatalf("expected self-approval rejection, got %d %v", status, selfDecision)
	}

	status, approved := execJSON(t, server, http.MethodPost, "/api/v1/overrides/"+overrideID+"/approve", "bob", "approver", map[string]any{
		"reason": "verified against bank statement",
	})
	if status != http.StatusOK || approved["status"] != "approved" {
		t.Fatalf("approve override: status %d body %v", status, approved)
	}

	payload := paymentPayload("pay-2001")
	payload["override_id"] = overrideID
	status, posted := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", payload)
	if status != http.StatusCreated {
		t.Fatalf("post with override: status %d body %v", status, posted)
	}
	if posted["override_id"] != overrideID {
		t.Fatalf("expected transaction to carry the override, got %v", posted["override_id"])
	}

	// The override is single use.
	retry := paymentPayload("pay-2002")
	retry["override_id"] = overrideID
	status, reused := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", retry)
	if status != http.StatusConflict || reused["error"] != "override_not_usable" {
		t.Fatalf("expected consumed override rejection, got %d %v", status, reused)
	}

	status, body = execJSON(t, server, http.MethodPost, "/api/v1/periods/"+periodID+"/close", "finance-ops", "", map[string]any{
		"mode":  "HARD",
		"notes": "books finalized",
	})
	if status != http.StatusOK {
		t.Fatalf("hard close: status %d body %v", status, body)
	}

	status, hardBlocked := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", paymentPayload("pay-3001"))
	if status != http.StatusConflict || hardBlocked["error"] != "period_hard_closed" {
		t.Fatalf("expected hard-closed rejection, got %d %v", status, hardBlocked)
	}
}

func TestSettlementLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)

	createPayload := map[string]any{
		"merchant_id":      "M001",
		"settlement_ref":   "SETTLE-M001-1",
		"gross_minor":      100000,
		"fees_minor":       3500,
		"net_minor":        96500,
		"currency":         "INR",
		"bank_account_ref": "bank-ref-1",
	}
	status, created := execJSON(t, server, http.MethodPost, "/api/v1/settlements", "ops", "", createPayload)
	if status != http.StatusCreated {
		t.Fatalf("create settlement: status %d body %v", status, created)
	}
	settlementID := created["id"].(string)

	status, duplicate := execJSON(t, server, http.MethodPost, "/api/v1/settlements", "ops", "", createPayload)
	if status != http.StatusConflict || duplicate["error"] != "duplicate_settlement" {
		t.Fatalf("expected duplicate settlement conflict, got %d %v", status, duplicate)
	}

	transition := func(to, utr string) (int, map[string]any) {
		return execJSON(t, server, http.MethodPost, "/api/v1/settlements/"+settlementID+"/transition", "ops", "", map[string]any{
			"to":  to,
			"utr": utr,
		})
	}

	if status, body := transition("FUNDS_RESERVED", ""); status != http.StatusOK {
		t.Fatalf("reserve: status %d body %v", status, body)
	}
	if status, body := transition("SENT_TO_BANK", ""); status != http.StatusOK {
		t.Fatalf("send: status %d body %v", status, body)
	}

	status, missingUTR := transition("BANK_CONFIRMED", "")
	if status != http.StatusBadRequest || missingUTR["error"] != "utr_required" {
		t.Fatalf("expected UTR requirement, got %d %v", status, missingUTR)
	}

	status, confirmed := transition("BANK_CONFIRMED", "UTR123456")
	if status != http.StatusOK || confirmed["utr"] != "UTR123456" {
		t.Fatalf("confirm: status %d body %v", status, confirmed)
	}
	if status, body := transition("SETTLED", ""); status != http.StatusOK {
		t.Fatalf("settle: status %d body %v", status, body)
	}

	status, terminal := transition("FAILED", "")
	if status != http.StatusConflict || terminal["error"] != "invalid_settlement_transition" {
		t.Fatalf("expected terminal rejection, got %d %v", status, terminal)
	}

	status, listed := execJSON(t, server, http.MethodGet, "/api/v1/settlements?merchant_id=M001", "ops", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list settlements: status %d", status)
	}
	if count := len(listed["settlements"].([]any)); count != 1 {
		t.Fatalf("expected one settlement, got %d", count)
	}

	// A failed settlement re-enters the cycle only through the retry
	// endpoint, which owns the attempt counter.
	failedPayload := map[string]any{
		"merchant_id":      "M002",
		"settlement_ref":   "SETTLE-M002-1",
		"gross_minor":      50000,
		"fees_minor":       0,
		"net_minor":        50000,
		"currency":         "INR",
		"bank_account_ref": "bank-ref-2",
	}
	status, failedCreated := execJSON(t, server, http.MethodPost, "/api/v1/settlements", "ops", "", failedPayload)
	if status != http.StatusCreated {
		t.Fatalf("create second settlement: status %d body %v", status, failedCreated)
	}
	failedID := failedCreated["id"].(string)
	status, body := execJSON(t, server, http.MethodPost, "/api/v1/settlements/"+failedID+"/transition", "ops", "", map[string]any{"to": "FAILED"})
	if status != http.StatusOK {
		t.Fatalf("fail: status %d body %v", status, body)
	}
	status, body = execJSON(t, server, http.MethodPost, "/api/v1/settlements/"+failedID+"/transition", "ops", "", map[string]any{"to": "RETRIED"})
	if status != http.StatusConflict || body["error"] != "invalid_settlement_transition" {
		t.Fatalf("expected direct retry rejection, got %d %v", status, body)
	}
	status, retried := execJSON(t, server, http.MethodPost, "/api/v1/settlements/"+failedID+"/retry", "ops", "", nil)
	if status != http.StatusOK || retried["retry_count"] != float64(1) {
		t.Fatalf("retry: status %d body %v", status, retried)
	}
}

func TestReconciliationFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	periodID := openCurrentPeriod(t, server)

	for index, amount := range []int{100000, 45000} {
		payload := paymentPayload(fmt.Sprintf("pay-%d", 5001+index))
		payload["amount_minor"] = amount
		payload["platform_fee_minor"] = 0
		payload["gateway_fee_minor"] = 0
		status, body := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", payload)
		if status != http.StatusCreated {
			t.Fatalf("seed payment: status %d body %v", status, body)
		}
	}

	status, batch := execJSON(t, server, http.MethodPost, "/api/v1/recon/batches", "recon-bot", "", map[string]any{
		"batch_type": "gateway",
		"source":     "razorpay",
		"period_id":  periodID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create batch: status %d body %v", status, batch)
	}
	batchID := batch["id"].(string)

	now := time.Now().UTC()
	window := fmt.Sprintf("from=%s&to=%s", now.AddDate(0, 0, -1).Format("2006-01-02"), now.AddDate(0, 0, 1).Format("2006-01-02"))
	statement := "orderRef,amount,currency,utr,date\npay-5001,1000.00,INR,UTR1,2026-03-14\npay-5002,500.00,INR,UTR2,2026-03-14\n"
	status, matched := execJSON(t, server, http.MethodPost, "/api/v1/recon/batches/"+batchID+"/statement?"+window+"&event_type=payment_success", "recon-bot", "", statement)
	if status != http.StatusOK {
		t.Fatalf("match statement: status %d body %v", status, matched)
	}
	items := matched["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	var mismatchID string
	for _, rawItem := range items {
		item := rawItem.(map[string]any)
		switch item["order_ref"] {
		case "pay-5001":
			if item["match_status"] != "MATCHED" {
				t.Fatalf("expected pay-5001 matched, got %v", item["match_status"])
			}
		case "pay-5002":
			if item["match_status"] != "AMOUNT_MISMATCH" {
				t.Fatalf("expected pay-5002 mismatch, got %v", item["match_status"])
			}
			if item["difference_minor"].(float64) != -5000 {
				t.Fatalf("expected difference -5000, got %v", item["difference_minor"])
			}
			mismatchID = item["id"].(string)
		}
	}

	status, blocked := execJSON(t, server, http.MethodPost, "/api/v1/recon/batches/"+batchID+"/complete", "recon-bot", "", nil)
	if status != http.StatusConflict || blocked["error"] != "unresolved_items" {
		t.Fatalf("expected unresolved-items conflict, got %d %v", status, blocked)
	}

	status, body := execJSON(t, server, http.MethodPost, "/api/v1/recon/items/"+mismatchID+"/resolve", "recon-bot", "", map[string]any{
		"status": "written_off",
		"notes":  "gateway under-captured, raised adjustment ADJ-9",
	})
	if status != http.StatusOK {
		t.Fatalf("resolve item: status %d body %v", status, body)
	}

	status, completed := execJSON(t, server, http.MethodPost, "/api/v1/recon/batches/"+batchID+"/complete", "recon-bot", "", nil)
	if status != http.StatusOK || completed["status"] != "COMPLETED" {
		t.Fatalf("complete batch: status %d body %v", status, completed)
	}
	if completed["difference_minor"].(float64) != -5000 {
		t.Fatalf("expected batch difference -5000, got %v", completed["difference_minor"])
	}
}

func TestExportCSVOverHTTP(t *testing.T) {
	server := newTestServer(t)
	openCurrentPeriod(t, server)

	status, body := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", paymentPayload("pay-7001"))
	if status != http.StatusCreated {
		t.Fatalf("post payment: status %d body %v", status, body)
	}

	now := time.Now().UTC()
	url := fmt.Sprintf("%s/api/v1/reports/export?from=%s&to=%s", server.URL, now.AddDate(0, 0, -1).Format("2006-01-02"), now.AddDate(0, 0, 1).Format("2006-01-02"))
	response, err := server.Client().Get(url)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("export: status %d", response.StatusCode)
	}
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 9 {
		t.Fatalf("expected header plus 8 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "transaction_ref,") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(string(raw), "1000.00") {
		t.Fatalf("expected major-unit amount in export")
	}
}

func TestRequestValidationOverHTTP(t *testing.T) {
	server := newTestServer(t)
	openCurrentPeriod(t, server)

	payload := paymentPayload("pay-9001")
	payload["currency"] = "rupees"
	status, body := execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "ops", "", payload)
	if status != http.StatusBadRequest || body["error"] != "invalid_payload" {
		t.Fatalf("expected payload rejection, got %d %v", status, body)
	}

	// Missing actor header.
	status, body = execJSON(t, server, http.MethodPost, "/api/v1/transactions/payment", "", "", paymentPayload("pay-9002"))
	if status != http.StatusBadRequest || body["error"] != "invalid_actor_id" {
		t.Fatalf("expected actor rejection, got %d %v", status, body)
	}

	status, body = execJSON(t, server, http.MethodGet, "/api/v1/transactions/nope", "ops", "", nil)
	if status != http.StatusNotFound || body["error"] != "transaction_not_found" {
		t.Fatalf("expected not-found, got %d %v", status, body)
	}
}
