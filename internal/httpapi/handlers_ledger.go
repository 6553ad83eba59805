package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/altipay/ledgercore/pkg/ledger"
)

func postInput(ctx *gin.Context, idempotencyKey, effectiveDate, overrideID string) (ledger.PostInput, error) {
	actorID, err := actor(ctx)
	if err != nil {
		return ledger.PostInput{}, err
	}
	key, err := ledger.NewIdempotencyKey(idempotencyKey)
	if err != nil {
		return ledger.PostInput{}, err
	}
	date, err := parseDate(effectiveDate)
	if err != nil {
		return ledger.PostInput{}, err
	}
	return ledger.PostInput{
		IdempotencyKey: key,
		Actor:          actorID,
		EffectiveDate:  date,
		OverrideID:     overrideID,
	}, nil
}

func (server *Server) postEvent(ctx *gin.Context, event ledger.Event, idempotencyKey, effectiveDate, overrideID string) {
	input, err := postInput(ctx, idempotencyKey, effectiveDate, overrideID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	transaction, err := server.services.Ledger.Post(ctx.Request.Context(), event, input)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toTransactionResponse(transaction))
}

func (server *Server) handlePostPayment(ctx *gin.Context) {
	var request paymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	server.postEvent(ctx, ledger.PaymentSucceeded{
		TenantID:         request.TenantID,
		TransactionID:    request.TransactionID,
		OrderID:          request.OrderID,
		MerchantID:       request.MerchantID,
		Gateway:          request.Gateway,
		AmountMinor:      request.AmountMinor,
		PlatformFeeMinor: request.PlatformFeeMinor,
		GatewayFeeMinor:  request.GatewayFeeMinor,
		Currency:         ledger.Currency(request.Currency),
	}, request.IdempotencyKey, request.EffectiveDate, request.OverrideID)
}

func (server *Server) handlePostRefund(ctx *gin.Context) {
	var request refundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	server.postEvent(ctx, ledger.RefundCompleted{
		TenantID:               request.TenantID,
		RefundID:               request.RefundID,
		OrderID:                request.OrderID,
		MerchantID:             request.MerchantID,
		Gateway:                request.Gateway,
		RefundMinor:            request.RefundMinor,
		PlatformFeeRefundMinor: request.PlatformFeeRefundMinor,
		GatewayFeeRefundMinor:  request.GatewayFeeRefundMinor,
		Currency:               ledger.Currency(request.Currency),
	}, request.IdempotencyKey, request.EffectiveDate, request.OverrideID)
}

func (server *Server) handlePostSettlementEvent(ctx *gin.Context) {
	var request settlementEventRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	server.postEvent(ctx, ledger.SettlementPosted{
		TenantID:      request.TenantID,
		SettlementRef: request.SettlementRef,
		MerchantID:    request.MerchantID,
		GrossMinor:    request.GrossMinor,
		FeesMinor:     request.FeesMinor,
		NetMinor:      request.NetMinor,
		Currency:      ledger.Currency(request.Currency),
	}, request.IdempotencyKey, request.EffectiveDate, request.OverrideID)
}

func (server *Server) handlePostChargeback(ctx *gin.Context) {
	var request chargebackRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	server.postEvent(ctx, ledger.ChargebackReceived{
		TenantID:      request.TenantID,
		ChargebackID:  request.ChargebackID,
		OrderID:       request.OrderID,
		MerchantID:    request.MerchantID,
		DisputedMinor: request.DisputedMinor,
		Currency:      ledger.Currency(request.Currency),
	}, request.IdempotencyKey, request.EffectiveDate, request.OverrideID)
}

func (server *Server) handlePostAdjustment(ctx *gin.Context) {
	var request adjustmentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	server.postEvent(ctx, ledger.ManualAdjustment{
		TenantID:        request.TenantID,
		AdjustmentRef:   request.AdjustmentRef,
		FromAccountCode: request.FromAccountCode,
		ToAccountCode:   request.ToAccountCode,
		AmountMinor:     request.AmountMinor,
		Reason:          request.Reason,
		ApprovedBy:      actorID.String(),
		Currency:        ledger.Currency(request.Currency),
	}, request.IdempotencyKey, request.EffectiveDate, request.OverrideID)
}

func (server *Server) handleReverse(ctx *gin.Context) {
	var request reverseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	key, err := ledger.NewIdempotencyKey(request.IdempotencyKey)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	reversal, err := server.services.Ledger.Reverse(ctx.Request.Context(), ctx.Param("id"), ledger.ReverseInput{
		Reason:         request.Reason,
		Actor:          actorID,
		IdempotencyKey: key,
		OverrideID:     request.OverrideID,
	})
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toTransactionResponse(reversal))
}

func (server *Server) handleGetTransaction(ctx *gin.Context) {
	transaction, err := server.services.Ledger.Transaction(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toTransactionResponse(transaction))
}

func (server *Server) handleListTransactions(ctx *gin.Context) {
	filter := ledger.TransactionFilter{
		TenantID:  ctx.Query("tenant_id"),
		EventType: ledger.EventType(ctx.Query("event_type")),
		Status:    ledger.TransactionStatus(ctx.Query("status")),
	}
	from, err := parseDate(ctx.Query("from"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	to, err := parseDate(ctx.Query("to"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	filter.From = from
	filter.To = to
	if raw := ctx.Query("limit"); raw != "" {
		limit, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			writeBindError(ctx, parseErr)
			return
		}
		filter.Limit = limit
	}
	if raw := ctx.Query("offset"); raw != "" {
		offset, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			writeBindError(ctx, parseErr)
			return
		}
		filter.Offset = offset
	}
	transactions, err := server.services.Ledger.ListTransactions(ctx.Request.Context(), filter)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]transactionResponse, 0, len(transactions))
	for _, transaction := range transactions {
		responses = append(responses, toTransactionResponse(transaction))
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": responses})
}

func (server *Server) handleListEntries(ctx *gin.Context) {
	entries, err := server.services.Ledger.Entries(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, toEntryResponse(entry))
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": responses})
}

func (server *Server) handleListAccounts(ctx *gin.Context) {
	accounts, err := server.services.Ledger.Accounts(ctx.Request.Context())
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, toAccountResponse(account))
	}
	ctx.JSON(http.StatusOK, gin.H{"accounts": responses})
}

func (server *Server) handleBalance(ctx *gin.Context) {
	view, err := server.services.Ledger.Balance(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, balanceResponse{
		AccountCode:  view.AccountCode,
		Balance:      view.Balance,
		TotalDebits:  view.TotalDebits,
		TotalCredits: view.TotalCredits,
		EntryCount:   view.EntryCount,
	})
}

func (server *Server) handleAccountStatus(ctx *gin.Context) {
	var request accountStatusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	from, err := ledger.ParseAccountStatus(request.From)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	to, err := ledger.ParseAccountStatus(request.To)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	if err := server.services.Ledger.SetAccountStatus(ctx.Request.Context(), ctx.Param("code"), from, to, actorID); err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (server *Server) handleDrift(ctx *gin.Context) {
	drifts, err := server.services.Ledger.MirroredPairDrift(ctx.Request.Context())
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]driftResponse, 0, len(drifts))
	for _, drift := range drifts {
		responses = append(responses, driftResponse{
			LeftCode:     drift.LeftCode,
			RightCode:    drift.RightCode,
			LeftBalance:  drift.LeftBalance,
			RightBalance: drift.RightBalance,
			DriftMinor:   drift.DriftMinor,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"pairs": responses})
}

func (server *Server) handleExport(ctx *gin.Context) {
	from, err := parseDate(ctx.Query("from"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	to, err := parseDate(ctx.Query("to"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	if server.services.Exporter == nil {
		ctx.JSON(http.StatusNotImplemented, errorBody{Error: "export_unavailable"})
		return
	}
	ctx.Header("Content-Type", "text/csv")
	ctx.Header("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := server.services.Exporter.WriteCSV(ctx.Request.Context(), from, to, ctx.Writer); err != nil {
		server.logger.Error("export failed", zap.Error(err))
	}
}
