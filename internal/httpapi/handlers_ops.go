package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/altipay/ledgercore/internal/period"
	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/internal/settlement"
	"github.com/altipay/ledgercore/pkg/ledger"
)

func parseTimestamp(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ledger.ErrValidation, raw)
	}
	return parsed.UTC(), nil
}

func listLimit(ctx *gin.Context) (int, error) {
	raw := ctx.Query("limit")
	if raw == "" {
		return 50, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: bad limit %q", ledger.ErrValidation, raw)
	}
	return limit, nil
}

func (server *Server) handleCreatePeriod(ctx *gin.Context) {
	var request periodCreateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	startDate, err := parseDate(request.StartDate)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	endDate, err := parseDate(request.EndDate)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	created, err := server.services.Periods.Create(ctx.Request.Context(), startDate, endDate, ledger.PeriodType(request.Type), actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toPeriodResponse(created))
}

func (server *Server) handleClosePeriod(ctx *gin.Context) {
	var request periodCloseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	closed, err := server.services.Periods.Close(ctx.Request.Context(), ctx.Param("id"), period.CloseMode(request.Mode), request.Notes, actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toPeriodResponse(closed))
}

func (server *Server) handleListPeriods(ctx *gin.Context) {
	limit, err := listLimit(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	periods, err := server.services.Periods.List(ctx.Request.Context(), limit)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]periodResponse, 0, len(periods))
	for _, value := range periods {
		responses = append(responses, toPeriodResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"periods": responses})
}

func (server *Server) handleApplyLock(ctx *gin.Context) {
	var request lockApplyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	lockType, err := ledger.ParseLockType(request.Type)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	fromTs, err := parseTimestamp(request.FromTs)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	toTs, err := parseTimestamp(request.ToTs)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	applied, err := server.services.Locks.Apply(ctx.Request.Context(), lockType, request.Scope, fromTs, toTs, request.Reason, actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toLockResponse(applied))
}

func (server *Server) handleReleaseLock(ctx *gin.Context) {
	var request lockReleaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	if err := server.services.Locks.Release(ctx.Request.Context(), ctx.Param("id"), request.Notes, actorID); err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "released"})
}

func (server *Server) handleListLocks(ctx *gin.Context) {
	activeOnly := ctx.Query("active") == "true"
	locks, err := server.services.Locks.List(ctx.Request.Context(), activeOnly)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]lockResponse, 0, len(locks))
	for _, value := range locks {
		responses = append(responses, toLockResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"locks": responses})
}

func (server *Server) handleRequestOverride(ctx *gin.Context) {
	var request overrideCreateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	requestor, err := overrideActor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	created, err := server.services.Overrides.Request(ctx.Request.Context(), request.RequestType, request.Justification, request.AffectedRefs, requestor)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toOverrideResponse(created))
}

func (server *Server) handleApproveOverride(ctx *gin.Context) {
	server.decideOverride(ctx, true)
}

func (server *Server) handleRejectOverride(ctx *gin.Context) {
	server.decideOverride(ctx, false)
}

func (server *Server) decideOverride(ctx *gin.Context, approve bool) {
	var request overrideDecisionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	decider, err := overrideActor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	var decided ledger.OverrideRequest
	if approve {
		decided, err = server.services.Overrides.Approve(ctx.Request.Context(), ctx.Param("id"), decider, request.Reason)
	} else {
		decided, err = server.services.Overrides.Reject(ctx.Request.Context(), ctx.Param("id"), decider, request.Reason)
	}
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toOverrideResponse(decided))
}

func (server *Server) handleListOverrides(ctx *gin.Context) {
	limit, err := listLimit(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	status := ledger.OverrideStatus(ctx.Query("status"))
	if status != "" {
		if status, err = ledger.ParseOverrideStatus(string(status)); err != nil {
			server.writeDomainError(ctx, err)
			return
		}
	}
	overrides, err := server.services.Overrides.List(ctx.Request.Context(), status, limit)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]overrideResponse, 0, len(overrides))
	for _, value := range overrides {
		responses = append(responses, toOverrideResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"overrides": responses})
}

func (server *Server) handleCreateSettlement(ctx *gin.Context) {
	var request settlementCreateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	created, err := server.services.Settlements.Create(ctx.Request.Context(), settlement.CreateInput{
		MerchantID:     request.MerchantID,
		SettlementRef:  request.SettlementRef,
		GrossMinor:     request.GrossMinor,
		FeesMinor:      request.FeesMinor,
		NetMinor:       request.NetMinor,
		Currency:       request.Currency,
		BankAccountRef: request.BankAccountRef,
	}, actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toSettlementResponse(created))
}

func (server *Server) handleTransitionSettlement(ctx *gin.Context) {
	var request settlementTransitionRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	target, err := settlement.ParseState(request.To)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	updated, err := server.services.Settlements.Transition(ctx.Request.Context(), ctx.Param("id"), target, settlement.TransitionInput{
		UTR:    request.UTR,
		Reason: request.Reason,
	}, actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSettlementResponse(updated))
}

func (server *Server) handleRetrySettlement(ctx *gin.Context) {
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	retried, err := server.services.Settlements.Retry(ctx.Request.Context(), ctx.Param("id"), actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSettlementResponse(retried))
}

func (server *Server) handleListSettlements(ctx *gin.Context) {
	limit, err := listLimit(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	settlements, err := server.services.Settlements.List(ctx.Request.Context(), ctx.Query("merchant_id"), limit)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]settlementResponse, 0, len(settlements))
	for _, value := range settlements {
		responses = append(responses, toSettlementResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"settlements": responses})
}

func (server *Server) handleGetSettlement(ctx *gin.Context) {
	value, err := server.services.Settlements.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toSettlementResponse(value))
}

func (server *Server) handleCreateBatch(ctx *gin.Context) {
	var request reconBatchRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	created, err := server.services.Recon.CreateBatch(ctx.Request.Context(), request.BatchType, request.Source, request.PeriodID, actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toBatchResponse(created))
}

func (server *Server) handleListBatches(ctx *gin.Context) {
	limit, err := listLimit(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	batches, err := server.services.Recon.Batches(ctx.Request.Context(), limit)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]batchResponse, 0, len(batches))
	for _, value := range batches {
		responses = append(responses, toBatchResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"batches": responses})
}

func (server *Server) handleGetBatch(ctx *gin.Context) {
	value, err := server.services.Recon.Batch(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toBatchResponse(value))
}

func (server *Server) handleListItems(ctx *gin.Context) {
	items, err := server.services.Recon.Items(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]itemResponse, 0, len(items))
	for _, value := range items {
		responses = append(responses, toItemResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"items": responses})
}

// handleMatchStatement takes the raw CSV statement as the request body and
// matches it against posted transactions in the [from, to] window.
func (server *Server) handleMatchStatement(ctx *gin.Context) {
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
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
	items, err := server.services.Recon.MatchStatement(ctx.Request.Context(), ctx.Param("id"), ctx.Request.Body, from, to, ctx.Query("event_type"), actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	responses := make([]itemResponse, 0, len(items))
	for _, value := range items {
		responses = append(responses, toItemResponse(value))
	}
	ctx.JSON(http.StatusOK, gin.H{"items": responses})
}

func (server *Server) handleResolveItem(ctx *gin.Context) {
	var request reconResolveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		writeBindError(ctx, err)
		return
	}
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	status, err := recon.ParseResolutionStatus(request.Status)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	if err := server.services.Recon.ResolveItem(ctx.Request.Context(), ctx.Param("id"), status, request.Notes, actorID); err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (server *Server) handleCompleteBatch(ctx *gin.Context) {
	actorID, err := actor(ctx)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	completed, err := server.services.Recon.CompleteBatch(ctx.Request.Context(), ctx.Param("id"), actorID)
	if err != nil {
		server.writeDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toBatchResponse(completed))
}
