// Package httpapi exposes the ledger core over HTTP. It is a thin facade:
// every rule lives in the services, the handlers only translate JSON in and
// domain errors out.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/altipay/ledgercore/internal/export"
	"github.com/altipay/ledgercore/internal/lock"
	"github.com/altipay/ledgercore/internal/override"
	"github.com/altipay/ledgercore/internal/period"
	"github.com/altipay/ledgercore/internal/recon"
	"github.com/altipay/ledgercore/internal/settlement"
	"github.com/altipay/ledgercore/pkg/ledger"
)

const (
	headerActor = "X-Actor-Id"
	headerRole  = "X-Actor-Role"

	dateLayout = "2006-01-02"
)

// Config holds the HTTP facade settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
}

// Services bundles the domain services the facade fronts.
type Services struct {
	Ledger      *ledger.Service
	Periods     *period.Service
	Locks       *lock.Service
	Settlements *settlement.Service
	Overrides   *override.Service
	Recon       *recon.Service
	Exporter    *export.Exporter
}

// Server wires handlers over the domain services.
type Server struct {
	logger   *zap.Logger
	cfg      Config
	services Services
}

// NewServer validates the wiring and returns a Server.
func NewServer(logger *zap.Logger, cfg Config, services Services) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if services.Ledger == nil || services.Periods == nil || services.Locks == nil ||
		services.Settlements == nil || services.Overrides == nil || services.Recon == nil {
		return nil, fmt.Errorf("%w: missing service dependency", ledger.ErrInvalidServiceConfig)
	}
	return &Server{logger: logger, cfg: cfg, services: services}, nil
}

// Router builds the gin engine with every route mounted.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", headerActor, headerRole},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	transactions := api.Group("/transactions")
	transactions.POST("/payment", server.handlePostPayment)
	transactions.POST("/refund", server.handlePostRefund)
	transactions.POST("/settlement", server.handlePostSettlementEvent)
	transactions.POST("/chargeback", server.handlePostChargeback)
	transactions.POST("/adjustment", server.handlePostAdjustment)
	transactions.POST("/:id/reverse", server.handleReverse)
	transactions.GET("", server.handleListTransactions)
	transactions.GET("/:id", server.handleGetTransaction)
	transactions.GET("/:id/entries", server.handleListEntries)

	accounts := api.Group("/accounts")
	accounts.GET("", server.handleListAccounts)
	accounts.GET("/:code/balance", server.handleBalance)
	accounts.PATCH("/:code/status", server.handleAccountStatus)

	reports := api.Group("/reports")
	reports.GET("/drift", server.handleDrift)
	reports.GET("/export", server.handleExport)

	periods := api.Group("/periods")
	periods.POST("", server.handleCreatePeriod)
	periods.POST("/:id/close", server.handleClosePeriod)
	periods.GET("", server.handleListPeriods)

	locks := api.Group("/locks")
	locks.POST("", server.handleApplyLock)
	locks.POST("/:id/release", server.handleReleaseLock)
	locks.GET("", server.handleListLocks)

	overrides := api.Group("/overrides")
	overrides.POST("", server.handleRequestOverride)
	overrides.POST("/:id/approve", server.handleApproveOverride)
	overrides.POST("/:id/reject", server.handleRejectOverride)
	overrides.GET("", server.handleListOverrides)

	settlements := api.Group("/settlements")
	settlements.POST("", server.handleCreateSettlement)
	settlements.POST("/:id/transition", server.handleTransitionSettlement)
	settlements.POST("/:id/retry", server.handleRetrySettlement)
	settlements.GET("", server.handleListSettlements)
	settlements.GET("/:id", server.handleGetSettlement)

	reconGroup := api.Group("/recon")
	reconGroup.POST("/batches", server.handleCreateBatch)
	reconGroup.GET("/batches", server.handleListBatches)
	reconGroup.GET("/batches/:id", server.handleGetBatch)
	reconGroup.GET("/batches/:id/items", server.handleListItems)
	reconGroup.POST("/batches/:id/statement", server.handleMatchStatement)
	reconGroup.POST("/batches/:id/complete", server.handleCompleteBatch)
	reconGroup.POST("/items/:id/resolve", server.handleResolveItem)

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("httpapi listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// actor extracts the acting identity from the request headers. Who the actor
// is comes from the deployment's edge; this service only records it.
func actor(ctx *gin.Context) (ledger.ActorID, error) {
	return ledger.NewActorID(ctx.GetHeader(headerActor))
}

func overrideActor(ctx *gin.Context) (override.Actor, error) {
	id, err := actor(ctx)
	if err != nil {
		return override.Actor{}, err
	}
	return override.Actor{ID: id, Role: override.Role(ctx.GetHeader(headerRole))}, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ledger.ErrValidation, raw)
	}
	return parsed.UTC(), nil
}
