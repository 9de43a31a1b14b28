package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/procura-erp/procura-erp/internal/app"
	"github.com/procura-erp/procura-erp/internal/finance"
	"github.com/procura-erp/procura-erp/internal/masterdata"
	"github.com/procura-erp/procura-erp/internal/observability"
	"github.com/procura-erp/procura-erp/internal/platform/cache"
	"github.com/procura-erp/procura-erp/internal/platform/db"
	"github.com/procura-erp/procura-erp/internal/receipt"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/rfq"
	"github.com/procura-erp/procura-erp/internal/shared"
	"github.com/procura-erp/procura-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataCache := masterdata.NewCache(redisClient, cfg.MasterDataCacheTTL)
	masterdataService := masterdata.NewService(masterdataRepo, masterdataCache, auditLogger, logger)
	go func() {
		if err := masterdataCache.ListenForInvalidation(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("masterdata invalidation listener", slog.Any("error", err))
		}
	}()

	requisitionRepo := requisition.NewRepository(pool)
	requisitionService := requisition.NewService(requisitionRepo, masterdataService, approvalRecorder, auditLogger, idempotencyStore, cfg.ApprovalLevel2Limit)

	rfqRepo := rfq.NewRepository(pool)
	rfqService := rfq.NewService(rfqRepo, requisitionService, auditLogger)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	receiptRepo := receipt.NewRepository(pool)
	receiptService := receipt.NewService(receiptRepo, requisitionRepo, masterdataService, queueClient, auditLogger, idempotencyStore)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, receiptService, cfg.PayableAccountID, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		MasterDataHandler:  masterdata.NewHandler(logger, masterdataService),
		RequisitionHandler: requisition.NewHandler(logger, requisitionService),
		RFQHandler:         rfq.NewHandler(logger, rfqService),
		ReceiptHandler:     receipt.NewHandler(logger, receiptService),
		FinanceHandler:     finance.NewHandler(logger, financeService),
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
