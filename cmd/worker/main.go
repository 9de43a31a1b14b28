package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/procura-erp/procura-erp/internal/app"
	"github.com/procura-erp/procura-erp/internal/finance"
	jobmetrics "github.com/procura-erp/procura-erp/internal/jobs"
	"github.com/procura-erp/procura-erp/internal/masterdata"
	"github.com/procura-erp/procura-erp/internal/platform/cache"
	"github.com/procura-erp/procura-erp/internal/platform/db"
	"github.com/procura-erp/procura-erp/internal/receipt"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/shared"
	"github.com/procura-erp/procura-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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
	idempotencyStore := shared.NewIdempotencyStore(pool)

	masterdataRepo := masterdata.NewRepository(pool)
	masterdataCache := masterdata.NewCache(redisClient, cfg.MasterDataCacheTTL)
	masterdataService := masterdata.NewService(masterdataRepo, masterdataCache, auditLogger, logger)

	requisitionRepo := requisition.NewRepository(pool)
	receiptRepo := receipt.NewRepository(pool)
	receiptService := receipt.NewService(receiptRepo, requisitionRepo, masterdataService, nil, auditLogger, idempotencyStore)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, receiptService, cfg.PayableAccountID, logger)

	metrics := jobmetrics.NewMetrics(nil)
	postJob := jobs.NewPostReceiptJob(financeService, logger, metrics)
	rescoreJob := jobs.NewRescoreJob(receiptService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, metrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetentionHours)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}
	rescoreSweepTask, err := jobs.NewRescoreTask(0)
	if err != nil {
		logger.Error("build rescore task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskERPPostReceipt, Handler: postJob.Handle},
			{Type: jobs.TaskReceiptRescore, Handler: rescoreJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: rescoreSweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
