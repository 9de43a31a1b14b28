package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/procura-erp/procura-erp/internal/jobs"
	"github.com/procura-erp/procura-erp/internal/receipt"
)

// RescoreJob re-runs auto-matching on draft receipt lines, typically
// after the purchase order behind the receipt changed.
type RescoreJob struct {
	Receipts *receipt.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewRescoreJob wires dependencies for the rescore handler.
func NewRescoreJob(receipts *receipt.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *RescoreJob {
	return &RescoreJob{Receipts: receipts, Logger: logger, Metrics: metrics}
}

// Handle processes TaskReceiptRescore tasks.
func (j *RescoreJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Receipts == nil {
		return errors.New("rescore: handler not configured")
	}
	var payload RescorePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReceiptRescore)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	// ReceiptID 0 means the cron sweep over every draft receipt.
	ids := []int64{payload.ReceiptID}
	if payload.ReceiptID <= 0 {
		drafts, err := j.Receipts.ListDraftIDs(ctx)
		if err != nil {
			resultErr = err
			j.logger().Error("list draft receipts", slog.Any("error", err))
			return resultErr
		}
		ids = drafts
	}

	for _, id := range ids {
		logger := j.logger().With(slog.Int64("receipt_id", id))
		matches, err := j.Receipts.Rescore(ctx, id)
		if err != nil {
			// A receipt confirmed between enqueue and execution is not an
			// error worth retrying.
			if errors.Is(err, receipt.ErrInvalidState) || errors.Is(err, receipt.ErrNotFound) {
				logger.Info("rescore skipped", slog.Any("reason", err))
				continue
			}
			resultErr = err
			logger.Error("rescore receipt", slog.Any("error", err))
			return resultErr
		}
		if len(matches) > 0 {
			logger.Info("receipt rescored", slog.Int("linked", len(matches)))
		}
	}
	return resultErr
}

func (j *RescoreJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReceiptRescore))
	}
	return slog.Default().With(slog.String("job", TaskReceiptRescore))
}

func (j *RescoreJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
