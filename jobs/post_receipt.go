package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/procura-erp/procura-erp/internal/finance"
	jobmetrics "github.com/procura-erp/procura-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PostReceiptJob posts confirmed receipts into the general ledger.
type PostReceiptJob struct {
	Finance *finance.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPostReceiptJob wires dependencies for the posting handler.
func NewPostReceiptJob(financeSvc *finance.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *PostReceiptJob {
	return &PostReceiptJob{Finance: financeSvc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskERPPostReceipt tasks.
func (j *PostReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Finance == nil {
		return errors.New("post receipt: handler not configured")
	}
	var payload PostReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ReceiptID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskERPPostReceipt)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("receipt_id", payload.ReceiptID))
	if err := j.Finance.PostReceipt(ctx, payload.ReceiptID); err != nil {
		resultErr = err
		logger.Error("post receipt", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPosting("RECEIPT", 1)
	logger.Info("receipt posted to ledger")
	return resultErr
}

func (j *PostReceiptJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskERPPostReceipt))
	}
	return slog.Default().With(slog.String("job", TaskERPPostReceipt))
}

func (j *PostReceiptJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
