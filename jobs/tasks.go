// Package jobs contains Asynq task definitions and the worker runtime.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskERPPostReceipt posts a confirmed receipt into the ledger.
	TaskERPPostReceipt = "erp:post_receipt"
	// TaskReceiptRescore re-runs line matching on a draft receipt.
	TaskReceiptRescore = "receipt:rescore"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "erp:idempotency_cleanup"
)

// PostReceiptPayload identifies the receipt to post.
type PostReceiptPayload struct {
	ReceiptID int64 `json:"receipt_id"`
}

// NewPostReceiptTask constructs a posting task.
func NewPostReceiptTask(receiptID int64) (*asynq.Task, error) {
	data, err := json.Marshal(PostReceiptPayload{ReceiptID: receiptID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskERPPostReceipt, data, asynq.Queue(QueueDefault)), nil
}

// RescorePayload identifies the receipt whose lines get rescored.
type RescorePayload struct {
	ReceiptID int64 `json:"receipt_id"`
}

// NewRescoreTask constructs a rescore task.
func NewRescoreTask(receiptID int64) (*asynq.Task, error) {
	data, err := json.Marshal(RescorePayload{ReceiptID: receiptID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptRescore, data, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload bounds the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}
