package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one entry of the procurement audit trail. Action holds
// the dotted operation name ("requisition.approve", "receipt.confirm"),
// Entity the document kind and EntityID its identifier. Meta carries
// operation-specific context and is stored as JSON.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends entries to the audit_logs table. Services treat
// it as best effort and never fail an operation over a trail write.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger builds a logger backed by pool.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists one trail entry. A zero At is filled with the
// current time.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not configured")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit entry requires action, entity and entity id")
	}
	if log.At.IsZero() {
		log.At = time.Now()
	}
	meta, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ActorID, log.Action, log.Entity, log.EntityID, meta, log.At)
	return err
}
