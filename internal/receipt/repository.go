package receipt

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	CreateReceipt(ctx context.Context, rec Receipt) (int64, error)
	InsertLine(ctx context.Context, line Line) error
	ReplaceAllocations(ctx context.Context, receiptID int64, rows []allocation.Row) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateLineMatch(ctx context.Context, lineID int64, orderLineID int64, score float64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get returns receipt header, lines and allocation rows.
func (r *Repository) Get(ctx context.Context, id int64) (Receipt, []Line, []allocation.Row, error) {
	var rec Receipt
	var status string
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT id, number, order_id, supplier_id, total, status, COALESCE(issued_at, 'epoch'::timestamptz), COALESCE(received_at, 'epoch'::timestamptz), note, created_at
FROM receipts WHERE id=$1`, id).
		Scan(&rec.ID, &rec.Number, &rec.OrderID, &rec.SupplierID, &total, &status, &rec.IssuedAt, &rec.ReceivedAt, &rec.Note, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, nil, nil, ErrNotFound
		}
		return Receipt{}, nil, nil, err
	}
	rec.Status = Status(status)
	if total.Valid {
		f, _ := total.Float64Value()
		rec.Total = f.Float64
	}

	lines, err := r.lines(ctx, id)
	if err != nil {
		return Receipt{}, nil, nil, err
	}
	rows, err := r.allocationRows(ctx, id)
	if err != nil {
		return Receipt{}, nil, nil, err
	}
	return rec, lines, rows, nil
}

func (r *Repository) lines(ctx context.Context, receiptID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, receipt_id, code, description, qty, unit_price, COALESCE(matched_order_line_id, 0), COALESCE(match_score, 0)
FROM receipt_lines WHERE receipt_id=$1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		var qty, price pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.ReceiptID, &line.Code, &line.Description, &qty, &price, &line.MatchedOrderLineID, &line.MatchScore); err != nil {
			return nil, err
		}
		if qty.Valid {
			f, _ := qty.Float64Value()
			line.Qty = f.Float64
		}
		if price.Valid {
			f, _ := price.Float64Value()
			line.UnitPrice = f.Float64
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *Repository) allocationRows(ctx context.Context, receiptID int64) ([]allocation.Row, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE(cost_center_id, 0), COALESCE(chart_account_id, 0), amount, percentage
FROM receipt_allocations WHERE receipt_id=$1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []allocation.Row
	for rows.Next() {
		var row allocation.Row
		if err := rows.Scan(&row.CostCenterID, &row.ChartOfAccountsID, &row.Amount, &row.Percentage); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListDraftIDs returns the ids of draft receipts, oldest first.
func (r *Repository) ListDraftIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM receipts WHERE status=$1 ORDER BY created_at ASC`, string(StatusDraft))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByOrder returns receipts recorded against a purchase order.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, order_id, supplier_id, total, status, COALESCE(issued_at, 'epoch'::timestamptz), COALESCE(received_at, 'epoch'::timestamptz), note, created_at
FROM receipts WHERE order_id=$1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		var rec Receipt
		var status string
		var total pgtype.Numeric
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.OrderID, &rec.SupplierID, &total, &status, &rec.IssuedAt, &rec.ReceivedAt, &rec.Note, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		if total.Valid {
			f, _ := total.Float64Value()
			rec.Total = f.Float64
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (tx *txRepo) CreateReceipt(ctx context.Context, rec Receipt) (int64, error) {
	var issued, received pgtype.Timestamptz
	if !rec.IssuedAt.IsZero() {
		issued = pgtype.Timestamptz{Time: rec.IssuedAt, Valid: true}
	}
	if !rec.ReceivedAt.IsZero() {
		received = pgtype.Timestamptz{Time: rec.ReceivedAt, Valid: true}
	}
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO receipts (number, order_id, supplier_id, total, status, issued_at, received_at, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		rec.Number, rec.OrderID, rec.SupplierID, rec.Total, string(rec.Status), issued, received, rec.Note).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertLine(ctx context.Context, line Line) error {
	var matched pgtype.Int8
	if line.MatchedOrderLineID != 0 {
		matched = pgtype.Int8{Int64: line.MatchedOrderLineID, Valid: true}
	}
	_, err := tx.tx.Exec(ctx, `INSERT INTO receipt_lines (receipt_id, code, description, qty, unit_price, matched_order_line_id, match_score)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		line.ReceiptID, line.Code, line.Description, line.Qty, line.UnitPrice, matched, line.MatchScore)
	return err
}

func (tx *txRepo) ReplaceAllocations(ctx context.Context, receiptID int64, rows []allocation.Row) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM receipt_allocations WHERE receipt_id=$1`, receiptID); err != nil {
		return err
	}
	for _, row := range rows {
		var cc, ca pgtype.Int8
		if row.CostCenterID != 0 {
			cc = pgtype.Int8{Int64: row.CostCenterID, Valid: true}
		}
		if row.ChartOfAccountsID != 0 {
			ca = pgtype.Int8{Int64: row.ChartOfAccountsID, Valid: true}
		}
		if _, err := tx.tx.Exec(ctx, `INSERT INTO receipt_allocations (receipt_id, cost_center_id, chart_account_id, amount, percentage)
VALUES ($1, $2, $3, $4, $5)`, receiptID, cc, ca, row.Amount, row.Percentage); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) UpdateLineMatch(ctx context.Context, lineID int64, orderLineID int64, score float64) error {
	var matched pgtype.Int8
	if orderLineID != 0 {
		matched = pgtype.Int8{Int64: orderLineID, Valid: true}
	}
	tag, err := tx.tx.Exec(ctx, `UPDATE receipt_lines SET matched_order_line_id=$1, match_score=$2 WHERE id=$3`, matched, score, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE receipts SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
