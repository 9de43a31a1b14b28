package rfq

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

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
	CreateRFQ(ctx context.Context, rfq RFQ) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	CreateQuote(ctx context.Context, quote Quote) (int64, error)
	InsertQuoteLine(ctx context.Context, line QuoteLine) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetAwardedSupplier(ctx context.Context, id int64, supplierID int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get returns an RFQ with its items.
func (r *Repository) Get(ctx context.Context, id int64) (RFQ, []Item, error) {
	var rfq RFQ
	var status string
	var awarded pgtype.Int8
	err := r.pool.QueryRow(ctx, `SELECT id, number, requisition_id, status, COALESCE(deadline, 'epoch'::timestamptz), note, awarded_supplier_id, created_at
FROM rfqs WHERE id=$1`, id).
		Scan(&rfq.ID, &rfq.Number, &rfq.RequisitionID, &status, &rfq.Deadline, &rfq.Note, &awarded, &rfq.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RFQ{}, nil, ErrNotFound
		}
		return RFQ{}, nil, err
	}
	rfq.Status = Status(status)
	if awarded.Valid {
		rfq.AwardedSupplierID = awarded.Int64
	}

	rows, err := r.pool.Query(ctx, `SELECT id, rfq_id, code, description, qty FROM rfq_items WHERE rfq_id=$1 ORDER BY id`, id)
	if err != nil {
		return RFQ{}, nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		var qty pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.RFQID, &item.Code, &item.Description, &qty); err != nil {
			return RFQ{}, nil, err
		}
		if qty.Valid {
			f, _ := qty.Float64Value()
			item.Qty = f.Float64
		}
		items = append(items, item)
	}
	return rfq, items, rows.Err()
}

// QuotesByRFQ assembles supplier quotes keyed by item, ordered by the
// time each quote arrived.
func (r *Repository) QuotesByRFQ(ctx context.Context, rfqID int64) ([]SupplierQuote, error) {
	rows, err := r.pool.Query(ctx, `SELECT q.supplier_id, l.item_id, l.unit_price
FROM rfq_quotes q
JOIN rfq_quote_lines l ON l.quote_id = q.id
WHERE q.rfq_id = $1
ORDER BY q.received_at, q.id, l.id`, rfqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var order []int64
	bySupplier := make(map[int64]map[int64]float64)
	for rows.Next() {
		var supplierID, itemID int64
		var price pgtype.Numeric
		if err := rows.Scan(&supplierID, &itemID, &price); err != nil {
			return nil, err
		}
		prices, ok := bySupplier[supplierID]
		if !ok {
			prices = make(map[int64]float64)
			bySupplier[supplierID] = prices
			order = append(order, supplierID)
		}
		if price.Valid {
			f, _ := price.Float64Value()
			prices[itemID] = f.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	quotes := make([]SupplierQuote, 0, len(order))
	for _, supplierID := range order {
		quotes = append(quotes, SupplierQuote{SupplierID: supplierID, Prices: bySupplier[supplierID]})
	}
	return quotes, nil
}

// ListByRequisition returns RFQs raised for a requisition.
func (r *Repository) ListByRequisition(ctx context.Context, requisitionID int64) ([]RFQ, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, requisition_id, status, COALESCE(deadline, 'epoch'::timestamptz), note, awarded_supplier_id, created_at
FROM rfqs WHERE requisition_id=$1 ORDER BY created_at DESC`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RFQ
	for rows.Next() {
		var rfq RFQ
		var status string
		var awarded pgtype.Int8
		if err := rows.Scan(&rfq.ID, &rfq.Number, &rfq.RequisitionID, &status, &rfq.Deadline, &rfq.Note, &awarded, &rfq.CreatedAt); err != nil {
			return nil, err
		}
		rfq.Status = Status(status)
		if awarded.Valid {
			rfq.AwardedSupplierID = awarded.Int64
		}
		out = append(out, rfq)
	}
	return out, rows.Err()
}

func (tx *txRepo) CreateRFQ(ctx context.Context, rfq RFQ) (int64, error) {
	var deadline pgtype.Timestamptz
	if !rfq.Deadline.IsZero() {
		deadline = pgtype.Timestamptz{Time: rfq.Deadline, Valid: true}
	}
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO rfqs (number, requisition_id, status, deadline, note)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rfq.Number, rfq.RequisitionID, string(rfq.Status), deadline, rfq.Note).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO rfq_items (rfq_id, code, description, qty)
VALUES ($1, $2, $3, $4) RETURNING id`,
		item.RFQID, item.Code, item.Description, item.Qty).Scan(&id)
	return id, err
}

func (tx *txRepo) CreateQuote(ctx context.Context, quote Quote) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO rfq_quotes (rfq_id, supplier_id, received_at, note)
VALUES ($1, $2, $3, $4) RETURNING id`,
		quote.RFQID, quote.SupplierID, quote.ReceivedAt, quote.Note).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertQuoteLine(ctx context.Context, line QuoteLine) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO rfq_quote_lines (quote_id, item_id, unit_price)
VALUES ($1, $2, $3)`, line.QuoteID, line.ItemID, line.UnitPrice)
	return err
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE rfqs SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) SetAwardedSupplier(ctx context.Context, id int64, supplierID int64) error {
	_, err := tx.tx.Exec(ctx, `UPDATE rfqs SET awarded_supplier_id=$1 WHERE id=$2`, supplierID, id)
	return err
}
