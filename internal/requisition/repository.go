package requisition

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/platform/db"
)

// ListFilters narrows requisition listings.
type ListFilters struct {
	Status     string
	SupplierID int64
	Search     string
}

// ListItem is a row for the requisition listing.
type ListItem struct {
	ID           int64
	Number       string
	SupplierID   int64
	SupplierName string
	Status       Status
	Total        float64
	CreatedAt    time.Time
}

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
	CreateRequisition(ctx context.Context, req Requisition) (int64, error)
	InsertLine(ctx context.Context, line Line) error
	DeleteLines(ctx context.Context, requisitionID int64) error
	ReplaceAllocations(ctx context.Context, requisitionID int64, rows []allocation.Row) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetStage(ctx context.Context, id int64, stage int) error
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	InsertOrderLine(ctx context.Context, line OrderLine) error
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

// Get returns requisition header, lines and allocation rows.
func (r *Repository) Get(ctx context.Context, id int64) (Requisition, []Line, []allocation.Row, error) {
	var req Requisition
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, requester_id, COALESCE(supplier_id, 0), status, stage, note, COALESCE(need_by, 'epoch'::timestamptz), created_at
FROM requisitions WHERE id=$1`, id).
		Scan(&req.ID, &req.Number, &req.RequesterID, &req.SupplierID, &status, &req.Stage, &req.Note, &req.NeedBy, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, nil, nil, ErrNotFound
		}
		return Requisition{}, nil, nil, err
	}
	req.Status = Status(status)

	lines, err := r.lines(ctx, id)
	if err != nil {
		return Requisition{}, nil, nil, err
	}
	rows, err := r.allocations(ctx, id)
	if err != nil {
		return Requisition{}, nil, nil, err
	}
	return req, lines, rows, nil
}

func (r *Repository) lines(ctx context.Context, requisitionID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, requisition_id, code, description, qty, unit_price, note
FROM requisition_lines WHERE requisition_id=$1 ORDER BY id`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		var qty, price pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.RequisitionID, &line.Code, &line.Description, &qty, &price, &line.Note); err != nil {
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

func (r *Repository) allocations(ctx context.Context, requisitionID int64) ([]allocation.Row, error) {
	rows, err := r.pool.Query(ctx, `SELECT COALESCE(cost_center_id, 0), COALESCE(chart_account_id, 0), amount, percentage
FROM requisition_allocations WHERE requisition_id=$1 ORDER BY id`, requisitionID)
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

// GetOrder fetches a purchase order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []OrderLine, error) {
	var po PurchaseOrder
	var status string
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx, `SELECT id, number, requisition_id, supplier_id, status, total, COALESCE(expected_date, 'epoch'::timestamptz), note, created_at
FROM purchase_orders WHERE id=$1`, id).
		Scan(&po.ID, &po.Number, &po.RequisitionID, &po.SupplierID, &status, &total, &po.ExpectedDate, &po.Note, &po.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	po.Status = OrderStatus(status)
	if total.Valid {
		f, _ := total.Float64Value()
		po.Total = f.Float64
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, code, description, qty, unit_price
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var lines []OrderLine
	for rows.Next() {
		var line OrderLine
		var qty, price pgtype.Numeric
		if err := rows.Scan(&line.ID, &line.OrderID, &line.Code, &line.Description, &qty, &price); err != nil {
			return PurchaseOrder{}, nil, err
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
	return po, lines, rows.Err()
}

// List returns requisitions with supplier name and computed total.
func (r *Repository) List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	countSQL := `SELECT COUNT(*) FROM requisitions q WHERE 1=1`
	args := []any{}
	argNum := 1
	if filters.Status != "" {
		countSQL += ` AND q.status = $` + itoa(argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.SupplierID > 0 {
		countSQL += ` AND q.supplier_id = $` + itoa(argNum)
		args = append(args, filters.SupplierID)
		argNum++
	}
	if filters.Search != "" {
		countSQL += ` AND q.number ILIKE $` + itoa(argNum)
		args = append(args, "%"+filters.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT q.id, q.number, COALESCE(q.supplier_id, 0), COALESCE(s.name, '') AS supplier_name, q.status,
	COALESCE((SELECT SUM(qty * unit_price) FROM requisition_lines WHERE requisition_id = q.id), 0) AS total,
	q.created_at
FROM requisitions q
LEFT JOIN suppliers s ON s.id = q.supplier_id
WHERE 1=1`
	args2 := []any{}
	argNum2 := 1
	if filters.Status != "" {
		dataSQL += ` AND q.status = $` + itoa(argNum2)
		args2 = append(args2, filters.Status)
		argNum2++
	}
	if filters.SupplierID > 0 {
		dataSQL += ` AND q.supplier_id = $` + itoa(argNum2)
		args2 = append(args2, filters.SupplierID)
		argNum2++
	}
	if filters.Search != "" {
		dataSQL += ` AND q.number ILIKE $` + itoa(argNum2)
		args2 = append(args2, "%"+filters.Search+"%")
		argNum2++
	}
	dataSQL += ` ORDER BY q.created_at DESC LIMIT $` + itoa(argNum2) + ` OFFSET $` + itoa(argNum2+1)
	args2 = append(args2, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args2...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []ListItem
	for rows.Next() {
		var item ListItem
		var status string
		var itemTotal pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.Number, &item.SupplierID, &item.SupplierName, &status, &itemTotal, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		item.Status = Status(status)
		if itemTotal.Valid {
			f, _ := itemTotal.Float64Value()
			item.Total = f.Float64
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (tx *txRepo) CreateRequisition(ctx context.Context, req Requisition) (int64, error) {
	var supplierID pgtype.Int8
	if req.SupplierID != 0 {
		supplierID = pgtype.Int8{Int64: req.SupplierID, Valid: true}
	}
	var needBy pgtype.Timestamptz
	if !req.NeedBy.IsZero() {
		needBy = pgtype.Timestamptz{Time: req.NeedBy, Valid: true}
	}
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO requisitions (number, requester_id, supplier_id, status, stage, note, need_by)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		req.Number, req.RequesterID, supplierID, string(req.Status), req.Stage, req.Note, needBy).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertLine(ctx context.Context, line Line) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO requisition_lines (requisition_id, code, description, qty, unit_price, note)
VALUES ($1, $2, $3, $4, $5, $6)`,
		line.RequisitionID, line.Code, line.Description, line.Qty, line.UnitPrice, line.Note)
	return err
}

func (tx *txRepo) DeleteLines(ctx context.Context, requisitionID int64) error {
	_, err := tx.tx.Exec(ctx, `DELETE FROM requisition_lines WHERE requisition_id=$1`, requisitionID)
	return err
}

func (tx *txRepo) ReplaceAllocations(ctx context.Context, requisitionID int64, rows []allocation.Row) error {
	if _, err := tx.tx.Exec(ctx, `DELETE FROM requisition_allocations WHERE requisition_id=$1`, requisitionID); err != nil {
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
		if _, err := tx.tx.Exec(ctx, `INSERT INTO requisition_allocations (requisition_id, cost_center_id, chart_account_id, amount, percentage)
VALUES ($1, $2, $3, $4, $5)`, requisitionID, cc, ca, row.Amount, row.Percentage); err != nil {
			return err
		}
	}
	return nil
}

func (tx *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := tx.tx.Exec(ctx, `UPDATE requisitions SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (tx *txRepo) SetStage(ctx context.Context, id int64, stage int) error {
	_, err := tx.tx.Exec(ctx, `UPDATE requisitions SET stage=$1 WHERE id=$2`, stage, id)
	return err
}

func (tx *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var expected pgtype.Timestamptz
	if !order.ExpectedDate.IsZero() {
		expected = pgtype.Timestamptz{Time: order.ExpectedDate, Valid: true}
	}
	var id int64
	err := tx.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, requisition_id, supplier_id, status, total, expected_date, note)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		order.Number, order.RequisitionID, order.SupplierID, string(order.Status), order.Total, expected, order.Note).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertOrderLine(ctx context.Context, line OrderLine) error {
	_, err := tx.tx.Exec(ctx, `INSERT INTO purchase_order_lines (order_id, code, description, qty, unit_price)
VALUES ($1, $2, $3, $4, $5)`,
		line.OrderID, line.Code, line.Description, line.Qty, line.UnitPrice)
	return err
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
