package masterdata

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura-erp/internal/shared"
)

// RepositoryPort describes persistence operations used by Service.
type RepositoryPort interface {
	ListCostCenters(ctx context.Context, onlyActive bool) ([]CostCenter, error)
	CreateCostCenter(ctx context.Context, cc CostCenter) (int64, error)
	UpdateCostCenter(ctx context.Context, cc CostCenter) error
	ListChartAccounts(ctx context.Context, onlyActive bool) ([]ChartAccount, error)
	CreateChartAccount(ctx context.Context, acc ChartAccount) (int64, error)
	UpdateChartAccount(ctx context.Context, acc ChartAccount) error
	ListSuppliers(ctx context.Context, filter SupplierFilter, limit, offset int) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, sup Supplier) (int64, error)
	UpdateSupplier(ctx context.Context, sup Supplier) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCostCenters returns all cost centers ordered by id.
func (r *Repository) ListCostCenters(ctx context.Context, onlyActive bool) ([]CostCenter, error) {
	sql := `SELECT id, parent_id, name, active, created_at FROM cost_centers`
	if onlyActive {
		sql += ` WHERE active`
	}
	sql += ` ORDER BY id`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CostCenter
	for rows.Next() {
		var cc CostCenter
		var parent pgtype.Int8
		if err := rows.Scan(&cc.ID, &parent, &cc.Name, &cc.Active, &cc.CreatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			cc.ParentID = &parent.Int64
		}
		items = append(items, cc)
	}
	return items, rows.Err()
}

// CreateCostCenter inserts a cost center and returns its id.
func (r *Repository) CreateCostCenter(ctx context.Context, cc CostCenter) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO cost_centers (parent_id, name, active) VALUES ($1, $2, $3) RETURNING id`,
		nullInt8(cc.ParentID), cc.Name, cc.Active).Scan(&id)
	return id, err
}

// UpdateCostCenter updates name, parent and active flag.
func (r *Repository) UpdateCostCenter(ctx context.Context, cc CostCenter) error {
	tag, err := r.pool.Exec(ctx, `UPDATE cost_centers SET parent_id=$1, name=$2, active=$3 WHERE id=$4`,
		nullInt8(cc.ParentID), cc.Name, cc.Active, cc.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListChartAccounts returns the chart of accounts ordered by id.
func (r *Repository) ListChartAccounts(ctx context.Context, onlyActive bool) ([]ChartAccount, error) {
	sql := `SELECT id, parent_id, name, payable, active, created_at FROM chart_accounts`
	if onlyActive {
		sql += ` WHERE active`
	}
	sql += ` ORDER BY id`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ChartAccount
	for rows.Next() {
		var acc ChartAccount
		var parent pgtype.Int8
		if err := rows.Scan(&acc.ID, &parent, &acc.Name, &acc.Payable, &acc.Active, &acc.CreatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			acc.ParentID = &parent.Int64
		}
		items = append(items, acc)
	}
	return items, rows.Err()
}

// CreateChartAccount inserts an account and returns its id.
func (r *Repository) CreateChartAccount(ctx context.Context, acc ChartAccount) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO chart_accounts (parent_id, name, payable, active) VALUES ($1, $2, $3, $4) RETURNING id`,
		nullInt8(acc.ParentID), acc.Name, acc.Payable, acc.Active).Scan(&id)
	return id, err
}

// UpdateChartAccount updates name, parent, payable and active flags.
func (r *Repository) UpdateChartAccount(ctx context.Context, acc ChartAccount) error {
	tag, err := r.pool.Exec(ctx, `UPDATE chart_accounts SET parent_id=$1, name=$2, payable=$3, active=$4 WHERE id=$5`,
		nullInt8(acc.ParentID), acc.Name, acc.Payable, acc.Active, acc.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListSuppliers returns suppliers matching the filter plus a total count.
func (r *Repository) ListSuppliers(ctx context.Context, filter SupplierFilter, limit, offset int) ([]Supplier, int, error) {
	countSQL := `SELECT COUNT(*) FROM suppliers WHERE 1=1`
	dataSQL := `SELECT id, name, trade_name, cnpj, email, phone, active, created_at FROM suppliers WHERE 1=1`
	args := []any{}
	argNum := 1
	if filter.Search != "" {
		clause := ` AND (name ILIKE $` + itoa(argNum) + ` OR cnpj LIKE $` + itoa(argNum+1) + `)`
		countSQL += clause
		dataSQL += clause
		args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
		argNum += 2
	}
	if filter.OnlyActive {
		countSQL += ` AND active`
		dataSQL += ` AND active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL += ` ORDER BY name ASC LIMIT $` + itoa(argNum) + ` OFFSET $` + itoa(argNum+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.TradeName, &sup.CNPJ, &sup.Email, &sup.Phone, &sup.Active, &sup.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, sup)
	}
	return items, total, rows.Err()
}

// GetSupplier fetches a supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var sup Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name, trade_name, cnpj, email, phone, active, created_at FROM suppliers WHERE id=$1`, id).
		Scan(&sup.ID, &sup.Name, &sup.TradeName, &sup.CNPJ, &sup.Email, &sup.Phone, &sup.Active, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, shared.ErrNotFound
		}
		return Supplier{}, err
	}
	return sup, nil
}

// CreateSupplier inserts a supplier and returns its id.
func (r *Repository) CreateSupplier(ctx context.Context, sup Supplier) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, trade_name, cnpj, email, phone, active) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		sup.Name, sup.TradeName, sup.CNPJ, sup.Email, sup.Phone, sup.Active).Scan(&id)
	return id, err
}

// UpdateSupplier updates registration fields.
func (r *Repository) UpdateSupplier(ctx context.Context, sup Supplier) error {
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET name=$1, trade_name=$2, cnpj=$3, email=$4, phone=$5, active=$6 WHERE id=$7`,
		sup.Name, sup.TradeName, sup.CNPJ, sup.Email, sup.Phone, sup.Active, sup.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func nullInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
