package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates master-data reads and writes. Tree reads go
// through the versioned cache; every write bumps the version.
type Service struct {
	repo     RepositoryPort
	cache    *Cache
	validate *validator.Validate
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the master-data service.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		validate: validator.New(),
		audit:    audit,
		logger:   logger,
	}
}

// TreeView bundles a rendered tree with its initial expansion state.
type TreeView struct {
	Groups []allocation.Group `json:"groups"`
	Expand allocation.Expand  `json:"expand"`
}

// CostCenterTree returns the three-level cost-center tree.
func (s *Service) CostCenterTree(ctx context.Context) (TreeView, error) {
	key, err := s.cache.BuildKey(ctx, "masterdata", "costcenters", "tree")
	if err != nil {
		return TreeView{}, err
	}
	var view TreeView
	err = s.cache.FetchJSON(ctx, key, &view, func(ctx context.Context) (interface{}, error) {
		nodes, err := s.CostCenterNodes(ctx)
		if err != nil {
			return nil, err
		}
		groups := allocation.BuildCostCenterTree(nodes)
		return TreeView{Groups: groups, Expand: allocation.InitialExpand(groups)}, nil
	})
	if err != nil {
		return TreeView{}, err
	}
	return view, nil
}

// ChartAccountTree returns the payable-gated chart-of-accounts tree.
func (s *Service) ChartAccountTree(ctx context.Context) (TreeView, error) {
	key, err := s.cache.BuildKey(ctx, "masterdata", "chartaccounts", "tree")
	if err != nil {
		return TreeView{}, err
	}
	var view TreeView
	err = s.cache.FetchJSON(ctx, key, &view, func(ctx context.Context) (interface{}, error) {
		nodes, err := s.ChartAccountNodes(ctx)
		if err != nil {
			return nil, err
		}
		groups := allocation.BuildChartOfAccountsTree(nodes)
		return TreeView{Groups: groups, Expand: allocation.InitialExpand(groups)}, nil
	})
	if err != nil {
		return TreeView{}, err
	}
	return view, nil
}

// CostCenterNodes returns active cost centers as canonical nodes.
func (s *Service) CostCenterNodes(ctx context.Context) ([]allocation.Node, error) {
	items, err := s.repo.ListCostCenters(ctx, true)
	if err != nil {
		return nil, err
	}
	return costCenterNodes(items), nil
}

// ChartAccountNodes returns active accounts as canonical nodes.
func (s *Service) ChartAccountNodes(ctx context.Context) ([]allocation.Node, error) {
	items, err := s.repo.ListChartAccounts(ctx, true)
	if err != nil {
		return nil, err
	}
	return chartAccountNodes(items), nil
}

// CreateCostCenter validates and persists a cost center.
func (s *Service) CreateCostCenter(ctx context.Context, cc CostCenter) (CostCenter, error) {
	cc.Name = strings.TrimSpace(cc.Name)
	if cc.Name == "" {
		return CostCenter{}, fmt.Errorf("%w: nome obrigatório", shared.ErrValidation)
	}
	cc.Active = true
	id, err := s.repo.CreateCostCenter(ctx, cc)
	if err != nil {
		return CostCenter{}, err
	}
	cc.ID = id
	s.invalidate(ctx)
	s.recordAudit(ctx, "COSTCENTER_CREATE", id, map[string]any{"name": cc.Name})
	return cc, nil
}

// UpdateCostCenter validates and updates a cost center.
func (s *Service) UpdateCostCenter(ctx context.Context, cc CostCenter) error {
	cc.Name = strings.TrimSpace(cc.Name)
	if cc.ID == 0 || cc.Name == "" {
		return fmt.Errorf("%w: id e nome obrigatórios", shared.ErrValidation)
	}
	if err := s.repo.UpdateCostCenter(ctx, cc); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "COSTCENTER_UPDATE", cc.ID, map[string]any{"name": cc.Name})
	return nil
}

// CreateChartAccount validates and persists an account.
func (s *Service) CreateChartAccount(ctx context.Context, acc ChartAccount) (ChartAccount, error) {
	acc.Name = strings.TrimSpace(acc.Name)
	if acc.Name == "" {
		return ChartAccount{}, fmt.Errorf("%w: nome obrigatório", shared.ErrValidation)
	}
	acc.Active = true
	id, err := s.repo.CreateChartAccount(ctx, acc)
	if err != nil {
		return ChartAccount{}, err
	}
	acc.ID = id
	s.invalidate(ctx)
	s.recordAudit(ctx, "CHARTACCOUNT_CREATE", id, map[string]any{"name": acc.Name, "payable": acc.Payable})
	return acc, nil
}

// UpdateChartAccount validates and updates an account.
func (s *Service) UpdateChartAccount(ctx context.Context, acc ChartAccount) error {
	acc.Name = strings.TrimSpace(acc.Name)
	if acc.ID == 0 || acc.Name == "" {
		return fmt.Errorf("%w: id e nome obrigatórios", shared.ErrValidation)
	}
	if err := s.repo.UpdateChartAccount(ctx, acc); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, "CHARTACCOUNT_UPDATE", acc.ID, map[string]any{"name": acc.Name, "payable": acc.Payable})
	return nil
}

// ListSuppliers returns suppliers matching the filter with pagination.
func (s *Service) ListSuppliers(ctx context.Context, filter SupplierFilter, limit, offset int) ([]Supplier, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListSuppliers(ctx, filter, limit, offset)
}

// GetSupplier fetches one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// CreateSupplier validates registration data and persists the supplier.
func (s *Service) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	sup.CNPJ = digitsOnly(sup.CNPJ)
	sup.Active = true
	if err := s.validate.Struct(sup); err != nil {
		return Supplier{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	id, err := s.repo.CreateSupplier(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	sup.ID = id
	s.recordAudit(ctx, "SUPPLIER_CREATE", id, map[string]any{"name": sup.Name, "cnpj": sup.CNPJ})
	return sup, nil
}

// UpdateSupplier validates and updates a supplier.
func (s *Service) UpdateSupplier(ctx context.Context, sup Supplier) error {
	if sup.ID == 0 {
		return fmt.Errorf("%w: id obrigatório", shared.ErrValidation)
	}
	sup.Name = strings.TrimSpace(sup.Name)
	sup.CNPJ = digitsOnly(sup.CNPJ)
	if err := s.validate.Struct(sup); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := s.repo.UpdateSupplier(ctx, sup); err != nil {
		return err
	}
	s.recordAudit(ctx, "SUPPLIER_UPDATE", sup.ID, map[string]any{"name": sup.Name})
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("bump masterdata cache", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "masterdata", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
