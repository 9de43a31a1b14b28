package masterdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura-erp/internal/shared"
)

type memoryRepo struct {
	costCenters   []CostCenter
	chartAccounts []ChartAccount
	suppliers     []Supplier
	nextID        int64
	ccListCalls   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1}
}

func (m *memoryRepo) ListCostCenters(_ context.Context, onlyActive bool) ([]CostCenter, error) {
	m.ccListCalls++
	var out []CostCenter
	for _, cc := range m.costCenters {
		if onlyActive && !cc.Active {
			continue
		}
		out = append(out, cc)
	}
	return out, nil
}

func (m *memoryRepo) CreateCostCenter(_ context.Context, cc CostCenter) (int64, error) {
	cc.ID = m.nextID
	m.nextID++
	cc.CreatedAt = time.Now()
	m.costCenters = append(m.costCenters, cc)
	return cc.ID, nil
}

func (m *memoryRepo) UpdateCostCenter(_ context.Context, cc CostCenter) error {
	for i := range m.costCenters {
		if m.costCenters[i].ID == cc.ID {
			m.costCenters[i] = cc
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) ListChartAccounts(_ context.Context, onlyActive bool) ([]ChartAccount, error) {
	var out []ChartAccount
	for _, acc := range m.chartAccounts {
		if onlyActive && !acc.Active {
			continue
		}
		out = append(out, acc)
	}
	return out, nil
}

func (m *memoryRepo) CreateChartAccount(_ context.Context, acc ChartAccount) (int64, error) {
	acc.ID = m.nextID
	m.nextID++
	m.chartAccounts = append(m.chartAccounts, acc)
	return acc.ID, nil
}

func (m *memoryRepo) UpdateChartAccount(_ context.Context, acc ChartAccount) error {
	for i := range m.chartAccounts {
		if m.chartAccounts[i].ID == acc.ID {
			m.chartAccounts[i] = acc
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) ListSuppliers(_ context.Context, filter SupplierFilter, limit, offset int) ([]Supplier, int, error) {
	return m.suppliers, len(m.suppliers), nil
}

func (m *memoryRepo) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	for _, sup := range m.suppliers {
		if sup.ID == id {
			return sup, nil
		}
	}
	return Supplier{}, shared.ErrNotFound
}

func (m *memoryRepo) CreateSupplier(_ context.Context, sup Supplier) (int64, error) {
	sup.ID = m.nextID
	m.nextID++
	m.suppliers = append(m.suppliers, sup)
	return sup.ID, nil
}

func (m *memoryRepo) UpdateSupplier(_ context.Context, sup Supplier) error {
	for i := range m.suppliers {
		if m.suppliers[i].ID == sup.ID {
			m.suppliers[i] = sup
			return nil
		}
	}
	return shared.ErrNotFound
}

func newTestService(t *testing.T, repo RepositoryPort) (*Service, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache, nil, nil), srv
}

func seedCostCenters(repo *memoryRepo) {
	root := int64(1)
	child := int64(2)
	repo.costCenters = []CostCenter{
		{ID: 1, Name: "Operações", Active: true},
		{ID: 2, ParentID: &root, Name: "Logística", Active: true},
		{ID: 3, ParentID: &child, Name: "Frota", Active: true},
	}
	repo.nextID = 4
}

func TestCostCenterTreeCachesSecondRead(t *testing.T) {
	repo := newMemoryRepo()
	seedCostCenters(repo)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.CostCenterTree(ctx)
	require.NoError(t, err)
	require.Len(t, first.Groups, 1)
	require.Equal(t, "Operações", first.Groups[0].Parent.Name)
	require.Equal(t, 1, repo.ccListCalls)

	second, err := svc.CostCenterTree(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.ccListCalls, "second read must come from cache")
}

func TestCostCenterWriteInvalidatesTree(t *testing.T) {
	repo := newMemoryRepo()
	seedCostCenters(repo)
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.CostCenterTree(ctx)
	require.NoError(t, err)

	_, err = svc.CreateCostCenter(ctx, CostCenter{Name: "Comercial"})
	require.NoError(t, err)

	view, err := svc.CostCenterTree(ctx)
	require.NoError(t, err)
	require.Len(t, view.Groups, 2)
	require.Equal(t, 2, repo.ccListCalls, "bump must force a reload")
}

func TestChartAccountTreeAppliesPayableGate(t *testing.T) {
	repo := newMemoryRepo()
	root := int64(10)
	repo.chartAccounts = []ChartAccount{
		{ID: 10, Name: "Despesas", Active: true},
		{ID: 11, ParentID: &root, Name: "Pagável", Payable: true, Active: true},
		{ID: 12, ParentID: &root, Name: "Sintética", Payable: false, Active: true},
	}
	repo.nextID = 13
	svc, _ := newTestService(t, repo)

	view, err := svc.ChartAccountTree(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Groups, 1)
	require.Len(t, view.Groups[0].Children, 1)
	require.Equal(t, "Pagável", view.Groups[0].Children[0].Node.Name)
	require.True(t, view.Groups[0].Children[0].Selectable)
}

func TestCreateSupplierNormalizesCNPJ(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)

	sup, err := svc.CreateSupplier(context.Background(), Supplier{
		Name: "Fornecedor Alfa",
		CNPJ: "12.345.678/0001-90",
	})
	require.NoError(t, err)
	require.Equal(t, "12345678000190", sup.CNPJ)
	require.True(t, sup.Active)
}

func TestCreateSupplierRejectsInvalidPayload(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(t, repo)

	_, err := svc.CreateSupplier(context.Background(), Supplier{Name: "X", CNPJ: "123"})
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrValidation))
	require.Empty(t, repo.suppliers)
}
