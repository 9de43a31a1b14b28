package receipt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/receipt/matching"
	"github.com/procura-erp/procura-erp/internal/requisition"
)

type memRepo struct {
	receipts    map[int64]*Receipt
	lines       map[int64][]Line
	allocations map[int64][]allocation.Row
	nextID      int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		receipts:    map[int64]*Receipt{},
		lines:       map[int64][]Line{},
		allocations: map[int64][]allocation.Row{},
		nextID:      1,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) Get(_ context.Context, id int64) (Receipt, []Line, []allocation.Row, error) {
	rec, ok := m.receipts[id]
	if !ok {
		return Receipt{}, nil, nil, ErrNotFound
	}
	return *rec, m.lines[id], m.allocations[id], nil
}

func (m *memRepo) ListDraftIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	for id, rec := range m.receipts {
		if rec.Status == StatusDraft {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memRepo) ListByOrder(_ context.Context, orderID int64) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range m.receipts {
		if rec.OrderID == orderID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memRepo) CreateReceipt(_ context.Context, rec Receipt) (int64, error) {
	id := m.nextID
	m.nextID++
	rec.ID = id
	m.receipts[id] = &rec
	return id, nil
}

func (m *memRepo) InsertLine(_ context.Context, line Line) error {
	line.ID = m.nextID
	m.nextID++
	m.lines[line.ReceiptID] = append(m.lines[line.ReceiptID], line)
	return nil
}

func (m *memRepo) UpdateLineMatch(_ context.Context, lineID int64, orderLineID int64, score float64) error {
	for receiptID, lines := range m.lines {
		for i := range lines {
			if lines[i].ID == lineID {
				m.lines[receiptID][i].MatchedOrderLineID = orderLineID
				m.lines[receiptID][i].MatchScore = score
				return nil
			}
		}
	}
	return ErrNotFound
}

func (m *memRepo) ReplaceAllocations(_ context.Context, receiptID int64, rows []allocation.Row) error {
	m.allocations[receiptID] = append([]allocation.Row(nil), rows...)
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	rec, ok := m.receipts[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	return nil
}

type fakeOrders struct {
	status requisition.OrderStatus
	extra  []requisition.OrderLine
}

func (f *fakeOrders) GetOrder(context.Context, int64) (requisition.PurchaseOrder, []requisition.OrderLine, error) {
	status := f.status
	if status == "" {
		status = requisition.OrderStatusOpen
	}
	lines := []requisition.OrderLine{
		{ID: 51, Code: "ABC-1", Description: "Parafuso sextavado", Qty: 100, UnitPrice: 1},
		{ID: 52, Code: "XYZ-9", Description: "Cabo HDMI 2m", Qty: 10, UnitPrice: 20},
	}
	return requisition.PurchaseOrder{ID: 5, SupplierID: 3, Status: status}, append(lines, f.extra...), nil
}

type fakeMasterData struct{}

func (fakeMasterData) CostCenterNodes(context.Context) ([]allocation.Node, error) {
	root := int64(1)
	return []allocation.Node{
		{ID: 1, Name: "Operações"},
		{ID: 2, ParentID: &root, Name: "Logística"},
	}, nil
}

func (fakeMasterData) ChartAccountNodes(context.Context) ([]allocation.Node, error) {
	root := int64(10)
	return []allocation.Node{
		{ID: 10, Name: "Despesas"},
		{ID: 11, ParentID: &root, Name: "Materiais", Payable: true},
	}, nil
}

type fakeQueue struct {
	enqueued []int64
	rescores []int64
}

func (f *fakeQueue) EnqueuePostReceipt(_ context.Context, receiptID int64) error {
	f.enqueued = append(f.enqueued, receiptID)
	return nil
}

func (f *fakeQueue) EnqueueRescore(_ context.Context, receiptID int64) error {
	f.rescores = append(f.rescores, receiptID)
	return nil
}

func newTestService() (*Service, *memRepo, *fakeQueue) {
	svc, repo, queue, _ := newTestServiceWithOrders()
	return svc, repo, queue
}

func newTestServiceWithOrders() (*Service, *memRepo, *fakeQueue, *fakeOrders) {
	repo := newMemRepo()
	queue := &fakeQueue{}
	orders := &fakeOrders{}
	svc := NewService(repo, orders, fakeMasterData{}, queue, nil, nil)
	return svc, repo, queue, orders
}

func TestCreateAutoMatchesLines(t *testing.T) {
	svc, repo, _ := newTestService()

	rec, matches, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-100",
		OrderID: 5,
		Lines: []matching.LineItem{
			{Code: "ABC-1", Description: "Parafuso", Quantity: 100, UnitPrice: 1},
			{Description: "Cabo HDMI 2m premium", Quantity: 10, UnitPrice: 20},
			{Description: "Frete expresso", Quantity: 1, UnitPrice: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, rec.Status)
	require.InDelta(t, 350.0, rec.Total, 0.001)

	lines := repo.lines[rec.ID]
	require.Len(t, lines, 3)
	require.Equal(t, int64(51), lines[0].MatchedOrderLineID, "exact code must match")
	require.Equal(t, 1.0, lines[0].MatchScore)
	require.Equal(t, int64(52), lines[1].MatchedOrderLineID, "description containment must match")
	require.GreaterOrEqual(t, lines[1].MatchScore, 0.7)
	require.Zero(t, lines[2].MatchedOrderLineID, "unrelated line must stay unlinked")
	require.Len(t, matches, 3)
}

func TestCreateRejectsClosedOrder(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &fakeOrders{status: requisition.OrderStatusReceived}, fakeMasterData{}, nil, nil, nil)

	_, _, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-1",
		OrderID: 5,
		Lines:   []matching.LineItem{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestSetAllocationsCompletesAndStores(t *testing.T) {
	svc, repo, _ := newTestService()
	rec, _, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-2",
		OrderID: 5,
		Lines:   []matching.LineItem{{Code: "ABC-1", Quantity: 100, UnitPrice: 1}},
	})
	require.NoError(t, err)

	filled, err := svc.SetAllocations(context.Background(), rec.ID, []allocation.Row{
		{CostCenterID: 2, ChartOfAccountsID: 11, Amount: "40,00"},
		{CostCenterID: 2, ChartOfAccountsID: 11},
	})
	require.NoError(t, err)
	require.Equal(t, "60.00", filled[1].Amount)
	require.True(t, allocation.Reconciled(repo.allocations[rec.ID], rec.Total))
}

func TestSetAllocationsRejectsUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService()
	rec, _, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-3",
		OrderID: 5,
		Lines:   []matching.LineItem{{Code: "ABC-1", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	_, err = svc.SetAllocations(context.Background(), rec.ID, []allocation.Row{
		{CostCenterID: 2, ChartOfAccountsID: 999, Amount: "100,00"},
	})
	require.ErrorIs(t, err, ErrAllocation)
}

func TestConfirmRequiresReconciledAllocations(t *testing.T) {
	svc, _, queue := newTestService()
	rec, _, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-4",
		OrderID: 5,
		Lines:   []matching.LineItem{{Code: "ABC-1", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Confirm(context.Background(), rec.ID, 7), ErrAllocation)
	require.Empty(t, queue.enqueued)

	_, err = svc.SetAllocations(context.Background(), rec.ID, []allocation.Row{
		{CostCenterID: 2, ChartOfAccountsID: 11},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(context.Background(), rec.ID, 7))
	require.Equal(t, []int64{rec.ID}, queue.enqueued)

	stored, _, _, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, stored.Status)

	require.ErrorIs(t, svc.Confirm(context.Background(), rec.ID, 7), ErrInvalidState)
}

func TestRescoreLinksNewOrderLines(t *testing.T) {
	svc, repo, _, orders := newTestServiceWithOrders()
	rec, _, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-6",
		OrderID: 5,
		Lines: []matching.LineItem{
			{Code: "ABC-1", Quantity: 1, UnitPrice: 10},
			{Code: "FRT-1", Description: "Frete expresso", Quantity: 1, UnitPrice: 50},
		},
	})
	require.NoError(t, err)
	require.Zero(t, repo.lines[rec.ID][1].MatchedOrderLineID)

	orders.extra = []requisition.OrderLine{{ID: 53, Code: "FRT-1", Description: "Frete expresso", Qty: 1, UnitPrice: 50}}

	matches, err := svc.Rescore(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1, "only the unlinked line gets rescored")
	require.Equal(t, int64(53), repo.lines[rec.ID][1].MatchedOrderLineID)
	require.Equal(t, int64(51), repo.lines[rec.ID][0].MatchedOrderLineID, "reviewed link must survive")
}

func TestMarkPostedOnlyFromConfirmed(t *testing.T) {
	svc, _, _ := newTestService()
	rec, _, err := svc.Create(context.Background(), CreateInput{
		Number:  "NF-5",
		OrderID: 5,
		Lines:   []matching.LineItem{{Code: "ABC-1", Quantity: 1, UnitPrice: 10}},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkPosted(context.Background(), rec.ID), ErrInvalidState)

	_, err = svc.SetAllocations(context.Background(), rec.ID, []allocation.Row{{CostCenterID: 2, ChartOfAccountsID: 11}})
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(context.Background(), rec.ID, 7))
	require.NoError(t, svc.MarkPosted(context.Background(), rec.ID))

	stored, _, _, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, stored.Status)
}

func TestParseInvoiceXMLPreview(t *testing.T) {
	payload := `<invoice>
	<number>NF-778</number>
	<issued_at>2025-11-03</issued_at>
	<supplier><cnpj>12345678000190</cnpj><name>Alfa Ltda</name></supplier>
	<total>135,50</total>
	<items>
		<item><code>ABC-1</code><description>Parafuso</description><qty>100</qty><unit_price>1,00</unit_price></item>
		<item><description>Frete</description><qty>1</qty><unit_price>35,50</unit_price></item>
	</items>
</invoice>`

	preview, err := ParseInvoiceXML(strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "NF-778", preview.Number)
	require.Equal(t, "12345678000190", preview.SupplierCNPJ)
	require.InDelta(t, 135.50, preview.Total, 0.001)
	require.Len(t, preview.Lines, 2)
	require.InDelta(t, 1.0, preview.Lines[0].UnitPrice, 0.001)
}

func TestParseInvoiceXMLDerivesTotal(t *testing.T) {
	payload := `<invoice>
	<number>NF-9</number>
	<items>
		<item><description>Item</description><qty>2</qty><unit_price>10.25</unit_price></item>
	</items>
</invoice>`

	preview, err := ParseInvoiceXML(strings.NewReader(payload))
	require.NoError(t, err)
	require.InDelta(t, 20.50, preview.Total, 0.001)
}

func TestParseInvoiceXMLRejectsMissingNumber(t *testing.T) {
	_, err := ParseInvoiceXML(strings.NewReader(`<invoice><items><item><qty>1</qty></item></items></invoice>`))
	require.ErrorIs(t, err, ErrValidation)
}
