package rfq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/requisition"
)

type memRepo struct {
	rfqs   map[int64]*RFQ
	items  map[int64][]Item
	quotes map[int64][]SupplierQuote
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		rfqs:   map[int64]*RFQ{},
		items:  map[int64][]Item{},
		quotes: map[int64][]SupplierQuote{},
		nextID: 1,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memRepo) Get(_ context.Context, id int64) (RFQ, []Item, error) {
	rfq, ok := m.rfqs[id]
	if !ok {
		return RFQ{}, nil, ErrNotFound
	}
	return *rfq, m.items[id], nil
}

func (m *memRepo) QuotesByRFQ(_ context.Context, rfqID int64) ([]SupplierQuote, error) {
	return m.quotes[rfqID], nil
}

func (m *memRepo) ListByRequisition(_ context.Context, requisitionID int64) ([]RFQ, error) {
	var out []RFQ
	for _, rfq := range m.rfqs {
		if rfq.RequisitionID == requisitionID {
			out = append(out, *rfq)
		}
	}
	return out, nil
}

func (m *memRepo) CreateRFQ(_ context.Context, rfq RFQ) (int64, error) {
	id := m.nextID
	m.nextID++
	rfq.ID = id
	m.rfqs[id] = &rfq
	return id, nil
}

func (m *memRepo) InsertItem(_ context.Context, item Item) (int64, error) {
	id := m.nextID
	m.nextID++
	item.ID = id
	m.items[item.RFQID] = append(m.items[item.RFQID], item)
	return id, nil
}

func (m *memRepo) CreateQuote(_ context.Context, quote Quote) (int64, error) {
	id := m.nextID
	m.nextID++
	m.quotes[quote.RFQID] = append(m.quotes[quote.RFQID], SupplierQuote{SupplierID: quote.SupplierID, Prices: map[int64]float64{}})
	return id<<32 | quote.RFQID, nil
}

func (m *memRepo) InsertQuoteLine(_ context.Context, line QuoteLine) error {
	rfqID := line.QuoteID & 0xffffffff
	quotes := m.quotes[rfqID]
	quotes[len(quotes)-1].Prices[line.ItemID] = line.UnitPrice
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	rfq, ok := m.rfqs[id]
	if !ok {
		return ErrNotFound
	}
	rfq.Status = status
	return nil
}

func (m *memRepo) SetAwardedSupplier(_ context.Context, id int64, supplierID int64) error {
	rfq, ok := m.rfqs[id]
	if !ok {
		return ErrNotFound
	}
	rfq.AwardedSupplierID = supplierID
	return nil
}

type fakeRequisitions struct {
	status requisition.Status
	lines  []requisition.Line
}

func (f fakeRequisitions) Get(context.Context, int64) (requisition.Requisition, []requisition.Line, []allocation.Row, error) {
	return requisition.Requisition{ID: 1, Number: "REQ-1", Status: f.status}, f.lines, nil, nil
}

func defaultLines() []requisition.Line {
	return []requisition.Line{
		{Code: "A", Description: "Cabo", Qty: 10},
		{Code: "B", Description: "Conector", Qty: 5},
	}
}

func TestCreateFromRequisitionCopiesLines(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fakeRequisitions{status: requisition.StatusApproved, lines: defaultLines()}, nil)

	rfq, err := svc.CreateFromRequisition(context.Background(), CreateInput{RequisitionID: 1, Deadline: time.Now().Add(72 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, rfq.Status)
	require.Len(t, repo.items[rfq.ID], 2)
	require.Equal(t, "Cabo", repo.items[rfq.ID][0].Description)
}

func TestCreateFromDraftRequisitionFails(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fakeRequisitions{status: requisition.StatusDraft, lines: defaultLines()}, nil)

	_, err := svc.CreateFromRequisition(context.Background(), CreateInput{RequisitionID: 1})
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRecordQuoteRejectsUnknownItem(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fakeRequisitions{status: requisition.StatusApproved, lines: defaultLines()}, nil)
	rfq, err := svc.CreateFromRequisition(context.Background(), CreateInput{RequisitionID: 1})
	require.NoError(t, err)

	err = svc.RecordQuote(context.Background(), QuoteInput{RFQID: rfq.ID, SupplierID: 100, Prices: map[int64]float64{9999: 1.0}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestQuoteCompareAwardFlow(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fakeRequisitions{status: requisition.StatusApproved, lines: defaultLines()}, nil)
	rfq, err := svc.CreateFromRequisition(context.Background(), CreateInput{RequisitionID: 1})
	require.NoError(t, err)
	items := repo.items[rfq.ID]
	require.Len(t, items, 2)

	require.NoError(t, svc.RecordQuote(context.Background(), QuoteInput{
		RFQID: rfq.ID, SupplierID: 100,
		Prices: map[int64]float64{items[0].ID: 2.0, items[1].ID: 4.0},
	}))
	require.NoError(t, svc.RecordQuote(context.Background(), QuoteInput{
		RFQID: rfq.ID, SupplierID: 200,
		Prices: map[int64]float64{items[0].ID: 1.5, items[1].ID: 6.0},
	}))

	cmp, err := svc.CompareQuotes(context.Background(), rfq.ID)
	require.NoError(t, err)
	// 100: 10*2 + 5*4 = 40; 200: 15 + 30 = 45
	require.Equal(t, int64(100), cmp.WinnerSupplierID)
	require.Equal(t, int64(200), cmp.Lines[0].BestSupplierID)

	require.NoError(t, svc.Award(context.Background(), rfq.ID, 100, 9))
	stored, _, err := svc.Get(context.Background(), rfq.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAwarded, stored.Status)
	require.Equal(t, int64(100), stored.AwardedSupplierID)

	require.ErrorIs(t, svc.Award(context.Background(), rfq.ID, 200, 9), ErrInvalidState)
}

func TestAwardRequiresQuote(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fakeRequisitions{status: requisition.StatusApproved, lines: defaultLines()}, nil)
	rfq, err := svc.CreateFromRequisition(context.Background(), CreateInput{RequisitionID: 1})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Award(context.Background(), rfq.ID, 300, 9), ErrValidation)
}
