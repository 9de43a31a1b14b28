package receipt

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/receipt/matching"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Receipt, []Line, []allocation.Row, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Receipt, error)
	ListDraftIDs(ctx context.Context) ([]int64, error)
}

// OrderPort exposes purchase order lookups.
type OrderPort interface {
	GetOrder(ctx context.Context, id int64) (requisition.PurchaseOrder, []requisition.OrderLine, error)
}

// MasterDataPort exposes the dimension nodes allocations are checked
// against.
type MasterDataPort interface {
	CostCenterNodes(ctx context.Context) ([]allocation.Node, error)
	ChartAccountNodes(ctx context.Context) ([]allocation.Node, error)
}

// QueuePort enqueues background work.
type QueuePort interface {
	EnqueuePostReceipt(ctx context.Context, receiptID int64) error
	EnqueueRescore(ctx context.Context, receiptID int64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates invoice receipt flows.
type Service struct {
	repo        RepositoryPort
	orders      OrderPort
	masterdata  MasterDataPort
	queue       QueuePort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs receipt service.
func NewService(repo RepositoryPort, orders OrderPort, masterdata MasterDataPort, queue QueuePort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, orders: orders, masterdata: masterdata, queue: queue, audit: audit, idempotency: idem}
}

// CreateInput describes a receipt being recorded, manually or from an
// XML preview.
type CreateInput struct {
	Number     string
	OrderID    int64
	Total      float64
	IssuedAt   time.Time
	ReceivedAt time.Time
	Note       string
	Lines      []matching.LineItem
}

// LineMatch reports the match outcome for one created line.
type LineMatch struct {
	Code               string  `json:"code"`
	Description        string  `json:"description"`
	MatchedOrderLineID int64   `json:"matched_order_line_id"`
	Score              float64 `json:"score"`
}

// Create records a draft receipt against an open purchase order and
// auto-matches each invoice line to the order lines. Matches below the
// threshold stay unlinked for manual review.
func (s *Service) Create(ctx context.Context, input CreateInput) (Receipt, []LineMatch, error) {
	if input.Number == "" {
		return Receipt{}, nil, fmt.Errorf("%w: invoice number required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return Receipt{}, nil, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	order, orderLines, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return Receipt{}, nil, err
	}
	if order.Status != requisition.OrderStatusOpen {
		return Receipt{}, nil, ErrInvalidState
	}

	candidates := make([]matching.Candidate, 0, len(orderLines))
	for _, line := range orderLines {
		candidates = append(candidates, matching.Candidate{ID: line.ID, Code: line.Code, Description: line.Description})
	}

	total := input.Total
	if total <= 0 {
		for _, line := range input.Lines {
			total += line.Total()
		}
		total = allocation.Round2(total)
	}
	if total <= 0 {
		return Receipt{}, nil, fmt.Errorf("%w: total must be positive", ErrValidation)
	}

	rec := Receipt{
		Number:     input.Number,
		OrderID:    order.ID,
		SupplierID: order.SupplierID,
		Total:      total,
		Status:     StatusDraft,
		IssuedAt:   input.IssuedAt,
		ReceivedAt: defaultTime(input.ReceivedAt),
		Note:       input.Note,
	}
	matches := make([]LineMatch, 0, len(input.Lines))
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateReceipt(ctx, rec)
		if err != nil {
			return err
		}
		rec.ID = id
		for _, item := range input.Lines {
			if item.Quantity <= 0 {
				return ErrValidation
			}
			line := Line{
				ReceiptID:   id,
				Code:        item.Code,
				Description: item.Description,
				Qty:         item.Quantity,
				UnitPrice:   item.UnitPrice,
			}
			result := LineMatch{Code: item.Code, Description: item.Description}
			if best := matching.FindBestMatch(item, candidates); best != nil && best.Score >= matching.Threshold {
				line.MatchedOrderLineID = best.ID
				line.MatchScore = best.Score
				result.MatchedOrderLineID = best.ID
				result.Score = best.Score
			}
			if err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
			matches = append(matches, result)
		}
		return nil
	})
	if err != nil {
		return Receipt{}, nil, err
	}
	s.recordAudit(ctx, "RECEIPT_CREATE", rec.ID, map[string]any{"number": rec.Number, "order": order.ID, "total": rec.Total})
	return rec, matches, nil
}

// SetAllocations validates and stores the allocation rows of a draft
// receipt. Targets must be selectable in the active dimension trees;
// missing amounts are completed and the batch must reconcile to the
// cent against the receipt total.
func (s *Service) SetAllocations(ctx context.Context, receiptID int64, rows []allocation.Row) ([]allocation.Row, error) {
	rec, _, _, err := s.repo.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusDraft {
		return nil, ErrInvalidState
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: minimal 1 allocation row", ErrValidation)
	}
	filled, err := s.reconcile(ctx, rows, rec.Total)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceAllocations(ctx, receiptID, filled)
	})
	if err != nil {
		return nil, err
	}
	return filled, nil
}

// Confirm moves a reconciled draft receipt to CONFIRMED and enqueues
// the ledger posting. The operation is idempotent per invoice number.
func (s *Service) Confirm(ctx context.Context, receiptID int64, actorID int64) error {
	rec, _, rows, err := s.repo.Get(ctx, receiptID)
	if err != nil {
		return err
	}
	if rec.Status != StatusDraft {
		return ErrInvalidState
	}
	if len(rows) == 0 || !allocation.Reconciled(rows, rec.Total) {
		return ErrAllocation
	}
	key := fmt.Sprintf("RECEIPT:%s", rec.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "receipt.confirm"); err != nil {
			return err
		}
		inserted = true
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, receiptID, StatusConfirmed)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	if s.queue != nil {
		if err := s.queue.EnqueuePostReceipt(ctx, receiptID); err != nil {
			return fmt.Errorf("receipt confirmed but posting not enqueued: %w", err)
		}
	}
	s.recordAudit(ctx, "RECEIPT_CONFIRM", receiptID, map[string]any{"number": rec.Number, "actor": actorID})
	return nil
}

// Rescore re-runs auto-matching over the unlinked lines of a draft
// receipt. Lines already linked by a reviewer are left untouched.
func (s *Service) Rescore(ctx context.Context, receiptID int64) ([]LineMatch, error) {
	rec, lines, _, err := s.repo.Get(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusDraft {
		return nil, ErrInvalidState
	}
	_, orderLines, err := s.orders.GetOrder(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	candidates := make([]matching.Candidate, 0, len(orderLines))
	for _, line := range orderLines {
		candidates = append(candidates, matching.Candidate{ID: line.ID, Code: line.Code, Description: line.Description})
	}

	var matches []LineMatch
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, line := range lines {
			if line.MatchedOrderLineID != 0 {
				continue
			}
			item := matching.LineItem{Code: line.Code, Description: line.Description, Quantity: line.Qty, UnitPrice: line.UnitPrice}
			best := matching.FindBestMatch(item, candidates)
			if best == nil || best.Score < matching.Threshold {
				continue
			}
			if err := tx.UpdateLineMatch(ctx, line.ID, best.ID, best.Score); err != nil {
				return err
			}
			matches = append(matches, LineMatch{Code: line.Code, Description: line.Description, MatchedOrderLineID: best.ID, Score: best.Score})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// RequestRescore checks the receipt is still draft and enqueues a
// background rescore.
func (s *Service) RequestRescore(ctx context.Context, receiptID int64) error {
	rec, _, _, err := s.repo.Get(ctx, receiptID)
	if err != nil {
		return err
	}
	if rec.Status != StatusDraft {
		return ErrInvalidState
	}
	if s.queue == nil {
		return fmt.Errorf("receipt: queue not configured")
	}
	return s.queue.EnqueueRescore(ctx, receiptID)
}

// MarkPosted is called by the posting worker once the journal exists.
func (s *Service) MarkPosted(ctx context.Context, receiptID int64) error {
	rec, _, _, err := s.repo.Get(ctx, receiptID)
	if err != nil {
		return err
	}
	if rec.Status != StatusConfirmed {
		return ErrInvalidState
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, receiptID, StatusPosted)
	})
}

// Get returns a receipt with lines and allocation rows.
func (s *Service) Get(ctx context.Context, id int64) (Receipt, []Line, []allocation.Row, error) {
	return s.repo.Get(ctx, id)
}

// ListByOrder lists receipts recorded against an order.
func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]Receipt, error) {
	return s.repo.ListByOrder(ctx, orderID)
}

// ListDraftIDs lists draft receipt ids for the rescore sweep.
func (s *Service) ListDraftIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListDraftIDs(ctx)
}

// reconcile fetches both dimension trees concurrently, validates the
// row targets and completes missing amounts against the base total.
func (s *Service) reconcile(ctx context.Context, rows []allocation.Row, base float64) ([]allocation.Row, error) {
	var ccNodes, caNodes []allocation.Node
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nodes, err := s.masterdata.CostCenterNodes(gctx)
		ccNodes = nodes
		return err
	})
	g.Go(func() error {
		nodes, err := s.masterdata.ChartAccountNodes(gctx)
		caNodes = nodes
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ccValid := allocation.ValidTargetIDs(allocation.BuildCostCenterTree(ccNodes))
	caValid := allocation.ValidTargetIDs(allocation.BuildChartOfAccountsTree(caNodes))
	for _, row := range rows {
		if row.ChartOfAccountsID == 0 {
			return nil, fmt.Errorf("%w: every row needs a chart account", ErrAllocation)
		}
		if _, ok := caValid[row.ChartOfAccountsID]; !ok {
			return nil, fmt.Errorf("%w: chart account %d is not selectable", ErrAllocation, row.ChartOfAccountsID)
		}
		if _, ok := ccValid[row.CostCenterID]; row.CostCenterID != 0 && !ok {
			return nil, fmt.Errorf("%w: cost center %d is not selectable", ErrAllocation, row.CostCenterID)
		}
	}
	if err := allocation.FillMissing(rows, base, allocation.FillOptions{}); err != nil {
		if err != allocation.ErrNothingToFill && err != allocation.ErrNoRemainder {
			return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
		}
	}
	if !allocation.Reconciled(rows, base) {
		return nil, ErrAllocation
	}
	return rows, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "receipt", EntityID: strconv.FormatInt(entityID, 10), Meta: meta})
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}
