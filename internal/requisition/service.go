package requisition

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Requisition, []Line, []allocation.Row, error)
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, []OrderLine, error)
	List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error)
}

// MasterDataPort exposes the dimension nodes allocations are checked
// against.
type MasterDataPort interface {
	CostCenterNodes(ctx context.Context) ([]allocation.Node, error)
	ChartAccountNodes(ctx context.Context) ([]allocation.Node, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the requisition workflow.
type Service struct {
	repo        RepositoryPort
	masterdata  MasterDataPort
	approvals   *shared.ApprovalRecorder
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	level2Limit float64
}

// NewService constructs requisition service. Requisitions whose total
// exceeds level2Limit require a second approval stage.
func NewService(repo RepositoryPort, masterdata MasterDataPort, approvals *shared.ApprovalRecorder, audit AuditPort, idem *shared.IdempotencyStore, level2Limit float64) *Service {
	return &Service{repo: repo, masterdata: masterdata, approvals: approvals, audit: audit, idempotency: idem, level2Limit: level2Limit}
}

// CreateInput describes creation payload.
type CreateInput struct {
	Number      string
	RequesterID int64
	SupplierID  int64
	Note        string
	NeedBy      time.Time
	Lines       []LineInput
	Allocations []allocation.Row
}

// LineInput describes a requested item.
type LineInput struct {
	Code        string
	Description string
	Qty         float64
	UnitPrice   float64
	Note        string
}

// ConvertInput defines data to create a purchase order from an
// approved requisition. SupplierID and LinePrices override the
// requisition values when an RFQ award decided them; LinePrices is
// keyed by item code.
type ConvertInput struct {
	RequisitionID int64
	Number        string
	SupplierID    int64
	LinePrices    map[string]float64
	ExpectedDate  time.Time
	Note          string
}

// Create persists a draft requisition with lines and allocation rows.
func (s *Service) Create(ctx context.Context, input CreateInput) (Requisition, error) {
	if len(input.Lines) == 0 {
		return Requisition{}, fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	if input.RequesterID == 0 {
		return Requisition{}, fmt.Errorf("%w: requester required", ErrValidation)
	}
	if input.Number == "" {
		input.Number = generateNumber("REQ")
	}
	req := Requisition{
		Number:      input.Number,
		RequesterID: input.RequesterID,
		SupplierID:  input.SupplierID,
		Status:      StatusDraft,
		Stage:       1,
		Note:        input.Note,
		NeedBy:      input.NeedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRequisition(ctx, req)
		if err != nil {
			return err
		}
		req.ID = id
		for _, line := range input.Lines {
			if line.Qty <= 0 || line.UnitPrice < 0 {
				return ErrValidation
			}
			if line.Code == "" && line.Description == "" {
				return ErrValidation
			}
			if err := tx.InsertLine(ctx, Line{RequisitionID: id, Code: line.Code, Description: line.Description, Qty: line.Qty, UnitPrice: line.UnitPrice, Note: line.Note}); err != nil {
				return err
			}
		}
		if len(input.Allocations) > 0 {
			if err := tx.ReplaceAllocations(ctx, id, input.Allocations); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Requisition{}, err
	}
	s.recordAudit(ctx, "REQ_CREATE", req.ID, map[string]any{"number": req.Number})
	return req, nil
}

// UpdateDraft replaces lines and allocations of a draft requisition.
func (s *Service) UpdateDraft(ctx context.Context, id int64, lines []LineInput, rows []allocation.Row) error {
	req, _, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusDraft {
		return ErrInvalidState
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: minimal 1 line", ErrValidation)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		for _, line := range lines {
			if line.Qty <= 0 || line.UnitPrice < 0 {
				return ErrValidation
			}
			if err := tx.InsertLine(ctx, Line{RequisitionID: id, Code: line.Code, Description: line.Description, Qty: line.Qty, UnitPrice: line.UnitPrice, Note: line.Note}); err != nil {
				return err
			}
		}
		return tx.ReplaceAllocations(ctx, id, rows)
	})
}

// Submit transitions the requisition to SUBMITTED. Allocation rows,
// when present, are completed against the document total and must
// reconcile to the cent before submission is accepted.
func (s *Service) Submit(ctx context.Context, id int64, actorID int64) error {
	req, lines, rows, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusDraft {
		return ErrInvalidState
	}
	total := documentTotal(lines)
	if total <= 0 {
		return fmt.Errorf("%w: total must be positive", ErrValidation)
	}
	if len(rows) > 0 {
		filled, err := s.reconcileAllocations(ctx, rows, total)
		if err != nil {
			return err
		}
		rows = filled
	}
	refID := approvalRef(req.ID)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if len(rows) > 0 {
			if err := tx.ReplaceAllocations(ctx, id, rows); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, StatusSubmitted); err != nil {
			return err
		}
		if err := tx.SetStage(ctx, id, 1); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.EnsureSubmit(ctx, "REQ", refID, actorID, fmt.Sprintf("REQ %s submitted", req.Number))
		}
		return nil
	})
}

// Approve records an approval at the current stage. Documents above
// the level-2 limit advance to a second stage before final approval.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) error {
	req, lines, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusSubmitted {
		return ErrInvalidState
	}
	total := documentTotal(lines)
	needsSecondStage := s.level2Limit > 0 && total > s.level2Limit && req.Stage == 1
	refID := approvalRef(req.ID)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if needsSecondStage {
			if err := tx.SetStage(ctx, id, 2); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateStatus(ctx, id, StatusApproved); err != nil {
				return err
			}
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module:  "REQ",
				RefID:   refID,
				ActorID: actorID,
				Action:  shared.ApprovalApprove,
				Stage:   req.Stage,
				Note:    fmt.Sprintf("REQ %s approved at stage %d", req.Number, req.Stage),
			})
		}
		s.recordAudit(ctx, "REQ_APPROVE", id, map[string]any{"stage": req.Stage, "final": !needsSecondStage})
		return nil
	})
}

// Reject moves a submitted requisition to REJECTED.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64, note string) error {
	req, _, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusSubmitted {
		return ErrInvalidState
	}
	refID := approvalRef(req.ID)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, StatusRejected); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{
				Module:  "REQ",
				RefID:   refID,
				ActorID: actorID,
				Action:  shared.ApprovalReject,
				Stage:   req.Stage,
				Note:    note,
			})
		}
		s.recordAudit(ctx, "REQ_REJECT", id, map[string]any{"note": note})
		return nil
	})
}

// ConvertToOrder creates a purchase order from an approved requisition
// and closes it. The conversion is idempotent per requisition.
func (s *Service) ConvertToOrder(ctx context.Context, input ConvertInput) (PurchaseOrder, error) {
	req, lines, _, err := s.repo.Get(ctx, input.RequisitionID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if req.Status != StatusApproved {
		return PurchaseOrder{}, ErrInvalidState
	}
	supplierID := req.SupplierID
	if input.SupplierID != 0 {
		supplierID = input.SupplierID
	}
	if supplierID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: supplier required before conversion", ErrValidation)
	}
	for i, line := range lines {
		if price, ok := input.LinePrices[line.Code]; ok && price > 0 {
			lines[i].UnitPrice = price
		}
	}
	key := fmt.Sprintf("REQ:%d:order", req.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "requisition.order"); err != nil {
			return PurchaseOrder{}, err
		}
		inserted = true
	}
	order := PurchaseOrder{
		Number:        input.Number,
		RequisitionID: req.ID,
		SupplierID:    supplierID,
		Status:        OrderStatusOpen,
		Total:         documentTotal(lines),
		ExpectedDate:  input.ExpectedDate,
		Note:          input.Note,
	}
	if order.Number == "" {
		order.Number = generateNumber("OC")
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, line := range lines {
			if err := tx.InsertOrderLine(ctx, OrderLine{OrderID: orderID, Code: line.Code, Description: line.Description, Qty: line.Qty, UnitPrice: line.UnitPrice}); err != nil {
				return err
			}
		}
		return tx.UpdateStatus(ctx, req.ID, StatusClosed)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "REQ_CONVERT", req.ID, map[string]any{"order": order.Number, "total": order.Total})
	return order, nil
}

// Get returns a requisition with lines and allocation rows.
func (s *Service) Get(ctx context.Context, id int64) (Requisition, []Line, []allocation.Row, error) {
	return s.repo.Get(ctx, id)
}

// List returns requisitions for listing.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset, filters)
}

// reconcileAllocations validates targets against the active dimension
// trees, completes missing amounts and checks the sum to the cent.
func (s *Service) reconcileAllocations(ctx context.Context, rows []allocation.Row, total float64) ([]allocation.Row, error) {
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
		if _, ok := caValid[row.ChartOfAccountsID]; row.ChartOfAccountsID != 0 && !ok {
			return nil, fmt.Errorf("%w: chart account %d is not selectable", ErrAllocation, row.ChartOfAccountsID)
		}
		if _, ok := ccValid[row.CostCenterID]; row.CostCenterID != 0 && !ok {
			return nil, fmt.Errorf("%w: cost center %d is not selectable", ErrAllocation, row.CostCenterID)
		}
	}
	if err := allocation.FillMissing(rows, total, allocation.FillOptions{RequireCostCenter: true}); err != nil {
		if err != allocation.ErrNothingToFill && err != allocation.ErrNoRemainder {
			return nil, fmt.Errorf("%w: %v", ErrAllocation, err)
		}
	}
	if !allocation.Reconciled(rows, total) {
		return nil, ErrAllocation
	}
	return rows, nil
}

func documentTotal(lines []Line) float64 {
	var total float64
	for _, line := range lines {
		total += line.Total()
	}
	return allocation.Round2(total)
}

func approvalRef(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte("REQ:"+strconv.FormatInt(id, 10)))
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "requisition", EntityID: strconv.FormatInt(entityID, 10), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
