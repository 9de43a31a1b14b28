package rfq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/requisition"
	"github.com/procura-erp/procura-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (RFQ, []Item, error)
	QuotesByRFQ(ctx context.Context, rfqID int64) ([]SupplierQuote, error)
	ListByRequisition(ctx context.Context, requisitionID int64) ([]RFQ, error)
}

// RequisitionPort exposes requisition lookups.
type RequisitionPort interface {
	Get(ctx context.Context, id int64) (requisition.Requisition, []requisition.Line, []allocation.Row, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the RFQ flow.
type Service struct {
	repo         RepositoryPort
	requisitions RequisitionPort
	audit        AuditPort
}

// NewService constructs the RFQ service.
func NewService(repo RepositoryPort, requisitions RequisitionPort, audit AuditPort) *Service {
	return &Service{repo: repo, requisitions: requisitions, audit: audit}
}

// CreateInput describes RFQ creation payload.
type CreateInput struct {
	RequisitionID int64
	Number        string
	Deadline      time.Time
	Note          string
}

// QuoteInput records one supplier quote.
type QuoteInput struct {
	RFQID      int64
	SupplierID int64
	Note       string
	// Prices keyed by RFQ item id.
	Prices map[int64]float64
}

// CreateFromRequisition copies a submitted requisition's lines into a
// new RFQ.
func (s *Service) CreateFromRequisition(ctx context.Context, input CreateInput) (RFQ, error) {
	req, lines, _, err := s.requisitions.Get(ctx, input.RequisitionID)
	if err != nil {
		return RFQ{}, err
	}
	if req.Status != requisition.StatusSubmitted && req.Status != requisition.StatusApproved {
		return RFQ{}, ErrInvalidState
	}
	if len(lines) == 0 {
		return RFQ{}, fmt.Errorf("%w: requisition has no lines", ErrValidation)
	}
	rfq := RFQ{
		Number:        input.Number,
		RequisitionID: req.ID,
		Status:        StatusOpen,
		Deadline:      input.Deadline,
		Note:          input.Note,
	}
	if rfq.Number == "" {
		rfq.Number = fmt.Sprintf("RFQ-%d", time.Now().UnixNano())
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateRFQ(ctx, rfq)
		if err != nil {
			return err
		}
		rfq.ID = id
		for _, line := range lines {
			if _, err := tx.InsertItem(ctx, Item{RFQID: id, Code: line.Code, Description: line.Description, Qty: line.Qty}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RFQ{}, err
	}
	s.recordAudit(ctx, "RFQ_CREATE", rfq.ID, map[string]any{"number": rfq.Number, "requisition": req.ID})
	return rfq, nil
}

// RecordQuote stores a supplier's answer. Items priced at zero or not
// present are treated as not quoted.
func (s *Service) RecordQuote(ctx context.Context, input QuoteInput) error {
	rfq, items, err := s.repo.Get(ctx, input.RFQID)
	if err != nil {
		return err
	}
	if rfq.Status != StatusOpen {
		return ErrInvalidState
	}
	if input.SupplierID == 0 {
		return fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if len(input.Prices) == 0 {
		return fmt.Errorf("%w: at least one priced item required", ErrValidation)
	}
	known := make(map[int64]struct{}, len(items))
	for _, item := range items {
		known[item.ID] = struct{}{}
	}
	for itemID, price := range input.Prices {
		if _, ok := known[itemID]; !ok {
			return fmt.Errorf("%w: item %d does not belong to RFQ", ErrValidation, itemID)
		}
		if price < 0 {
			return fmt.Errorf("%w: negative price for item %d", ErrValidation, itemID)
		}
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quoteID, err := tx.CreateQuote(ctx, Quote{RFQID: rfq.ID, SupplierID: input.SupplierID, ReceivedAt: time.Now(), Note: input.Note})
		if err != nil {
			return err
		}
		for _, item := range items {
			price, ok := input.Prices[item.ID]
			if !ok || price <= 0 {
				continue
			}
			if err := tx.InsertQuoteLine(ctx, QuoteLine{QuoteID: quoteID, ItemID: item.ID, UnitPrice: price}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RFQ_QUOTE", rfq.ID, map[string]any{"supplier": input.SupplierID})
	return nil
}

// CompareQuotes returns the line-by-line and total comparison for an
// RFQ.
func (s *Service) CompareQuotes(ctx context.Context, rfqID int64) (Comparison, error) {
	_, items, err := s.repo.Get(ctx, rfqID)
	if err != nil {
		return Comparison{}, err
	}
	quotes, err := s.repo.QuotesByRFQ(ctx, rfqID)
	if err != nil {
		return Comparison{}, err
	}
	return Compare(items, quotes), nil
}

// Award marks the RFQ as awarded to the given supplier. The supplier
// must have quoted.
func (s *Service) Award(ctx context.Context, rfqID, supplierID, actorID int64) error {
	rfq, _, err := s.repo.Get(ctx, rfqID)
	if err != nil {
		return err
	}
	if rfq.Status != StatusOpen {
		return ErrInvalidState
	}
	quotes, err := s.repo.QuotesByRFQ(ctx, rfqID)
	if err != nil {
		return err
	}
	quoted := false
	for _, q := range quotes {
		if q.SupplierID == supplierID {
			quoted = true
			break
		}
	}
	if !quoted {
		return fmt.Errorf("%w: supplier %d has not quoted", ErrValidation, supplierID)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SetAwardedSupplier(ctx, rfqID, supplierID); err != nil {
			return err
		}
		return tx.UpdateStatus(ctx, rfqID, StatusAwarded)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RFQ_AWARD", rfqID, map[string]any{"supplier": supplierID, "actor": actorID})
	return nil
}

// Cancel closes an open RFQ without awarding.
func (s *Service) Cancel(ctx context.Context, rfqID, actorID int64) error {
	rfq, _, err := s.repo.Get(ctx, rfqID)
	if err != nil {
		return err
	}
	if rfq.Status != StatusOpen {
		return ErrInvalidState
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, rfqID, StatusCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "RFQ_CANCEL", rfqID, map[string]any{"actor": actorID})
	return nil
}

// Get returns an RFQ with its items.
func (s *Service) Get(ctx context.Context, id int64) (RFQ, []Item, error) {
	return s.repo.Get(ctx, id)
}

// ListByRequisition lists RFQs raised for a requisition.
func (s *Service) ListByRequisition(ctx context.Context, requisitionID int64) ([]RFQ, error) {
	return s.repo.ListByRequisition(ctx, requisitionID)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "rfq", EntityID: strconv.FormatInt(entityID, 10), Meta: meta})
}
