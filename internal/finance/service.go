package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/procura-erp/procura-erp/internal/allocation"
	"github.com/procura-erp/procura-erp/internal/receipt"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBySource(ctx context.Context, module string, ref uuid.UUID) (Journal, error)
}

// ReceiptPort exposes the receipt operations the posting flow needs.
type ReceiptPort interface {
	Get(ctx context.Context, id int64) (receipt.Receipt, []receipt.Line, []allocation.Row, error)
	MarkPosted(ctx context.Context, id int64) error
}

// Service posts confirmed receipts into the ledger.
type Service struct {
	repo           RepositoryPort
	receipts       ReceiptPort
	payableAccount int64
	logger         *slog.Logger
}

// NewService constructs finance service. payableAccount is the
// supplier payable account credited on every receipt posting.
func NewService(repo RepositoryPort, receipts ReceiptPort, payableAccount int64, logger *slog.Logger) *Service {
	return &Service{repo: repo, receipts: receipts, payableAccount: payableAccount, logger: logger}
}

// BuildReceiptJournal derives a balanced journal from a receipt's
// allocation rows: one debit per row against its chart account, one
// credit against the payable account for the full total.
func BuildReceiptJournal(rec receipt.Receipt, rows []allocation.Row, payableAccount int64) (Journal, error) {
	if payableAccount == 0 {
		return Journal{}, fmt.Errorf("%w: payable account not configured", ErrValidation)
	}
	if len(rows) == 0 {
		return Journal{}, fmt.Errorf("%w: receipt has no allocation rows", ErrValidation)
	}
	journal := Journal{
		Date:         rec.ReceivedAt,
		SourceModule: "RECEIPT",
		SourceRef:    receiptRef(rec.ID),
		Memo:         fmt.Sprintf("NF %s", rec.Number),
		Status:       JournalStatusPosted,
	}
	if journal.Date.IsZero() {
		journal.Date = time.Now()
	}

	var debits float64
	for _, row := range rows {
		amount := allocation.Round2(allocation.ParseDecimal(row.Amount))
		if amount <= 0 {
			return Journal{}, fmt.Errorf("%w: allocation row without amount", ErrValidation)
		}
		line := JournalLine{AccountID: row.ChartOfAccountsID, Debit: amount}
		if row.CostCenterID != 0 {
			cc := row.CostCenterID
			line.CostCenterID = &cc
		}
		journal.Lines = append(journal.Lines, line)
		debits += amount
	}
	journal.Lines = append(journal.Lines, JournalLine{AccountID: payableAccount, Credit: allocation.Round2(rec.Total)})

	if allocation.Round2(debits) != allocation.Round2(rec.Total) {
		return Journal{}, ErrUnbalanced
	}
	return journal, nil
}

// PostReceipt builds and persists the journal for a confirmed receipt,
// then marks the receipt posted. Posting the same receipt twice is a
// no-op.
func (s *Service) PostReceipt(ctx context.Context, receiptID int64) error {
	rec, _, rows, err := s.receipts.Get(ctx, receiptID)
	if err != nil {
		return err
	}
	if rec.Status == receipt.StatusPosted {
		return nil
	}
	if rec.Status != receipt.StatusConfirmed {
		return fmt.Errorf("finance: receipt %d not confirmed", receiptID)
	}
	journal, err := BuildReceiptJournal(rec, rows, s.payableAccount)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertJournal(ctx, journal)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, id, journal.Lines); err != nil {
			return err
		}
		return tx.LinkSource(ctx, journal.SourceModule, journal.SourceRef, id)
	})
	if err != nil {
		if errors.Is(err, ErrSourceConflict) {
			if s.logger != nil {
				s.logger.Warn("receipt already posted", slog.Int64("receipt_id", receiptID))
			}
			return s.receipts.MarkPosted(ctx, receiptID)
		}
		return err
	}
	return s.receipts.MarkPosted(ctx, receiptID)
}

// JournalForReceipt returns the journal posted for a receipt.
func (s *Service) JournalForReceipt(ctx context.Context, receiptID int64) (Journal, error) {
	return s.repo.GetBySource(ctx, "RECEIPT", receiptRef(receiptID))
}

func receiptRef(id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("RECEIPT:%d", id)))
}
