package finance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-erp/procura-erp/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	InsertJournal(ctx context.Context, journal Journal) (int64, error)
	InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, journalID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetBySource returns the journal posted for a source document.
func (r *Repository) GetBySource(ctx context.Context, module string, ref uuid.UUID) (Journal, error) {
	var journal Journal
	var status string
	err := r.pool.QueryRow(ctx, `SELECT j.id, j.number, j.date, j.source_module, j.source_ref, j.memo, j.status, j.created_at
FROM journals j
JOIN source_links l ON l.journal_id = j.id
WHERE l.module=$1 AND l.ref_id=$2`, module, ref).
		Scan(&journal.ID, &journal.Number, &journal.Date, &journal.SourceModule, &journal.SourceRef, &journal.Memo, &status, &journal.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrNotFound
		}
		return Journal{}, err
	}
	journal.Status = JournalStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, cost_center_id
FROM journal_lines WHERE journal_id=$1 ORDER BY id ASC`, journal.ID)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.CostCenterID); err != nil {
			return Journal{}, err
		}
		journal.Lines = append(journal.Lines, line)
	}
	return journal, rows.Err()
}

func (r *txRepository) InsertJournal(ctx context.Context, journal Journal) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (date, source_module, source_ref, memo, status)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		journal.Date, journal.SourceModule, journal.SourceRef, journal.Memo, string(journal.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, cost_center_id)
VALUES ($1, $2, $3, $4, $5)`, journalID, line.AccountID, line.Debit, line.Credit, line.CostCenterID); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, journalID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, journal_id) VALUES ($1, $2, $3)`, module, ref, journalID)
	if err != nil {
		if isSourceLinkConflict(err) {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

// isSourceLinkConflict reports whether err is the unique violation on
// uq_source_links, meaning the source document is already posted.
func isSourceLinkConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_source_links"
}
