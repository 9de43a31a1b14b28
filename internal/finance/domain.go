// Package finance posts confirmed receipts into the general ledger as
// balanced journal entries.
package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/procura-erp/procura-erp/internal/shared"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// Journal captures posting metadata.
type Journal struct {
	ID           int64
	Number       int64
	Date         time.Time
	SourceModule string
	SourceRef    uuid.UUID
	Memo         string
	Status       JournalStatus
	CreatedAt    time.Time
	Lines        []JournalLine
}

// JournalLine stores debit or credit amount for an account. The cost
// center rides along as a dimension on expense lines.
type JournalLine struct {
	ID           int64
	JournalID    int64
	AccountID    int64
	Debit        float64
	Credit       float64
	CostCenterID *int64
}

// ErrNotFound and ErrValidation wrap the shared sentinels so handlers
// can map them to user messages with errors.Is.
var (
	// ErrNotFound indicates journal missing.
	ErrNotFound = fmt.Errorf("finance: %w", shared.ErrNotFound)
	// ErrUnbalanced indicates debits and credits do not match.
	ErrUnbalanced = errors.New("finance: journal is not balanced")
	// ErrSourceConflict indicates the source document was already posted.
	ErrSourceConflict = errors.New("finance: source already posted")
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("finance: %w", shared.ErrValidation)
)
