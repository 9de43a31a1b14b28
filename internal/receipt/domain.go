// Package receipt records supplier invoices against purchase orders,
// matches invoice lines to ordered items and validates the financial
// allocation before the document is confirmed for posting.
package receipt

import (
	"errors"
	"fmt"
	"time"

	"github.com/procura-erp/procura-erp/internal/shared"
)

// Receipt lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusPosted    Status = "POSTED"
)

// Receipt is the received invoice header.
type Receipt struct {
	ID         int64
	Number     string
	OrderID    int64
	SupplierID int64
	Total      float64
	Status     Status
	IssuedAt   time.Time
	ReceivedAt time.Time
	Note       string
	CreatedAt  time.Time
}

// Line is one invoice line, optionally matched to an order line.
type Line struct {
	ID                 int64
	ReceiptID          int64
	Code               string
	Description        string
	Qty                float64
	UnitPrice          float64
	MatchedOrderLineID int64
	MatchScore         float64
}

// Total returns the line amount.
func (l Line) Total() float64 {
	return l.Qty * l.UnitPrice
}

// Sentinels wrap the shared ones so handlers can map them to user
// messages with errors.Is.
var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("receipt: %w", shared.ErrInvalidState)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("receipt: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("receipt: %w", shared.ErrValidation)
	// ErrAllocation indicates allocation rows that do not cover the total.
	ErrAllocation = errors.New("receipt: allocation does not reconcile")
)
