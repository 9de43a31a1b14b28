// Package rfq handles requests for quotation: inviting suppliers to
// price requisition items, comparing the received quotes and awarding
// a winner.
package rfq

import (
	"fmt"
	"time"

	"github.com/procura-erp/procura-erp/internal/shared"
)

// RFQ lifecycle statuses.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusAwarded   Status = "AWARDED"
	StatusCancelled Status = "CANCELLED"
)

// RFQ is the request-for-quotation header.
type RFQ struct {
	ID                int64
	Number            string
	RequisitionID     int64
	Status            Status
	Deadline          time.Time
	Note              string
	AwardedSupplierID int64
	CreatedAt         time.Time
}

// Item is a requisition line copied into the RFQ for pricing.
type Item struct {
	ID          int64
	RFQID       int64
	Code        string
	Description string
	Qty         float64
}

// Quote is one supplier's answer.
type Quote struct {
	ID         int64
	RFQID      int64
	SupplierID int64
	ReceivedAt time.Time
	Note       string
}

// QuoteLine prices a single RFQ item.
type QuoteLine struct {
	ID        int64
	QuoteID   int64
	ItemID    int64
	UnitPrice float64
}

// Sentinels wrap the shared ones so handlers can map them to user
// messages with errors.Is.
var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("rfq: %w", shared.ErrInvalidState)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("rfq: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("rfq: %w", shared.ErrValidation)
)
