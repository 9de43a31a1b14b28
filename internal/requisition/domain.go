// Package requisition implements the purchase requisition workflow,
// from draft through approval to purchase order conversion.
package requisition

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/procura-erp/procura-erp/internal/shared"
)

// Requisition lifecycle statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusClosed    Status = "CLOSED"
)

// Purchase order lifecycle statuses.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusReceived  OrderStatus = "RECEIVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Requisition is the purchase requisition header. Stage tracks which
// approval level the document currently waits on.
type Requisition struct {
	ID          int64
	Number      string
	RequesterID int64
	SupplierID  int64
	Status      Status
	Stage       int
	Note        string
	NeedBy      time.Time
	CreatedAt   time.Time
}

// Line is a requested item.
type Line struct {
	ID            int64
	RequisitionID int64
	Code          string
	Description   string
	Qty           float64
	UnitPrice     float64
	Note          string
}

// Total returns the rounded line total.
func (l Line) Total() float64 {
	return math.Round(l.Qty*l.UnitPrice*100) / 100
}

// PurchaseOrder is created from an approved requisition.
type PurchaseOrder struct {
	ID            int64
	Number        string
	RequisitionID int64
	SupplierID    int64
	Status        OrderStatus
	Total         float64
	ExpectedDate  time.Time
	Note          string
	CreatedAt     time.Time
}

// OrderLine mirrors a requisition line on the order.
type OrderLine struct {
	ID          int64
	OrderID     int64
	Code        string
	Description string
	Qty         float64
	UnitPrice   float64
}

// Sentinels wrap the shared ones so handlers can map them to user
// messages with errors.Is.
var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("requisition: %w", shared.ErrInvalidState)
	// ErrNotFound indicates record missing.
	ErrNotFound = fmt.Errorf("requisition: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("requisition: %w", shared.ErrValidation)
	// ErrAllocation indicates allocation rows that do not cover the total.
	ErrAllocation = errors.New("requisition: allocation does not reconcile")
)
