// Package masterdata manages the reference entities the requisition
// flow allocates against: cost centers, the chart of accounts and
// suppliers.
package masterdata

import (
	"time"

	"github.com/procura-erp/procura-erp/internal/allocation"
)

// CostCenter is a node in the cost-center hierarchy.
type CostCenter struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ChartAccount is a node in the chart of accounts. Only payable leaf
// accounts may receive allocations.
type ChartAccount struct {
	ID        int64     `json:"id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Payable   bool      `json:"payable"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier holds vendor registration data.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required,min=2,max=200"`
	TradeName string    `json:"trade_name" validate:"max=200"`
	CNPJ      string    `json:"cnpj" validate:"required,len=14,numeric"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Phone     string    `json:"phone" validate:"max=30"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// SupplierFilter narrows supplier listings.
type SupplierFilter struct {
	Search     string
	OnlyActive bool
}

// Node converts the cost center into the canonical tree node.
func (c CostCenter) Node() allocation.Node {
	return allocation.Node{ID: c.ID, ParentID: c.ParentID, Name: c.Name}
}

// Node converts the account into the canonical tree node.
func (a ChartAccount) Node() allocation.Node {
	return allocation.Node{ID: a.ID, ParentID: a.ParentID, Name: a.Name, Payable: a.Payable}
}

func costCenterNodes(items []CostCenter) []allocation.Node {
	nodes := make([]allocation.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, item.Node())
	}
	return nodes
}

func chartAccountNodes(items []ChartAccount) []allocation.Node {
	nodes := make([]allocation.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, item.Node())
	}
	return nodes
}
