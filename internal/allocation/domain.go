// Package allocation builds cost-center and chart-of-accounts trees
// and reconciles rateio rows against an invoice or order total.
package allocation

// Node is the canonical hierarchical dimension record. External
// sources (cost centers, chart of accounts) are normalized into this
// shape at the boundary instead of carrying their own field fallbacks
// through the algorithms.
type Node struct {
	ID       int64  `json:"id"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Payable  bool   `json:"payable,omitempty"`
}

// Child wraps a level-2 node together with its grandchildren and the
// leaf-selectable flag.
type Child struct {
	Node          Node   `json:"node"`
	Grandchildren []Node `json:"grandchildren"`
	Selectable    bool   `json:"selectable"`
}

// Group is a root node with its resolved children.
type Group struct {
	Parent   Node    `json:"parent"`
	Children []Child `json:"children"`
}

// Expand lists the node ids that should start expanded when a tree is
// first rendered.
type Expand struct {
	Lv1 []int64 `json:"lv1"`
	Lv2 []int64 `json:"lv2"`
}

// Row is a single financial apportionment line. Amount and Percentage
// keep the string encoding of the source (comma or dot decimals).
type Row struct {
	CostCenterID      int64  `json:"cost_center_id,omitempty"`
	ChartOfAccountsID int64  `json:"chart_of_accounts_id,omitempty"`
	Amount            string `json:"amount"`
	Percentage        string `json:"percentage"`
}
