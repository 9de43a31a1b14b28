package allocation

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// newCollator returns the collator used for name ordering. Dimension
// labels come from Brazilian ERP data, so ties are broken the way a
// pt-BR user would expect.
func newCollator() *collate.Collator {
	return collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
}

// BuildCostCenterTree groups a flat parent-referencing list into the
// 3-level structure used for allocation target selection. A child is
// selectable when it has no grandchildren; cost centers carry no
// payable gating.
func BuildCostCenterTree(nodes []Node) []Group {
	return buildTree(nodes, false)
}

// BuildChartOfAccountsTree applies the same grouping with payable
// gating: grandchildren are filtered to payable nodes, a child is
// selectable only when payable itself and without payable
// grandchildren, and children or groups left without any target are
// dropped.
func BuildChartOfAccountsTree(nodes []Node) []Group {
	return buildTree(nodes, true)
}

func buildTree(nodes []Node, payableGating bool) []Group {
	if len(nodes) == 0 {
		return []Group{}
	}

	var roots []Node
	byParent := make(map[int64][]Node)
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		byParent[*n.ParentID] = append(byParent[*n.ParentID], n)
	}

	cl := newCollator()
	groups := make([]Group, 0, len(roots))
	for _, root := range roots {
		children := append([]Node(nil), byParent[root.ID]...)
		sortByName(cl, children)

		resolved := make([]Child, 0, len(children))
		for _, childNode := range children {
			grandchildren := append([]Node(nil), byParent[childNode.ID]...)
			if payableGating {
				grandchildren = filterPayable(grandchildren)
			}
			sortByName(cl, grandchildren)

			child := Child{Node: childNode, Grandchildren: grandchildren}
			if payableGating {
				child.Selectable = childNode.Payable && len(grandchildren) == 0
				if !child.Selectable && len(grandchildren) == 0 {
					continue
				}
			} else {
				child.Selectable = len(grandchildren) == 0
			}
			resolved = append(resolved, child)
		}
		if payableGating && len(resolved) == 0 {
			continue
		}
		groups = append(groups, Group{Parent: root, Children: resolved})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return cl.CompareString(groups[i].Parent.Name, groups[j].Parent.Name) < 0
	})
	return groups
}

func sortByName(cl *collate.Collator, nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return cl.CompareString(nodes[i].Name, nodes[j].Name) < 0
	})
}

func filterPayable(nodes []Node) []Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Payable {
			out = append(out, n)
		}
	}
	return out
}

// InitialExpand collects every root and child id so the tree opens
// fully expanded. An id of 0 means "no identifier" and is skipped.
func InitialExpand(tree []Group) Expand {
	exp := Expand{Lv1: []int64{}, Lv2: []int64{}}
	for _, g := range tree {
		if g.Parent.ID != 0 {
			exp.Lv1 = append(exp.Lv1, g.Parent.ID)
		}
		for _, c := range g.Children {
			if c.Node.ID != 0 {
				exp.Lv2 = append(exp.Lv2, c.Node.ID)
			}
		}
	}
	return exp
}

// ValidTargetIDs flattens the tree into the set of ids an allocation
// row may legitimately reference: every selectable child plus every
// grandchild.
func ValidTargetIDs(tree []Group) map[int64]struct{} {
	ids := make(map[int64]struct{})
	for _, g := range tree {
		for _, c := range g.Children {
			if c.Selectable && c.Node.ID != 0 {
				ids[c.Node.ID] = struct{}{}
			}
			for _, gc := range c.Grandchildren {
				if gc.ID != 0 {
					ids[gc.ID] = struct{}{}
				}
			}
		}
	}
	return ids
}
