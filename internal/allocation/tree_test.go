package allocation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestBuildCostCenterTreeThreeLevels(t *testing.T) {
	tree := BuildCostCenterTree([]Node{
		{ID: 1, Name: "A"},
		{ID: 2, ParentID: ptr(1), Name: "B"},
		{ID: 3, ParentID: ptr(2), Name: "C"},
	})

	require.Len(t, tree, 1)
	require.Equal(t, int64(1), tree[0].Parent.ID)
	require.Len(t, tree[0].Children, 1)

	child := tree[0].Children[0]
	require.Equal(t, "B", child.Node.Name)
	require.False(t, child.Selectable)
	require.Len(t, child.Grandchildren, 1)
	require.Equal(t, int64(3), child.Grandchildren[0].ID)
}

func TestBuildCostCenterTreeDepthCapped(t *testing.T) {
	// A fourth level chained below a grandchild must not surface
	// anywhere in the output.
	tree := BuildCostCenterTree([]Node{
		{ID: 1, Name: "Root"},
		{ID: 2, ParentID: ptr(1), Name: "Child"},
		{ID: 3, ParentID: ptr(2), Name: "Grandchild"},
		{ID: 4, ParentID: ptr(3), Name: "TooDeep"},
	})

	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	require.Len(t, tree[0].Children[0].Grandchildren, 1)
	ids := ValidTargetIDs(tree)
	require.NotContains(t, ids, int64(4))
}

func TestBuildCostCenterTreeSelectableLeaves(t *testing.T) {
	tree := BuildCostCenterTree([]Node{
		{ID: 1, Name: "Ops"},
		{ID: 2, ParentID: ptr(1), Name: "Fleet"},
		{ID: 3, ParentID: ptr(1), Name: "Admin"},
		{ID: 4, ParentID: ptr(2), Name: "Trucks"},
	})

	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 2)
	// Sorted by name: Admin before Fleet.
	require.Equal(t, "Admin", tree[0].Children[0].Node.Name)
	require.True(t, tree[0].Children[0].Selectable)
	require.Equal(t, "Fleet", tree[0].Children[1].Node.Name)
	require.False(t, tree[0].Children[1].Selectable)
}

func TestBuildChartOfAccountsTreePayableGating(t *testing.T) {
	tree := BuildChartOfAccountsTree([]Node{
		{ID: 1, Name: "Despesas"},
		{ID: 2, ParentID: ptr(1), Name: "Serviços", Payable: true},
		{ID: 3, ParentID: ptr(1), Name: "Agrupadora"},
		{ID: 4, ParentID: ptr(2), Name: "Consultoria", Payable: true},
		{ID: 5, ParentID: ptr(2), Name: "Interna"},
		{ID: 10, Name: "Vazia"},
		{ID: 11, ParentID: ptr(10), Name: "Nada"},
	})

	// The group with no payable targets disappears entirely.
	require.Len(t, tree, 1)
	require.Equal(t, int64(1), tree[0].Parent.ID)

	// Child 3 has neither payable flag nor payable grandchildren.
	require.Len(t, tree[0].Children, 1)
	child := tree[0].Children[0]
	require.Equal(t, int64(2), child.Node.ID)

	// Payable child with a payable grandchild: selection must drill down.
	require.False(t, child.Selectable)
	require.Len(t, child.Grandchildren, 1)
	require.Equal(t, int64(4), child.Grandchildren[0].ID)

	ids := ValidTargetIDs(tree)
	require.Contains(t, ids, int64(4))
	require.NotContains(t, ids, int64(2))
	require.NotContains(t, ids, int64(5))
}

func TestBuildChartOfAccountsTreeSelectableImpliesPayable(t *testing.T) {
	tree := BuildChartOfAccountsTree([]Node{
		{ID: 1, Name: "Root"},
		{ID: 2, ParentID: ptr(1), Name: "Leaf", Payable: true},
	})
	require.Len(t, tree, 1)
	require.True(t, tree[0].Children[0].Selectable)
	require.True(t, tree[0].Children[0].Node.Payable)
}

func TestBuildTreeDeterministicAndSorted(t *testing.T) {
	input := []Node{
		{ID: 3, Name: "Zeta"},
		{ID: 1, Name: "Árvore"},
		{ID: 2, Name: "Beta"},
		{ID: 4, ParentID: ptr(3), Name: "zz"},
		{ID: 5, ParentID: ptr(3), Name: "aa"},
	}

	first := BuildCostCenterTree(input)
	second := BuildCostCenterTree(input)
	require.Equal(t, first, second)

	// Locale-aware ordering puts the accented name first.
	require.Equal(t, "Árvore", first[0].Parent.Name)
	require.Equal(t, "Beta", first[1].Parent.Name)
	require.Equal(t, "Zeta", first[2].Parent.Name)
	require.Equal(t, "aa", first[2].Children[0].Node.Name)
}

func TestBuildTreeEmptyInput(t *testing.T) {
	require.Empty(t, BuildCostCenterTree(nil))
	require.Empty(t, BuildChartOfAccountsTree([]Node{}))
}

func TestInitialExpandSkipsZeroIDs(t *testing.T) {
	tree := BuildCostCenterTree([]Node{
		{ID: 0, Name: "Phantom"},
		{ID: 1, Name: "Real"},
		{ID: 2, ParentID: ptr(1), Name: "Leaf"},
	})

	exp := InitialExpand(tree)
	require.Equal(t, []int64{1}, exp.Lv1)
	require.Equal(t, []int64{2}, exp.Lv2)
}
