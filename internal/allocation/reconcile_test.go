package allocation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	require.Equal(t, 12.5, ParseDecimal("12,5"))
	require.Equal(t, 12.5, ParseDecimal("12.5"))
	require.Equal(t, 0.0, ParseDecimal(""))
	require.Equal(t, 0.0, ParseDecimal("abc"))
	// Thousands separators are deliberately not supported.
	require.Equal(t, 0.0, ParseDecimal("1.234,56"))
}

func TestFillMissingEvenSplit(t *testing.T) {
	rows := []Row{
		{CostCenterID: 1, ChartOfAccountsID: 10},
		{CostCenterID: 2, ChartOfAccountsID: 11},
	}

	err := FillMissing(rows, 100.00, FillOptions{RequireCostCenter: true})
	require.NoError(t, err)
	require.Equal(t, "50.00", rows[0].Amount)
	require.Equal(t, "50.00", rows[1].Amount)
	require.True(t, Reconciled(rows, 100.00))
}

func TestFillMissingSingleRowTakesRemainder(t *testing.T) {
	rows := []Row{
		{ChartOfAccountsID: 10, Amount: "30.00"},
		{ChartOfAccountsID: 11},
	}

	err := FillMissing(rows, 100.00, FillOptions{})
	require.NoError(t, err)
	require.Equal(t, "30.00", rows[0].Amount)
	require.Equal(t, "70.00", rows[1].Amount)
	require.True(t, Reconciled(rows, 100.00))
}

func TestFillMissingResidualAbsorption(t *testing.T) {
	rows := []Row{
		{ChartOfAccountsID: 1},
		{ChartOfAccountsID: 2},
		{ChartOfAccountsID: 3},
	}

	err := FillMissing(rows, 100.00, FillOptions{})
	require.NoError(t, err)
	require.Equal(t, "33.33", rows[0].Amount)
	require.Equal(t, "33.33", rows[1].Amount)
	require.Equal(t, "33.34", rows[2].Amount)
	require.True(t, Reconciled(rows, 100.00))
}

func TestFillMissingWeightedByPercentage(t *testing.T) {
	rows := []Row{
		{ChartOfAccountsID: 1, Percentage: "70"},
		{ChartOfAccountsID: 2, Percentage: "30"},
	}

	err := FillMissing(rows, 200.00, FillOptions{})
	require.NoError(t, err)
	require.Equal(t, "140.00", rows[0].Amount)
	require.Equal(t, "60.00", rows[1].Amount)
	require.Equal(t, "70.00", rows[0].Percentage)
	require.Equal(t, "30.00", rows[1].Percentage)
}

func TestFillMissingMixedWeights(t *testing.T) {
	// An explicit percentage and a defaulted weight coexist in one pass.
	rows := []Row{
		{ChartOfAccountsID: 1, Percentage: "3"},
		{ChartOfAccountsID: 2},
	}

	err := FillMissing(rows, 100.00, FillOptions{})
	require.NoError(t, err)
	require.Equal(t, "75.00", rows[0].Amount)
	require.Equal(t, "25.00", rows[1].Amount)
	require.True(t, Reconciled(rows, 100.00))
}

func TestFillMissingIdempotent(t *testing.T) {
	rows := []Row{
		{ChartOfAccountsID: 1},
		{ChartOfAccountsID: 2},
	}
	require.NoError(t, FillMissing(rows, 100.00, FillOptions{}))
	snapshot := append([]Row(nil), rows...)

	err := FillMissing(rows, 100.00, FillOptions{})
	require.ErrorIs(t, err, ErrNothingToFill)
	require.Equal(t, snapshot, rows)
}

func TestFillMissingNoTargets(t *testing.T) {
	rows := []Row{{Amount: ""}, {CostCenterID: 5}}
	err := FillMissing(rows, 100.00, FillOptions{})
	require.ErrorIs(t, err, ErrNoTargets)
	require.Equal(t, "", rows[0].Amount)
}

func TestFillMissingNoRemainder(t *testing.T) {
	rows := []Row{
		{ChartOfAccountsID: 1, Amount: "100,00"},
		{ChartOfAccountsID: 2},
	}
	err := FillMissing(rows, 100.00, FillOptions{})
	require.ErrorIs(t, err, ErrNoRemainder)
	require.Equal(t, "", rows[1].Amount)
}

func TestReconciledExactToTheCent(t *testing.T) {
	rows := []Row{
		{ChartOfAccountsID: 1, Amount: "0.10"},
		{ChartOfAccountsID: 2, Amount: "0.20"},
	}
	require.True(t, Reconciled(rows, 0.30))
	require.False(t, Reconciled(rows, 0.31))
}

func TestFillMissingManyRowsSumsExactly(t *testing.T) {
	rows := make([]Row, 7)
	for i := range rows {
		rows[i] = Row{ChartOfAccountsID: int64(i + 1)}
	}
	base := 123.45
	require.NoError(t, FillMissing(rows, base, FillOptions{}))
	require.True(t, Reconciled(rows, base))
}
