package rfq

import "testing"

func items() []Item {
	return []Item{
		{ID: 1, Code: "A", Qty: 10},
		{ID: 2, Code: "B", Qty: 5},
		{ID: 3, Code: "C", Qty: 2},
	}
}

func TestCompareCheapestPerLine(t *testing.T) {
	quotes := []SupplierQuote{
		{SupplierID: 100, Prices: map[int64]float64{1: 2.0, 2: 5.0, 3: 9.0}},
		{SupplierID: 200, Prices: map[int64]float64{1: 1.5, 2: 6.0, 3: 8.0}},
	}
	cmp := Compare(items(), quotes)
	if len(cmp.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(cmp.Lines))
	}
	if cmp.Lines[0].BestSupplierID != 200 || cmp.Lines[0].BestPrice != 1.5 {
		t.Errorf("line 1 best = %d @ %v", cmp.Lines[0].BestSupplierID, cmp.Lines[0].BestPrice)
	}
	if cmp.Lines[1].BestSupplierID != 100 {
		t.Errorf("line 2 best = %d, want 100", cmp.Lines[1].BestSupplierID)
	}
	if cmp.Lines[2].BestSupplierID != 200 {
		t.Errorf("line 3 best = %d, want 200", cmp.Lines[2].BestSupplierID)
	}
}

func TestCompareTotalsAndWinner(t *testing.T) {
	quotes := []SupplierQuote{
		{SupplierID: 100, Prices: map[int64]float64{1: 2.0, 2: 5.0, 3: 9.0}},
		{SupplierID: 200, Prices: map[int64]float64{1: 1.5, 2: 6.0, 3: 8.0}},
	}
	cmp := Compare(items(), quotes)
	// 100: 10*2 + 5*5 + 2*9 = 63; 200: 15 + 30 + 16 = 61
	if cmp.Totals[0].Total != 63 || cmp.Totals[1].Total != 61 {
		t.Fatalf("totals = %v / %v", cmp.Totals[0].Total, cmp.Totals[1].Total)
	}
	if !cmp.Totals[0].Complete || !cmp.Totals[1].Complete {
		t.Fatal("both quotes cover every item")
	}
	if cmp.WinnerSupplierID != 200 {
		t.Errorf("winner = %d, want 200", cmp.WinnerSupplierID)
	}
}

func TestCompleteQuoteBeatsCheaperPartial(t *testing.T) {
	quotes := []SupplierQuote{
		{SupplierID: 100, Prices: map[int64]float64{1: 1.0}},
		{SupplierID: 200, Prices: map[int64]float64{1: 3.0, 2: 4.0, 3: 5.0}},
	}
	cmp := Compare(items(), quotes)
	if cmp.Totals[0].Complete {
		t.Fatal("partial quote flagged complete")
	}
	if cmp.WinnerSupplierID != 200 {
		t.Errorf("winner = %d, want the complete quote", cmp.WinnerSupplierID)
	}
}

func TestAllPartialFallsBackToLowestTotal(t *testing.T) {
	quotes := []SupplierQuote{
		{SupplierID: 100, Prices: map[int64]float64{1: 4.0}},
		{SupplierID: 200, Prices: map[int64]float64{1: 3.0}},
	}
	cmp := Compare(items(), quotes)
	if cmp.WinnerSupplierID != 200 {
		t.Errorf("winner = %d, want 200", cmp.WinnerSupplierID)
	}
}

func TestCompareTieKeepsEarlierQuote(t *testing.T) {
	quotes := []SupplierQuote{
		{SupplierID: 100, Prices: map[int64]float64{1: 2.0, 2: 2.0, 3: 2.0}},
		{SupplierID: 200, Prices: map[int64]float64{1: 2.0, 2: 2.0, 3: 2.0}},
	}
	cmp := Compare(items(), quotes)
	for _, line := range cmp.Lines {
		if line.BestSupplierID != 100 {
			t.Fatalf("item %d best = %d, ties must keep the first quote", line.ItemID, line.BestSupplierID)
		}
	}
	if cmp.WinnerSupplierID != 100 {
		t.Errorf("winner = %d, want 100", cmp.WinnerSupplierID)
	}
}

func TestCompareEmptyInputs(t *testing.T) {
	cmp := Compare(nil, nil)
	if len(cmp.Lines) != 0 || len(cmp.Totals) != 0 || cmp.WinnerSupplierID != 0 {
		t.Fatalf("empty comparison = %+v", cmp)
	}
}

func TestCompareZeroPriceMeansNotQuoted(t *testing.T) {
	quotes := []SupplierQuote{
		{SupplierID: 100, Prices: map[int64]float64{1: 0, 2: 5.0, 3: 1.0}},
	}
	cmp := Compare(items(), quotes)
	if cmp.Lines[0].BestSupplierID != 0 {
		t.Errorf("zero price must not win a line")
	}
	if cmp.Totals[0].Complete {
		t.Errorf("quote with unpriced item flagged complete")
	}
}
