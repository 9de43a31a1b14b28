package rfq

import "math"

// SupplierQuote is one supplier's prices keyed by RFQ item id. A
// missing or non-positive price means the item was not quoted.
type SupplierQuote struct {
	SupplierID int64
	Prices     map[int64]float64
}

// LineResult names the cheapest supplier for one item.
type LineResult struct {
	ItemID         int64   `json:"item_id"`
	BestSupplierID int64   `json:"best_supplier_id"`
	BestPrice      float64 `json:"best_price"`
}

// SupplierTotal summarises one supplier across the whole RFQ.
type SupplierTotal struct {
	SupplierID int64   `json:"supplier_id"`
	Total      float64 `json:"total"`
	Complete   bool    `json:"complete"`
}

// Comparison is the full quote comparison for an RFQ.
type Comparison struct {
	Lines            []LineResult    `json:"lines"`
	Totals           []SupplierTotal `json:"totals"`
	WinnerSupplierID int64           `json:"winner_supplier_id"`
}

// Compare evaluates supplier quotes against the RFQ items. Per item
// the cheapest positive price wins, ties keeping the earlier quote.
// A supplier is complete when every item carries a positive price.
// The winner is the complete supplier with the lowest total; when no
// quote is complete, the lowest total overall wins. Input order is
// preserved so results are deterministic.
func Compare(items []Item, quotes []SupplierQuote) Comparison {
	cmp := Comparison{Lines: make([]LineResult, 0, len(items)), Totals: make([]SupplierTotal, 0, len(quotes))}
	if len(items) == 0 || len(quotes) == 0 {
		return cmp
	}

	for _, item := range items {
		result := LineResult{ItemID: item.ID}
		for _, quote := range quotes {
			price := quote.Prices[item.ID]
			if price <= 0 {
				continue
			}
			if result.BestSupplierID == 0 || price < result.BestPrice {
				result.BestSupplierID = quote.SupplierID
				result.BestPrice = price
			}
		}
		cmp.Lines = append(cmp.Lines, result)
	}

	for _, quote := range quotes {
		total := SupplierTotal{SupplierID: quote.SupplierID, Complete: true}
		for _, item := range items {
			price := quote.Prices[item.ID]
			if price <= 0 {
				total.Complete = false
				continue
			}
			total.Total += item.Qty * price
		}
		total.Total = math.Round(total.Total*100) / 100
		cmp.Totals = append(cmp.Totals, total)
	}

	cmp.WinnerSupplierID = pickWinner(cmp.Totals)
	return cmp
}

func pickWinner(totals []SupplierTotal) int64 {
	var winner int64
	best := math.Inf(1)
	anyComplete := false
	for _, t := range totals {
		if t.Complete {
			anyComplete = true
			break
		}
	}
	for _, t := range totals {
		if anyComplete && !t.Complete {
			continue
		}
		if t.Total <= 0 {
			continue
		}
		if t.Total < best {
			best = t.Total
			winner = t.SupplierID
		}
	}
	return winner
}
