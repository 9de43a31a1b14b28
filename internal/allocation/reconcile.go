package allocation

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoTargets indicates no row has a usable dimension selection.
	ErrNoTargets = errors.New("allocation: no rows with a valid target")
	// ErrNothingToFill indicates every targeted row already carries an amount.
	ErrNothingToFill = errors.New("allocation: no rows left to fill")
	// ErrNoRemainder indicates the filled rows already cover the base total.
	ErrNoRemainder = errors.New("allocation: nothing left to distribute")
)

// FillOptions selects which dimensions a row must carry to count as a
// valid allocation target.
type FillOptions struct {
	// RequireCostCenter demands both cost center and chart account on
	// a row; when false a chart account alone qualifies.
	RequireCostCenter bool
}

// ParseDecimal parses a comma-or-dot decimal string leniently. Only
// the first comma is replaced, thousands separators are deliberately
// not handled, and anything non-finite collapses to 0.
func ParseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Sum totals the parsed amounts of all rows.
func Sum(rows []Row) float64 {
	var total float64
	for _, r := range rows {
		total += ParseDecimal(r.Amount)
	}
	return total
}

// Reconciled reports whether the rows cover the base total exactly to
// the cent.
func Reconciled(rows []Row, base float64) bool {
	return Round2(Sum(rows)) == Round2(base)
}

// FillMissing distributes the unallocated remainder of base across
// the targeted rows that have no amount yet. Rows with an explicit
// positive percentage are weighted by it, the rest weigh 1; the last
// missing row absorbs the rounding residual so the batch reconciles
// exactly. Failure paths return an advisory error and leave rows
// untouched.
func FillMissing(rows []Row, base float64, opts FillOptions) error {
	valid := make([]int, 0, len(rows))
	for i, r := range rows {
		if hasTarget(r, opts) {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return ErrNoTargets
	}

	var filledSum float64
	missing := make([]int, 0, len(valid))
	for _, i := range valid {
		if amount := ParseDecimal(rows[i].Amount); amount > 0 {
			filledSum += amount
		} else {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return ErrNothingToFill
	}

	remaining := base - filledSum
	if remaining < 0 {
		remaining = 0
	}
	if remaining <= 0 {
		return ErrNoRemainder
	}

	weights := make([]float64, len(missing))
	var totalWeight float64
	for k, i := range missing {
		w := ParseDecimal(rows[i].Percentage)
		if w <= 0 {
			w = 1
		}
		weights[k] = w
		totalWeight += w
	}
	if totalWeight <= 0 || math.IsNaN(totalWeight) || math.IsInf(totalWeight, 0) {
		for k := range weights {
			weights[k] = 1
		}
		totalWeight = float64(len(missing))
	}

	var assigned float64
	for k, i := range missing {
		var portion float64
		if k == len(missing)-1 {
			portion = Round2(remaining - assigned)
		} else {
			portion = Round2(remaining * weights[k] / totalWeight)
			assigned += portion
		}
		rows[i].Amount = formatDecimal(portion)
		if base > 0 {
			rows[i].Percentage = formatDecimal(Round2(portion / base * 100))
		}
	}
	return nil
}

func hasTarget(r Row, opts FillOptions) bool {
	if r.ChartOfAccountsID == 0 {
		return false
	}
	if opts.RequireCostCenter && r.CostCenterID == 0 {
		return false
	}
	return true
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
