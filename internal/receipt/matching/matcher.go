// Package matching links free-text invoice line items to purchase
// order lines using normalized token overlap.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Threshold is the minimum score at which a match may be auto-linked.
// Anything below is surfaced to the user as unlinked.
const Threshold = 0.45

// LineItem is an incoming invoice line, manually entered or taken
// from an XML import preview.
type LineItem struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Total derives the line value.
func (l LineItem) Total() float64 {
	return l.Quantity * l.UnitPrice
}

// Candidate is a purchase order line offered to the matcher. Code
// fields are tried in order: ProductCode, ItemCode, Code.
type Candidate struct {
	ID          int64
	ProductCode string
	ItemCode    string
	Code        string
	Description string
}

// Match pairs a candidate id with its confidence score.
type Match struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText strips diacritics, lower-cases and collapses runs of
// non-alphanumeric characters into single spaces. Total on any input.
func NormalizeText(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// TokenScore computes |intersection| / max(|a|, |b|) over the
// whitespace token sets of two normalized strings. Returns 0 when
// either side has no tokens; otherwise bounded in [0, 1].
func TokenScore(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	shared := 0
	for tok := range left {
		if _, ok := right[tok]; ok {
			shared++
		}
	}
	denom := len(left)
	if len(right) > denom {
		denom = len(right)
	}
	return float64(shared) / float64(denom)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// FindBestMatch returns the highest-scoring candidate for the item,
// or nil when there are no candidates. Exact code equality dominates
// with score 1; code containment raises the score to at least 0.85;
// description equality and containment raise it to at least 0.9 and
// 0.7; otherwise token overlap applies. Ties keep the first-seen
// candidate.
func FindBestMatch(item LineItem, candidates []Candidate) *Match {
	if len(candidates) == 0 {
		return nil
	}
	itemCode := NormalizeText(item.Code)
	itemDesc := NormalizeText(item.Description)

	var best *Match
	for _, cand := range candidates {
		score := scoreCandidate(itemCode, itemDesc, cand)
		if best == nil || score > best.Score {
			best = &Match{ID: cand.ID, Score: score}
		}
	}
	return best
}

func scoreCandidate(itemCode, itemDesc string, cand Candidate) float64 {
	score := 0.0

	candCode := NormalizeText(firstNonEmpty(cand.ProductCode, cand.ItemCode, cand.Code))
	if itemCode != "" && candCode != "" {
		switch {
		case itemCode == candCode:
			return 1
		case strings.Contains(itemCode, candCode) || strings.Contains(candCode, itemCode):
			score = 0.85
		}
	}

	candDesc := NormalizeText(cand.Description)
	if itemDesc != "" && candDesc != "" {
		switch {
		case itemDesc == candDesc:
			if score < 0.9 {
				score = 0.9
			}
		case strings.Contains(itemDesc, candDesc) || strings.Contains(candDesc, itemDesc):
			if score < 0.7 {
				score = 0.7
			}
		default:
			if ts := TokenScore(itemDesc, candDesc); ts > score {
				score = ts
			}
		}
	}
	return score
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
