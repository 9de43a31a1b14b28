package matching

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	require.Equal(t, "instalacao eletrica", NormalizeText("Instalação Elétrica"))
	require.Equal(t, "cabo hdmi 2 0", NormalizeText("  Cabo-HDMI!! 2.0  "))
	require.Equal(t, "", NormalizeText("!!! ---"))
	require.Equal(t, "", NormalizeText(""))
}

func TestTokenScoreBounds(t *testing.T) {
	require.Equal(t, 0.0, TokenScore("", "parafuso m6"))
	require.Equal(t, 0.0, TokenScore("parafuso m6", ""))
	require.Equal(t, 1.0, TokenScore("parafuso m6", "parafuso m6"))

	score := TokenScore("parafuso sextavado m6 inox", "parafuso m6")
	require.Greater(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
	require.InDelta(t, 0.5, score, 1e-9)
}

func TestFindBestMatchExactCodeDominates(t *testing.T) {
	item := LineItem{Code: "ABC-1", Description: "Parafuso M6"}
	candidates := []Candidate{{ID: 10, Code: "ABC-1", Description: "Different"}}

	match := FindBestMatch(item, candidates)
	require.NotNil(t, match)
	require.Equal(t, int64(10), match.ID)
	require.Equal(t, 1.0, match.Score)
}

func TestFindBestMatchDescriptionContainment(t *testing.T) {
	item := LineItem{Description: "Cabo HDMI 2.0"}
	candidates := []Candidate{{ID: 5, Description: "Cabo hdmi 2,0 preto"}}

	match := FindBestMatch(item, candidates)
	require.NotNil(t, match)
	require.Equal(t, int64(5), match.ID)
	require.GreaterOrEqual(t, match.Score, 0.7)
}

func TestFindBestMatchCodeContainment(t *testing.T) {
	item := LineItem{Code: "PRD-7788"}
	candidates := []Candidate{{ID: 3, ProductCode: "7788", Description: "other"}}

	match := FindBestMatch(item, candidates)
	require.NotNil(t, match)
	require.GreaterOrEqual(t, match.Score, 0.85)
	require.Less(t, match.Score, 1.0)
}

func TestFindBestMatchCodePriority(t *testing.T) {
	// ProductCode wins over ItemCode and Code when more than one is set.
	item := LineItem{Code: "AAA"}
	candidates := []Candidate{{ID: 1, ProductCode: "AAA", ItemCode: "BBB", Code: "CCC"}}

	match := FindBestMatch(item, candidates)
	require.NotNil(t, match)
	require.Equal(t, 1.0, match.Score)
}

func TestFindBestMatchMaximality(t *testing.T) {
	item := LineItem{Code: "FLT-20", Description: "Filtro de óleo 20 micra"}
	candidates := []Candidate{
		{ID: 1, Description: "Correia dentada"},
		{ID: 2, ItemCode: "FLT-20", Description: "Filtro"},
		{ID: 3, Description: "Filtro de oleo 20 micra"},
		{ID: 4, Description: "Filtro de ar"},
	}

	best := FindBestMatch(item, candidates)
	require.NotNil(t, best)
	for _, cand := range candidates {
		single := FindBestMatch(item, []Candidate{cand})
		require.NotNil(t, single)
		require.GreaterOrEqual(t, best.Score, single.Score)
	}
	require.Equal(t, int64(2), best.ID)
	require.Equal(t, 1.0, best.Score)
}

func TestFindBestMatchDeterministicAndTieKeepsFirst(t *testing.T) {
	item := LineItem{Description: "Luva nitrílica M"}
	candidates := []Candidate{
		{ID: 7, Description: "Luva nitrilica M"},
		{ID: 8, Description: "Luva nitrilica M"},
	}

	first := FindBestMatch(item, candidates)
	second := FindBestMatch(item, candidates)
	require.Equal(t, first, second)
	require.Equal(t, int64(7), first.ID)
}

func TestFindBestMatchEmptyCandidates(t *testing.T) {
	require.Nil(t, FindBestMatch(LineItem{Description: "x"}, nil))
	require.Nil(t, FindBestMatch(LineItem{Description: "x"}, []Candidate{}))
}

func TestThresholdGate(t *testing.T) {
	item := LineItem{Description: "Chapa de aço inox"}
	candidates := []Candidate{{ID: 1, Description: "Tinta esmalte azul"}}

	match := FindBestMatch(item, candidates)
	require.NotNil(t, match)
	require.Less(t, match.Score, Threshold)
}
