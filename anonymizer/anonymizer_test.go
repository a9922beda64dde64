package anonymizer

import (
	"math"
	"math/rand/v2"
	"testing"

	"nba-stats-scraper/models"

	"github.com/stretchr/testify/require"
)

func groupKey(team, season string) models.CompositeKey {
	return models.CompositeKey{
		Team:              team,
		FilterCombination: models.FilterCombination{Season: season, Conference: "East", Position: "Guard"},
	}
}

func row(team, season string, values map[string]*float64) models.MergedRecord {
	return models.MergedRecord{Key: groupKey(team, season), Values: values}
}

func TestComputeGroupStats(t *testing.T) {
	table := &models.Table{
		Categories: []string{"FGM"},
		Records: []models.MergedRecord{
			row("A", "S1", map[string]*float64{"FGM": models.Float(2)}),
			row("B", "S1", map[string]*float64{"FGM": models.Float(4)}),
			row("C", "S1", map[string]*float64{"FGM": models.Float(6)}),
			row("D", "S1", map[string]*float64{"FGM": nil}),
			row("E", "S2", map[string]*float64{"FGM": nil}),
		},
	}

	stats := ComputeGroupStats(table)

	s1 := stats.Lookup(groupKey("", "S1").Group(), "FGM")
	require.Equal(t, 3, s1.Count)
	require.InDelta(t, 4.0, s1.Mean, 1e-9)
	require.InDelta(t, 2.0, s1.Std, 1e-9) // sample std of 2,4,6

	s2 := stats.Lookup(groupKey("", "S2").Group(), "FGM")
	require.False(t, s2.Defined())
}

func TestAnonymizeDegenerateGroup(t *testing.T) {
	table := &models.Table{
		Categories: []string{"REB"},
		Records: []models.MergedRecord{
			row("A", "S1", map[string]*float64{"REB": models.Float(10)}),
			row("B", "S1", map[string]*float64{"REB": models.Float(10)}),
			row("C", "S1", map[string]*float64{"REB": models.Float(10)}),
		},
	}

	synthetic := NewSeeded(7).Anonymize(table)
	for _, rec := range synthetic.Records {
		require.Equal(t, 10.0, *rec.Values["REB"])
	}
}

func TestAnonymizeStaysWithinOneStd(t *testing.T) {
	table := &models.Table{
		Categories: []string{"AST"},
		Records: []models.MergedRecord{
			row("A", "S1", map[string]*float64{"AST": models.Float(20)}),
			row("B", "S1", map[string]*float64{"AST": models.Float(25)}),
			row("C", "S1", map[string]*float64{"AST": models.Float(30)}),
			row("D", "S1", map[string]*float64{"AST": nil}),
		},
	}
	std := ComputeGroupStats(table).Lookup(groupKey("", "S1").Group(), "AST").Std

	for seed := uint64(0); seed < 50; seed++ {
		synthetic := NewSeeded(seed).Anonymize(table)
		require.Len(t, synthetic.Records, len(table.Records))
		for i, rec := range synthetic.Records {
			require.Equal(t, table.Records[i].Key, rec.Key)
			orig := table.Records[i].Values["AST"]
			if orig == nil {
				require.Nil(t, rec.Values["AST"])
				continue
			}
			got := *rec.Values["AST"]
			require.GreaterOrEqual(t, got, *orig-std)
			require.LessOrEqual(t, got, *orig+std)
		}
	}
}

func TestAnonymizeDoesNotMutateInput(t *testing.T) {
	table := &models.Table{
		Categories: []string{"AST"},
		Records: []models.MergedRecord{
			row("A", "S1", map[string]*float64{"AST": models.Float(1)}),
			row("B", "S1", map[string]*float64{"AST": models.Float(9)}),
		},
	}

	NewSeeded(3).Anonymize(table)
	require.Equal(t, 1.0, *table.Records[0].Values["AST"])
	require.Equal(t, 9.0, *table.Records[1].Values["AST"])
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name      string
		made      *float64
		attempted *float64
		expected  *float64
	}{
		{"perturbed counts", models.Float(40), models.Float(80), models.Float(50)},
		{"nothing attempted", models.Float(3), models.Float(0), nil},
		{"null made", nil, models.Float(10), nil},
		{"null attempted", models.Float(1), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentage(tt.made, tt.attempted)
			if tt.expected == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.InDelta(t, *tt.expected, *got, 1e-9)
		})
	}
}

func TestAnonymizeRecomputesPercentageFromPerturbedCounts(t *testing.T) {
	// Both rows share made/attempted, so the group std is zero and the
	// perturbed counts equal the originals; the stored percentage is stale.
	table := &models.Table{
		Categories: []string{"FGM", "FGA", "FG_PCT"},
		Records: []models.MergedRecord{
			row("A", "S1", map[string]*float64{"FGM": models.Float(40), "FGA": models.Float(80), "FG_PCT": models.Float(99)}),
			row("B", "S1", map[string]*float64{"FGM": models.Float(40), "FGA": models.Float(80), "FG_PCT": models.Float(12)}),
			row("C", "S2", map[string]*float64{"FGM": models.Float(0), "FGA": models.Float(0), "FG_PCT": models.Float(0)}),
		},
	}

	synthetic := NewSeeded(1).Anonymize(table)

	require.InDelta(t, 50.0, *synthetic.Records[0].Values["FG_PCT"], 1e-9)
	require.InDelta(t, 50.0, *synthetic.Records[1].Values["FG_PCT"], 1e-9)
	require.Nil(t, synthetic.Records[2].Values["FG_PCT"])
}

func TestAnonymizePercentageConsistency(t *testing.T) {
	table := &models.Table{
		Categories: []string{"FG3M", "FG3A", "FG3_PCT", "OREB"},
		Records: []models.MergedRecord{
			row("A", "S1", map[string]*float64{"FG3M": models.Float(10), "FG3A": models.Float(30), "FG3_PCT": models.Float(33.3), "OREB": models.Float(9)}),
			row("B", "S1", map[string]*float64{"FG3M": models.Float(14), "FG3A": models.Float(36), "FG3_PCT": models.Float(38.9), "OREB": models.Float(11)}),
			row("C", "S1", map[string]*float64{"FG3M": models.Float(12), "FG3A": models.Float(40), "FG3_PCT": models.Float(30), "OREB": models.Float(10)}),
		},
	}

	synthetic := NewSeeded(99).Anonymize(table)
	for _, rec := range synthetic.Records {
		made, attempted := *rec.Values["FG3M"], *rec.Values["FG3A"]
		require.False(t, math.IsNaN(made))
		require.InDelta(t, made/attempted*100, *rec.Values["FG3_PCT"], 1e-9)
	}
}

func TestIsPercentage(t *testing.T) {
	require.True(t, IsPercentage("FG_PCT"))
	require.True(t, IsPercentage("Restricted Area FG_PCT"))
	require.False(t, IsPercentage("FGA"))
	require.False(t, IsPercentage("fg_pct"))
}

// constSource always yields the same word
type constSource uint64

func (s constSource) Uint64() uint64 { return uint64(s) }

func TestPerturbReachesBothEnds(t *testing.T) {
	cs := ColumnStats{Mean: 25, Std: 5, Count: 3}

	low := NewAnonymizer(rand.New(constSource(1))).perturb(models.Float(20), cs)
	require.Equal(t, 15.0, *low)

	high := NewAnonymizer(rand.New(constSource(math.MaxUint64))).perturb(models.Float(20), cs)
	require.InDelta(t, 25.0, *high, 1e-9)
}
