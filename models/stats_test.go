package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func record(team, season string, fgm float64) StatRecord {
	return StatRecord{
		Key:    CompositeKey{Team: team, FilterCombination: FilterCombination{Season: season, Conference: "East", Position: "Guard"}},
		Values: map[string]*float64{"FGM": Float(fgm)},
	}
}

func TestConcatBatches(t *testing.T) {
	first := &ExtractionBatch{Family: Shooting, Categories: []string{"FGM"}, Records: []StatRecord{record("A", "S1", 1)}}
	empty := &ExtractionBatch{Family: Shooting}
	second := &ExtractionBatch{Family: Shooting, Categories: []string{"FGM"}, Records: []StatRecord{record("B", "S2", 2)}}

	out, err := ConcatBatches(empty, first, second)
	require.NoError(t, err)
	require.Equal(t, []string{"FGM"}, out.Categories)
	require.Len(t, out.Records, 2)
	require.Equal(t, "A", out.Records[0].Key.Team)
	require.Equal(t, "B", out.Records[1].Key.Team)
}

func TestConcatBatchesRejectsMixedInput(t *testing.T) {
	shooting := &ExtractionBatch{Family: Shooting, Categories: []string{"FGM"}, Records: []StatRecord{record("A", "S1", 1)}}
	boxOuts := &ExtractionBatch{Family: BoxOuts, Categories: []string{"FGM"}}
	_, err := ConcatBatches(shooting, boxOuts)
	require.Error(t, err)

	other := &ExtractionBatch{Family: Shooting, Categories: []string{"FGA"}, Records: []StatRecord{record("B", "S1", 1)}}
	_, err = ConcatBatches(shooting, other)
	require.Error(t, err)

	_, err = ConcatBatches()
	require.Error(t, err)
}

func TestKeys(t *testing.T) {
	key := CompositeKey{Team: "Miami Heat", FilterCombination: FilterCombination{Season: "2024-25", Conference: "East", Position: "Center"}}
	require.Equal(t, "Miami Heat@2024-25/East/Center", key.String())
	require.Equal(t, "2024-25/East/Center", key.Group().String())
	require.Equal(t, "East", key.Value(Conference))
}

func TestMergedRecordClone(t *testing.T) {
	rec := MergedRecord{Values: map[string]*float64{"FGM": Float(3), "FGA": nil}}
	clone := rec.Clone()
	*clone.Values["FGM"] = 9

	require.Equal(t, 3.0, *rec.Values["FGM"])
	require.Nil(t, clone.Values["FGA"])
	require.Contains(t, clone.Values, "FGA")
}

func TestTableHeader(t *testing.T) {
	table := &Table{Categories: []string{"off_boxouts"}}
	require.Equal(t, []string{"Team", "Season", "Conference", "Position", "off_boxouts"}, table.Header())
}
