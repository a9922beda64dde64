package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"nba-stats-scraper/models"

	"github.com/stretchr/testify/require"
)

func sampleTable() *models.Table {
	return &models.Table{
		Categories: []string{"FGM", "FG_PCT"},
		Records: []models.MergedRecord{
			{
				Key: models.CompositeKey{
					Team:              "Boston Celtics",
					FilterCombination: models.FilterCombination{Season: "2024-25", Conference: "East", Position: "Guard"},
				},
				Values: map[string]*float64{"FGM": models.Float(40.5), "FG_PCT": nil},
			},
		},
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleTable(), Semicolon))

	expected := "Team;Season;Conference;Position;FGM;FG_PCT\n" +
		"Boston Celtics;2024-25;East;Guard;40.5;\n"
	require.Equal(t, expected, buf.String())
}

func TestWriteBothAndReadBack(t *testing.T) {
	dir := t.TempDir()

	paths, err := WriteBoth(dir, "nba_test_dataset", sampleTable())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "nba_test_dataset.csv"),
		filepath.Join(dir, "nba_test_dataset_excel.csv"),
	}, paths)

	for _, path := range paths {
		table, err := ReadCSV(path)
		require.NoError(t, err)
		require.Equal(t, []string{"FGM", "FG_PCT"}, table.Categories)
		require.Len(t, table.Records, 1)

		rec := table.Records[0]
		require.Equal(t, "Boston Celtics", rec.Key.Team)
		require.Equal(t, "Guard", rec.Key.Position)
		require.Equal(t, 40.5, *rec.Values["FGM"])
		require.Nil(t, rec.Values["FG_PCT"])
	}
}

func TestReadCSVRejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,Year\nx,1\n"), 0644))

	_, err := ReadCSV(path)
	require.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "", FormatValue(nil))
	require.Equal(t, "12", FormatValue(models.Float(12)))
	require.Equal(t, "0.125", FormatValue(models.Float(0.125)))
}
