package db

import (
	"testing"

	"nba-stats-scraper/models"
)

func TestCells(t *testing.T) {
	key := models.CompositeKey{
		Team:              "Denver Nuggets",
		FilterCombination: models.FilterCombination{Season: "2024-25", Conference: "West", Position: "Center"},
	}
	table := &models.Table{
		Categories: []string{"off_boxouts", "def_boxouts"},
		Records: []models.MergedRecord{
			{Key: key, Values: map[string]*float64{"off_boxouts": models.Float(2.5), "def_boxouts": nil}},
		},
	}

	cells := Cells(table)
	if len(cells) != 2 {
		t.Fatalf("Cells() returned %d cells, want 2", len(cells))
	}
	if cells[0].Category != "off_boxouts" || *cells[0].Value != 2.5 {
		t.Errorf("first cell = %+v", cells[0])
	}
	if cells[1].Value != nil {
		t.Errorf("null cell became %v", *cells[1].Value)
	}
	if cells[1].Key != key {
		t.Errorf("cell key = %v, want %v", cells[1].Key, key)
	}
}

func TestWithSearchPath(t *testing.T) {
	tests := []struct {
		name     string
		connStr  string
		expected string
	}{
		{
			name:     "key value",
			connStr:  "host=localhost port=5432 dbname=nba_stats sslmode=disable",
			expected: "host=localhost port=5432 dbname=nba_stats sslmode=disable search_path=nba_stats",
		},
		{
			name:     "url",
			connStr:  "postgres://u:p@db.internal:5432/stats?sslmode=require",
			expected: "postgres://u:p@db.internal:5432/stats?search_path=nba_stats&sslmode=require",
		},
		{
			name:     "already set",
			connStr:  "postgresql://db.internal/stats?search_path=custom",
			expected: "postgresql://db.internal/stats?search_path=custom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withSearchPath(tt.connStr, schema); got != tt.expected {
				t.Errorf("withSearchPath() = %q, want %q", got, tt.expected)
			}
		})
	}
}
