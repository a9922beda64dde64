package parser

import (
	"errors"
	"testing"

	"nba-stats-scraper/models"
)

const shootingHTML = `
<html><body>
<table class="Crom_table__p1iZz">
  <thead>
    <tr class="Crom_headers__mzI_m">
      <th field="TEAM_NAME">Team</th>
      <th field="FGM">FGM</th>
      <th field="FGA">FGA</th>
      <th field="FG_PCT">FG%</th>
    </tr>
  </thead>
  <tbody>
    <tr><td> Boston Celtics </td><td>40</td><td>80</td><td>50.0</td></tr>
    <tr><td>Miami Heat</td><td>1,002</td><td>-</td><td></td></tr>
  </tbody>
</table>
</body></html>`

const hustleHTML = `
<table class="Crom_table__p1iZz">
  <thead>
    <tr class="Crom_headers__mzI_m">
      <th field="TEAM_NAME">Team</th>
      <th field="GP">GP</th>
      <th field="CONTESTED_SHOTS_3PT">3PT</th>
      <th field="CONTESTED_SHOTS_2PT">2PT</th>
    </tr>
  </thead>
  <tbody>
    <tr><td>Denver Nuggets</td><td>82</td><td>21.5</td><td>30.25</td></tr>
  </tbody>
</table>`

func TestParseTable_FullHeader(t *testing.T) {
	p := NewParser(Selectors{})

	table, err := p.ParseTable(shootingHTML, nil)
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}

	wantCategories := []string{"FGM", "FGA", "FG_PCT"}
	if len(table.Categories) != len(wantCategories) {
		t.Fatalf("ParseTable() categories = %v, want %v", table.Categories, wantCategories)
	}
	for i, c := range wantCategories {
		if table.Categories[i] != c {
			t.Errorf("category %d = %q, want %q", i, table.Categories[i], c)
		}
	}

	if len(table.Rows) != 2 {
		t.Fatalf("ParseTable() rows = %d, want 2", len(table.Rows))
	}

	first := table.Rows[0]
	if first.Team != "Boston Celtics" {
		t.Errorf("team = %q, want %q", first.Team, "Boston Celtics")
	}
	if *first.Values[0] != 40 || *first.Values[1] != 80 || *first.Values[2] != 50 {
		t.Errorf("values = %v, %v, %v", *first.Values[0], *first.Values[1], *first.Values[2])
	}

	second := table.Rows[1]
	if second.Values[0] == nil || *second.Values[0] != 1002 {
		t.Errorf("thousands separator not handled: %v", second.Values[0])
	}
	if second.Values[1] != nil || second.Values[2] != nil {
		t.Errorf("expected null cells, got %v and %v", second.Values[1], second.Values[2])
	}
}

func TestParseTable_SubsetByName(t *testing.T) {
	p := NewParser(Selectors{})

	// Requested order differs from header order; lookup is by name, not position
	table, err := p.ParseTable(hustleHTML, []string{"contested_shots_2pt", "contested_shots_3pt"})
	if err != nil {
		t.Fatalf("ParseTable() error = %v", err)
	}

	if len(table.Rows) != 1 {
		t.Fatalf("ParseTable() rows = %d, want 1", len(table.Rows))
	}
	row := table.Rows[0]
	if *row.Values[0] != 30.25 {
		t.Errorf("contested_shots_2pt = %v, want 30.25", *row.Values[0])
	}
	if *row.Values[1] != 21.5 {
		t.Errorf("contested_shots_3pt = %v, want 21.5", *row.Values[1])
	}
	if table.Categories[0] != "contested_shots_2pt" {
		t.Errorf("categories = %v", table.Categories)
	}
}

func TestParseTable_Errors(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		categories []string
		wantErr    error
	}{
		{
			name:       "unknown category",
			html:       hustleHTML,
			categories: []string{"off_boxouts"},
			wantErr:    ErrUnknownCategory,
		},
		{
			name: "row shorter than header",
			html: `<table class="Crom_table__p1iZz">
				<thead><tr class="Crom_headers__mzI_m"><th>Team</th><th field="FGM"></th><th field="FGA"></th></tr></thead>
				<tbody><tr><td>Utah Jazz</td><td>30</td></tr></tbody></table>`,
			wantErr: ErrSchemaMismatch,
		},
		{
			name: "non numeric cell",
			html: `<table class="Crom_table__p1iZz">
				<thead><tr class="Crom_headers__mzI_m"><th>Team</th><th field="FGM"></th></tr></thead>
				<tbody><tr><td>Utah Jazz</td><td>n/a</td></tr></tbody></table>`,
			wantErr: ErrSchemaMismatch,
		},
		{
			name:    "no table",
			html:    `<div>Loading...</div>`,
			wantErr: ErrTableNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(Selectors{})
			_, err := p.ParseTable(tt.html, tt.categories)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseTable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *float64
		wantErr  bool
	}{
		{"integer", "12", models.Float(12), false},
		{"decimal", " 45.7 ", models.Float(45.7), false},
		{"thousands", "1,234", models.Float(1234), false},
		{"percent sign", "38.1%", models.Float(38.1), false},
		{"dash is null", "-", nil, false},
		{"empty is null", "", nil, false},
		{"text", "abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCell(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCell() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.expected == nil {
				if got != nil {
					t.Errorf("parseCell() = %v, want nil", *got)
				}
				return
			}
			if got == nil || *got != *tt.expected {
				t.Errorf("parseCell() = %v, want %v", got, *tt.expected)
			}
		})
	}
}

func TestParseFilterAxes(t *testing.T) {
	html := `
<div class="nba-stats-primary-split-block">
  <div class="DropDown_label__lttfI"><p>Season</p><select><option>2024-25</option><option>2023-24</option></select></div>
  <div class="DropDown_label__lttfI"><p>Season Type</p><select><option>Regular Season</option></select></div>
  <div class="DropDown_label__lttfI"><p>Conference</p><select><option>All</option><option>East</option><option>West</option></select></div>
  <div class="DropDown_label__lttfI"><p>POSITION</p><select><option>Guard</option><option>Center</option></select></div>
</div>`

	axes, err := NewParser(Selectors{}).ParseFilterAxes(html)
	if err != nil {
		t.Fatalf("ParseFilterAxes() error = %v", err)
	}
	if len(axes) != 3 {
		t.Fatalf("ParseFilterAxes() returned %d axes, want 3", len(axes))
	}

	expected := map[models.Axis][]string{
		models.Season:     {"2024-25", "2023-24"},
		models.Conference: {"All", "East", "West"},
		models.Position:   {"Guard", "Center"},
	}
	for _, axis := range axes {
		want := expected[axis.Name]
		if len(axis.Values) != len(want) {
			t.Errorf("%s values = %v, want %v", axis.Name, axis.Values, want)
			continue
		}
		for i := range want {
			if axis.Values[i] != want[i] {
				t.Errorf("%s value %d = %q, want %q", axis.Name, i, axis.Values[i], want[i])
			}
		}
	}
}

func TestParseFilterAxes_Missing(t *testing.T) {
	axes, err := NewParser(Selectors{}).ParseFilterAxes(`<div></div>`)
	if err != nil {
		t.Fatalf("ParseFilterAxes() error = %v", err)
	}
	for _, axis := range axes {
		if len(axis.Values) != 0 {
			t.Errorf("%s values = %v, want none", axis.Name, axis.Values)
		}
	}
}
