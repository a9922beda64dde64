package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nba-stats-scraper/models"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrSchemaMismatch is returned when a row does not fit the category list
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrUnknownCategory is returned when a requested category is not in the table header
	ErrUnknownCategory = errors.New("unknown category")
	// ErrTableNotFound is returned when the markup has no stats table
	ErrTableNotFound = errors.New("stats table not found")
)

// Row is one table body entry: the team name and its values in category order.
// A nil value is a null cell.
type Row struct {
	Team   string
	Values []*float64
}

// Table is the parsed content of a rendered stats table
type Table struct {
	Categories []string
	Rows       []Row
}

// TableParser turns rendered markup into typed rows
type TableParser interface {
	// ParseTable parses the stats table in markup. With nil categories the
	// table header defines the schema; otherwise only the named columns are
	// returned, looked up by header name.
	ParseTable(markup string, categories []string) (*Table, error)
}

// Selectors locate the stats table and the filter dropdowns in the markup
type Selectors struct {
	Table       string
	HeaderRow   string
	HeaderAttr  string
	FilterBlock string
	FilterLabel string
}

// DefaultSelectors match the stats pages of nba.com
var DefaultSelectors = Selectors{
	Table:       "table.Crom_table__p1iZz",
	HeaderRow:   "thead tr.Crom_headers__mzI_m",
	HeaderAttr:  "field",
	FilterBlock: ".nba-stats-primary-split-block",
	FilterLabel: ".DropDown_label__lttfI",
}

// Parser extracts stats tables from HTML
type Parser struct {
	sel Selectors
}

// NewParser creates a new Parser instance. Empty selectors fall back to the defaults.
func NewParser(sel Selectors) *Parser {
	if sel.Table == "" {
		sel.Table = DefaultSelectors.Table
	}
	if sel.HeaderRow == "" {
		sel.HeaderRow = DefaultSelectors.HeaderRow
	}
	if sel.HeaderAttr == "" {
		sel.HeaderAttr = DefaultSelectors.HeaderAttr
	}
	if sel.FilterBlock == "" {
		sel.FilterBlock = DefaultSelectors.FilterBlock
	}
	if sel.FilterLabel == "" {
		sel.FilterLabel = DefaultSelectors.FilterLabel
	}
	return &Parser{sel: sel}
}

// ParseTable implements the TableParser interface
func (p *Parser) ParseTable(markup string, categories []string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	table := doc.Find(p.sel.Table).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no element matches %q", ErrTableNotFound, p.sel.Table)
	}

	header := p.extractHeader(table)

	// Column index in the body cells (team cell excluded) for every output category
	var columns []int
	fullHeader := categories == nil
	if fullHeader {
		categories = header
		columns = make([]int, len(header))
		for i := range header {
			columns[i] = i
		}
	} else {
		columns, err = lookupColumns(header, categories)
		if err != nil {
			return nil, err
		}
	}

	result := &Table{Categories: append([]string(nil), categories...)}

	var rowErr error
	table.Find("tbody tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true
		}

		team := strings.TrimSpace(cells.First().Text())
		stats := cells.Slice(1, cells.Length())

		// The full-header schema requires every row to match it exactly
		if fullHeader && stats.Length() != len(header) {
			rowErr = fmt.Errorf("%w: row %d (%s) has %d values for %d categories",
				ErrSchemaMismatch, i+1, team, stats.Length(), len(header))
			return false
		}

		row := Row{Team: team, Values: make([]*float64, len(columns))}
		for j, col := range columns {
			if col >= stats.Length() {
				rowErr = fmt.Errorf("%w: row %d (%s) has no value for %s",
					ErrSchemaMismatch, i+1, team, categories[j])
				return false
			}
			value, err := parseCell(stats.Eq(col).Text())
			if err != nil {
				rowErr = fmt.Errorf("%w: row %d (%s) column %s: %v",
					ErrSchemaMismatch, i+1, team, categories[j], err)
				return false
			}
			row.Values[j] = value
		}
		result.Rows = append(result.Rows, row)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return result, nil
}

// extractHeader reads the category names of the header row, skipping the team column
func (p *Parser) extractHeader(table *goquery.Selection) []string {
	var header []string
	table.Find(p.sel.HeaderRow).First().Find("th").Each(func(i int, th *goquery.Selection) {
		if i == 0 {
			return
		}
		name := strings.TrimSpace(th.AttrOr(p.sel.HeaderAttr, ""))
		if name == "" {
			name = strings.TrimSpace(th.Text())
		}
		header = append(header, name)
	})
	return header
}

// lookupColumns finds each requested category in the header by name, ignoring case
func lookupColumns(header, categories []string) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(name)
		if _, ok := index[key]; !ok {
			index[key] = i
		}
	}

	columns := make([]int, len(categories))
	for i, c := range categories {
		col, ok := index[strings.ToLower(c)]
		if !ok {
			return nil, fmt.Errorf("%w: %q not in header [%s]", ErrUnknownCategory, c, strings.Join(header, ", "))
		}
		columns[i] = col
	}
	return columns, nil
}

// parseCell converts a table cell into a nullable number
func parseCell(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" || text == "\u2014" {
		return nil, nil
	}
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSuffix(text, "%")

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", text)
	}
	return &value, nil
}

// ParseFilterAxes reads the season, conference and position dropdowns from the
// filter block. Axes that are not present come back with no values.
func (p *Parser) ParseFilterAxes(markup string) ([]models.FilterAxis, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	scope := doc.Find(p.sel.FilterBlock).First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	found := make(map[models.Axis][]string)
	scope.Find(p.sel.FilterLabel).Each(func(i int, label *goquery.Selection) {
		tag := strings.ToUpper(strings.TrimSpace(label.Find("p").First().Text()))
		for _, axis := range models.Axes {
			if tag != strings.ToUpper(string(axis)) {
				continue
			}
			if _, seen := found[axis]; seen {
				return
			}
			var options []string
			label.Find("option").Each(func(j int, opt *goquery.Selection) {
				text := strings.TrimSpace(opt.Text())
				if text != "" {
					options = append(options, text)
				}
			})
			found[axis] = options
		}
	})

	axes := make([]models.FilterAxis, 0, len(models.Axes))
	for _, axis := range models.Axes {
		axes = append(axes, models.FilterAxis{Name: axis, Values: found[axis]})
	}
	return axes, nil
}
