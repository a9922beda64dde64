package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nba-stats-scraper/models"
	"nba-stats-scraper/scraper"
)

const filterMarkup = `
<div class="nba-stats-primary-split-block">
  <div class="DropDown_label__lttfI"><p>Season</p><select><option>2024-25</option><option>2023-24</option></select></div>
  <div class="DropDown_label__lttfI"><p>Conference</p><select><option>All</option><option>East</option><option>West</option></select></div>
  <div class="DropDown_label__lttfI"><p>Position</p><select><option>All</option><option>Guard</option><option>Center</option></select></div>
</div>`

// statsTable renders a stats table whose header carries fields and whose
// rows hold one team each
func statsTable(fields []string, rows map[string][]float64, teams []string) string {
	var b strings.Builder
	b.WriteString(`<table class="Crom_table__p1iZz"><thead><tr class="Crom_headers__mzI_m"><th field="TEAM_NAME">Team</th>`)
	for _, f := range fields {
		fmt.Fprintf(&b, `<th field="%s">%s</th>`, f, f)
	}
	b.WriteString(`</tr></thead><tbody>`)
	for _, team := range teams {
		fmt.Fprintf(&b, `<tr><td>%s</td>`, team)
		for _, v := range rows[team] {
			fmt.Fprintf(&b, `<td>%g</td>`, v)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// fakeSession serves canned markup per filter combination. A combination
// without a table never renders.
type fakeSession struct {
	tables map[models.FilterCombination]string

	navigateErr error
	cookiesErr  error
	// onSubmit runs after every submission with the running count
	onSubmit func(n int)

	selected  models.FilterCombination
	submitted int
	navigated []string
	closed    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{tables: make(map[models.FilterCombination]string)}
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	if f.navigateErr != nil {
		return f.navigateErr
	}
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) AcceptCookies(ctx context.Context) error {
	return f.cookiesErr
}

func (f *fakeSession) OpenAdvancedFilters(ctx context.Context) error {
	return nil
}

func (f *fakeSession) SelectOption(ctx context.Context, axis models.Axis, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch axis {
	case models.Season:
		f.selected.Season = value
	case models.Conference:
		f.selected.Conference = value
	case models.Position:
		f.selected.Position = value
	default:
		return fmt.Errorf("filter %s not found on page", axis)
	}
	return nil
}

func (f *fakeSession) Submit(ctx context.Context) error {
	f.submitted++
	if f.onSubmit != nil {
		f.onSubmit(f.submitted)
	}
	return nil
}

func (f *fakeSession) WaitForTableVisible(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := f.tables[f.selected]; !ok {
		return fmt.Errorf("%w: no table after %s", scraper.ErrRenderTimeout, timeout)
	}
	return nil
}

func (f *fakeSession) CurrentMarkup(ctx context.Context) (string, error) {
	if f.submitted == 0 {
		return filterMarkup, nil
	}
	return filterMarkup + f.tables[f.selected], nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeAccess struct {
	allowed bool
	err     error
	calls   int
}

func (f *fakeAccess) CanFetch(ctx context.Context, robotsURL, targetURL string) (bool, error) {
	f.calls++
	return f.allowed, f.err
}
