package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"nba-stats-scraper/models"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Skip records a combination that failed and was left out of the batch
type Skip struct {
	Combination models.FilterCombination
	// State is the last state reached before the failure
	State State
	Err   error
}

// Summary describes one extraction pass
type Summary struct {
	Family       models.Family
	URL          string
	Combinations int
	Accumulated  int
	Rows         int
	Skipped      []Skip
	Duration     time.Duration
	// Aborted is set when the session ended before the enumeration completed
	Aborted bool
}

// Complete reports whether every combination was accumulated
func (s *Summary) Complete() bool {
	return !s.Aborted && len(s.Skipped) == 0 && s.Accumulated == s.Combinations
}

// Render formats the summary and its skipped combinations as console tables
func (s *Summary) Render() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s (%s)", s.Family, s.URL))
	t.AppendHeader(table.Row{"Combinations", "Accumulated", "Skipped", "Rows", "Duration", "Aborted"})
	t.AppendRow(table.Row{s.Combinations, s.Accumulated, len(s.Skipped), s.Rows, s.Duration.Round(time.Second), s.Aborted})

	var b strings.Builder
	b.WriteString(t.Render())

	if len(s.Skipped) > 0 {
		st := table.NewWriter()
		st.SetStyle(table.StyleRounded)
		st.AppendHeader(table.Row{"Season", "Conference", "Position", "State", "Error"})
		for _, skip := range s.Skipped {
			st.AppendRow(table.Row{
				skip.Combination.Season,
				skip.Combination.Conference,
				skip.Combination.Position,
				skip.State,
				skip.Err,
			})
		}
		b.WriteString("\n")
		b.WriteString(st.Render())
	}
	return b.String()
}
