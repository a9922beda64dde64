package filter

import (
	"errors"
	"fmt"

	"nba-stats-scraper/models"
)

// ErrEmptyAxis is returned when a filter axis has no values to iterate
var ErrEmptyAxis = errors.New("empty filter axis")

// Enumerate returns the ordered Cartesian product of the three axes.
// Season is the outermost loop and position the innermost.
func Enumerate(seasons, conferences, positions []string) ([]models.FilterCombination, error) {
	axes := []struct {
		name   models.Axis
		values []string
	}{
		{models.Season, seasons},
		{models.Conference, conferences},
		{models.Position, positions},
	}
	for _, axis := range axes {
		if len(axis.values) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyAxis, axis.name)
		}
	}

	combos := make([]models.FilterCombination, 0, len(seasons)*len(conferences)*len(positions))
	for _, season := range seasons {
		for _, conference := range conferences {
			for _, position := range positions {
				combos = append(combos, models.FilterCombination{
					Season:     season,
					Conference: conference,
					Position:   position,
				})
			}
		}
	}

	return combos, nil
}

// EnumerateAxes is Enumerate over discovered axes keyed by name
func EnumerateAxes(axes []models.FilterAxis) ([]models.FilterCombination, error) {
	values := make(map[models.Axis][]string, len(axes))
	for _, axis := range axes {
		values[axis.Name] = axis.Values
	}
	return Enumerate(values[models.Season], values[models.Conference], values[models.Position])
}

// Allow narrows discovered option values to an allow-list, keeping the
// discovery order. An empty allow-list keeps every value.
func Allow(values, allowed []string) []string {
	if len(allowed) == 0 {
		return values
	}

	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}

	var kept []string
	for _, v := range values {
		if set[v] {
			kept = append(kept, v)
		}
	}
	return kept
}
