package anonymizer

import (
	"math"

	"nba-stats-scraper/models"
)

// ColumnStats summarises the non-null values of one column within a group
type ColumnStats struct {
	Count int
	Mean  float64
	Std   float64
}

// Defined reports whether the group had any value for the column
func (cs ColumnStats) Defined() bool {
	return cs.Count > 0
}

// GroupStats maps every group to the stats of each of its columns
type GroupStats map[models.GroupKey]map[string]ColumnStats

// ComputeGroupStats partitions the table by group key and computes the mean
// and sample standard deviation of every column over its non-null values.
// A single value has a standard deviation of zero.
func ComputeGroupStats(table *models.Table) GroupStats {
	values := make(map[models.GroupKey]map[string][]float64)
	for _, rec := range table.Records {
		group := rec.Key.Group()
		cols, ok := values[group]
		if !ok {
			cols = make(map[string][]float64)
			values[group] = cols
		}
		for _, c := range table.Categories {
			if v := rec.Values[c]; v != nil && !math.IsNaN(*v) {
				cols[c] = append(cols[c], *v)
			}
		}
	}

	stats := make(GroupStats, len(values))
	for group, cols := range values {
		stats[group] = make(map[string]ColumnStats, len(table.Categories))
		for _, c := range table.Categories {
			stats[group][c] = describe(cols[c])
		}
	}
	return stats
}

// Lookup returns the stats of a column in a group; the zero value is undefined
func (gs GroupStats) Lookup(group models.GroupKey, column string) ColumnStats {
	return gs[group][column]
}

func describe(values []float64) ColumnStats {
	n := len(values)
	if n == 0 {
		return ColumnStats{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	if n == 1 {
		return ColumnStats{Count: 1, Mean: mean}
	}

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return ColumnStats{Count: n, Mean: mean, Std: math.Sqrt(sq / float64(n-1))}
}
