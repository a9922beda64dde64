package merge

import (
	"errors"
	"fmt"

	"nba-stats-scraper/models"
)

// ErrDuplicateKey is returned when a batch holds two records for one composite key
var ErrDuplicateKey = errors.New("duplicate composite key")

// Merge left-joins every side batch onto the base batch by composite key.
// The joins are chained in argument order, so only the base batch decides
// which rows exist and in what order. Side columns of base keys with no
// match are null.
func Merge(base *models.ExtractionBatch, sides ...*models.ExtractionBatch) (*models.Table, error) {
	if base == nil {
		return nil, fmt.Errorf("base batch is required")
	}
	if err := CheckUnique(base); err != nil {
		return nil, err
	}

	table := &models.Table{
		Categories: append([]string(nil), base.Categories...),
		Records:    make([]models.MergedRecord, 0, len(base.Records)),
	}
	for _, rec := range base.Records {
		values := make(map[string]*float64, len(base.Categories))
		for _, c := range base.Categories {
			values[c] = rec.Values[c]
		}
		table.Records = append(table.Records, models.MergedRecord{Key: rec.Key, Values: values})
	}

	for _, side := range sides {
		if side == nil {
			continue
		}
		if err := leftJoin(table, side); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// leftJoin adds the side batch's columns to every row of the table
func leftJoin(table *models.Table, side *models.ExtractionBatch) error {
	if err := CheckUnique(side); err != nil {
		return err
	}

	index := make(map[models.CompositeKey]models.StatRecord, len(side.Records))
	for _, rec := range side.Records {
		index[rec.Key] = rec
	}

	existing := make(map[string]bool, len(table.Categories))
	for _, c := range table.Categories {
		existing[c] = true
	}

	// Column names in the table for each side category
	names := make([]string, len(side.Categories))
	for i, c := range side.Categories {
		name := c
		if existing[name] {
			name = fmt.Sprintf("%s_%s", c, side.Family)
			for n := 2; existing[name]; n++ {
				name = fmt.Sprintf("%s_%s_%d", c, side.Family, n)
			}
		}
		existing[name] = true
		names[i] = name
	}
	table.Categories = append(table.Categories, names...)

	for i := range table.Records {
		row := &table.Records[i]
		match, ok := index[row.Key]
		for j, c := range side.Categories {
			if !ok {
				row.Values[names[j]] = nil
				continue
			}
			row.Values[names[j]] = match.Values[c]
		}
	}

	return nil
}

// CheckUnique fails with ErrDuplicateKey if the batch repeats a composite key
func CheckUnique(batch *models.ExtractionBatch) error {
	seen := make(map[models.CompositeKey]bool, len(batch.Records))
	for _, rec := range batch.Records {
		if seen[rec.Key] {
			return fmt.Errorf("%w: %s in %s batch", ErrDuplicateKey, rec.Key, batch.Family)
		}
		seen[rec.Key] = true
	}
	return nil
}
