package orchestrator

import "nba-stats-scraper/models"

// Partition splits combos into at most n contiguous, non-overlapping shards
// that together cover every combination once. Each shard is meant for its own
// orchestrator and browser session.
func Partition(combos []models.FilterCombination, n int) [][]models.FilterCombination {
	if n < 1 {
		n = 1
	}
	if n > len(combos) {
		n = len(combos)
	}
	if n == 0 {
		return nil
	}

	shards := make([][]models.FilterCombination, 0, n)
	size, extra := len(combos)/n, len(combos)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		shards = append(shards, append([]models.FilterCombination(nil), combos[start:end]...))
		start = end
	}
	return shards
}
