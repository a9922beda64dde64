package anonymizer

import (
	"log"
	"math/rand/v2"
	"strings"

	"nba-stats-scraper/models"
)

// PercentageMarker identifies percentage columns by name
const PercentageMarker = "PCT"

// IsPercentage reports whether a column holds a percentage derived from the
// two columns before it
func IsPercentage(column string) bool {
	return strings.Contains(column, PercentageMarker)
}

// unitSteps is the resolution of a draw from the closed interval [0, 1]
const unitSteps = 1 << 53

// Anonymizer produces synthetic tables that keep the per-group distribution
// of the original
type Anonymizer struct {
	rng *rand.Rand
}

// NewAnonymizer creates an Anonymizer drawing from rng. A nil rng uses a
// randomly seeded source.
func NewAnonymizer(rng *rand.Rand) *Anonymizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Anonymizer{rng: rng}
}

// NewSeeded creates an Anonymizer whose output is reproducible for a seed
func NewSeeded(seed uint64) *Anonymizer {
	return NewAnonymizer(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Anonymize returns a synthetic copy of the table. Identity columns, row
// order and column order are preserved.
func (a *Anonymizer) Anonymize(table *models.Table) *models.Table {
	stats := ComputeGroupStats(table)

	// Percentage columns paired with the two columns before them
	pairs := make(map[string][2]string)
	for i, c := range table.Categories {
		if !IsPercentage(c) {
			continue
		}
		if i < 2 {
			log.Printf("Warning: percentage column %s has no made/attempted columns before it, perturbing it directly\n", c)
			continue
		}
		pairs[c] = [2]string{table.Categories[i-2], table.Categories[i-1]}
	}

	out := &models.Table{
		Categories: append([]string(nil), table.Categories...),
		Records:    make([]models.MergedRecord, 0, len(table.Records)),
	}

	for _, rec := range table.Records {
		synthetic := rec.Clone()
		group := rec.Key.Group()

		for _, c := range table.Categories {
			if _, derived := pairs[c]; derived {
				continue
			}
			synthetic.Values[c] = a.perturb(rec.Values[c], stats.Lookup(group, c))
		}

		// Runs strictly after perturbation so it reads the perturbed counts
		for _, c := range table.Categories {
			pair, derived := pairs[c]
			if !derived {
				continue
			}
			synthetic.Values[c] = Percentage(synthetic.Values[pair[0]], synthetic.Values[pair[1]])
		}

		out.Records = append(out.Records, synthetic)
	}

	return out
}

// perturb samples uniformly from [v-std, v+std]. Null cells and columns with
// undefined group stats stay null.
func (a *Anonymizer) perturb(value *float64, cs ColumnStats) *float64 {
	if value == nil || !cs.Defined() {
		return nil
	}
	v := *value
	if cs.Std == 0 {
		return &v
	}
	// Both interval ends can be drawn
	u := float64(a.rng.Uint64N(unitSteps+1)) / unitSteps
	sampled := v - cs.Std + u*2*cs.Std
	return &sampled
}

// Percentage computes made/attempted*100. It is null when either operand is
// null or nothing was attempted.
func Percentage(made, attempted *float64) *float64 {
	if made == nil || attempted == nil || *attempted == 0 {
		return nil
	}
	pct := *made / *attempted * 100
	return &pct
}
