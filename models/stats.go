package models

import (
	"fmt"
	"strings"
)

// Axis names one of the three filter dropdowns on a stats page
type Axis string

const (
	Season     Axis = "Season"
	Conference Axis = "Conference"
	Position   Axis = "Position"
)

// Axes lists the filter axes in enumeration order (outermost first)
var Axes = []Axis{Season, Conference, Position}

// Family identifies which statistics table a batch was extracted from
type Family string

const (
	Shooting       Family = "shooting"
	ContestedShots Family = "contested-shots"
	BoxOuts        Family = "box-outs"
)

// IdentityColumns are the leading columns of every serialized table
var IdentityColumns = []string{"Team", "Season", "Conference", "Position"}

// FilterAxis is one dropdown and the option values discovered for it
type FilterAxis struct {
	Name   Axis
	Values []string
}

// FilterCombination is one (season, conference, position) state of the filters
type FilterCombination struct {
	Season     string
	Conference string
	Position   string
}

// Value returns the combination's value for the given axis
func (fc FilterCombination) Value(axis Axis) string {
	switch axis {
	case Season:
		return fc.Season
	case Conference:
		return fc.Conference
	case Position:
		return fc.Position
	}
	return ""
}

func (fc FilterCombination) String() string {
	return fmt.Sprintf("%s/%s/%s", fc.Season, fc.Conference, fc.Position)
}

// CompositeKey uniquely identifies one statistical observation
type CompositeKey struct {
	Team string
	FilterCombination
}

// Group drops the team, yielding the key used for anonymization statistics
func (k CompositeKey) Group() GroupKey {
	return GroupKey(k.FilterCombination)
}

func (k CompositeKey) String() string {
	return k.Team + "@" + k.FilterCombination.String()
}

// GroupKey is the (season, conference, position) partition of a table
type GroupKey FilterCombination

func (g GroupKey) String() string {
	return FilterCombination(g).String()
}

// StatRecord is one parsed table row tagged with its composite key.
// A nil value is a null cell.
type StatRecord struct {
	Key    CompositeKey
	Values map[string]*float64
}

// ExtractionBatch is everything one extraction pass produced for a stat family
type ExtractionBatch struct {
	Family     Family
	Categories []string
	Records    []StatRecord
}

// ConcatBatches recombines the batches of sharded orchestrators.
// All batches must belong to the same family and share a schema.
func ConcatBatches(batches ...*ExtractionBatch) (*ExtractionBatch, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("no batches to concatenate")
	}

	out := &ExtractionBatch{
		Family:     batches[0].Family,
		Categories: append([]string(nil), batches[0].Categories...),
	}
	// Shards that produced no rows may not know the header yet
	for _, b := range batches {
		if len(b.Records) > 0 {
			out.Categories = append([]string(nil), b.Categories...)
			break
		}
	}
	for _, b := range batches {
		if b.Family != out.Family {
			return nil, fmt.Errorf("cannot concatenate %s batch with %s batch", b.Family, out.Family)
		}
		if len(b.Records) > 0 && !sameColumns(b.Categories, out.Categories) {
			return nil, fmt.Errorf("category schema mismatch in %s batch: %s vs %s",
				b.Family, strings.Join(b.Categories, ","), strings.Join(out.Categories, ","))
		}
		out.Records = append(out.Records, b.Records...)
	}
	return out, nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MergedRecord is one row of the wide table. Missing columns are nil.
type MergedRecord struct {
	Key    CompositeKey
	Values map[string]*float64
}

// Clone returns a deep copy of the record
func (r MergedRecord) Clone() MergedRecord {
	values := make(map[string]*float64, len(r.Values))
	for k, v := range r.Values {
		if v == nil {
			values[k] = nil
			continue
		}
		c := *v
		values[k] = &c
	}
	return MergedRecord{Key: r.Key, Values: values}
}

// Table is an ordered set of records sharing one column schema
type Table struct {
	Categories []string
	Records    []MergedRecord
}

// Header returns the full serialized header row
func (t *Table) Header() []string {
	header := append([]string(nil), IdentityColumns...)
	return append(header, t.Categories...)
}

// Float returns a pointer to v, for building nullable cells
func Float(v float64) *float64 {
	return &v
}
