package ais

import (
	"slices"
)

// AnomalyKind names the rule that put a record into an anomaly table
type AnomalyKind string

const (
	KindLocationJump AnomalyKind = "location_jump"
	KindInvalidFix   AnomalyKind = "invalid_fix"
	KindSpeed        AnomalyKind = "speed"
	KindCourse       AnomalyKind = "course"
)

// Kinds lists every anomaly kind in report order
func Kinds() []AnomalyKind {
	return []AnomalyKind{KindLocationJump, KindInvalidFix, KindSpeed, KindCourse}
}

// Deltas holds the derived per-record differences a detector used for its decision
type Deltas struct {
	LatDiff NullFloat
	LonDiff NullFloat
	JumpKm  NullFloat
	SOGDiff NullFloat
	COGDiff NullFloat
}

// AnomalyRecord is a position record tagged with the kind that flagged it
type AnomalyRecord struct {
	PositionRecord
	Kind   AnomalyKind
	Deltas Deltas
}

// AnomalyTable is a flat result table for one anomaly kind
type AnomalyTable struct {
	Kind    AnomalyKind
	Columns []string
	Records []AnomalyRecord
}

// NewTable returns an empty table with the columns produced for kind
func NewTable(kind AnomalyKind) AnomalyTable {
	return AnomalyTable{Kind: kind, Columns: ColumnsFor(kind)}
}

// ColumnsFor returns the source columns plus the derived columns of kind
func ColumnsFor(kind AnomalyKind) []string {
	cols := slices.Clone(BaseColumns)
	switch kind {
	case KindLocationJump:
		cols = append(cols, ColLatDiff, ColLonDiff, ColJumpKm)
	case KindInvalidFix:
		cols = append(cols, ColLatDiff, ColLonDiff)
	case KindSpeed, KindCourse:
		cols = append(cols, ColSOGDiff, ColCOGDiff)
	}
	return cols
}

// Len returns the number of records in the table
func (t AnomalyTable) Len() int {
	return len(t.Records)
}

// HasColumn reports whether the table carries the named column
func (t AnomalyTable) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Vessels returns the set of vessels with at least one record in the table
func (t AnomalyTable) Vessels() AnomalySet {
	set := make(AnomalySet, len(t.Records))
	for _, r := range t.Records {
		set.Add(r.VesselID)
	}
	return set
}

// Append adds records, retagging them with the table's kind
func (t *AnomalyTable) Append(records ...AnomalyRecord) {
	for _, r := range records {
		r.Kind = t.Kind
		t.Records = append(t.Records, r)
	}
}

// AnomalySet is the set of vessel ids that had at least one anomaly of a kind
type AnomalySet map[int64]struct{}

// Add inserts a vessel id
func (s AnomalySet) Add(id int64) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set
func (s AnomalySet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the set cardinality
func (s AnomalySet) Len() int {
	return len(s)
}

// Union returns a new set containing every id of s and others
func (s AnomalySet) Union(others ...AnomalySet) AnomalySet {
	out := make(AnomalySet, len(s))
	for id := range s {
		out.Add(id)
	}
	for _, o := range others {
		for id := range o {
			out.Add(id)
		}
	}
	return out
}

// Overlap counts the ids present in both s and other
func (s AnomalySet) Overlap(other AnomalySet) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for id := range small {
		if large.Has(id) {
			n++
		}
	}
	return n
}

// Sorted returns the ids in ascending order
func (s AnomalySet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
