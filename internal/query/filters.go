package query

import (
	"fmt"
	"strings"
)

// AgeRange bounds the demographics age column, inclusive on both ends.
type AgeRange struct {
	Min float64
	Max float64
}

func (r AgeRange) String() string {
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// DemographicFilters narrows the cohort on columns of the demographics
// table. Zero-value fields do not emit predicates: a nil AgeRange means
// no age bound, empty slices mean no substudy or session restriction.
type DemographicFilters struct {
	AgeRange   *AgeRange
	Substudies []string
	Sessions   []string
}

// IsZero reports whether no demographic restriction is set.
func (f DemographicFilters) IsZero() bool {
	return f.AgeRange == nil && len(f.Substudies) == 0 && len(f.Sessions) == 0
}

// PhenotypicFilter is a restriction on one column of one behavioral
// table. The two implementations are RangeFilter and CategoricalFilter;
// the unexported method keeps the set closed so compilation can treat
// anything else as a programming error.
type PhenotypicFilter interface {
	// FilterTable returns the behavioral table the filter applies to.
	FilterTable() string
	// FilterColumn returns the column within that table.
	FilterColumn() string
	// Active reports whether the filter should emit a predicate. A
	// disabled or incomplete filter is skipped without error.
	Active() bool
	// Describe renders the filter for display and logs.
	Describe() string

	phenotypic()
}

// RangeFilter keeps rows whose numeric column value lies in [Min, Max].
type RangeFilter struct {
	Table   string
	Column  string
	Min     float64
	Max     float64
	Enabled bool
}

func (f RangeFilter) FilterTable() string  { return f.Table }
func (f RangeFilter) FilterColumn() string { return f.Column }
func (f RangeFilter) Active() bool         { return f.Enabled }
func (f RangeFilter) phenotypic()          {}

func (f RangeFilter) Describe() string {
	return fmt.Sprintf("%s.%s in [%g, %g]", f.Table, f.Column, f.Min, f.Max)
}

// CategoricalFilter keeps rows whose column value equals one of Values.
// A filter with no values never matches anything useful, so it is
// treated as disabled rather than compiled into an empty IN list.
type CategoricalFilter struct {
	Table   string
	Column  string
	Values  []string
	Enabled bool
}

func (f CategoricalFilter) FilterTable() string  { return f.Table }
func (f CategoricalFilter) FilterColumn() string { return f.Column }
func (f CategoricalFilter) Active() bool         { return f.Enabled && len(f.Values) > 0 }
func (f CategoricalFilter) phenotypic()          {}

func (f CategoricalFilter) Describe() string {
	return fmt.Sprintf("%s.%s in {%s}", f.Table, f.Column, strings.Join(f.Values, ", "))
}
