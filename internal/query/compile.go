package query

import (
	"fmt"
	"strings"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/schema"
)

// Predicate is one WHERE conjunct together with the values bound to
// its placeholders. Identifiers in Expr come from the schema whitelist;
// user values only ever travel through Args.
type Predicate struct {
	Expr string
	Args []any
}

// FilterSet is the compiled form of all active filters for one query.
type FilterSet struct {
	// Predicates in emission order: age, substudy, session, then the
	// phenotypic filters in the order they were given.
	Predicates []Predicate
	// Tables lists the behavioral tables referenced by phenotypic
	// predicates, deduplicated, in first-reference order.
	Tables []string
	// Notes records filters that were skipped and why, for display.
	Notes []string
}

// Where renders the WHERE clause and its flattened arguments. Returns
// an empty clause when no predicates were compiled.
func (s *FilterSet) Where() (string, []any) {
	if len(s.Predicates) == 0 {
		return "", nil
	}
	exprs := make([]string, len(s.Predicates))
	var args []any
	for i, p := range s.Predicates {
		exprs[i] = p.Expr
		args = append(args, p.Args...)
	}
	return "WHERE " + strings.Join(exprs, " AND "), args
}

// CompileFilters turns demographic and phenotypic filters into
// predicates. Unknown tables or columns in phenotypic filters are hard
// errors; demographic filters whose configured column is absent from
// the demographics table are skipped with a note instead, since the
// column name came from configuration rather than from the user.
func CompileFilters(snap *schema.Snapshot, data config.DataConfig, demo DemographicFilters, phenotypic []PhenotypicFilter) (*FilterSet, error) {
	if snap == nil || snap.IsEmpty() {
		return nil, ErrEmptySchema
	}

	set := &FilterSet{}
	demoTable := snap.DemographicsTable

	if demo.AgeRange != nil {
		col := data.AgeColumn
		switch {
		case col == "" || !snap.HasColumn(demoTable, col):
			set.note("age filter skipped: demographics table has no column %q", col)
		case !ValidIdentifier(col):
			return nil, &UnsafeIdentifierError{Kind: "column", Table: demoTable, Name: col}
		default:
			set.Predicates = append(set.Predicates, Predicate{
				Expr: fmt.Sprintf("demo.%s BETWEEN ? AND ?", col),
				Args: []any{demo.AgeRange.Min, demo.AgeRange.Max},
			})
		}
	}

	if len(demo.Substudies) > 0 {
		col := data.StudySiteColumn
		switch {
		case col == "" || !snap.HasColumn(demoTable, col):
			set.note("substudy filter skipped: demographics table has no column %q", col)
		case !ValidIdentifier(col):
			return nil, &UnsafeIdentifierError{Kind: "column", Table: demoTable, Name: col}
		default:
			exprs := make([]string, len(demo.Substudies))
			args := make([]any, len(demo.Substudies))
			for i, study := range demo.Substudies {
				exprs[i] = fmt.Sprintf("demo.%s LIKE ?", col)
				args[i] = "%" + study + "%"
			}
			set.Predicates = append(set.Predicates, Predicate{
				Expr: "(" + strings.Join(exprs, " OR ") + ")",
				Args: args,
			})
		}
	}

	if len(demo.Sessions) > 0 {
		switch {
		case !snap.Keys.IsLongitudinal:
			set.note("session filter skipped: dataset is cross-sectional")
		default:
			col := snap.Keys.SessionID
			if !ValidIdentifier(col) {
				return nil, &UnsafeIdentifierError{Kind: "column", Table: demoTable, Name: col}
			}
			args := make([]any, len(demo.Sessions))
			for i, session := range demo.Sessions {
				args[i] = session
			}
			set.Predicates = append(set.Predicates, Predicate{
				Expr: fmt.Sprintf("demo.%s IN (%s)", col, placeholders(len(demo.Sessions))),
				Args: args,
			})
		}
	}

	for _, f := range phenotypic {
		if !f.Active() {
			continue
		}
		if err := ValidateColumn(snap, f.FilterTable(), f.FilterColumn()); err != nil {
			return nil, err
		}
		alias := TableAlias(f.FilterTable(), demoTable)
		pred, err := compilePhenotypic(f, alias)
		if err != nil {
			return nil, err
		}
		set.Predicates = append(set.Predicates, pred)
		set.addTable(f.FilterTable())
	}

	return set, nil
}

func compilePhenotypic(f PhenotypicFilter, alias string) (Predicate, error) {
	switch f := f.(type) {
	case RangeFilter:
		return Predicate{
			Expr: fmt.Sprintf("%s.%s BETWEEN ? AND ?", alias, f.Column),
			Args: []any{f.Min, f.Max},
		}, nil
	case CategoricalFilter:
		args := make([]any, len(f.Values))
		for i, v := range f.Values {
			args[i] = v
		}
		return Predicate{
			Expr: fmt.Sprintf("%s.%s IN (%s)", alias, f.Column, placeholders(len(f.Values))),
			Args: args,
		}, nil
	default:
		return Predicate{}, fmt.Errorf("unsupported filter type %T", f)
	}
}

// placeholders renders n comma-separated parameter markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func (s *FilterSet) note(format string, args ...any) {
	s.Notes = append(s.Notes, fmt.Sprintf(format, args...))
}

func (s *FilterSet) addTable(table string) {
	for _, t := range s.Tables {
		if t == table {
			return
		}
	}
	s.Tables = append(s.Tables, table)
}
