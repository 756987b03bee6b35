package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cohort-cli/cohort/internal/schema"
)

// Selection names the tables and columns a data query should return.
// A table with an explicit column list contributes exactly those
// columns; a table listed without columns expands to every column
// except merge keys, which are always emitted once at the front of the
// select list.
type Selection struct {
	Tables  []string
	Columns map[string][]string
}

// IsEmpty reports whether the selection names nothing at all.
func (s Selection) IsEmpty() bool {
	if len(s.Tables) > 0 {
		return false
	}
	for _, cols := range s.Columns {
		if len(cols) > 0 {
			return false
		}
	}
	return true
}

// ReferencedTables returns every table the selection touches: the
// Tables list in its given order, then tables that only appear as
// Columns keys, sorted.
func (s Selection) ReferencedTables() []string {
	out := make([]string, 0, len(s.Tables)+len(s.Columns))
	seen := make(map[string]struct{}, len(s.Tables)+len(s.Columns))
	for _, t := range s.Tables {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	var extras []string
	for t, cols := range s.Columns {
		if len(cols) == 0 {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		extras = append(extras, t)
	}
	sort.Strings(extras)
	return append(out, extras...)
}

// CompiledQuery is ready to execute: SQL whose identifiers all came
// from the schema whitelist, and positional arguments for every
// placeholder in it.
type CompiledQuery struct {
	SQL  string
	Args []any
	// Tables lists every table the query reads, demographics first.
	Tables []string
	// Notes carries skipped-filter messages for display.
	Notes []string
}

// AssembleCount builds the participant count query. Longitudinal
// datasets count distinct composite keys so each subject-session pair
// counts once; cross-sectional datasets count distinct primary keys,
// which keeps the count stable when joins fan rows out.
func AssembleCount(snap *schema.Snapshot, plan *JoinPlan, filters *FilterSet) (*CompiledQuery, error) {
	key := snap.Keys.PrimaryID
	if snap.Keys.IsLongitudinal {
		key = snap.Keys.CompositeID
	}
	if !ValidIdentifier(key) {
		return nil, &UnsafeIdentifierError{Kind: "column", Table: snap.DemographicsTable, Name: key}
	}
	if !snap.HasColumn(snap.DemographicsTable, key) {
		return nil, &MergeColumnError{Table: snap.DemographicsTable, Column: key, Missing: snap.DemographicsTable}
	}

	where, whereArgs := filters.Where()
	sql := fmt.Sprintf("SELECT COUNT(DISTINCT %s.%s) AS participant_count %s", demoAlias, key, plan.Clause)
	if where != "" {
		sql += " " + where
	}
	return &CompiledQuery{
		SQL:    sql,
		Args:   append(append([]any{}, plan.Args...), whereArgs...),
		Tables: plan.Tables,
		Notes:  filters.Notes,
	}, nil
}

// AssembleData builds the row query for an export. Merge key columns
// come first (primary id, and session id when longitudinal), then the
// selected columns in selection order, deduplicated by table and
// column.
func AssembleData(snap *schema.Snapshot, plan *JoinPlan, filters *FilterSet, sel Selection) (*CompiledQuery, error) {
	if sel.IsEmpty() {
		return nil, ErrEmptySelection
	}

	demoTable := snap.DemographicsTable
	keys := snap.Keys

	type ref struct{ table, column string }
	seen := make(map[ref]struct{})
	var selectList []string

	add := func(table, column string) {
		r := ref{table, column}
		if _, dup := seen[r]; dup {
			return
		}
		seen[r] = struct{}{}
		selectList = append(selectList, TableAlias(table, demoTable)+"."+column)
	}

	if err := ValidateColumn(snap, demoTable, keys.PrimaryID); err != nil {
		return nil, err
	}
	add(demoTable, keys.PrimaryID)
	if keys.IsLongitudinal {
		if err := ValidateColumn(snap, demoTable, keys.SessionID); err != nil {
			return nil, err
		}
		add(demoTable, keys.SessionID)
	}

	for _, table := range sel.ReferencedTables() {
		if err := ValidateTable(snap, table); err != nil {
			return nil, err
		}
		cols := sel.Columns[table]
		if len(cols) == 0 {
			for _, col := range snap.ColumnsOf(table) {
				if keys.IsMergeColumn(col) {
					continue
				}
				if !ValidIdentifier(col) {
					return nil, &UnsafeIdentifierError{Kind: "column", Table: table, Name: col}
				}
				add(table, col)
			}
			continue
		}
		for _, col := range cols {
			if err := ValidateColumn(snap, table, col); err != nil {
				return nil, err
			}
			add(table, col)
		}
	}

	where, whereArgs := filters.Where()
	sql := fmt.Sprintf("SELECT %s %s", strings.Join(selectList, ", "), plan.Clause)
	if where != "" {
		sql += " " + where
	}
	return &CompiledQuery{
		SQL:    sql,
		Args:   append(append([]any{}, plan.Args...), whereArgs...),
		Tables: plan.Tables,
		Notes:  filters.Notes,
	}, nil
}
