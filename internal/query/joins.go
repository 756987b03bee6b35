package query

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cohort-cli/cohort/internal/paths"
	"github.com/cohort-cli/cohort/internal/schema"
)

// JoinPlan is the FROM/JOIN skeleton shared by the count and data
// queries of one compilation. CSV paths are bound as parameters, one
// per read_csv_auto marker, so no filesystem path ever appears in the
// SQL text.
type JoinPlan struct {
	Clause string
	Args   []any
	// Tables lists every table in the plan, demographics first, then
	// the joined tables in clause order.
	Tables []string
}

// MergeColumnError reports a table that cannot be joined because its
// merge column is absent from one side of the join. The usual cause is
// a longitudinal dataset whose composite key has not been materialized
// yet.
type MergeColumnError struct {
	Table   string
	Column  string
	Missing string
}

func (e *MergeColumnError) Error() string {
	return fmt.Sprintf("cannot join table %q on %q: column missing from %q",
		e.Table, e.Column, e.Missing)
}

// PlanJoins builds the FROM clause for the demographics table plus a
// LEFT JOIN per behavioral table. Tables are deduplicated and sorted so
// the same inputs always compile to the same SQL; the demographics
// table is never joined to itself. Each table joins on its own merge
// column: the composite key when the table carries per-session rows,
// the primary key otherwise.
func PlanJoins(snap *schema.Snapshot, dataDir string, tables []string) (*JoinPlan, error) {
	if snap == nil || snap.IsEmpty() {
		return nil, ErrEmptySchema
	}
	demoTable := snap.DemographicsTable
	if err := ValidateTable(snap, demoTable); err != nil {
		return nil, err
	}

	joined := make([]string, 0, len(tables))
	seen := map[string]struct{}{demoTable: {}}
	for _, t := range tables {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		joined = append(joined, t)
	}
	sort.Strings(joined)

	plan := &JoinPlan{
		Tables: append([]string{demoTable}, joined...),
		Args:   []any{csvArg(dataDir, demoTable)},
	}

	var b strings.Builder
	b.WriteString("FROM read_csv_auto(?) AS ")
	b.WriteString(demoAlias)

	for _, t := range joined {
		if err := ValidateTable(snap, t); err != nil {
			return nil, err
		}
		mergeCol := snap.JoinColumn(t)
		if !ValidIdentifier(mergeCol) {
			return nil, &UnsafeIdentifierError{Kind: "column", Table: t, Name: mergeCol}
		}
		if !snap.HasColumn(demoTable, mergeCol) {
			return nil, &MergeColumnError{Table: t, Column: mergeCol, Missing: demoTable}
		}
		if !snap.HasColumn(t, mergeCol) {
			return nil, &MergeColumnError{Table: t, Column: mergeCol, Missing: t}
		}
		alias := TableAlias(t, demoTable)
		fmt.Fprintf(&b, " LEFT JOIN read_csv_auto(?) AS %s ON %s.%s = %s.%s",
			alias, demoAlias, mergeCol, alias, mergeCol)
		plan.Args = append(plan.Args, csvArg(dataDir, t))
	}

	plan.Clause = b.String()
	return plan, nil
}

// csvArg renders the CSV path for a table as a bind argument. Forward
// slashes keep the bound value identical across platforms.
func csvArg(dataDir, table string) string {
	return filepath.ToSlash(paths.CSVPath(dataDir, table))
}
