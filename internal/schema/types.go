// Package schema models the dataset schema: which tables exist, which
// columns they carry, and how rows merge across tables. The query compiler
// treats a Snapshot as the authoritative identifier whitelist.
package schema

import (
	"sort"
	"time"
)

// Range is the observed min/max of a numeric column.
type Range struct {
	Min float64
	Max float64
}

// TableSchema describes one CSV-backed table.
type TableSchema struct {
	Name string

	// Columns preserves header order.
	Columns []string

	// Dtypes maps column name to the engine's storage type.
	Dtypes map[string]string

	// Ranges holds observed min/max for numeric columns only.
	Ranges map[string]Range

	RowCount int64
}

// HasColumn reports whether the table carries the named column.
func (t *TableSchema) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.Dtypes[name]
	return ok
}

// MergeKeys captures how rows merge across tables for one dataset shape.
type MergeKeys struct {
	// PrimaryID identifies a subject across tables.
	PrimaryID string

	// SessionID identifies the visit. Only set for longitudinal data.
	SessionID string

	// CompositeID is the materialized (subject, session) key. Only set for
	// longitudinal data.
	CompositeID string

	IsLongitudinal bool
}

// MergeColumn returns the column joins and counts key on: the composite id
// for longitudinal data, the primary id otherwise.
func (k MergeKeys) MergeColumn() string {
	if k.IsLongitudinal {
		return k.CompositeID
	}
	return k.PrimaryID
}

// Columns returns every merge-key column name, primary first.
func (k MergeKeys) Columns() []string {
	cols := []string{k.PrimaryID}
	if k.IsLongitudinal {
		cols = append(cols, k.SessionID, k.CompositeID)
	}
	return cols
}

// IsMergeColumn reports whether name is one of the merge-key columns.
func (k MergeKeys) IsMergeColumn(name string) bool {
	for _, c := range k.Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// CompositeValue derives the composite key for one row. The same inputs
// always produce the same key; dataset preparation and join correctness
// both depend on that.
func CompositeValue(primary, session string) string {
	return primary + "_" + session
}

// Snapshot is an immutable view of the dataset schema. Providers replace
// whole snapshots; nothing mutates one after publication.
type Snapshot struct {
	// Tables maps table name to schema, demographics included.
	Tables map[string]*TableSchema

	// DemographicsTable is the anchor table's name.
	DemographicsTable string

	// Keys is the resolved merge topology.
	Keys MergeKeys

	// SessionValues are the distinct session labels observed in the
	// demographics table, sorted. Empty for cross-sectional data.
	SessionValues []string

	// Messages carries human-readable notes from the scan (missing
	// demographics file, composite id not yet materialized, ...).
	Messages []string

	// TakenAt records when the snapshot was assembled.
	TakenAt time.Time
}

// IsEmpty reports whether the snapshot has no usable tables.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Tables) == 0
}

// HasTable reports whether the named table exists.
func (s *Snapshot) HasTable(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Tables[name]
	return ok
}

// HasColumn reports whether the named table carries the named column.
func (s *Snapshot) HasColumn(table, column string) bool {
	if s == nil {
		return false
	}
	return s.Tables[table].HasColumn(column)
}

// Demographics returns the anchor table's schema, or nil.
func (s *Snapshot) Demographics() *TableSchema {
	if s == nil {
		return nil
	}
	return s.Tables[s.DemographicsTable]
}

// TableNames returns every table name, sorted.
func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BehavioralTables returns every non-demographics table name, sorted.
func (s *Snapshot) BehavioralTables() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		if name != s.DemographicsTable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ColumnsOf returns a table's columns in header order, or nil.
func (s *Snapshot) ColumnsOf(table string) []string {
	if s == nil {
		return nil
	}
	t, ok := s.Tables[table]
	if !ok {
		return nil
	}
	return t.Columns
}
