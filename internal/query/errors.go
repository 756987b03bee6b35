package query

import (
	"errors"
	"fmt"
)

// ErrEmptySchema is returned when compilation is attempted against a
// snapshot with no indexed tables.
var ErrEmptySchema = errors.New("no tables indexed")

// ErrEmptySelection is returned when an export selection names no
// tables and no columns.
var ErrEmptySelection = errors.New("selection names no tables or columns")

// UnknownIdentifierError reports a table or column reference that is
// not present in the schema snapshot. Kind is "table" or "column";
// Table holds the owning table for column errors.
type UnknownIdentifierError struct {
	Kind       string
	Table      string
	Name       string
	Suggestion string
}

func (e *UnknownIdentifierError) Error() string {
	switch e.Kind {
	case "column":
		if e.Suggestion != "" {
			return fmt.Sprintf("unknown column %q in table %q (did you mean %q?)", e.Name, e.Table, e.Suggestion)
		}
		return fmt.Sprintf("unknown column %q in table %q", e.Name, e.Table)
	default:
		if e.Suggestion != "" {
			return fmt.Sprintf("unknown table %q (did you mean %q?)", e.Name, e.Suggestion)
		}
		return fmt.Sprintf("unknown table %q", e.Name)
	}
}

// UnsafeIdentifierError reports a name that exists in the snapshot but
// contains characters that may not be embedded in SQL text. Seeing one
// means the on-disk data has a header the indexer should have rejected.
type UnsafeIdentifierError struct {
	Kind  string
	Table string
	Name  string
}

func (e *UnsafeIdentifierError) Error() string {
	if e.Kind == "column" {
		return fmt.Sprintf("column name %q in table %q contains unsupported characters", e.Name, e.Table)
	}
	return fmt.Sprintf("table name %q contains unsupported characters", e.Name)
}

// ParameterError reports a filter whose values cannot produce a valid
// predicate, such as a range with min above max.
type ParameterError struct {
	Filter  string
	Message string
}

func (e *ParameterError) Error() string {
	if e.Filter == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Filter, e.Message)
}
