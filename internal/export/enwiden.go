// Package export turns query results into files: it reshapes
// longitudinal results from long to wide form and writes CSV output
// atomically.
package export

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/schema"
)

// ErrNotLongitudinal is returned when a reshape is requested for a
// dataset without sessions.
var ErrNotLongitudinal = errors.New("dataset has no session column to widen on")

// Options controls the reshape.
type Options struct {
	// ConsolidateBaseline folds the baseline alias sessions into one
	// label before widening.
	ConsolidateBaseline bool
	// BaselineAliases are the session labels that mean "baseline", in
	// priority order: on conflict the first alias with a value wins.
	BaselineAliases []string
	// BaselineLabel is the consolidated label, typically "BAS".
	BaselineLabel string
}

// SessionLabel renders a raw session value as a column suffix. The
// first three sessions keep their historical baseline names; later
// numeric sessions become SES<n>; anything non-numeric passes through.
func SessionLabel(raw string) string {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return raw
	}
	switch n := int(f); n {
	case 1:
		return "BAS1"
	case 2:
		return "BAS2"
	case 3:
		return "BAS3"
	default:
		return fmt.Sprintf("SES%d", n)
	}
}

// sessionSortKey orders session labels for column layout: numeric
// sessions by value, then non-numeric labels lexicographically.
type sessionSortKey struct {
	numeric bool
	value   float64
	label   string
}

func (a sessionSortKey) less(b sessionSortKey) bool {
	if a.numeric != b.numeric {
		return a.numeric
	}
	if a.numeric && a.value != b.value {
		return a.value < b.value
	}
	return a.label < b.label
}

// Enwiden pivots a long result (one row per subject and session) into
// a wide one (one row per subject). Columns whose value never varies
// within a subject stay single; varying columns get one output column
// per session, named <column>_<label>. Missing sessions leave empty
// cells. With ConsolidateBaseline set, alias sessions are folded into
// the baseline label before the pivot, so aliases never produce columns
// of their own.
func Enwiden(res *db.Result, keys schema.MergeKeys, opts Options) (*db.Result, error) {
	if !keys.IsLongitudinal {
		return nil, ErrNotLongitudinal
	}
	primaryIdx := res.ColumnIndex(keys.PrimaryID)
	if primaryIdx < 0 {
		return nil, fmt.Errorf("result has no %q column", keys.PrimaryID)
	}
	sessionIdx := res.ColumnIndex(keys.SessionID)
	if sessionIdx < 0 {
		return nil, fmt.Errorf("result has no %q column", keys.SessionID)
	}

	// Value columns, in input order.
	var valueCols []int
	for i, name := range res.Columns {
		if i == primaryIdx || i == sessionIdx || name == keys.CompositeID {
			continue
		}
		valueCols = append(valueCols, i)
	}

	aliasPriority := make(map[string]int, len(opts.BaselineAliases))
	if opts.ConsolidateBaseline {
		for i, alias := range opts.BaselineAliases {
			aliasPriority[alias] = i + 1
		}
	}

	type entry struct {
		subject  string
		label    string
		priority int
		order    int
		row      []sql.NullString
		key      sessionSortKey
	}

	var entries []entry
	subjects := []string{}
	seenSubjects := map[string]struct{}{}
	for i, row := range res.Rows {
		if !row[primaryIdx].Valid {
			continue
		}
		subject := row[primaryIdx].String
		if _, ok := seenSubjects[subject]; !ok {
			seenSubjects[subject] = struct{}{}
			subjects = append(subjects, subject)
		}
		if !row[sessionIdx].Valid {
			continue
		}
		raw := row[sessionIdx].String
		label := SessionLabel(raw)

		key := sessionSortKey{label: label}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			key.numeric = true
			key.value = f
		}

		priority := 0
		if p, ok := aliasPriority[label]; ok {
			label = opts.BaselineLabel
			priority = p
		}
		entries = append(entries, entry{subject, label, priority, i, row, key})
	}

	// Alias priority decides which value wins a consolidated cell;
	// input order breaks ties.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})

	// Session labels in layout order. A consolidated label sorts where
	// its earliest alias would have.
	labelKeys := map[string]sessionSortKey{}
	for _, e := range entries {
		if cur, ok := labelKeys[e.label]; !ok || e.key.less(cur) {
			labelKeys[e.label] = e.key
		}
	}
	labels := make([]string, 0, len(labelKeys))
	for label := range labelKeys {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return labelKeys[labels[i]].less(labelKeys[labels[j]])
	})

	// A column is static when no subject shows more than one distinct
	// non-null value across sessions.
	static := make(map[int]bool, len(valueCols))
	for _, col := range valueCols {
		static[col] = true
		perSubject := map[string]string{}
	colScan:
		for _, e := range entries {
			cell := e.row[col]
			if !cell.Valid {
				continue
			}
			if prev, ok := perSubject[e.subject]; ok {
				if prev != cell.String {
					static[col] = false
					break colScan
				}
				continue
			}
			perSubject[e.subject] = cell.String
		}
	}

	// First non-null wins within a cell; entries are already in
	// priority order.
	type cellKey struct {
		subject string
		label   string
		col     int
	}
	cells := map[cellKey]sql.NullString{}
	staticCells := map[cellKey]sql.NullString{}
	for _, e := range entries {
		for _, col := range valueCols {
			cell := e.row[col]
			if !cell.Valid {
				continue
			}
			if static[col] {
				k := cellKey{subject: e.subject, col: col}
				if _, ok := staticCells[k]; !ok {
					staticCells[k] = cell
				}
				continue
			}
			k := cellKey{subject: e.subject, label: e.label, col: col}
			if _, ok := cells[k]; !ok {
				cells[k] = cell
			}
		}
	}

	out := &db.Result{Columns: []string{res.Columns[primaryIdx]}}
	for _, col := range valueCols {
		if static[col] {
			out.Columns = append(out.Columns, res.Columns[col])
		}
	}
	for _, col := range valueCols {
		if static[col] {
			continue
		}
		for _, label := range labels {
			out.Columns = append(out.Columns, res.Columns[col]+"_"+label)
		}
	}

	sort.Strings(subjects)
	for _, subject := range subjects {
		row := make([]sql.NullString, 0, len(out.Columns))
		row = append(row, sql.NullString{String: subject, Valid: true})
		for _, col := range valueCols {
			if static[col] {
				row = append(row, staticCells[cellKey{subject: subject, col: col}])
			}
		}
		for _, col := range valueCols {
			if static[col] {
				continue
			}
			for _, label := range labels {
				row = append(row, cells[cellKey{subject: subject, label: label, col: col}])
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
