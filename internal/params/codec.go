// Package params reads and writes portable parameter files: TOML
// documents that capture a full cohort specification (filters,
// selection, options) so a query can be rebuilt later or on another
// machine. Imports degrade gracefully: structural problems reject the
// whole file, while individual entries that no longer match the dataset
// are skipped and reported.
package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cohort-cli/cohort/internal/query"
	"github.com/cohort-cli/cohort/internal/schema"
)

// FormatVersion is the parameter file format this build reads and
// writes. Files declaring any other version are rejected whole.
const FormatVersion = "1.0"

// Spec is the portable cohort specification carried by a parameter
// file.
type Spec struct {
	Demographic         query.DemographicFilters
	Phenotypic          []query.PhenotypicFilter
	Selection           query.Selection
	EnwidenLongitudinal bool
}

// Metadata describes the parameter file itself.
type Metadata struct {
	ExportTimestamp time.Time
	AppVersion      string
	UserNotes       string
}

// Issue describes one entry of an imported file that was skipped.
type Issue struct {
	Section string
	Detail  string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Section, i.Detail)
}

// Report lists everything an import skipped. An empty report means the
// file loaded in full.
type Report struct {
	Issues []Issue
}

// Empty reports whether the import loaded without skipping anything.
func (r *Report) Empty() bool { return r == nil || len(r.Issues) == 0 }

func (r *Report) add(section, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Section: section, Detail: fmt.Sprintf(format, args...)})
}

// FormatError rejects a parameter file as a whole: unparseable TOML, a
// missing required section, or an unsupported format version.
type FormatError struct {
	Section string
	Message string
}

func (e *FormatError) Error() string {
	if e.Section == "" {
		return "invalid parameter file: " + e.Message
	}
	return fmt.Sprintf("invalid parameter file [%s]: %s", e.Section, e.Message)
}

// Wire layout. Loose value types (maps, []any) keep imports tolerant of
// hand-edited files where numbers and strings blur.
type paramsDoc struct {
	Metadata  metadataDoc  `toml:"metadata"`
	Filters   filtersDoc   `toml:"filters"`
	Selection selectionDoc `toml:"selection"`
	Options   optionsDoc   `toml:"options"`
}

type metadataDoc struct {
	ExportTimestamp string `toml:"export_timestamp"`
	AppVersion      string `toml:"app_version"`
	FormatVersion   string `toml:"format_version"`
	UserNotes       string `toml:"user_notes,omitempty"`
}

type filtersDoc struct {
	Demographic demographicDoc  `toml:"demographic"`
	Phenotypic  []phenotypicDoc `toml:"phenotypic,omitempty"`
}

type demographicDoc struct {
	Substudies []string           `toml:"substudies,omitempty"`
	Sessions   []any              `toml:"sessions,omitempty"`
	AgeRange   map[string]float64 `toml:"age_range,omitempty"`
}

type phenotypicDoc struct {
	Table  string         `toml:"table"`
	Column string         `toml:"column"`
	Type   string         `toml:"type"`
	Value  map[string]any `toml:"value"`
}

type selectionDoc struct {
	Tables  []string            `toml:"tables,omitempty"`
	Columns map[string][]string `toml:"columns,omitempty"`
}

type optionsDoc struct {
	EnwidenLongitudinal bool `toml:"enwiden_longitudinal"`
}

// Export renders a spec as a parameter file. The output is
// deterministic for a fixed spec and metadata.
func Export(spec *Spec, meta Metadata) ([]byte, error) {
	ts := meta.ExportTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	doc := paramsDoc{
		Metadata: metadataDoc{
			ExportTimestamp: ts.Format(time.RFC3339),
			AppVersion:      meta.AppVersion,
			FormatVersion:   FormatVersion,
			UserNotes:       meta.UserNotes,
		},
		Options: optionsDoc{EnwidenLongitudinal: spec.EnwidenLongitudinal},
	}

	doc.Filters.Demographic.Substudies = spec.Demographic.Substudies
	for _, s := range spec.Demographic.Sessions {
		doc.Filters.Demographic.Sessions = append(doc.Filters.Demographic.Sessions, s)
	}
	if r := spec.Demographic.AgeRange; r != nil {
		doc.Filters.Demographic.AgeRange = map[string]float64{"min": r.Min, "max": r.Max}
	}

	for _, f := range spec.Phenotypic {
		entry := phenotypicDoc{Table: f.FilterTable(), Column: f.FilterColumn()}
		switch f := f.(type) {
		case query.RangeFilter:
			entry.Type = "range"
			entry.Value = map[string]any{"min": f.Min, "max": f.Max}
		case query.CategoricalFilter:
			entry.Type = "categorical"
			entry.Value = map[string]any{"values": f.Values}
		default:
			return nil, fmt.Errorf("cannot export filter type %T", f)
		}
		doc.Filters.Phenotypic = append(doc.Filters.Phenotypic, entry)
	}

	doc.Selection.Tables = spec.Selection.Tables
	doc.Selection.Columns = spec.Selection.Columns

	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(doc); err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return []byte(b.String()), nil
}

// Import parses a parameter file. Structural problems return a
// *FormatError and no spec. Individual entries that fail validation
// against the snapshot are skipped and recorded in the report; the
// returned spec carries everything that survived. A nil snapshot skips
// dataset validation and imports on structure alone.
func Import(data []byte, snap *schema.Snapshot) (*Spec, *Report, error) {
	var doc paramsDoc
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, nil, &FormatError{Message: err.Error()}
	}

	for _, section := range []string{"metadata", "filters", "selection"} {
		if !md.IsDefined(section) {
			return nil, nil, &FormatError{Section: section, Message: "required section is missing"}
		}
	}
	if doc.Metadata.FormatVersion != FormatVersion {
		return nil, nil, &FormatError{
			Section: "metadata",
			Message: fmt.Sprintf("unsupported format version %q (expected %q)", doc.Metadata.FormatVersion, FormatVersion),
		}
	}

	spec := &Spec{EnwidenLongitudinal: doc.Options.EnwidenLongitudinal}
	report := &Report{}

	importDemographic(doc.Filters.Demographic, snap, spec, report)
	for i, entry := range doc.Filters.Phenotypic {
		if f, ok := importPhenotypic(i, entry, snap, report); ok {
			spec.Phenotypic = append(spec.Phenotypic, f)
		}
	}
	importSelection(doc.Selection, snap, spec, report)

	return spec, report, nil
}

func importDemographic(doc demographicDoc, snap *schema.Snapshot, spec *Spec, report *Report) {
	const section = "filters.demographic"

	spec.Demographic.Substudies = doc.Substudies

	if doc.AgeRange != nil {
		min, okMin := doc.AgeRange["min"]
		max, okMax := doc.AgeRange["max"]
		switch {
		case !okMin || !okMax:
			report.add(section, "age_range needs both min and max; skipped")
		case min > max:
			report.add(section, "age_range minimum %g exceeds maximum %g; skipped", min, max)
		default:
			spec.Demographic.AgeRange = &query.AgeRange{Min: min, Max: max}
		}
	}

	sessions := stringValues(doc.Sessions)
	if snap != nil && len(snap.SessionValues) > 0 {
		known := make(map[string]struct{}, len(snap.SessionValues))
		for _, s := range snap.SessionValues {
			known[s] = struct{}{}
		}
		kept := sessions[:0]
		for _, s := range sessions {
			if _, ok := known[s]; !ok {
				report.add(section, "session %q does not occur in the dataset; skipped", s)
				continue
			}
			kept = append(kept, s)
		}
		sessions = kept
	}
	spec.Demographic.Sessions = sessions
}

func importPhenotypic(idx int, doc phenotypicDoc, snap *schema.Snapshot, report *Report) (query.PhenotypicFilter, bool) {
	section := fmt.Sprintf("filters.phenotypic[%d]", idx)

	if doc.Table == "" || doc.Column == "" {
		report.add(section, "table and column are required; skipped")
		return nil, false
	}
	name := doc.Table + "." + doc.Column
	if snap != nil {
		if err := query.ValidateColumn(snap, doc.Table, doc.Column); err != nil {
			report.add(section, "%s: %v; skipped", name, err)
			return nil, false
		}
	}

	switch doc.Type {
	case "range":
		min, okMin := floatValue(doc.Value["min"])
		max, okMax := floatValue(doc.Value["max"])
		switch {
		case !okMin || !okMax:
			report.add(section, "%s: range needs numeric min and max; skipped", name)
			return nil, false
		case min > max:
			report.add(section, "%s: range minimum %g exceeds maximum %g; skipped", name, min, max)
			return nil, false
		}
		return query.RangeFilter{Table: doc.Table, Column: doc.Column, Min: min, Max: max, Enabled: true}, true
	case "categorical":
		values, _ := doc.Value["values"].([]any)
		strs := stringValues(values)
		if len(strs) == 0 {
			report.add(section, "%s: categorical needs at least one value; skipped", name)
			return nil, false
		}
		return query.CategoricalFilter{Table: doc.Table, Column: doc.Column, Values: strs, Enabled: true}, true
	default:
		report.add(section, "%s: unknown filter type %q; skipped", name, doc.Type)
		return nil, false
	}
}

func importSelection(doc selectionDoc, snap *schema.Snapshot, spec *Spec, report *Report) {
	const section = "selection"

	for _, table := range doc.Tables {
		if snap != nil {
			if err := query.ValidateTable(snap, table); err != nil {
				report.add(section, "%v; skipped", err)
				continue
			}
		}
		spec.Selection.Tables = append(spec.Selection.Tables, table)
	}

	if len(doc.Columns) == 0 {
		return
	}
	spec.Selection.Columns = make(map[string][]string, len(doc.Columns))
	tables := make([]string, 0, len(doc.Columns))
	for table := range doc.Columns {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if snap != nil {
			if err := query.ValidateTable(snap, table); err != nil {
				report.add(section, "%v; skipped its columns", err)
				continue
			}
		}
		var kept []string
		for _, col := range doc.Columns[table] {
			if snap != nil {
				if err := query.ValidateColumn(snap, table, col); err != nil {
					report.add(section, "%v; skipped", err)
					continue
				}
			}
			kept = append(kept, col)
		}
		if len(kept) > 0 {
			spec.Selection.Columns[table] = kept
		}
	}
	if len(spec.Selection.Columns) == 0 {
		spec.Selection.Columns = nil
	}
}

// floatValue reads a TOML number that may have been written as an
// integer or a float.
func floatValue(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// stringValues normalizes a loose TOML array into strings.
func stringValues(values []any) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch v := v.(type) {
		case string:
			out = append(out, v)
		case int64:
			out = append(out, strconv.FormatInt(v, 10))
		case float64:
			out = append(out, strconv.FormatFloat(v, 'g', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(v))
		}
	}
	return out
}
