// Package query compiles cohort filter and selection requests into
// parameterized SQL over CSV-backed tables. Table and column names are
// validated against the schema snapshot before they reach SQL text;
// user-supplied values only ever travel as bound parameters.
package query

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/schema"
)

// Mode selects the compilation pipeline. Every mode now dispatches to
// the same whitelist-validated, fully parameterized pipeline; ModeLegacy
// survives only so existing automation that requests it keeps working,
// and it warns on construction.
type Mode int

const (
	ModeAuto Mode = iota
	ModeSecure
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeSecure:
		return "secure"
	case ModeLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode reads a mode name as written in flags and config files.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return ModeAuto, nil
	case "secure":
		return ModeSecure, nil
	case "legacy":
		return ModeLegacy, nil
	default:
		return ModeAuto, fmt.Errorf("unknown query mode %q (expected auto, secure, or legacy)", raw)
	}
}

const legacyWarning = "warning: legacy query mode is deprecated and now runs the validated pipeline; switch to secure mode"

// Request carries everything one compilation needs. The factory holds
// no state between requests, so a single factory can serve concurrent
// callers.
type Request struct {
	Snapshot    *schema.Snapshot
	Data        config.DataConfig
	DataDir     string
	Demographic DemographicFilters
	Phenotypic  []PhenotypicFilter
	Selection   Selection
}

// Factory compiles requests under a fixed mode chosen at construction.
type Factory struct {
	mode     Mode
	strict   bool
	legacy   bool
	warnings io.Writer
}

// Option configures a Factory.
type Option func(*Factory)

// WithStrictValidation makes the factory reject value-shape problems
// (inverted ranges, blank categorical values, unknown sessions) instead
// of compiling them into predicates that match nothing.
func WithStrictValidation() Option {
	return func(f *Factory) { f.strict = true }
}

// WithLegacyQueries is the explicit opt-in that makes ModeAuto resolve
// to ModeLegacy.
func WithLegacyQueries() Option {
	return func(f *Factory) { f.legacy = true }
}

// WithWarningWriter redirects deprecation warnings, which otherwise go
// to stderr.
func WithWarningWriter(w io.Writer) Option {
	return func(f *Factory) { f.warnings = w }
}

// NewFactory builds a factory for the given mode. ModeAuto resolves to
// ModeSecure unless WithLegacyQueries was given. Constructing a legacy
// factory emits a deprecation warning once.
func NewFactory(mode Mode, opts ...Option) (*Factory, error) {
	f := &Factory{mode: mode, warnings: os.Stderr}
	for _, opt := range opts {
		opt(f)
	}
	switch mode {
	case ModeAuto:
		if f.legacy {
			f.mode = ModeLegacy
		} else {
			f.mode = ModeSecure
		}
	case ModeSecure, ModeLegacy:
	default:
		return nil, fmt.Errorf("unknown query mode %d", int(mode))
	}
	if f.mode == ModeLegacy {
		fmt.Fprintln(f.warnings, legacyWarning)
	}
	return f, nil
}

// Mode returns the resolved mode.
func (f *Factory) Mode() Mode { return f.mode }

// CountQuery compiles the participant count for the request's filters.
// Only tables referenced by active filters are joined.
func (f *Factory) CountQuery(req Request) (*CompiledQuery, error) {
	set, err := f.compileFilters(req)
	if err != nil {
		return nil, err
	}
	plan, err := PlanJoins(req.Snapshot, req.DataDir, set.Tables)
	if err != nil {
		return nil, err
	}
	return AssembleCount(req.Snapshot, plan, set)
}

// DataQuery compiles the row query for the request's filters and
// selection. Tables referenced by either side are joined.
func (f *Factory) DataQuery(req Request) (*CompiledQuery, error) {
	if req.Selection.IsEmpty() {
		return nil, ErrEmptySelection
	}
	set, err := f.compileFilters(req)
	if err != nil {
		return nil, err
	}
	tables := append(append([]string{}, set.Tables...), req.Selection.ReferencedTables()...)
	plan, err := PlanJoins(req.Snapshot, req.DataDir, tables)
	if err != nil {
		return nil, err
	}
	return AssembleData(req.Snapshot, plan, set, req.Selection)
}

func (f *Factory) compileFilters(req Request) (*FilterSet, error) {
	if f.strict {
		if err := checkShapes(req); err != nil {
			return nil, err
		}
	}
	return CompileFilters(req.Snapshot, req.Data, req.Demographic, req.Phenotypic)
}

// checkShapes rejects filters whose values cannot express a sensible
// predicate. Identifier validation happens later in compilation either
// way; these checks are about the values themselves.
func checkShapes(req Request) error {
	if r := req.Demographic.AgeRange; r != nil && r.Min > r.Max {
		return &ParameterError{Filter: "age", Message: fmt.Sprintf("range minimum %g must not exceed maximum %g", r.Min, r.Max)}
	}
	if len(req.Demographic.Sessions) > 0 && len(req.Snapshot.SessionValues) > 0 {
		known := make(map[string]struct{}, len(req.Snapshot.SessionValues))
		for _, s := range req.Snapshot.SessionValues {
			known[s] = struct{}{}
		}
		for _, s := range req.Demographic.Sessions {
			if _, ok := known[s]; !ok {
				return &ParameterError{Filter: "sessions", Message: fmt.Sprintf("session %q does not occur in the dataset", s)}
			}
		}
	}
	for _, pf := range req.Phenotypic {
		if !pf.Active() {
			continue
		}
		name := pf.FilterTable() + "." + pf.FilterColumn()
		switch pf := pf.(type) {
		case RangeFilter:
			if pf.Min > pf.Max {
				return &ParameterError{Filter: name, Message: fmt.Sprintf("range minimum %g must not exceed maximum %g", pf.Min, pf.Max)}
			}
		case CategoricalFilter:
			for _, v := range pf.Values {
				if strings.TrimSpace(v) == "" {
					return &ParameterError{Filter: name, Message: "categorical values must not be blank"}
				}
			}
		}
	}
	return nil
}

// Validate collects every problem the request would hit at compile
// time, including value-shape problems, without stopping at the first.
// Intended for previewing imported parameter files.
func (f *Factory) Validate(req Request) []string {
	var problems []string
	add := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	snap := req.Snapshot
	if snap == nil || snap.IsEmpty() {
		return []string{ErrEmptySchema.Error()}
	}

	if r := req.Demographic.AgeRange; r != nil && r.Min > r.Max {
		add(&ParameterError{Filter: "age", Message: fmt.Sprintf("range minimum %g must not exceed maximum %g", r.Min, r.Max)})
	}
	for _, pf := range req.Phenotypic {
		if !pf.Active() {
			continue
		}
		add(ValidateColumn(snap, pf.FilterTable(), pf.FilterColumn()))
		name := pf.FilterTable() + "." + pf.FilterColumn()
		switch pf := pf.(type) {
		case RangeFilter:
			if pf.Min > pf.Max {
				add(&ParameterError{Filter: name, Message: fmt.Sprintf("range minimum %g must not exceed maximum %g", pf.Min, pf.Max)})
			}
		case CategoricalFilter:
			for _, v := range pf.Values {
				if strings.TrimSpace(v) == "" {
					add(&ParameterError{Filter: name, Message: "categorical values must not be blank"})
					break
				}
			}
		}
	}
	for _, table := range req.Selection.ReferencedTables() {
		if err := ValidateTable(snap, table); err != nil {
			add(err)
			continue
		}
		for _, col := range req.Selection.Columns[table] {
			add(ValidateColumn(snap, table, col))
		}
	}
	if len(req.Demographic.Sessions) > 0 && len(snap.SessionValues) > 0 {
		known := make(map[string]struct{}, len(snap.SessionValues))
		for _, s := range snap.SessionValues {
			known[s] = struct{}{}
		}
		for _, s := range req.Demographic.Sessions {
			if _, ok := known[s]; !ok {
				add(&ParameterError{Filter: "sessions", Message: fmt.Sprintf("session %q does not occur in the dataset", s)})
			}
		}
	}
	return problems
}
