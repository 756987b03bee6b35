package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/params"
	"github.com/cohort-cli/cohort/internal/query"
	"github.com/cohort-cli/cohort/internal/schema"
)

// filterFlags is the flag surface shared by count and export.
type filterFlags struct {
	age        string
	substudies []string
	sessions   []string
	filters    []string
	tables     []string
	columns    []string
	paramsFile string
	saveParams string
	mode       string
	strict     bool
}

// addFilterFlags registers the cohort-defining flags.
func addFilterFlags(cmd *cobra.Command, f *filterFlags) {
	cmd.Flags().StringVar(&f.age, "age", "", "Age range as MIN:MAX (e.g. 18:65)")
	cmd.Flags().StringArrayVar(&f.substudies, "substudy", nil, "Keep subjects whose study site mentions this substudy (repeatable)")
	cmd.Flags().StringArrayVar(&f.sessions, "session", nil, "Keep rows from this session (repeatable, longitudinal only)")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "Phenotypic filter as table.column=MIN..MAX or table.column=v1,v2 (repeatable)")
	cmd.Flags().StringVar(&f.paramsFile, "params", "", "Load filters and selection from a parameter file")
	cmd.Flags().StringVar(&f.saveParams, "save-params", "", "Write the effective parameters to a TOML file (or into a directory)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Query pipeline mode: auto, secure, or legacy")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Reject malformed filter shapes instead of compiling them as-is")
	_ = cmd.RegisterFlagCompletionFunc("filter", completeColumnRefs)
}

// addSelectionFlags registers the column selection flags.
func addSelectionFlags(cmd *cobra.Command, f *filterFlags) {
	cmd.Flags().StringSliceVar(&f.tables, "tables", nil, "Tables to include in the export (comma separated)")
	cmd.Flags().StringArrayVar(&f.columns, "columns", nil, "Columns to include as table.column (repeatable)")
	_ = cmd.RegisterFlagCompletionFunc("tables", completeTableNames)
	_ = cmd.RegisterFlagCompletionFunc("columns", completeColumnRefs)
}

// buildSpec assembles the effective parameter spec: the parameter file (if
// any) as the base, with command-line flags layered on top.
func (f *filterFlags) buildSpec(snap *schema.Snapshot) (*params.Spec, []Warning, error) {
	spec := &params.Spec{}
	var warnings []Warning

	if f.paramsFile != "" {
		data, err := os.ReadFile(f.paramsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read parameter file: %w", err)
		}
		loaded, report, err := params.Import(data, snap)
		if err != nil {
			return nil, nil, err
		}
		spec = loaded
		for _, issue := range report.Issues {
			warnings = append(warnings, Warning{Code: WarnParamsPartial, Message: issue.String()})
		}
	}

	if f.age != "" {
		ar, err := parseAgeRange(f.age)
		if err != nil {
			return nil, nil, err
		}
		spec.Demographic.AgeRange = ar
	}
	spec.Demographic.Substudies = append(spec.Demographic.Substudies, f.substudies...)
	spec.Demographic.Sessions = append(spec.Demographic.Sessions, f.sessions...)

	for _, raw := range f.filters {
		filter, err := parsePhenotypicFilter(raw)
		if err != nil {
			return nil, nil, err
		}
		spec.Phenotypic = append(spec.Phenotypic, filter)
	}

	for _, table := range f.tables {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		spec.Selection.Tables = appendUnique(spec.Selection.Tables, table)
	}
	for _, raw := range f.columns {
		table, column, err := parseColumnRef(raw)
		if err != nil {
			return nil, nil, err
		}
		if spec.Selection.Columns == nil {
			spec.Selection.Columns = make(map[string][]string)
		}
		spec.Selection.Columns[table] = appendUnique(spec.Selection.Columns[table], column)
	}

	return spec, warnings, nil
}

// request converts a spec into a compilation request against the snapshot.
func (f *filterFlags) request(snap *schema.Snapshot, spec *params.Spec) query.Request {
	cfg := getConfig()
	return query.Request{
		Snapshot:    snap,
		Data:        cfg.Data,
		DataDir:     cfg.Data.Dir,
		Demographic: spec.Demographic,
		Phenotypic:  spec.Phenotypic,
		Selection:   spec.Selection,
	}
}

// factory builds the query factory from the mode flags. The returned
// warnings carry the legacy deprecation notice in JSON mode.
func (f *filterFlags) factory() (*query.Factory, []Warning, error) {
	mode, err := query.ParseMode(f.mode)
	if err != nil {
		return nil, nil, err
	}

	var opts []query.Option
	if f.strict {
		opts = append(opts, query.WithStrictValidation())
	}

	var warnBuf strings.Builder
	if isJSONOutput() {
		opts = append(opts, query.WithWarningWriter(&warnBuf))
	}

	factory, err := query.NewFactory(mode, opts...)
	if err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	if msg := strings.TrimSpace(warnBuf.String()); msg != "" {
		warnings = append(warnings, Warning{Code: WarnDeprecated, Message: msg})
	}
	return factory, warnings, nil
}

// saveSpec writes the effective parameters to the --save-params target.
// A directory target gets a timestamped file name.
func (f *filterFlags) saveSpec(spec *params.Spec) (string, error) {
	target := f.saveParams
	now := time.Now()

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, params.Filename(now, ""))
	} else if err == nil {
		return "", fmt.Errorf("refusing to overwrite %s", target)
	}

	data, err := params.Export(spec, params.Metadata{
		ExportTimestamp: now.UTC(),
		AppVersion:      currentVersionInfo().Version,
	})
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", err
	}
	return target, nil
}

func parseAgeRange(raw string) (*query.AgeRange, error) {
	lo, hi, ok := strings.Cut(raw, ":")
	if !ok {
		return nil, fmt.Errorf("age must be MIN:MAX, got %q", raw)
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return nil, fmt.Errorf("age minimum %q is not a number", lo)
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return nil, fmt.Errorf("age maximum %q is not a number", hi)
	}
	if min > max {
		return nil, fmt.Errorf("age range %v:%v is inverted", min, max)
	}
	return &query.AgeRange{Min: min, Max: max}, nil
}

// parsePhenotypicFilter parses table.column=MIN..MAX into a range filter
// and table.column=v1,v2 into a categorical filter.
func parsePhenotypicFilter(raw string) (query.PhenotypicFilter, error) {
	ref, value, ok := strings.Cut(raw, "=")
	if !ok {
		return nil, fmt.Errorf("filter %q must look like table.column=VALUE", raw)
	}
	table, column, err := parseColumnRef(ref)
	if err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	if lo, hi, isRange := strings.Cut(value, ".."); isRange {
		min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: range minimum %q is not a number", raw, lo)
		}
		max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err != nil {
			return nil, fmt.Errorf("filter %q: range maximum %q is not a number", raw, hi)
		}
		return query.RangeFilter{Table: table, Column: column, Min: min, Max: max, Enabled: true}, nil
	}

	var values []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("filter %q names no values", raw)
	}
	return query.CategoricalFilter{Table: table, Column: column, Values: values, Enabled: true}, nil
}

func parseColumnRef(raw string) (table, column string, err error) {
	table, column, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok || table == "" || column == "" {
		return "", "", fmt.Errorf("column reference %q must look like table.column", raw)
	}
	return table, column, nil
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
