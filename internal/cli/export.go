package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/export"
	"github.com/cohort-cli/cohort/internal/params"
	"github.com/cohort-cli/cohort/internal/schema"
	"github.com/cohort-cli/cohort/internal/ui"
)

var exportFlags filterFlags

var (
	exportWide        bool
	exportConsolidate bool
	exportOut         string
	exportForce       bool
	exportPreview     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered, merged data to CSV",
	Long: `Export rows matching the filters, merged across the selected tables.

Longitudinal data exports in long form by default (one row per subject and
session). Pass --wide to pivot to one row per subject, with per-session
columns suffixed by the session label. Columns whose value never varies
within a subject stay single in wide form.

Examples:
  cohort export --tables cbcl --age 8:12
  cohort export --tables cbcl,ksads --columns demographics.sex --wide
  cohort export --params query_params_20250611_093012.toml --out cohort.csv
  cohort export --tables cbcl --preview`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		e, err := openEnv(cmd.Context())
		if err != nil {
			return handleEnvError(err)
		}
		defer e.Close()

		spec, warnings, err := exportFlags.buildSpec(e.snap)
		if err != nil {
			return handleError(ErrInvalidFilter, err, "See 'cohort export --help' for filter syntax")
		}

		wide := spec.EnwidenLongitudinal
		if cmd.Flags().Changed("wide") {
			wide = exportWide
		}
		if wide && !e.snap.Keys.IsLongitudinal {
			return handleError(ErrNotLongitudinal, export.ErrNotLongitudinal,
				"Wide form only applies to longitudinal datasets")
		}

		factory, modeWarnings, err := exportFlags.factory()
		if err != nil {
			return handleError(ErrInvalidMode, err, "")
		}
		warnings = append(warnings, modeWarnings...)

		compiled, err := factory.DataQuery(exportFlags.request(e.snap, spec))
		if err != nil {
			return handleQueryError(err)
		}
		for _, note := range compiled.Notes {
			warnings = append(warnings, Warning{Code: WarnFilterSkipped, Message: note})
		}

		var spinner *ui.Spinner
		if !isJSONOutput() {
			spinner = ui.NewSpinner("Running query...")
			spinner.Start()
		}
		res, err := e.mgr.Query(cmd.Context(), compiled.SQL, compiled.Args...)
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return handleQueryError(err)
		}

		if wide {
			res, err = export.Enwiden(res, e.snap.Keys, export.Options{
				ConsolidateBaseline: exportConsolidate,
				BaselineAliases:     e.cfg.Export.BaselineAliases,
				BaselineLabel:       e.cfg.Export.BaselineLabel,
			})
			if err != nil {
				return handleError(ErrNotLongitudinal, err, "")
			}
		}

		elapsed := time.Since(start).Milliseconds()

		if exportPreview {
			return previewResult(e.cfg.UI.MaxDisplayRows, res, warnings, elapsed)
		}

		outPath := exportOut
		if outPath == "" {
			outPath = export.Filename(selectedBehavioralTables(e.snap, spec), wide, time.Now())
		}
		if !exportForce {
			if _, err := os.Stat(outPath); err == nil {
				return handleErrorMsg(ErrFileExists,
					fmt.Sprintf("%s already exists", outPath),
					"Pass --force to overwrite or --out to choose another name")
			}
		}
		if err := export.WriteCSV(outPath, res); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		// Action log
		_ = e.idx.LogAction(fmt.Sprintf("export %d rows to %s", res.Len(), outPath))

		savedPath := ""
		if exportFlags.saveParams != "" {
			savedPath, err = exportFlags.saveSpec(spec)
			if err != nil {
				return handleError(ErrFileWriteError, err, "")
			}
		}

		if isJSONOutput() {
			data := map[string]interface{}{
				"file":    outPath,
				"rows":    res.Len(),
				"columns": len(res.Columns),
				"wide":    wide,
				"tables":  compiled.Tables,
			}
			if savedPath != "" {
				data["params_file"] = savedPath
			}
			outputSuccessWithWarnings(data, warnings, &Meta{Count: res.Len(), QueryTimeMs: elapsed})
			return nil
		}

		for _, w := range warnings {
			fmt.Println(ui.Warning(w.Message))
		}
		form := "long"
		if wide {
			form = "wide"
		}
		fmt.Println(ui.Checkf("Wrote %d %s (%d columns, %s form) to %s",
			res.Len(), ui.Pluralize("row", res.Len()), len(res.Columns), form, ui.FilePath(outPath)))
		if savedPath != "" {
			fmt.Println(ui.Checkf("Parameters saved to %s", ui.FilePath(savedPath)))
		}
		return nil
	},
}

// previewResult renders the first rows in the terminal instead of writing
// a file.
func previewResult(maxRows int, res *db.Result, warnings []Warning, elapsed int64) error {
	if maxRows <= 0 {
		maxRows = 20
	}
	n := res.Len()
	if n > maxRows {
		n = maxRows
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(res.Rows[i]))
		for j, cell := range res.Rows[i] {
			if cell.Valid {
				row[j] = cell.String
			}
		}
		rows[i] = row
	}

	if isJSONOutput() {
		outputSuccessWithWarnings(map[string]interface{}{
			"columns":    res.Columns,
			"rows":       rows,
			"total_rows": res.Len(),
		}, warnings, &Meta{Count: res.Len(), QueryTimeMs: elapsed})
		return nil
	}

	for _, w := range warnings {
		fmt.Println(ui.Warning(w.Message))
	}
	display := ui.NewDisplayContext()
	fmt.Println(ui.PreviewTable(display, res.Columns, rows))
	if res.Len() > n {
		fmt.Println(ui.Hint(fmt.Sprintf("(showing %d of %d rows)", n, res.Len())))
	}
	return nil
}

// selectedBehavioralTables lists the non-demographics tables the
// selection touches, for the default file name.
func selectedBehavioralTables(snap *schema.Snapshot, spec *params.Spec) []string {
	var out []string
	for _, t := range spec.Selection.ReferencedTables() {
		if t != snap.DemographicsTable {
			out = append(out, t)
		}
	}
	return out
}

func init() {
	addFilterFlags(exportCmd, &exportFlags)
	addSelectionFlags(exportCmd, &exportFlags)
	exportCmd.Flags().BoolVar(&exportWide, "wide", false, "Pivot longitudinal data to one row per subject")
	exportCmd.Flags().BoolVar(&exportConsolidate, "consolidate-baseline", true, "Fold baseline alias sessions into one label before widening")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path (default: derived from the selection)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite the output file if it exists")
	exportCmd.Flags().BoolVar(&exportPreview, "preview", false, "Show the first rows instead of writing a file")
	rootCmd.AddCommand(exportCmd)
}
