package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/ui"
)

var countFlags filterFlags

var countShowSQL bool

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count participants matching the filters",
	Long: `Count how many participants (or subject-session pairs, for longitudinal
data) match the given demographic and phenotypic filters.

Only tables referenced by active filters are joined, so an unfiltered count
reads just the demographics table.

Examples:
  cohort count --age 18:65
  cohort count --age 8:12 --session 1 --filter cbcl.cbcl_total=60..120
  cohort count --substudy adhd --filter demographics.sex=F
  cohort count --params query_params_20250611_093012.toml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		e, err := openEnv(cmd.Context())
		if err != nil {
			return handleEnvError(err)
		}
		defer e.Close()

		spec, warnings, err := countFlags.buildSpec(e.snap)
		if err != nil {
			return handleError(ErrInvalidFilter, err, "See 'cohort count --help' for filter syntax")
		}

		factory, modeWarnings, err := countFlags.factory()
		if err != nil {
			return handleError(ErrInvalidMode, err, "")
		}
		warnings = append(warnings, modeWarnings...)

		compiled, err := factory.CountQuery(countFlags.request(e.snap, spec))
		if err != nil {
			return handleQueryError(err)
		}
		for _, note := range compiled.Notes {
			warnings = append(warnings, Warning{Code: WarnFilterSkipped, Message: note})
		}

		if countShowSQL && !isJSONOutput() {
			fmt.Println(ui.Header("SQL"))
			fmt.Println(compiled.SQL)
			fmt.Printf("%s %v\n\n", ui.Hint("params:"), compiled.Args)
		}

		var spinner *ui.Spinner
		if !isJSONOutput() {
			spinner = ui.NewSpinner("Counting participants...")
			spinner.Start()
		}
		count, err := e.mgr.QueryCount(cmd.Context(), compiled.SQL, compiled.Args...)
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return handleQueryError(err)
		}

		elapsed := time.Since(start).Milliseconds()

		savedPath := ""
		if countFlags.saveParams != "" {
			savedPath, err = countFlags.saveSpec(spec)
			if err != nil {
				return handleError(ErrFileWriteError, err, "")
			}
		}

		if isJSONOutput() {
			data := map[string]interface{}{
				"count":  count,
				"unit":   countUnit(e.snap.Keys.IsLongitudinal),
				"tables": compiled.Tables,
			}
			if countShowSQL {
				data["sql"] = compiled.SQL
				data["args"] = compiled.Args
			}
			if savedPath != "" {
				data["params_file"] = savedPath
			}
			outputSuccessWithWarnings(data, warnings, &Meta{QueryTimeMs: elapsed})
			return nil
		}

		for _, w := range warnings {
			fmt.Println(ui.Warning(w.Message))
		}
		unit := countUnit(e.snap.Keys.IsLongitudinal)
		fmt.Printf("%s matching %s\n", ui.Header(fmt.Sprintf("%d", count)), ui.Pluralize(unit, int(count)))
		if len(compiled.Tables) > 1 {
			fmt.Println(ui.Hint(fmt.Sprintf("joined: %v", compiled.Tables)))
		}
		if savedPath != "" {
			fmt.Println(ui.Checkf("Parameters saved to %s", ui.FilePath(savedPath)))
		}
		return nil
	},
}

// countUnit names what one counted row represents.
func countUnit(longitudinal bool) string {
	if longitudinal {
		return "subject-session pair"
	}
	return "participant"
}

func init() {
	addFilterFlags(countCmd, &countFlags)
	countCmd.Flags().BoolVar(&countShowSQL, "show-sql", false, "Print the compiled SQL and parameters")
	rootCmd.AddCommand(countCmd)
}
