package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/params"
	"github.com/cohort-cli/cohort/internal/ui"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Create and validate portable parameter files",
	Long: `Parameter files capture a full cohort specification (filters, selection,
options) as TOML, so a query can be rerun later, on another machine, or
shared alongside a published analysis.

Count and export accept a file via --params and write one via
--save-params.`,
}

var (
	paramsInitOut   string
	paramsInitNotes string
)

var paramsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter parameter file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		now := time.Now()

		spec := params.Starter(cfg)
		data, err := params.Export(spec, params.Metadata{
			ExportTimestamp: now.UTC(),
			AppVersion:      currentVersionInfo().Version,
			UserNotes:       paramsInitNotes,
		})
		if err != nil {
			return handleError(ErrInternal, err, "")
		}

		out := paramsInitOut
		if out == "" {
			out = params.Filename(now, paramsInitNotes)
		}
		if _, err := os.Stat(out); err == nil {
			return handleErrorMsg(ErrFileExists,
				fmt.Sprintf("%s already exists", out),
				"Pass --out to choose another name")
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"file":           out,
				"format_version": params.FormatVersion,
			}, nil)
			return nil
		}
		fmt.Println(ui.Checkf("Wrote starter parameters to %s", ui.FilePath(out)))
		fmt.Println(ui.Hint("Edit the file, then run 'cohort params validate " + out + "'"))
		return nil
	},
}

var paramsValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a parameter file against the dataset",
	Long: `Validate a parameter file. Structural problems (bad TOML, a missing
required section, an unsupported format version) reject the file whole.
Entries that no longer match the dataset are reported individually; the
rest of the file still loads.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return handleError(ErrFileNotFound, err, "")
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return handleEnvError(err)
		}
		defer e.Close()

		spec, report, err := params.Import(data, e.snap)
		if err != nil {
			return handleError(ErrParamsInvalid, err,
				"Run 'cohort params init' to see the expected layout")
		}

		var ff filterFlags
		factory, _, err := ff.factory()
		if err != nil {
			return handleError(ErrInternal, err, "")
		}
		problems := factory.Validate(ff.request(e.snap, spec))

		issues := make([]string, 0, len(report.Issues))
		for _, issue := range report.Issues {
			issues = append(issues, issue.String())
		}
		valid := report.Empty() && len(problems) == 0

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"file":     args[0],
				"valid":    valid,
				"skipped":  issues,
				"problems": problems,
				"filters":  len(spec.Phenotypic),
				"tables":   spec.Selection.ReferencedTables(),
				"wide":     spec.EnwidenLongitudinal,
			}, timedMeta(start, 0))
			return nil
		}

		for _, issue := range issues {
			fmt.Println(ui.Warning(issue))
		}
		for _, problem := range problems {
			fmt.Println(ui.Error(problem))
		}
		if valid {
			fmt.Println(ui.Successf("%s is valid", args[0]))
		} else if len(problems) == 0 {
			noun := "entries"
			if len(issues) == 1 {
				noun = "entry"
			}
			fmt.Println(ui.Warningf("%s loaded with %d skipped %s", args[0], len(issues), noun))
		} else {
			return handleErrorMsg(ErrValidationFailed,
				fmt.Sprintf("%s has %d %s", args[0], len(problems), ui.Pluralize("problem", len(problems))),
				"")
		}
		return nil
	},
}

func init() {
	paramsInitCmd.Flags().StringVar(&paramsInitOut, "out", "", "Output file path (default: timestamped name)")
	paramsInitCmd.Flags().StringVar(&paramsInitNotes, "notes", "", "Free-form notes stored in the file and slugged into its name")
	paramsCmd.AddCommand(paramsInitCmd)
	paramsCmd.AddCommand(paramsValidateCmd)
	rootCmd.AddCommand(paramsCmd)
}
