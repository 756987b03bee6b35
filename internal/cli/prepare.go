package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/dataset"
	"github.com/cohort-cli/cohort/internal/index"
	"github.com/cohort-cli/cohort/internal/ui"
)

var prepareDryRun bool

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Materialize the composite merge key across the dataset",
	Long: `Prepare the data directory for querying. Longitudinal joins key on a
composite (subject, session) column; prepare appends it to every
session-level CSV that lacks it and repairs rows whose existing value
disagrees with <subject>_<session>.

Running prepare twice changes nothing. Cross-sectional datasets need no
preparation and report as much.

Examples:
  cohort prepare
  cohort prepare --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		if _, err := os.Stat(cfg.Data.Dir); os.IsNotExist(err) {
			return handleErrorMsg(ErrDataDirNotFound,
				"data directory not found: "+cfg.Data.Dir,
				"Set data.dir in the config or pass --data-dir")
		}

		opts := dataset.Options{DryRun: prepareDryRun}
		var progress *ui.Progress
		if !isJSONOutput() {
			opts.Progress = func(done, total int) {
				if progress == nil {
					progress = ui.NewProgress("Checking files", total)
				}
				progress.Update(done)
			}
		}
		res, err := dataset.Prepare(cfg, opts)
		if progress != nil {
			progress.Done()
		}
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if !prepareDryRun && len(res.Actions) > 0 {
			if idx, err := index.Open(cfg.Data.Dir); err == nil {
				for _, action := range res.Actions {
					_ = idx.LogAction("prepare: " + action.String())
				}
				idx.Close()
			}
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"longitudinal": res.Longitudinal,
				"checked":      res.Checked,
				"changed":      len(res.Actions),
				"actions":      res.Actions,
				"dry_run":      prepareDryRun,
			}, &Meta{Count: len(res.Actions)})
			return nil
		}

		if !res.Longitudinal {
			fmt.Println(ui.Info("dataset is cross-sectional; nothing to materialize"))
			return nil
		}

		verb := "changed"
		if prepareDryRun {
			verb = "would change"
		}
		if len(res.Actions) == 0 {
			fmt.Println(ui.Checkf("checked %d %s; nothing to do",
				res.Checked, ui.Pluralize("file", res.Checked)))
			return nil
		}
		for _, action := range res.Actions {
			fmt.Printf("  %s %s\n", ui.TableName(action.File), action.Change)
		}
		fmt.Println(ui.Checkf("checked %d %s, %s %d",
			res.Checked, ui.Pluralize("file", res.Checked), verb, len(res.Actions)))
		if !prepareDryRun {
			fmt.Println(ui.Hint("Run 'cohort reindex' to refresh the schema"))
		}
		return nil
	},
}

func init() {
	prepareCmd.Flags().BoolVar(&prepareDryRun, "dry-run", false, "Report changes without rewriting any file")
	rootCmd.AddCommand(prepareCmd)
}
