package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/index"
	"github.com/cohort-cli/cohort/internal/schema"
	"github.com/cohort-cli/cohort/internal/ui"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rescan every CSV and rebuild the schema index",
	Long: `Rescan all CSV files in the data directory and rebuild the metadata
index: columns, storage types, observed numeric ranges, row counts, and
the session values of the demographics table.

Regular commands refresh the index incrementally, rescanning only files
whose size or modification time changed. Reindex forces a full rescan,
which is the right tool after editing files in place or changing the
configured column names.

Examples:
  cohort reindex`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		cfg := getConfig()

		if !isJSONOutput() {
			fmt.Printf("Reindexing dataset: %s\n", ui.FilePath(cfg.Data.Dir))
		}

		mgr, err := db.Open()
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer mgr.Close()

		idx, rebuilt, err := index.OpenWithRebuild(cfg.Data.Dir)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer idx.Close()

		if rebuilt && !isJSONOutput() {
			fmt.Println(ui.Info("index layout was outdated; rebuilt from scratch"))
		}

		var spinner *ui.Spinner
		if !isJSONOutput() {
			spinner = ui.NewSpinner("Scanning tables...")
			spinner.Start()
		}
		snap, err := schema.NewProvider(cfg, mgr, idx).Reindex(cmd.Context())
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return handleQueryError(err)
		}

		_ = idx.LogAction(fmt.Sprintf("reindex: %d tables", len(snap.Tables)))

		columns := 0
		for _, t := range snap.Tables {
			columns += len(t.Columns)
		}
		elapsed := time.Since(start).Milliseconds()

		if isJSONOutput() {
			outputSuccessWithWarnings(map[string]interface{}{
				"tables":         len(snap.Tables),
				"columns":        columns,
				"topology":       topologyName(snap.Keys),
				"session_values": snap.SessionValues,
				"index_rebuilt":  rebuilt,
			}, schemaWarnings(snap), &Meta{Count: len(snap.Tables), QueryTimeMs: elapsed})
			return nil
		}

		fmt.Println(ui.Checkf("Indexed %d %s (%d columns)",
			len(snap.Tables), ui.Pluralize("table", len(snap.Tables)), columns))
		fmt.Printf("  topology: %s\n", topologyName(snap.Keys))
		if len(snap.SessionValues) > 0 {
			fmt.Printf("  sessions: %v\n", snap.SessionValues)
		}
		for _, msg := range snap.Messages {
			fmt.Println(ui.Warning(msg))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
