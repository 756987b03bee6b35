package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/index"
	"github.com/cohort-cli/cohort/internal/ui"
)

// StatsResult is the JSON payload for the stats command.
type StatsResult struct {
	Tables  int `json:"tables"`
	Columns int `json:"columns"`
}

// ActionEntry is one action-log line for JSON output.
type ActionEntry struct {
	OccurredAt string `json:"occurred_at"`
	Action     string `json:"action"`
}

var statsActionLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics and recent actions",
	Long: `Displays statistics about the schema index and the most recent logged
actions (reindexes, preparations, exports).

Examples:
  cohort stats
  cohort stats --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		start := time.Now()

		idx, err := index.Open(cfg.Data.Dir)
		if err != nil {
			return handleError(ErrDatabaseError, err, "Run 'cohort reindex' to build the index")
		}
		defer idx.Close()

		stats, err := idx.GetStats()
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		actions, err := idx.Actions(statsActionLimit)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}

		elapsed := time.Since(start).Milliseconds()

		if isJSONOutput() {
			entries := make([]ActionEntry, 0, len(actions))
			for _, a := range actions {
				entries = append(entries, ActionEntry{
					OccurredAt: a.OccurredAt.Format(time.RFC3339),
					Action:     a.Action,
				})
			}
			outputSuccess(map[string]interface{}{
				"config_path": getConfigPath(),
				"data_dir":    cfg.Data.Dir,
				"stats":       StatsResult{Tables: stats.Tables, Columns: stats.Columns},
				"actions":     entries,
			}, &Meta{QueryTimeMs: elapsed})
			return nil
		}

		fmt.Println(ui.Header("Index Statistics"))
		fmt.Printf("%s  %s\n", ui.Muted.Render("Config: "), ui.FilePath(getConfigPath()))
		fmt.Printf("%s  %s\n", ui.Muted.Render("Data:   "), ui.FilePath(cfg.Data.Dir))
		fmt.Printf("%s  %s\n", ui.Muted.Render("Tables: "), ui.Accent.Render(fmt.Sprintf("%d", stats.Tables)))
		fmt.Printf("%s  %s\n", ui.Muted.Render("Columns:"), ui.Accent.Render(fmt.Sprintf("%d", stats.Columns)))

		if len(actions) > 0 {
			fmt.Println()
			fmt.Println(ui.Header("Recent Actions"))
			for _, a := range actions {
				fmt.Printf("  %s  %s\n", ui.Hint(a.OccurredAt.Local().Format("2006-01-02 15:04")), a.Action)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsActionLimit, "actions", 10, "How many recent actions to show")
	rootCmd.AddCommand(statsCmd)
}
