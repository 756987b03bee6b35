package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/index"
)

const maxCompletionResults = 200

// completeTableNames completes table-name arguments and flag values from
// the metadata index, without touching the query engine.
func completeTableNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	records := completionTables(cmd)
	if records == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var matches []string
	for _, rec := range records {
		if strings.HasPrefix(rec.Name, toComplete) {
			matches = append(matches, rec.Name)
		}
	}
	sort.Strings(matches)
	return capCompletions(matches), cobra.ShellCompDirectiveNoFileComp
}

// completeColumnRefs completes table.column values. Before the dot it
// offers table names; after it, that table's columns.
func completeColumnRefs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Filter values follow an equals sign; nothing to offer there.
	if strings.Contains(toComplete, "=") {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	records := completionTables(cmd)
	if records == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	table, partial, hasDot := strings.Cut(toComplete, ".")

	var matches []string
	if !hasDot {
		for _, rec := range records {
			if strings.HasPrefix(rec.Name, table) {
				matches = append(matches, rec.Name+".")
			}
		}
		sort.Strings(matches)
		// Keep the shell from appending a space after the dot.
		return capCompletions(matches), cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}

	for _, rec := range records {
		if rec.Name != table {
			continue
		}
		for _, col := range rec.Columns {
			if strings.HasPrefix(col.Name, partial) {
				matches = append(matches, table+"."+col.Name)
			}
		}
	}
	sort.Strings(matches)
	return capCompletions(matches), cobra.ShellCompDirectiveNoFileComp
}

// completionTables opens the index silently and returns its table
// records, or nil when no usable index exists.
func completionTables(cmd *cobra.Command) []index.TableRecord {
	dataDir := completionDataDir(cmd)
	if dataDir == "" {
		return nil
	}

	idx, err := index.Open(dataDir)
	if err != nil {
		return nil
	}
	defer idx.Close()

	records, err := idx.Tables()
	if err != nil {
		return nil
	}
	return records
}

// completionDataDir resolves the data directory the way the root command
// would, but without side effects: the --data-dir flag wins, then the
// config named by --config, then the default config.
func completionDataDir(cmd *cobra.Command) string {
	if explicit := strings.TrimSpace(getFlagString(cmd, "data-dir")); explicit != "" {
		return explicit
	}

	cfgPath := strings.TrimSpace(getFlagString(cmd, "config"))

	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFrom(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Data.Dir
}

func getFlagString(cmd *cobra.Command, name string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return value
}

func capCompletions(matches []string) []string {
	if len(matches) > maxCompletionResults {
		return matches[:maxCompletionResults]
	}
	return matches
}
