// Package cli implements the cohort command-line interface.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/ui"
)

// Persistent flags and the config they resolve to in PersistentPreRunE.
var (
	configPath  string
	dataDirFlag string

	globalConfig     *config.Config
	globalConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Cohort - build research cohorts from CSV datasets",
	Long: `Cohort compiles demographic and phenotypic filters into parameterized SQL
over a directory of CSV tables, counts matching participants, and exports
merged data in long or wide form.

The demographics table anchors every query; behavioral tables join to it on
the dataset's merge keys. Filter values never reach the SQL text: they are
bound as query parameters.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if underCommand(cmd, "completion", "help", "version", "docs") {
			return nil
		}

		var err error
		globalConfig, globalConfigPath, err = resolveConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDirFlag != "" {
			globalConfig.Data.Dir = dataDirFlag
		}
		ui.ConfigureTheme(globalConfig.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(globalConfig.UI.CodeTheme)

		// Config subcommands operate on the file itself and must work even
		// when its current content is unusable.
		if underCommand(cmd, "config") {
			return nil
		}

		if problems := globalConfig.Validate(); len(problems) > 0 {
			return fmt.Errorf("invalid config %s:\n  %s\n\nRun 'cohort config' to inspect it",
				globalConfigPath, strings.Join(problems, "\n  "))
		}
		return nil
	},
}

// underCommand reports whether cmd, or any ancestor of cmd below the root,
// is one of the named commands.
func underCommand(cmd *cobra.Command, names ...string) bool {
	for c := cmd; c != nil && c != cmd.Root(); c = c.Parent() {
		for _, name := range names {
			if c.Name() == name {
				return true
			}
		}
	}
	return false
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file to use instead of the default")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides data.dir from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit a JSON envelope instead of text output")
}

// getConfig returns the config resolved for the current invocation.
func getConfig() *config.Config {
	return globalConfig
}

// getConfigPath returns the path that config came from.
func getConfigPath() string {
	return globalConfigPath
}

// resolveConfig loads the effective config and reports which file it came
// from. An explicit --config file must parse; a missing default file just
// yields defaults.
func resolveConfig() (*config.Config, string, error) {
	if strings.TrimSpace(configPath) != "" {
		loaded, err := config.LoadFrom(configPath)
		if err != nil {
			return nil, "", err
		}
		return loaded, configPath, nil
	}

	loaded, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	if loaded == nil {
		loaded = config.Default()
	}
	return loaded, config.DefaultPath(), nil
}
