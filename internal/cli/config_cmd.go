package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/config"
)

// configState is a config.toml loaded for editing, with enough context
// to save it back where it came from.
type configState struct {
	cfg    *config.Config
	path   string
	exists bool
}

func loadConfigState() (*configState, error) {
	loadedCfg, resolvedPath, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(resolvedPath)
	return &configState{cfg: loadedCfg, path: resolvedPath, exists: statErr == nil}, nil
}

// configField binds a 'config set' flag, and for clearable fields the
// matching 'config unset' flag, to one config.toml string field.
type configField struct {
	flag     string
	key      string
	usage    string
	bind     func(*config.Config) *string
	canUnset bool

	value string
	clear bool
}

var configFields = []*configField{
	{flag: "data-dir", key: "data.dir", usage: "Set the CSV data directory",
		bind: func(c *config.Config) *string { return &c.Data.Dir }},
	{flag: "demographics-file", key: "data.demographics_file", usage: "Set the demographics file name",
		bind: func(c *config.Config) *string { return &c.Data.DemographicsFile }},
	{flag: "primary-id-column", key: "data.primary_id_column", usage: "Set the subject id column",
		bind: func(c *config.Config) *string { return &c.Data.PrimaryIDColumn }},
	{flag: "session-column", key: "data.session_column", usage: "Set the session column",
		bind: func(c *config.Config) *string { return &c.Data.SessionColumn }},
	{flag: "composite-id-column", key: "data.composite_id_column", usage: "Set the composite id column",
		bind: func(c *config.Config) *string { return &c.Data.CompositeIDColumn }},
	{flag: "age-column", key: "data.age_column", usage: "Set the age column",
		bind: func(c *config.Config) *string { return &c.Data.AgeColumn }},
	{flag: "study-site-column", key: "data.study_site_column", usage: "Set the study/site membership column",
		bind: func(c *config.Config) *string { return &c.Data.StudySiteColumn }, canUnset: true},
	{flag: "baseline-label", key: "export.baseline_label", usage: "Set the consolidated baseline label",
		bind: func(c *config.Config) *string { return &c.Export.BaselineLabel }},
	{flag: "ui-accent", key: "ui.accent", usage: "Set UI accent color (ANSI 0-255 or #RRGGBB)",
		bind: func(c *config.Config) *string { return &c.UI.Accent }, canUnset: true},
	{flag: "ui-code-theme", key: "ui.code_theme", usage: "Set markdown code theme name",
		bind: func(c *config.Config) *string { return &c.UI.CodeTheme }, canUnset: true},
}

// max-display-rows is the one non-string field and is handled apart
// from the table.
var configSetMaxDisplayRows int

func configPayload(state *configState) map[string]interface{} {
	c := state.cfg
	return map[string]interface{}{
		"config_path": state.path,
		"exists":      state.exists,
		"data": map[string]interface{}{
			"dir":                 c.Data.Dir,
			"demographics_file":   c.Data.DemographicsFile,
			"primary_id_column":   c.Data.PrimaryIDColumn,
			"session_column":      c.Data.SessionColumn,
			"composite_id_column": c.Data.CompositeIDColumn,
			"age_column":          c.Data.AgeColumn,
			"study_site_column":   c.Data.StudySiteColumn,
		},
		"export": map[string]interface{}{
			"baseline_aliases": c.Export.BaselineAliases,
			"baseline_label":   c.Export.BaselineLabel,
		},
		"ui": map[string]interface{}{
			"accent":           strings.TrimSpace(c.UI.Accent),
			"code_theme":       strings.TrimSpace(c.UI.CodeTheme),
			"max_display_rows": c.UI.MaxDisplayRows,
			"default_age_min":  c.UI.DefaultAgeMin,
			"default_age_max":  c.UI.DefaultAgeMax,
		},
	}
}

func showConfig(cmd *cobra.Command, args []string) error {
	state, err := loadConfigState()
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}

	if isJSONOutput() {
		outputSuccess(configPayload(state), nil)
		return nil
	}

	if state.exists {
		fmt.Printf("config file: %s\n", state.path)
	} else {
		fmt.Printf("no config file at %s; showing defaults\n", state.path)
		fmt.Println("run 'cohort config init' to create one")
	}
	fmt.Println()

	kv := func(key string, value interface{}) {
		fmt.Printf("  %-26s %v\n", key, value)
	}

	c := state.cfg
	kv("data.dir", c.Data.Dir)
	kv("data.demographics_file", c.Data.DemographicsFile)
	kv("data.primary_id_column", c.Data.PrimaryIDColumn)
	if c.Data.SessionColumn != "" {
		kv("data.session_column", c.Data.SessionColumn)
		kv("data.composite_id_column", c.Data.CompositeIDColumn)
	}
	kv("data.age_column", c.Data.AgeColumn)
	if c.Data.StudySiteColumn != "" {
		kv("data.study_site_column", c.Data.StudySiteColumn)
	}
	if len(c.Export.BaselineAliases) > 0 {
		kv("export.baseline_aliases", strings.Join(c.Export.BaselineAliases, ", "))
		kv("export.baseline_label", c.Export.BaselineLabel)
	}
	if v := strings.TrimSpace(c.UI.Accent); v != "" {
		kv("ui.accent", v)
	}
	if v := strings.TrimSpace(c.UI.CodeTheme); v != "" {
		kv("ui.code_theme", v)
	}
	kv("ui.max_display_rows", c.UI.MaxDisplayRows)
	kv("ui.default_age_min", c.UI.DefaultAgeMin)
	kv("ui.default_age_max", c.UI.DefaultAgeMax)

	if problems := c.Validate(); len(problems) > 0 {
		fmt.Println()
		for _, p := range problems {
			fmt.Printf("problem: %s\n", p)
		}
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage cohort config.toml settings",
	Long: `Manage cohort config.toml settings.

Use this to initialize, inspect, and edit the dataset layout (directory,
demographics file, merge-key column names) and UI preferences.`,
	Args: cobra.NoArgs,
	RunE: showConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented default config.toml if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetPath := config.DefaultPath()
		if strings.TrimSpace(configPath) != "" {
			targetPath = configPath
		}

		existed := false
		if _, err := os.Stat(targetPath); err == nil {
			existed = true
		} else if !os.IsNotExist(err) {
			return handleError(ErrFileReadError, err, "")
		}

		written, err := config.CreateDefaultAt(targetPath)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"config_path": written,
				"created":     !existed,
			}, nil)
			return nil
		}

		if existed {
			fmt.Printf("config already exists at %s, left untouched\n", written)
		} else {
			fmt.Printf("created %s\n", written)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config.toml path in effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadConfigState()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"config_path": state.path,
				"exists":      state.exists,
			}, nil)
			return nil
		}

		fmt.Println(state.path)
		if !state.exists {
			fmt.Println("(not created yet; run 'cohort config init')")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set one or more config.toml fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadConfigState()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}

		var changed []string
		for _, f := range configFields {
			if !cmd.Flags().Changed(f.flag) {
				continue
			}
			value := strings.TrimSpace(f.value)
			if value == "" {
				return handleErrorMsg(ErrInvalidInput, fmt.Sprintf("--%s cannot be empty", f.flag), "")
			}
			*f.bind(state.cfg) = value
			changed = append(changed, f.key)
		}
		if cmd.Flags().Changed("max-display-rows") {
			if configSetMaxDisplayRows <= 0 {
				return handleErrorMsg(ErrInvalidInput, "max-display-rows must be positive", "")
			}
			state.cfg.UI.MaxDisplayRows = configSetMaxDisplayRows
			changed = append(changed, "ui.max_display_rows")
		}

		if len(changed) == 0 {
			return handleErrorMsg(ErrMissingArgument, "no fields provided; pass at least one set flag", "Run 'cohort config set --help' to see them")
		}

		if problems := state.cfg.Validate(); len(problems) > 0 {
			return handleErrorMsg(ErrConfigInvalid, strings.Join(problems, "; "), "")
		}

		if err := config.SaveTo(state.path, state.cfg); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		state.exists = true
		if isJSONOutput() {
			data := configPayload(state)
			data["changed"] = changed
			outputSuccess(data, nil)
			return nil
		}

		fmt.Printf("saved %s (changed %s)\n", state.path, strings.Join(changed, ", "))
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Clear config.toml fields back to their defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadConfigState()
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		if !state.exists {
			return handleErrorMsg(ErrFileNotFound, fmt.Sprintf("config file not found: %s", state.path), "Run 'cohort config init' first")
		}

		var changed []string
		for _, f := range configFields {
			if !f.canUnset || !f.clear {
				continue
			}
			*f.bind(state.cfg) = ""
			changed = append(changed, f.key)
		}

		if len(changed) == 0 {
			return handleErrorMsg(ErrMissingArgument, "nothing to clear; pass one or more unset flags", "")
		}

		if err := config.SaveTo(state.path, state.cfg); err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			data := configPayload(state)
			data["changed"] = changed
			outputSuccess(data, nil)
			return nil
		}

		fmt.Printf("saved %s (cleared %s)\n", state.path, strings.Join(changed, ", "))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current config.toml values",
		Args:  cobra.NoArgs,
		RunE:  showConfig,
	})

	for _, f := range configFields {
		configSetCmd.Flags().StringVar(&f.value, f.flag, "", f.usage)
		if f.canUnset {
			configUnsetCmd.Flags().BoolVar(&f.clear, f.flag, false, "Clear "+f.key)
		}
	}
	configSetCmd.Flags().IntVar(&configSetMaxDisplayRows, "max-display-rows", 0, "Set the preview row cap")

	rootCmd.AddCommand(configCmd)
}
