// Package config handles cohort configuration: where the data lives and
// which demographics columns carry identity, session, and age.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the full cohort configuration.
type Config struct {
	// Data describes the dataset layout and merge-key columns.
	Data DataConfig `toml:"data"`

	// Export controls longitudinal widening and baseline consolidation.
	Export ExportConfig `toml:"export"`

	// UI controls optional CLI theming and display preferences.
	UI UIConfig `toml:"ui"`
}

// DataConfig describes the dataset: the directory of CSV tables, the
// demographics file, and the column names that carry merge semantics.
type DataConfig struct {
	// Dir is the directory containing one CSV file per table.
	Dir string `toml:"dir"`

	// DemographicsFile is the anchor table's file name within Dir.
	DemographicsFile string `toml:"demographics_file"`

	// PrimaryIDColumn identifies a subject across all tables.
	PrimaryIDColumn string `toml:"primary_id_column"`

	// SessionColumn identifies the visit/session. Its presence in the
	// demographics header is what classifies a dataset as longitudinal.
	SessionColumn string `toml:"session_column"`

	// CompositeIDColumn is the materialized (subject, session) key used for
	// longitudinal joins and counts.
	CompositeIDColumn string `toml:"composite_id_column"`

	// AgeColumn is the demographics column the age filter binds to.
	AgeColumn string `toml:"age_column"`

	// StudySiteColumn is the demographics column holding space-separated
	// study/site memberships. Empty disables the substudy filter.
	StudySiteColumn string `toml:"study_site_column"`
}

// ExportConfig controls the enwiden step.
type ExportConfig struct {
	// BaselineAliases are session labels that all mean "baseline", in
	// priority order: on conflict the first alias with a value wins.
	BaselineAliases []string `toml:"baseline_aliases"`

	// BaselineLabel is the canonical label the aliases consolidate into.
	BaselineLabel string `toml:"baseline_label"`
}

// UIConfig represents optional CLI theming and display preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown
	// rendering. Supported values are ANSI color codes ("0" to "255") or
	// hex colors ("#RRGGBB").
	Accent string `toml:"accent"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered markdown
	// code blocks. Example values: "monokai", "dracula", "github", "nord".
	CodeTheme string `toml:"code_theme"`

	// MaxDisplayRows caps terminal previews of query results.
	MaxDisplayRows int `toml:"max_display_rows"`

	// DefaultAgeMin/DefaultAgeMax seed the age range in generated
	// parameter files.
	DefaultAgeMin float64 `toml:"default_age_min"`
	DefaultAgeMax float64 `toml:"default_age_max"`
}

// Default returns the configuration used when no file exists. The column
// defaults match the datasets this tool grew up around (URSI-keyed,
// session-numbered exports).
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir:               "data",
			DemographicsFile:  "demographics.csv",
			PrimaryIDColumn:   "ursi",
			SessionColumn:     "session_num",
			CompositeIDColumn: "customID",
			AgeColumn:         "age",
		},
		Export: ExportConfig{
			BaselineAliases: []string{"BAS1", "BAS2", "BAS3"},
			BaselineLabel:   "BAS",
		},
		UI: UIConfig{
			MaxDisplayRows: 50,
			DefaultAgeMin:  18,
			DefaultAgeMax:  80,
		},
	}
}

// applyDefaults fills zero-valued fields from Default so partial config
// files keep working.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Data.Dir == "" {
		c.Data.Dir = d.Data.Dir
	}
	if c.Data.DemographicsFile == "" {
		c.Data.DemographicsFile = d.Data.DemographicsFile
	}
	if c.Data.PrimaryIDColumn == "" {
		c.Data.PrimaryIDColumn = d.Data.PrimaryIDColumn
	}
	if c.Data.SessionColumn == "" {
		c.Data.SessionColumn = d.Data.SessionColumn
	}
	if c.Data.CompositeIDColumn == "" {
		c.Data.CompositeIDColumn = d.Data.CompositeIDColumn
	}
	if c.Data.AgeColumn == "" {
		c.Data.AgeColumn = d.Data.AgeColumn
	}
	if len(c.Export.BaselineAliases) == 0 {
		c.Export.BaselineAliases = append([]string(nil), d.Export.BaselineAliases...)
	}
	if c.Export.BaselineLabel == "" {
		c.Export.BaselineLabel = d.Export.BaselineLabel
	}
	if c.UI.MaxDisplayRows == 0 {
		c.UI.MaxDisplayRows = d.UI.MaxDisplayRows
	}
	if c.UI.DefaultAgeMin == 0 && c.UI.DefaultAgeMax == 0 {
		c.UI.DefaultAgeMin = d.UI.DefaultAgeMin
		c.UI.DefaultAgeMax = d.UI.DefaultAgeMax
	}
}

// DemographicsTable returns the demographics table name (file name without
// the .csv extension).
func (c *Config) DemographicsTable() string {
	return strings.TrimSuffix(c.Data.DemographicsFile, ".csv")
}

// Validate returns human-readable problems with the configuration.
// An empty slice means the config is usable.
func (c *Config) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.Data.Dir) == "" {
		problems = append(problems, "data.dir must be set")
	}
	if strings.TrimSpace(c.Data.DemographicsFile) == "" {
		problems = append(problems, "data.demographics_file must be set")
	} else if !strings.HasSuffix(c.Data.DemographicsFile, ".csv") {
		problems = append(problems, "data.demographics_file must be a .csv file")
	}
	if strings.TrimSpace(c.Data.PrimaryIDColumn) == "" {
		problems = append(problems, "data.primary_id_column must be set")
	}
	if c.Data.SessionColumn != "" && c.Data.SessionColumn == c.Data.PrimaryIDColumn {
		problems = append(problems, "data.session_column must differ from data.primary_id_column")
	}
	if c.Data.CompositeIDColumn != "" &&
		(c.Data.CompositeIDColumn == c.Data.PrimaryIDColumn || c.Data.CompositeIDColumn == c.Data.SessionColumn) {
		problems = append(problems, "data.composite_id_column must differ from the primary and session columns")
	}
	if len(c.Export.BaselineAliases) > 0 && strings.TrimSpace(c.Export.BaselineLabel) == "" {
		problems = append(problems, "export.baseline_label must be set when baseline_aliases are configured")
	}
	return problems
}

// DataHash returns a stable fingerprint of the data-affecting settings.
// The metadata index stores it so a column rename in config invalidates
// cached schema rather than silently serving stale merge keys.
func (c *Config) DataHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00%s",
		c.Data.Dir, c.Data.DemographicsFile, c.Data.PrimaryIDColumn,
		c.Data.SessionColumn, c.Data.CompositeIDColumn, c.Data.AgeColumn,
		c.Data.StudySiteColumn)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Load loads the configuration from the default location.
// Returns the default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	config.applyDefaults()
	return &config, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/cohort/config.toml first (XDG style),
// then falls back to the OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "cohort", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "cohort", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

// XDGPath returns the XDG-style config path (~/.config/cohort/config.toml).
func XDGPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cohort", "config.toml"), nil
}

// CreateDefault creates a default config file at the default path if it
// doesn't exist.
func CreateDefault() (string, error) {
	return CreateDefaultAt(DefaultPath())
}

// CreateDefaultAt creates a commented default config file at the given
// path if it doesn't exist.
func CreateDefaultAt(configPath string) (string, error) {
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil // Already exists
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := `# Cohort configuration

[data]
# Directory containing one CSV file per table.
dir = "data"

# Demographics table: the join anchor for every query.
demographics_file = "demographics.csv"

# Column identifying a subject across tables.
primary_id_column = "ursi"

# Session/visit column. If the demographics header contains it, the dataset
# is treated as longitudinal and counts use the composite id.
session_column = "session_num"

# Materialized (subject, session) key. Created by 'cohort prepare'.
composite_id_column = "customID"

# Demographics column the age filter binds to.
age_column = "age"

# Demographics column holding space-separated study memberships.
# Leave unset to disable the substudy filter.
# study_site_column = "all_studies"

[export]
# Session labels that all mean "baseline", highest priority first,
# and the canonical label they consolidate into.
baseline_aliases = ["BAS1", "BAS2", "BAS3"]
baseline_label = "BAS"

[ui]
# accent = "39"
# code_theme = "monokai"
max_display_rows = 50
default_age_min = 18
default_age_max = 80
`

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}
