// Package testutil provides reusable test utilities for cohort integration tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TestDataset represents a temporary CSV dataset for testing.
type TestDataset struct {
	Root       string
	DataDir    string
	ConfigPath string

	t               *testing.T
	config          string
	studySiteColumn string
	tables          map[string]string
	files           map[string]string
}

// NewTestDataset creates a new test dataset builder.
// Call Build() to create the actual directory tree.
func NewTestDataset(t *testing.T) *TestDataset {
	t.Helper()
	return &TestDataset{
		t:      t,
		tables: make(map[string]string),
		files:  make(map[string]string),
	}
}

// WithTable adds a CSV table to the dataset. The name is the bare table
// name; ".csv" is appended when the file is written.
func (d *TestDataset) WithTable(name, csv string) *TestDataset {
	d.tables[name] = csv
	return d
}

// WithTables adds several CSV tables at once.
func (d *TestDataset) WithTables(tables map[string]string) *TestDataset {
	for name, csv := range tables {
		d.tables[name] = csv
	}
	return d
}

// WithConfig overrides the generated config.toml content. The content
// must still point data.dir at the dataset's data directory; use
// ConfigFor to build it.
func (d *TestDataset) WithConfig(toml string) *TestDataset {
	d.config = toml
	return d
}

// WithStudySiteColumn binds the substudy filter to a demographics column
// in the generated config.
func (d *TestDataset) WithStudySiteColumn(column string) *TestDataset {
	d.studySiteColumn = column
	return d
}

// WithFile adds an arbitrary file to the dataset root.
func (d *TestDataset) WithFile(path, content string) *TestDataset {
	d.files[path] = content
	return d
}

// Build creates the dataset directory, the config file, and all
// configured tables. Returns the TestDataset for method chaining.
func (d *TestDataset) Build() *TestDataset {
	d.t.Helper()

	d.Root = d.t.TempDir()
	d.DataDir = filepath.Join(d.Root, "data")
	d.ConfigPath = filepath.Join(d.Root, "config.toml")

	if err := os.MkdirAll(d.DataDir, 0755); err != nil {
		d.t.Fatalf("failed to create data directory: %v", err)
	}

	config := d.config
	switch {
	case config != "":
	case d.studySiteColumn != "":
		config = ConfigWithSubstudies(d.DataDir, d.studySiteColumn)
	default:
		config = ConfigFor(d.DataDir)
	}
	d.writeFile("config.toml", config)

	for name, csv := range d.tables {
		d.writeFile(filepath.Join("data", name+".csv"), csv)
	}
	for path, content := range d.files {
		d.writeFile(path, content)
	}

	return d
}

// writeFile writes a file relative to the dataset root, creating
// directories as needed.
func (d *TestDataset) writeFile(relPath, content string) {
	d.t.Helper()
	fullPath := filepath.Join(d.Root, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		d.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		d.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// ReadFile reads a file relative to the dataset root.
func (d *TestDataset) ReadFile(relPath string) string {
	d.t.Helper()
	fullPath := filepath.Join(d.Root, relPath)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		d.t.Fatalf("failed to read file %s: %v", fullPath, err)
	}
	return string(content)
}

// FileExists checks if a file exists relative to the dataset root.
func (d *TestDataset) FileExists(relPath string) bool {
	d.t.Helper()
	fullPath := filepath.Join(d.Root, relPath)
	_, err := os.Stat(fullPath)
	return err == nil
}

// ConfigFor returns a minimal config.toml pointing at the given data
// directory. Everything else falls back to defaults.
func ConfigFor(dataDir string) string {
	return fmt.Sprintf("[data]\ndir = %q\n", filepath.ToSlash(dataDir))
}

// ConfigWithSubstudies returns a config.toml that also binds the
// substudy filter to the given demographics column.
func ConfigWithSubstudies(dataDir, studySiteColumn string) string {
	return fmt.Sprintf("[data]\ndir = %q\nstudy_site_column = %q\n",
		filepath.ToSlash(dataDir), studySiteColumn)
}

// CrossSectionalTables returns a small dataset without a session column:
// one row per subject, demographics plus two phenotypic tables.
func CrossSectionalTables() map[string]string {
	return map[string]string{
		"demographics": `ursi,age,sex,all_studies
M001,25,F,abcd
M002,31,M,abcd hcp
M003,44,F,hcp
M004,19,M,abcd
`,
		"cbcl": `ursi,total,anxious
M001,60,12
M002,48,5
M003,72,20
`,
		"mri": `ursi,scanner,coil
M001,siemens,32ch
M003,ge,8ch
M004,siemens,64ch
`,
	}
}

// LongitudinalTables returns a dataset whose demographics carry the
// session column, so topology detection treats it as longitudinal. The
// composite id values follow the primary_session convention that
// 'cohort prepare' materializes.
func LongitudinalTables() map[string]string {
	return map[string]string{
		"demographics": `ursi,session_num,customID,age,sex,all_studies
M001,1,M001_1,25,F,abcd
M001,2,M001_2,26,F,abcd
M002,1,M002_1,31,M,abcd hcp
M003,1,M003_1,44,F,hcp
M003,2,M003_2,45,F,hcp
M003,4,M003_4,47,F,hcp
`,
		"cbcl": `ursi,session_num,customID,total,anxious
M001,1,M001_1,60,12
M001,2,M001_2,58,11
M002,1,M002_1,48,5
M003,1,M003_1,72,20
M003,2,M003_2,69,18
`,
		"mri": `ursi,session_num,customID,scanner,coil
M001,1,M001_1,siemens,32ch
M002,1,M002_1,ge,8ch
M003,1,M003_1,siemens,32ch
M003,2,M003_2,siemens,32ch
`,
	}
}
