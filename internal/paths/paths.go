// Package paths provides canonical helpers for converting between table
// names and data-directory file paths.
//
// It also centralizes the location of the metadata index so that scanning,
// CLI operations, and dataset preparation stay consistent.
package paths

import (
	"path/filepath"
	"strings"
)

// indexDirName is the per-dataset directory holding derived state.
const indexDirName = ".cohort"

// TableName converts a CSV file name (or path) to its table name.
//
// Examples:
//   - "flanker.csv"      -> "flanker"
//   - "data/flanker.csv" -> "flanker"
func TableName(file string) string {
	base := filepath.Base(filepath.ToSlash(file))
	return strings.TrimSuffix(base, ".csv")
}

// TableFile converts a table name to its CSV file name.
func TableFile(table string) string {
	if strings.HasSuffix(table, ".csv") {
		return table
	}
	return table + ".csv"
}

// CSVPath returns the absolute-or-relative path of a table's CSV file
// inside the data directory.
func CSVPath(dataDir, table string) string {
	return filepath.Join(dataDir, TableFile(table))
}

// DemographicsPath returns the path of the demographics CSV.
func DemographicsPath(dataDir, demographicsFile string) string {
	return filepath.Join(dataDir, demographicsFile)
}

// IndexDir returns the directory holding the metadata index for a dataset.
func IndexDir(dataDir string) string {
	return filepath.Join(dataDir, indexDirName)
}

// IndexPath returns the sqlite metadata index path for a dataset.
func IndexPath(dataDir string) string {
	return filepath.Join(IndexDir(dataDir), "index.db")
}

// IsDataCSV reports whether a directory entry name looks like a data table.
// Hidden files and non-CSV files are skipped when scanning.
func IsDataCSV(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}
