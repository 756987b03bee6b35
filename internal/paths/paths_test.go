package paths

import (
	"path/filepath"
	"testing"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flanker.csv", "flanker"},
		{"data/flanker.csv", "flanker"},
		{"demographics.csv", "demographics"},
		{"already_bare", "already_bare"},
		{"/abs/path/to/nback.csv", "nback"},
	}
	for _, tt := range tests {
		if got := TableName(tt.in); got != tt.want {
			t.Errorf("TableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableFile(t *testing.T) {
	if got := TableFile("flanker"); got != "flanker.csv" {
		t.Errorf("TableFile(flanker) = %q", got)
	}
	// Already a file name: don't double the extension.
	if got := TableFile("flanker.csv"); got != "flanker.csv" {
		t.Errorf("TableFile(flanker.csv) = %q", got)
	}
}

func TestCSVPath(t *testing.T) {
	got := CSVPath("data", "flanker")
	want := filepath.Join("data", "flanker.csv")
	if got != want {
		t.Errorf("CSVPath = %q, want %q", got, want)
	}
}

func TestIndexPath(t *testing.T) {
	got := IndexPath("data")
	want := filepath.Join("data", ".cohort", "index.db")
	if got != want {
		t.Errorf("IndexPath = %q, want %q", got, want)
	}
}

func TestIsDataCSV(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"flanker.csv", true},
		{"FLANKER.CSV", true},
		{".hidden.csv", false},
		{"notes.txt", false},
		{".cohort", false},
	}
	for _, tt := range tests {
		if got := IsDataCSV(tt.name); got != tt.want {
			t.Errorf("IsDataCSV(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
