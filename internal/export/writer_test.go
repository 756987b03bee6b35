package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 5, 0, time.UTC)

	tests := []struct {
		name   string
		tables []string
		wide   bool
		want   string
	}{
		{"demographics only", nil, false, "demographics_only_long_20240301_093005.csv"},
		{"single table", []string{"flanker"}, true, "flanker_wide_20240301_093005.csv"},
		{"three tables", []string{"a", "b", "c"}, false, "a_b_c_long_20240301_093005.csv"},
		{"many tables", []string{"a", "b", "c", "d", "e"}, false, "a_and_4_more_long_20240301_093005.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.tables, tt.wide, ts); got != tt.want {
				t.Errorf("Filename = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	if err := WriteCSV(path, longResult()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), data)
	}
	if lines[0] != "ursi,session_num,accuracy,handedness" {
		t.Errorf("header = %q", lines[0])
	}
	// Null handedness becomes an empty field.
	if lines[4] != "M003,2,0.85," {
		t.Errorf("null row = %q", lines[4])
	}
}
