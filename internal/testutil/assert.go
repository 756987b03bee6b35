package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertFileExists fails the test if the file does not exist.
func (d *TestDataset) AssertFileExists(relPath string) {
	d.t.Helper()
	fullPath := filepath.Join(d.Root, relPath)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		d.t.Errorf("expected file to exist: %s", relPath)
	}
}

// AssertFileNotExists fails the test if the file exists.
func (d *TestDataset) AssertFileNotExists(relPath string) {
	d.t.Helper()
	fullPath := filepath.Join(d.Root, relPath)
	if _, err := os.Stat(fullPath); err == nil {
		d.t.Errorf("expected file to not exist: %s", relPath)
	}
}

// AssertFileContains fails the test if the file does not contain the substring.
func (d *TestDataset) AssertFileContains(relPath, substr string) {
	d.t.Helper()
	content := d.ReadFile(relPath)
	if !strings.Contains(content, substr) {
		d.t.Errorf("expected file %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileNotContains fails the test if the file contains the substring.
func (d *TestDataset) AssertFileNotContains(relPath, substr string) {
	d.t.Helper()
	content := d.ReadFile(relPath)
	if strings.Contains(content, substr) {
		d.t.Errorf("expected file %s to not contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertCount runs a count with the given filter args and verifies the
// reported cohort size.
func (d *TestDataset) AssertCount(expected int, args ...string) {
	d.t.Helper()
	cmdArgs := append([]string{"count"}, args...)
	result := d.RunCLI(cmdArgs...)
	result.MustSucceed(d.t)

	got := int(result.DataNumber("count"))
	if got != expected {
		d.t.Errorf("count %v: expected %d, got %d\nRaw: %s",
			args, expected, got, result.RawJSON)
	}
}

// AssertTopology runs reindex and verifies the detected topology
// ("longitudinal" or "cross-sectional").
func (d *TestDataset) AssertTopology(expected string) {
	d.t.Helper()
	result := d.RunCLI("reindex")
	result.MustSucceed(d.t)

	if got := result.DataString("topology"); got != expected {
		d.t.Errorf("expected topology %q, got %q\nRaw: %s", expected, got, result.RawJSON)
	}
}

// AssertHasWarning checks that the result contains a warning with the given code.
func (r *CLIResult) AssertHasWarning(t *testing.T, code string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Code == code {
			return
		}
	}
	t.Errorf("expected warning with code %s, got warnings: %+v", code, r.Warnings)
}

// AssertNoWarnings checks that the result has no warnings.
func (r *CLIResult) AssertNoWarnings(t *testing.T) {
	t.Helper()
	if len(r.Warnings) > 0 {
		t.Errorf("expected no warnings, got: %+v", r.Warnings)
	}
}

// AssertResultCount checks that a list in the result has the expected length.
func (r *CLIResult) AssertResultCount(t *testing.T, key string, expected int) {
	t.Helper()
	results := r.DataList(key)
	if len(results) != expected {
		t.Errorf("expected %d %s, got %d\nRaw: %s", expected, key, len(results), r.RawJSON)
	}
}
