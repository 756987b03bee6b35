package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cohort-cli/cohort/internal/config"
)

func testConfig(dir string) *config.Config {
	return &config.Config{Data: config.DataConfig{
		Dir:               dir,
		DemographicsFile:  "demographics.csv",
		PrimaryIDColumn:   "ursi",
		SessionColumn:     "session_num",
		CompositeIDColumn: "customID",
	}}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestPrepareAddsCompositeColumn(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"demographics.csv": "ursi,session_num,age\nM001,1,25\nM001,2,25\nM002,1,31\n",
		"flanker.csv":      "ursi,session_num,accuracy\nM001,1,0.8\nM001,2,0.9\n",
		"survey.csv":       "ursi,score\nM001,4\nM002,2\n",
	})

	res, err := Prepare(testConfig(dir), Options{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !res.Longitudinal {
		t.Fatal("dataset not classified longitudinal")
	}
	if res.Checked != 3 {
		t.Errorf("checked = %d, want 3", res.Checked)
	}
	if len(res.Actions) != 2 {
		t.Fatalf("actions = %v, want 2", res.Actions)
	}
	for _, a := range res.Actions {
		if !strings.Contains(a.Change, "added customID") {
			t.Errorf("unexpected action: %v", a)
		}
	}

	demo := readFile(t, filepath.Join(dir, "demographics.csv"))
	if !strings.HasPrefix(demo, "ursi,session_num,age,customID\n") {
		t.Errorf("demographics header: %q", demo)
	}
	if !strings.Contains(demo, "M001,1,25,M001_1\n") || !strings.Contains(demo, "M002,1,31,M002_1\n") {
		t.Errorf("composite values missing:\n%s", demo)
	}

	// Subject-level tables are left alone.
	if got := readFile(t, filepath.Join(dir, "survey.csv")); strings.Contains(got, "customID") {
		t.Errorf("survey.csv should be untouched:\n%s", got)
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"demographics.csv": "ursi,session_num,age\nM001,1,25\n",
		"flanker.csv":      "ursi,session_num,accuracy\nM001,1,0.8\n",
	})

	if _, err := Prepare(testConfig(dir), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := readFile(t, filepath.Join(dir, "flanker.csv"))

	res, err := Prepare(testConfig(dir), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.Actions) != 0 {
		t.Errorf("second run acted: %v", res.Actions)
	}
	if after := readFile(t, filepath.Join(dir, "flanker.csv")); after != before {
		t.Error("second run rewrote an already-prepared file")
	}
}

func TestPrepareFixesInconsistentValues(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"demographics.csv": "ursi,session_num,customID\nM001,1,M001_1\nM001,2,STALE\n",
	})

	res, err := Prepare(testConfig(dir), Options{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(res.Actions) != 1 || !strings.Contains(res.Actions[0].Change, "fixed 1 inconsistent") {
		t.Fatalf("actions = %v", res.Actions)
	}
	demo := readFile(t, filepath.Join(dir, "demographics.csv"))
	if strings.Contains(demo, "STALE") || !strings.Contains(demo, "M001,2,M001_2") {
		t.Errorf("stale composite not fixed:\n%s", demo)
	}
}

func TestPrepareDryRun(t *testing.T) {
	dir := t.TempDir()
	original := "ursi,session_num,age\nM001,1,25\n"
	writeFiles(t, dir, map[string]string{"demographics.csv": original})

	res, err := Prepare(testConfig(dir), Options{DryRun: true})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(res.Actions) != 1 {
		t.Fatalf("dry run found no work: %v", res.Actions)
	}
	if got := readFile(t, filepath.Join(dir, "demographics.csv")); got != original {
		t.Error("dry run modified a file")
	}
}

func TestPrepareCrossSectional(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"demographics.csv": "ursi,age\nM001,25\n",
		"iq.csv":           "ursi,fsiq\nM001,104\n",
	})

	res, err := Prepare(testConfig(dir), Options{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if res.Longitudinal {
		t.Error("cross-sectional dataset classified longitudinal")
	}
	if len(res.Actions) != 0 {
		t.Errorf("cross-sectional run acted: %v", res.Actions)
	}
}
