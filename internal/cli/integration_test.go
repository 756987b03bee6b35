//go:build integration

package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/cohort-cli/cohort/internal/testutil"
)

// TestIntegration_CrossSectionalWorkflow walks the basic flow on a dataset
// without a session column: reindex, inspect tables, count with filters.
func TestIntegration_CrossSectionalWorkflow(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	result := d.RunCLI("reindex")
	result.MustSucceed(t)
	if got := result.DataString("topology"); got != "cross-sectional" {
		t.Fatalf("expected cross-sectional topology, got %q", got)
	}

	result = d.RunCLI("tables")
	result.MustSucceed(t)
	result.AssertResultCount(t, "tables", 3)
	if got := result.DataString("demographics_table"); got != "demographics" {
		t.Fatalf("expected demographics table, got %q", got)
	}

	// Unfiltered count reads just demographics.
	d.AssertCount(4)

	// Demographic and phenotypic filters.
	d.AssertCount(2, "--age", "20:40")
	d.AssertCount(2, "--filter", "cbcl.total=50..80")
	d.AssertCount(2, "--filter", "mri.scanner=siemens")
	d.AssertCount(1, "--age", "20:40", "--filter", "cbcl.total=50..80")
}

// TestIntegration_SessionFilterSkippedOnCrossSectional checks that a session
// filter on a cross-sectional dataset is dropped with a warning instead of
// failing the query.
func TestIntegration_SessionFilterSkippedOnCrossSectional(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	result := d.RunCLI("count", "--session", "1")
	result.MustSucceed(t)
	result.AssertHasWarning(t, "FILTER_SKIPPED")
	if got := int(result.DataNumber("count")); got != 4 {
		t.Fatalf("expected skipped filter to leave count at 4, got %d", got)
	}
}

// TestIntegration_SubstudyFilter checks substring matching against the
// configured study membership column. Repeated substudies are OR'd.
func TestIntegration_SubstudyFilter(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		WithStudySiteColumn("all_studies").
		Build()

	d.AssertCount(2, "--substudy", "hcp")
	d.AssertCount(3, "--substudy", "abcd")
	d.AssertCount(4, "--substudy", "hcp", "--substudy", "abcd")
}

// TestIntegration_SubstudySkippedWhenUnbound checks that a substudy filter
// without a configured membership column is dropped with a warning.
func TestIntegration_SubstudySkippedWhenUnbound(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	result := d.RunCLI("count", "--substudy", "hcp")
	result.MustSucceed(t)
	result.AssertHasWarning(t, "FILTER_SKIPPED")
	if got := int(result.DataNumber("count")); got != 4 {
		t.Fatalf("expected skipped filter to leave count at 4, got %d", got)
	}
}

// TestIntegration_FilterErrors checks the error codes for malformed and
// unresolvable filters.
func TestIntegration_FilterErrors(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	// Unknown column in a phenotypic filter is a hard error.
	d.RunCLI("count", "--filter", "cbcl.nope=1..2").
		MustFail(t, "UNKNOWN_IDENTIFIER")

	// Unknown table too.
	d.RunCLI("count", "--filter", "nosuch.total=1..2").
		MustFail(t, "UNKNOWN_IDENTIFIER")

	// Malformed filter expressions never reach the compiler.
	d.RunCLI("count", "--filter", "no-dot-here").
		MustFail(t, "INVALID_FILTER")
	d.RunCLI("count", "--age", "65:18").
		MustFail(t, "INVALID_FILTER")

	// Unrecognized pipeline mode.
	d.RunCLI("count", "--mode", "nope").
		MustFail(t, "INVALID_MODE")
}

// TestIntegration_LongitudinalWorkflow checks topology detection, session
// filtering, and both export forms on a longitudinal dataset.
func TestIntegration_LongitudinalWorkflow(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.LongitudinalTables()).
		Build()

	result := d.RunCLI("reindex")
	result.MustSucceed(t)
	if got := result.DataString("topology"); got != "longitudinal" {
		t.Fatalf("expected longitudinal topology, got %q", got)
	}

	// Counts are subject-session pairs.
	d.AssertCount(6)
	d.AssertCount(3, "--session", "1")
	d.AssertCount(5, "--session", "1", "--session", "2")
	d.AssertCount(2, "--age", "20:30")
	d.AssertCount(4, "--filter", "cbcl.total=55..75")

	// Long form keeps one row per subject-session.
	longOut := filepath.Join(d.Root, "long.csv")
	result = d.RunCLI("export", "--tables", "demographics", "--out", longOut)
	result.MustSucceed(t)
	if got := int(result.DataNumber("rows")); got != 6 {
		t.Fatalf("expected 6 long rows, got %d", got)
	}
	if result.DataBool("wide") {
		t.Fatalf("expected long form, got wide")
	}
	d.AssertFileExists("long.csv")
	d.AssertFileContains("long.csv", "ursi")

	// Wide form pivots to one row per subject. Sessions 1 and 2 are
	// baseline aliases and consolidate into BAS; session 4 stays SES4.
	wideOut := filepath.Join(d.Root, "wide.csv")
	result = d.RunCLI("export", "--tables", "demographics", "--wide", "--out", wideOut)
	result.MustSucceed(t)
	if got := int(result.DataNumber("rows")); got != 3 {
		t.Fatalf("expected 3 wide rows, got %d", got)
	}
	if !result.DataBool("wide") {
		t.Fatalf("expected wide form")
	}
	d.AssertFileContains("wide.csv", "age_BAS")
	d.AssertFileContains("wide.csv", "age_SES4")
	// Static columns stay single.
	d.AssertFileNotContains("wide.csv", "sex_BAS")

	// Refuse to overwrite without --force.
	d.RunCLI("export", "--tables", "demographics", "--out", longOut).
		MustFail(t, "FILE_EXISTS")
}

// TestIntegration_WideRequiresLongitudinal checks that wide export is
// rejected on a cross-sectional dataset.
func TestIntegration_WideRequiresLongitudinal(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	out := filepath.Join(d.Root, "wide.csv")
	d.RunCLI("export", "--tables", "demographics", "--wide", "--out", out).
		MustFail(t, "NOT_LONGITUDINAL")
}

// TestIntegration_PrepareMaterializesCompositeIDs checks that prepare adds
// the composite id column to every session-bearing CSV and is idempotent.
func TestIntegration_PrepareMaterializesCompositeIDs(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTable("demographics", `ursi,session_num,age
M001,1,25
M001,2,26
M002,1,31
M003,1,44
M003,2,45
`).
		WithTable("cbcl", `ursi,session_num,total
M001,1,60
M002,1,48
M003,2,70
`).
		Build()

	result := d.RunCLI("prepare")
	result.MustSucceed(t)
	if !result.DataBool("longitudinal") {
		t.Fatalf("expected longitudinal dataset, got:\n%s", result.RawJSON)
	}
	if got := int(result.DataNumber("changed")); got != 2 {
		t.Fatalf("expected 2 files changed, got %d", got)
	}

	d.AssertFileContains("data/demographics.csv", "customID")
	d.AssertFileContains("data/demographics.csv", "M001_1")
	d.AssertFileContains("data/cbcl.csv", "M003_2")

	// Second run finds nothing to do.
	result = d.RunCLI("prepare")
	result.MustSucceed(t)
	if got := int(result.DataNumber("changed")); got != 0 {
		t.Fatalf("expected prepare to be idempotent, got %d changes", got)
	}

	// The materialized key makes phenotypic joins session-aware.
	d.AssertCount(2, "--filter", "cbcl.total=50..80")
}

// TestIntegration_PrepareDryRun checks that --dry-run reports work without
// touching any file.
func TestIntegration_PrepareDryRun(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTable("demographics", `ursi,session_num,age
M001,1,25
M002,1,31
`).
		Build()

	result := d.RunCLI("prepare", "--dry-run")
	result.MustSucceed(t)
	if got := int(result.DataNumber("changed")); got != 1 {
		t.Fatalf("expected 1 pending change, got %d", got)
	}
	d.AssertFileNotContains("data/demographics.csv", "customID")
}

// TestIntegration_ParamsRoundTrip saves effective parameters from a count,
// validates the file, and reruns the same query from it.
func TestIntegration_ParamsRoundTrip(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	paramsFile := filepath.Join(d.Root, "params.toml")

	result := d.RunCLI("count",
		"--age", "20:40",
		"--filter", "cbcl.total=50..80",
		"--save-params", paramsFile)
	result.MustSucceed(t)
	if got := int(result.DataNumber("count")); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
	if got := result.DataString("params_file"); got != paramsFile {
		t.Fatalf("expected params_file %q, got %q", paramsFile, got)
	}
	d.AssertFileContains("params.toml", "format_version")

	result = d.RunCLI("params", "validate", paramsFile)
	result.MustSucceed(t)
	if !result.DataBool("valid") {
		t.Fatalf("expected params file to be valid, got:\n%s", result.RawJSON)
	}

	// Replaying the file reproduces the cohort.
	d.AssertCount(1, "--params", paramsFile)

	// Flags overlay the file.
	d.AssertCount(2, "--params", paramsFile, "--age", "18:80")
}

// TestIntegration_ParamsInitWritesStarter checks the starter file and its
// collision handling.
func TestIntegration_ParamsInitWritesStarter(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	out := filepath.Join(d.Root, "starter.toml")
	result := d.RunCLI("params", "init", "--out", out)
	result.MustSucceed(t)
	if got := result.DataString("format_version"); got != "1.0" {
		t.Fatalf("expected format_version 1.0, got %q", got)
	}
	d.AssertFileContains("starter.toml", "[metadata]")
	d.AssertFileContains("starter.toml", "age_range")

	d.RunCLI("params", "init", "--out", out).
		MustFail(t, "FILE_EXISTS")
}

// TestIntegration_ParamsValidateRejectsGarbage checks structural rejection.
func TestIntegration_ParamsValidateRejectsGarbage(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		WithFile("broken.toml", "not = valid [ toml").
		Build()

	d.RunCLI("params", "validate", filepath.Join(d.Root, "broken.toml")).
		MustFail(t, "PARAMS_INVALID")
}

// TestIntegration_LegacyModeWarns checks that the legacy pipeline still
// answers queries but flags itself as deprecated.
func TestIntegration_LegacyModeWarns(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	result := d.RunCLI("count", "--mode", "legacy")
	result.MustSucceed(t)
	result.AssertHasWarning(t, "DEPRECATED")
	if got := int(result.DataNumber("count")); got != 4 {
		t.Fatalf("expected count 4 in legacy mode, got %d", got)
	}
}

// TestIntegration_MissingDataDir checks the structured error when the
// configured data directory does not exist.
func TestIntegration_MissingDataDir(t *testing.T) {
	d := testutil.NewTestDataset(t).
		WithTables(testutil.CrossSectionalTables()).
		Build()

	d.RunCLI("count", "--data-dir", filepath.Join(d.Root, "nowhere")).
		MustFail(t, "DATA_DIR_NOT_FOUND")
}
