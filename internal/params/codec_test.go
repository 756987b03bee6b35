package params

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cohort-cli/cohort/internal/query"
	"github.com/cohort-cli/cohort/internal/schema"
)

func snapshotFixture() *schema.Snapshot {
	table := func(name string, cols ...string) *schema.TableSchema {
		dtypes := make(map[string]string, len(cols))
		for _, c := range cols {
			dtypes[c] = "VARCHAR"
		}
		return &schema.TableSchema{Name: name, Columns: cols, Dtypes: dtypes}
	}
	return &schema.Snapshot{
		Tables: map[string]*schema.TableSchema{
			"demographics": table("demographics", "ursi", "session_num", "customID", "age", "site"),
			"flanker":      table("flanker", "customID", "accuracy", "rt_mean"),
			"survey":       table("survey", "ursi", "score"),
		},
		DemographicsTable: "demographics",
		Keys: schema.MergeKeys{
			PrimaryID:      "ursi",
			SessionID:      "session_num",
			CompositeID:    "customID",
			IsLongitudinal: true,
		},
		SessionValues: []string{"1", "2", "3"},
	}
}

func specFixture() *Spec {
	return &Spec{
		Demographic: query.DemographicFilters{
			AgeRange:   &query.AgeRange{Min: 18, Max: 65},
			Substudies: []string{"COBRE"},
			Sessions:   []string{"1", "2"},
		},
		Phenotypic: []query.PhenotypicFilter{
			query.RangeFilter{Table: "flanker", Column: "accuracy", Min: 0.75, Max: 1, Enabled: true},
			query.CategoricalFilter{Table: "survey", Column: "score", Values: []string{"3", "4", "5"}, Enabled: true},
		},
		Selection: query.Selection{
			Tables:  []string{"flanker"},
			Columns: map[string][]string{"demographics": {"age", "site"}},
		},
		EnwidenLongitudinal: true,
	}
}

func TestRoundTrip(t *testing.T) {
	spec := specFixture()
	data, err := Export(spec, Metadata{
		ExportTimestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		AppVersion:      "1.2.3",
		UserNotes:       "pilot cohort",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, report, err := Import(data, snapshotFixture())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !report.Empty() {
		t.Fatalf("clean file produced issues: %v", report.Issues)
	}
	if !reflect.DeepEqual(got, spec) {
		t.Errorf("round trip drifted:\n got %+v\nwant %+v", got, spec)
	}
}

func TestExportDeterministic(t *testing.T) {
	meta := Metadata{ExportTimestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	a, err := Export(specFixture(), meta)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	b, err := Export(specFixture(), meta)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(a) != string(b) {
		t.Error("same spec exported differently")
	}
}

func TestImportRejectsStructuralProblems(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not toml", "{json: true}"},
		{"missing metadata", "[filters.demographic]\n[selection]\n"},
		{"missing filters", "[metadata]\nformat_version = \"1.0\"\n[selection]\n"},
		{"missing selection", "[metadata]\nformat_version = \"1.0\"\n[filters.demographic]\n"},
		{"wrong version", "[metadata]\nformat_version = \"2.0\"\n[filters.demographic]\n[selection]\n"},
		{"no version", "[metadata]\napp_version = \"1.0.0\"\n[filters.demographic]\n[selection]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Import([]byte(tt.data), snapshotFixture())
			var ferr *FormatError
			if !errors.As(err, &ferr) {
				t.Errorf("got %v, want FormatError", err)
			}
		})
	}
}

func TestImportPartialSuccess(t *testing.T) {
	data := `
[metadata]
format_version = "1.0"

[filters.demographic]
sessions = ["1", "9"]

[filters.demographic.age_range]
min = 80
max = 18

[[filters.phenotypic]]
table = "flanker"
column = "accuracy"
type = "range"
[filters.phenotypic.value]
min = 0.5
max = 1.0

[[filters.phenotypic]]
table = "flanker"
column = "no_such_column"
type = "range"
[filters.phenotypic.value]
min = 0
max = 1

[[filters.phenotypic]]
table = "survey"
column = "score"
type = "quantile"

[selection]
tables = ["flanker", "imaginary"]

[selection.columns]
survey = ["score", "scoer"]
`
	spec, report, err := Import([]byte(data), snapshotFixture())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if spec.Demographic.AgeRange != nil {
		t.Error("inverted age range should be skipped")
	}
	if len(spec.Demographic.Sessions) != 1 || spec.Demographic.Sessions[0] != "1" {
		t.Errorf("sessions = %v, want [1]", spec.Demographic.Sessions)
	}
	if len(spec.Phenotypic) != 1 {
		t.Fatalf("phenotypic = %+v, want the one valid filter", spec.Phenotypic)
	}
	if f, ok := spec.Phenotypic[0].(query.RangeFilter); !ok || f.Column != "accuracy" || !f.Enabled {
		t.Errorf("surviving filter = %+v", spec.Phenotypic[0])
	}
	if len(spec.Selection.Tables) != 1 || spec.Selection.Tables[0] != "flanker" {
		t.Errorf("selection tables = %v", spec.Selection.Tables)
	}
	if cols := spec.Selection.Columns["survey"]; len(cols) != 1 || cols[0] != "score" {
		t.Errorf("survey columns = %v", cols)
	}

	wantIssues := 6 // age range, session 9, bad column, bad type, bad table, bad selection column
	if len(report.Issues) != wantIssues {
		t.Errorf("got %d issues, want %d:\n%v", len(report.Issues), wantIssues, report.Issues)
	}
}

func TestImportToleratesLooseNumbers(t *testing.T) {
	data := `
[metadata]
format_version = "1.0"

[filters.demographic]
sessions = [1, 2]

[filters.demographic.age_range]
min = 18
max = 65

[[filters.phenotypic]]
table = "survey"
column = "score"
type = "categorical"
[filters.phenotypic.value]
values = [3, 4]

[selection]
tables = ["survey"]
`
	spec, report, err := Import([]byte(data), snapshotFixture())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !report.Empty() {
		t.Fatalf("issues: %v", report.Issues)
	}
	if r := spec.Demographic.AgeRange; r == nil || r.Min != 18 || r.Max != 65 {
		t.Errorf("age range = %+v", spec.Demographic.AgeRange)
	}
	if got := spec.Demographic.Sessions; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("sessions = %v", got)
	}
	f, ok := spec.Phenotypic[0].(query.CategoricalFilter)
	if !ok || len(f.Values) != 2 || f.Values[0] != "3" {
		t.Errorf("categorical = %+v", spec.Phenotypic[0])
	}
}

func TestImportWithoutSnapshot(t *testing.T) {
	data, err := Export(specFixture(), Metadata{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	spec, report, err := Import(data, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !report.Empty() {
		t.Errorf("structure-only import produced issues: %v", report.Issues)
	}
	if len(spec.Phenotypic) != 2 {
		t.Errorf("phenotypic = %+v", spec.Phenotypic)
	}
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 5, 0, time.UTC)

	if got := Filename(ts, ""); got != "query_params_20240301_093005.toml" {
		t.Errorf("no notes: %q", got)
	}
	if got := Filename(ts, "Pilot Cohort A"); got != "query_params_20240301_093005_pilot-cohort-a.toml" {
		t.Errorf("with notes: %q", got)
	}

	long := Filename(ts, strings.Repeat("word ", 12))
	base := strings.TrimSuffix(strings.TrimPrefix(long, "query_params_20240301_093005_"), ".toml")
	if len(base) > maxSlugLen {
		t.Errorf("slug not capped: %q", base)
	}
	if strings.HasSuffix(base, "-") {
		t.Errorf("slug ends with dash: %q", base)
	}
}
