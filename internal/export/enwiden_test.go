package export

import (
	"database/sql"
	"testing"

	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/schema"
)

var longKeys = schema.MergeKeys{
	PrimaryID:      "ursi",
	SessionID:      "session_num",
	CompositeID:    "customID",
	IsLongitudinal: true,
}

func cell(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func null() sql.NullString {
	return sql.NullString{}
}

func longResult() *db.Result {
	return &db.Result{
		Columns: []string{"ursi", "session_num", "accuracy", "handedness"},
		Rows: [][]sql.NullString{
			{cell("M001"), cell("1"), cell("0.8"), cell("R")},
			{cell("M001"), cell("2"), cell("0.9"), cell("R")},
			{cell("M002"), cell("1"), cell("0.7"), cell("L")},
			{cell("M003"), cell("2"), cell("0.85"), null()},
		},
	}
}

func TestSessionLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1", "BAS1"},
		{"1.0", "BAS1"},
		{"2", "BAS2"},
		{"3", "BAS3"},
		{"4", "SES4"},
		{"10", "SES10"},
		{"1.5", "1.5"},
		{"followup", "followup"},
	}
	for _, tt := range tests {
		if got := SessionLabel(tt.raw); got != tt.want {
			t.Errorf("SessionLabel(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestEnwidenBasic(t *testing.T) {
	wide, err := Enwiden(longResult(), longKeys, Options{})
	if err != nil {
		t.Fatalf("Enwiden: %v", err)
	}

	wantCols := []string{"ursi", "handedness", "accuracy_BAS1", "accuracy_BAS2"}
	if len(wide.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", wide.Columns, wantCols)
	}
	for i, w := range wantCols {
		if wide.Columns[i] != w {
			t.Fatalf("columns = %v, want %v", wide.Columns, wantCols)
		}
	}

	if wide.Len() != 3 {
		t.Fatalf("rows = %d, want 3", wide.Len())
	}

	// Rows sorted by subject.
	wantRows := [][]sql.NullString{
		{cell("M001"), cell("R"), cell("0.8"), cell("0.9")},
		{cell("M002"), cell("L"), cell("0.7"), null()},
		{cell("M003"), null(), null(), cell("0.85")},
	}
	for i, want := range wantRows {
		for j, w := range want {
			got := wide.Rows[i][j]
			if got != w {
				t.Errorf("row %d col %d (%s) = %+v, want %+v", i, j, wide.Columns[j], got, w)
			}
		}
	}
}

func TestEnwidenStaticColumnStaysSingle(t *testing.T) {
	wide, err := Enwiden(longResult(), longKeys, Options{})
	if err != nil {
		t.Fatalf("Enwiden: %v", err)
	}
	for _, col := range wide.Columns {
		if col == "handedness_BAS1" || col == "handedness_BAS2" {
			t.Errorf("static column was suffixed: %v", wide.Columns)
		}
	}
}

func TestEnwidenConsolidatesBaseline(t *testing.T) {
	res := &db.Result{
		Columns: []string{"ursi", "session_num", "accuracy"},
		Rows: [][]sql.NullString{
			{cell("M001"), cell("1"), cell("0.8")},
			{cell("M001"), cell("2"), cell("0.9")},
			{cell("M004"), cell("1"), null()},
			{cell("M004"), cell("2"), cell("0.95")},
			{cell("M005"), cell("4"), cell("0.6")},
		},
	}
	opts := Options{
		ConsolidateBaseline: true,
		BaselineAliases:     []string{"BAS1", "BAS2", "BAS3"},
		BaselineLabel:       "BAS",
	}
	wide, err := Enwiden(res, longKeys, opts)
	if err != nil {
		t.Fatalf("Enwiden: %v", err)
	}

	wantCols := []string{"ursi", "accuracy_BAS", "accuracy_SES4"}
	for i, w := range wantCols {
		if wide.Columns[i] != w {
			t.Fatalf("columns = %v, want %v", wide.Columns, wantCols)
		}
	}

	// M001 has values at BAS1 and BAS2: the first alias wins.
	if got := wide.Rows[0][1]; got != cell("0.8") {
		t.Errorf("M001 accuracy_BAS = %+v, want 0.8", got)
	}
	// M004's BAS1 value is null: the first alias with a value wins.
	if got := wide.Rows[1][1]; got != cell("0.95") {
		t.Errorf("M004 accuracy_BAS = %+v, want 0.95", got)
	}
	// M005 only has a later session.
	if got := wide.Rows[2][2]; got != cell("0.6") {
		t.Errorf("M005 accuracy_SES4 = %+v, want 0.6", got)
	}
	if got := wide.Rows[2][1]; got.Valid {
		t.Errorf("M005 accuracy_BAS = %+v, want null", got)
	}
}

func TestEnwidenAliasValuesDoNotInventColumns(t *testing.T) {
	res := &db.Result{
		Columns: []string{"ursi", "session_num", "accuracy"},
		Rows: [][]sql.NullString{
			{cell("M001"), cell("1"), cell("0.8")},
			{cell("M001"), cell("3"), cell("0.7")},
		},
	}
	opts := Options{
		ConsolidateBaseline: true,
		BaselineAliases:     []string{"BAS1", "BAS2", "BAS3"},
		BaselineLabel:       "BAS",
	}
	wide, err := Enwiden(res, longKeys, opts)
	if err != nil {
		t.Fatalf("Enwiden: %v", err)
	}
	for _, col := range wide.Columns {
		switch col {
		case "accuracy_BAS1", "accuracy_BAS2", "accuracy_BAS3":
			t.Errorf("alias column leaked into output: %v", wide.Columns)
		}
	}
	// Both sessions are aliases, so the subject's two values collapse
	// into one cell and the first alias wins.
	if got := wide.Rows[0][1]; got != cell("0.8") {
		t.Errorf("M001 = %+v, want 0.8", got)
	}
}

func TestEnwidenCrossSectionalRejected(t *testing.T) {
	if _, err := Enwiden(longResult(), schema.MergeKeys{PrimaryID: "ursi"}, Options{}); err != ErrNotLongitudinal {
		t.Errorf("got %v, want ErrNotLongitudinal", err)
	}
}

func TestEnwidenMissingSessionColumn(t *testing.T) {
	res := &db.Result{Columns: []string{"ursi", "accuracy"}}
	if _, err := Enwiden(res, longKeys, Options{}); err == nil {
		t.Error("expected error for result without session column")
	}
}

func TestEnwidenEmptyResult(t *testing.T) {
	res := &db.Result{Columns: []string{"ursi", "session_num", "accuracy"}}
	wide, err := Enwiden(res, longKeys, Options{})
	if err != nil {
		t.Fatalf("Enwiden: %v", err)
	}
	if wide.Len() != 0 {
		t.Errorf("rows = %d, want 0", wide.Len())
	}
}
