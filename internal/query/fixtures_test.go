package query

import (
	"time"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/schema"
)

func tableFixture(name string, cols ...string) *schema.TableSchema {
	dtypes := make(map[string]string, len(cols))
	for _, c := range cols {
		dtypes[c] = "VARCHAR"
	}
	return &schema.TableSchema{Name: name, Columns: cols, Dtypes: dtypes}
}

func dataFixture() config.DataConfig {
	return config.DataConfig{
		Dir:               "data",
		DemographicsFile:  "demographics.csv",
		PrimaryIDColumn:   "ursi",
		SessionColumn:     "session_num",
		CompositeIDColumn: "customID",
		AgeColumn:         "age",
		StudySiteColumn:   "site",
	}
}

// longitudinalFixture models a prepared longitudinal dataset: the
// demographics table carries the session and composite columns, flanker
// has per-session rows, and survey is subject-level.
func longitudinalFixture() (*schema.Snapshot, config.DataConfig) {
	data := dataFixture()
	snap := &schema.Snapshot{
		Tables: map[string]*schema.TableSchema{
			"demographics": tableFixture("demographics", "ursi", "session_num", "customID", "age", "sex", "site"),
			"flanker":      tableFixture("flanker", "customID", "ursi", "session_num", "accuracy", "rt_mean"),
			"survey":       tableFixture("survey", "ursi", "score"),
		},
		DemographicsTable: "demographics",
		Keys: schema.MergeKeys{
			PrimaryID:      "ursi",
			SessionID:      "session_num",
			CompositeID:    "customID",
			IsLongitudinal: true,
		},
		SessionValues: []string{"1", "2", "3"},
		TakenAt:       time.Now(),
	}
	return snap, data
}

// crossSectionalFixture models a dataset without sessions.
func crossSectionalFixture() (*schema.Snapshot, config.DataConfig) {
	data := dataFixture()
	snap := &schema.Snapshot{
		Tables: map[string]*schema.TableSchema{
			"demographics": tableFixture("demographics", "ursi", "age", "sex", "site"),
			"iq":           tableFixture("iq", "ursi", "fsiq"),
		},
		DemographicsTable: "demographics",
		Keys:              schema.MergeKeys{PrimaryID: "ursi"},
		TakenAt:           time.Now(),
	}
	return snap, data
}
