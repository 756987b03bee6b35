package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/cohort-cli/cohort/internal/atomicfile"
	"github.com/cohort-cli/cohort/internal/db"
)

// Filename builds the canonical export file name:
// <base>_<long|wide>_<timestamp>.csv. The base names the behavioral
// tables in the selection; exports of demographics alone are called
// out as such.
func Filename(behavioralTables []string, wide bool, ts time.Time) string {
	base := "demographics_only"
	switch n := len(behavioralTables); {
	case n == 1:
		base = behavioralTables[0]
	case n >= 2 && n <= 3:
		base = strings.Join(behavioralTables, "_")
	case n > 3:
		base = fmt.Sprintf("%s_and_%d_more", behavioralTables[0], n-1)
	}

	form := "long"
	if wide {
		form = "wide"
	}
	return fmt.Sprintf("%s_%s_%s.csv", base, form, ts.Format("20060102_150405"))
}

// WriteCSV writes a result to path atomically. Null cells become empty
// fields.
func WriteCSV(path string, res *db.Result) error {
	records := make([][]string, 0, res.Len()+1)
	records = append(records, res.Columns)
	for _, row := range res.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			if cell.Valid {
				record[i] = cell.String
			}
		}
		records = append(records, record)
	}
	return atomicfile.WriteCSV(path, records, 0o644)
}
