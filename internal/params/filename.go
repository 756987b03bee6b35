package params

import (
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/query"
)

// maxSlugLen caps the notes slug so filenames stay readable.
const maxSlugLen = 30

// Filename returns the canonical parameter file name for an export:
// query_params_<timestamp>[_<notes-slug>].toml.
func Filename(ts time.Time, notes string) string {
	name := "query_params_" + ts.Format("20060102_150405")
	if s := slug.Make(notes); s != "" {
		if len(s) > maxSlugLen {
			s = strings.TrimRight(s[:maxSlugLen], "-")
		}
		name += "_" + s
	}
	return name + ".toml"
}

// Starter builds the template spec that `params init` writes: the
// configured default age range and the demographics table selected, so
// a new file validates immediately and shows the expected shape.
func Starter(cfg *config.Config) *Spec {
	return &Spec{
		Demographic: query.DemographicFilters{
			AgeRange: &query.AgeRange{Min: cfg.UI.DefaultAgeMin, Max: cfg.UI.DefaultAgeMax},
		},
		Selection: query.Selection{Tables: []string{cfg.DemographicsTable()}},
	}
}
