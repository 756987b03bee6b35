package schema

import (
	"fmt"

	"github.com/cohort-cli/cohort/internal/config"
)

// ConfigurationError reports a dataset/config mismatch, like a configured
// merge column that the demographics table doesn't carry.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Field, e.Message)
}

// defaultCompositeColumn is used when the config leaves the composite id
// column unset.
const defaultCompositeColumn = "customID"

// ResolveMergeKeys classifies the dataset from the demographics header.
//
// Presence of the configured session column makes the dataset longitudinal;
// everything else is cross-sectional. The decision is driven entirely by
// configuration: there is no guessing across candidate columns.
func ResolveMergeKeys(data config.DataConfig, demographics *TableSchema) (MergeKeys, error) {
	if demographics == nil {
		return MergeKeys{}, &ConfigurationError{
			Field:   "demographics_file",
			Message: "demographics table has not been scanned",
		}
	}
	if !demographics.HasColumn(data.PrimaryIDColumn) {
		return MergeKeys{}, &ConfigurationError{
			Field: "primary_id_column",
			Message: fmt.Sprintf("column %q not found in %s",
				data.PrimaryIDColumn, demographics.Name),
		}
	}

	if data.SessionColumn != "" && demographics.HasColumn(data.SessionColumn) {
		composite := data.CompositeIDColumn
		if composite == "" {
			composite = defaultCompositeColumn
		}
		return MergeKeys{
			PrimaryID:      data.PrimaryIDColumn,
			SessionID:      data.SessionColumn,
			CompositeID:    composite,
			IsLongitudinal: true,
		}, nil
	}

	return MergeKeys{PrimaryID: data.PrimaryIDColumn}, nil
}
