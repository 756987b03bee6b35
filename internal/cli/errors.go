package cli

// Error codes for structured error responses.
// These codes are stable and can be relied upon by scripts.
const (
	// Configuration errors
	ErrConfigInvalid   = "CONFIG_INVALID"
	ErrDataDirNotFound = "DATA_DIR_NOT_FOUND"

	// Schema errors
	ErrSchemaEmpty       = "SCHEMA_EMPTY"
	ErrTableNotFound     = "TABLE_NOT_FOUND"
	ErrColumnNotFound    = "COLUMN_NOT_FOUND"
	ErrUnknownIdentifier = "UNKNOWN_IDENTIFIER"
	ErrUnsafeIdentifier  = "UNSAFE_IDENTIFIER"
	ErrMergeKeyMissing   = "MERGE_KEY_MISSING"

	// Query errors
	ErrQueryFailed     = "QUERY_FAILED"
	ErrEmptySelection  = "EMPTY_SELECTION"
	ErrInvalidFilter   = "INVALID_FILTER"
	ErrInvalidMode     = "INVALID_MODE"
	ErrNotLongitudinal = "NOT_LONGITUDINAL"

	// Parameter file errors
	ErrParamsInvalid = "PARAMS_INVALID"

	// Database errors
	ErrDatabaseError = "DATABASE_ERROR"

	// Validation errors
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrInvalidValue     = "INVALID_VALUE"

	// File errors
	ErrFileNotFound   = "FILE_NOT_FOUND"
	ErrFileExists     = "FILE_EXISTS"
	ErrFileReadError  = "FILE_READ_ERROR"
	ErrFileWriteError = "FILE_WRITE_ERROR"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnFilterSkipped  = "FILTER_SKIPPED"
	WarnParamsPartial  = "PARAMS_PARTIAL"
	WarnDeprecated     = "DEPRECATED"
	WarnSchemaMessages = "SCHEMA_MESSAGES"
)
