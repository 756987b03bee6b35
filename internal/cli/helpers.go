package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/index"
	"github.com/cohort-cli/cohort/internal/query"
	"github.com/cohort-cli/cohort/internal/schema"
)

// env bundles the open handles a dataset command needs: the query engine,
// the metadata index, and a fresh schema snapshot.
type env struct {
	cfg  *config.Config
	mgr  *db.Manager
	idx  *index.Database
	snap *schema.Snapshot
}

// Close releases the engine and index handles.
func (e *env) Close() {
	if e == nil {
		return
	}
	if e.idx != nil {
		e.idx.Close()
	}
	if e.mgr != nil {
		e.mgr.Close()
	}
}

// openEnv opens the engine and index for the configured data directory and
// refreshes the schema snapshot. Callers own the returned env and must
// Close it.
func openEnv(ctx context.Context) (*env, error) {
	cfg := getConfig()

	if _, err := os.Stat(cfg.Data.Dir); os.IsNotExist(err) {
		return nil, &envError{
			code:       ErrDataDirNotFound,
			err:        fmt.Errorf("data directory not found: %s", cfg.Data.Dir),
			suggestion: "Set data.dir in the config or pass --data-dir",
		}
	}

	mgr, err := db.Open()
	if err != nil {
		return nil, &envError{code: ErrDatabaseError, err: err}
	}

	idx, rebuilt, err := index.OpenWithRebuild(cfg.Data.Dir)
	if err != nil {
		mgr.Close()
		if errors.Is(err, index.ErrIndexLocked) {
			return nil, &envError{
				code:       ErrDatabaseError,
				err:        err,
				suggestion: "Another cohort process is rebuilding the index; retry in a moment",
			}
		}
		return nil, &envError{code: ErrDatabaseError, err: err}
	}
	_ = rebuilt

	provider := schema.NewProvider(cfg, mgr, idx)
	snap, err := provider.Refresh(ctx)
	if err != nil {
		idx.Close()
		mgr.Close()
		return nil, &envError{code: ErrDatabaseError, err: err}
	}

	return &env{cfg: cfg, mgr: mgr, idx: idx, snap: snap}, nil
}

// envError carries the structured code and suggestion through openEnv.
type envError struct {
	code       string
	err        error
	suggestion string
}

func (e *envError) Error() string { return e.err.Error() }

func (e *envError) Unwrap() error { return e.err }

// handleEnvError routes an openEnv failure through the JSON/text boundary.
func handleEnvError(err error) error {
	var ee *envError
	if errors.As(err, &ee) {
		return handleError(ee.code, ee.err, ee.suggestion)
	}
	return handleError(ErrInternal, err, "")
}

// queryErrorCode maps a compilation or execution failure to its stable
// error code and a suggestion the user can act on.
func queryErrorCode(err error) (code, suggestion string) {
	var unknown *query.UnknownIdentifierError
	if errors.As(err, &unknown) {
		suggestion = "Run 'cohort tables' to list tables and columns"
		if unknown.Suggestion != "" {
			suggestion = fmt.Sprintf("Did you mean %q?", unknown.Suggestion)
		}
		return ErrUnknownIdentifier, suggestion
	}

	var unsafe *query.UnsafeIdentifierError
	if errors.As(err, &unsafe) {
		return ErrUnsafeIdentifier, "Identifiers may only contain letters, digits, and underscores"
	}

	var param *query.ParameterError
	if errors.As(err, &param) {
		return ErrValidationFailed, ""
	}

	var merge *query.MergeColumnError
	if errors.As(err, &merge) {
		return ErrMergeKeyMissing, "Run 'cohort prepare' to materialize the composite id column"
	}

	switch {
	case errors.Is(err, query.ErrEmptySelection):
		return ErrEmptySelection, "Pass --tables and/or --columns to select data"
	case errors.Is(err, query.ErrEmptySchema):
		return ErrSchemaEmpty, "Run 'cohort reindex' after adding CSV files to the data directory"
	}

	var qerr *db.QueryError
	if errors.As(err, &qerr) {
		return ErrQueryFailed, ""
	}

	return ErrInternal, ""
}

// handleQueryError routes a compile/execution failure through the boundary
// with its mapped code.
func handleQueryError(err error) error {
	code, suggestion := queryErrorCode(err)
	return handleError(code, err, suggestion)
}
