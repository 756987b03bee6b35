package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/index"
)

// tableScan is the raw result of scanning one CSV with the engine.
type tableScan struct {
	Columns  []index.ColumnMeta
	RowCount int64
}

// quoteIdent returns a double-quoted identifier. Scan-time column names
// come straight from CSV headers and may contain anything, so they are
// always quoted here; compile-time identifiers instead go through the
// whitelist validator.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// numericDtypes are the engine types worth a min/max pass.
var numericDtypes = []string{
	"TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
	"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT",
	"FLOAT", "DOUBLE", "DECIMAL",
}

// IsNumericDtype reports whether an engine dtype supports range filters.
func IsNumericDtype(dtype string) bool {
	upper := strings.ToUpper(dtype)
	for _, t := range numericDtypes {
		if upper == t || strings.HasPrefix(upper, t+"(") {
			return true
		}
	}
	return false
}

// scanTable reads one CSV's structure through the engine: header order and
// dtypes via DESCRIBE, row count, and min/max for numeric columns.
func scanTable(ctx context.Context, mgr *db.Manager, path string) (*tableScan, error) {
	described, err := mgr.Query(ctx, "DESCRIBE SELECT * FROM read_csv_auto(?)", path)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}

	nameIdx := described.ColumnIndex("column_name")
	typeIdx := described.ColumnIndex("column_type")
	if nameIdx < 0 || typeIdx < 0 {
		return nil, fmt.Errorf("describe %s: unexpected result shape %v", path, described.Columns)
	}

	scan := &tableScan{}
	for i, row := range described.Rows {
		scan.Columns = append(scan.Columns, index.ColumnMeta{
			Name:     row[nameIdx].String,
			Dtype:    row[typeIdx].String,
			Position: i,
		})
	}

	count, err := mgr.QueryCount(ctx, "SELECT COUNT(*) FROM read_csv_auto(?)", path)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", path, err)
	}
	scan.RowCount = count

	if err := scanRanges(ctx, mgr, path, scan); err != nil {
		return nil, err
	}

	return scan, nil
}

// scanRanges fills min/max for every numeric column in one aggregate pass.
func scanRanges(ctx context.Context, mgr *db.Manager, path string, scan *tableScan) error {
	var exprs []string
	var targets []int
	for i, col := range scan.Columns {
		if IsNumericDtype(col.Dtype) {
			q := quoteIdent(col.Name)
			exprs = append(exprs, fmt.Sprintf("MIN(%s)", q), fmt.Sprintf("MAX(%s)", q))
			targets = append(targets, i)
		}
	}
	if len(exprs) == 0 {
		return nil
	}

	res, err := mgr.Query(ctx,
		fmt.Sprintf("SELECT %s FROM read_csv_auto(?)", strings.Join(exprs, ", ")), path)
	if err != nil {
		return fmt.Errorf("ranges %s: %w", path, err)
	}
	if res.Len() != 1 {
		return fmt.Errorf("ranges %s: expected one row, got %d", path, res.Len())
	}

	row := res.Rows[0]
	for j, colIdx := range targets {
		minCell, maxCell := row[2*j], row[2*j+1]
		if !minCell.Valid || !maxCell.Valid {
			continue
		}
		minV, err := strconv.ParseFloat(minCell.String, 64)
		if err != nil {
			continue
		}
		maxV, err := strconv.ParseFloat(maxCell.String, 64)
		if err != nil {
			continue
		}
		scan.Columns[colIdx].MinValue.Float64 = minV
		scan.Columns[colIdx].MinValue.Valid = true
		scan.Columns[colIdx].MaxValue.Float64 = maxV
		scan.Columns[colIdx].MaxValue.Valid = true
	}
	return nil
}

// scanSessionValues reads the distinct session labels from the demographics
// CSV, cast to text so numeric session columns come back as plain labels.
func scanSessionValues(ctx context.Context, mgr *db.Manager, path, sessionColumn string) ([]string, error) {
	q := quoteIdent(sessionColumn)
	res, err := mgr.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS VARCHAR) AS s FROM read_csv_auto(?) WHERE %s IS NOT NULL ORDER BY s",
		q, q), path)
	if err != nil {
		return nil, fmt.Errorf("session values: %w", err)
	}
	values := make([]string, 0, res.Len())
	for _, row := range res.Rows {
		if row[0].Valid {
			values = append(values, row[0].String)
		}
	}
	return values, nil
}
