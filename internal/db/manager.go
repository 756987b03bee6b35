// Package db manages the DuckDB connection that runs compiled queries
// directly over CSV files. All file paths and filter values arrive as bound
// parameters; the engine never sees interpolated user input.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Manager wraps a single DuckDB connection.
//
// DuckDB handles its own intra-query parallelism, so the pool is capped at
// one connection and callers serialize on it.
type Manager struct {
	db *sql.DB
}

// Open creates an in-memory DuckDB instance.
func Open() (*Manager, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return &Manager{db: conn}, nil
}

// Close releases the connection.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Result is a fully materialized query result. Values are kept as nullable
// strings: every downstream consumer (CSV export, enwiden, terminal
// preview) is textual, and NULL tracking is what matters.
type Result struct {
	Columns []string
	Rows    [][]sql.NullString
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// ColumnIndex returns the position of a named column, or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Query runs a parameterized query and materializes the full result.
func (m *Manager) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Op: "query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Op: "columns", Err: err}
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		row := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Op: "scan", Err: err}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "rows", Err: err}
	}

	return result, nil
}

// QueryCount runs a query expected to return a single integer, like the
// compiled participant count.
func (m *Manager) QueryCount(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	if err := m.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &QueryError{Op: "count", Err: err}
	}
	return count, nil
}
