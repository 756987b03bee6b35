package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TableMeta describes one scanned table's file identity.
type TableMeta struct {
	Name      string
	FilePath  string
	FileSize  int64
	FileMtime int64
	RowCount  int64
	ScannedAt time.Time
}

// ColumnMeta describes one column of a scanned table.
type ColumnMeta struct {
	Name     string
	Dtype    string
	Position int
	// MinValue/MaxValue are only set for numeric columns.
	MinValue sql.NullFloat64
	MaxValue sql.NullFloat64
}

// TableRecord is a table plus its columns, header order preserved.
type TableRecord struct {
	TableMeta
	Columns []ColumnMeta
}

// Action is one dataset-preparation log entry.
type Action struct {
	ID         int64
	OccurredAt time.Time
	Action     string
}

// Stats summarizes the index contents.
type Stats struct {
	Tables  int
	Columns int
}

// GetTableMeta returns the stored file identity for a table, or
// ErrTableNotFound.
func (d *Database) GetTableMeta(name string) (*TableMeta, error) {
	var meta TableMeta
	var scannedAt string
	err := d.db.QueryRow(
		"SELECT name, file_path, file_size, file_mtime, row_count, scanned_at FROM tables WHERE name = ?",
		name,
	).Scan(&meta.Name, &meta.FilePath, &meta.FileSize, &meta.FileMtime, &meta.RowCount, &scannedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	meta.ScannedAt, _ = time.Parse(time.RFC3339, scannedAt)
	return &meta, nil
}

// PutTable stores a table and its columns, replacing any previous record.
func (d *Database) PutTable(rec *TableRecord) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin put table: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO tables (name, file_path, file_size, file_mtime, row_count, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			file_path = excluded.file_path,
			file_size = excluded.file_size,
			file_mtime = excluded.file_mtime,
			row_count = excluded.row_count,
			scanned_at = excluded.scanned_at`,
		rec.Name, rec.FilePath, rec.FileSize, rec.FileMtime, rec.RowCount,
		rec.ScannedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert table %s: %w", rec.Name, err)
	}

	if _, err := tx.Exec("DELETE FROM columns WHERE table_name = ?", rec.Name); err != nil {
		return fmt.Errorf("clear columns for %s: %w", rec.Name, err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO columns (table_name, position, name, dtype, min_value, max_value) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare column insert: %w", err)
	}
	defer stmt.Close()

	for i, col := range rec.Columns {
		if _, err := stmt.Exec(rec.Name, i, col.Name, col.Dtype, col.MinValue, col.MaxValue); err != nil {
			return fmt.Errorf("insert column %s.%s: %w", rec.Name, col.Name, err)
		}
	}

	return tx.Commit()
}

// Tables returns every stored table with its columns in header order,
// sorted by table name.
func (d *Database) Tables() ([]TableRecord, error) {
	rows, err := d.db.Query(
		"SELECT name, file_path, file_size, file_mtime, row_count, scanned_at FROM tables ORDER BY name",
	)
	if err != nil {
		return nil, err
	}

	records, err := collectRows(rows, func(rows *sql.Rows) (TableRecord, error) {
		var rec TableRecord
		var scannedAt string
		if err := rows.Scan(&rec.Name, &rec.FilePath, &rec.FileSize, &rec.FileMtime, &rec.RowCount, &scannedAt); err != nil {
			return rec, err
		}
		rec.ScannedAt, _ = time.Parse(time.RFC3339, scannedAt)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range records {
		cols, err := d.columnsOf(records[i].Name)
		if err != nil {
			return nil, err
		}
		records[i].Columns = cols
	}

	return records, nil
}

func (d *Database) columnsOf(table string) ([]ColumnMeta, error) {
	rows, err := d.db.Query(
		"SELECT name, dtype, position, min_value, max_value FROM columns WHERE table_name = ? ORDER BY position",
		table,
	)
	if err != nil {
		return nil, err
	}

	return collectRows(rows, func(rows *sql.Rows) (ColumnMeta, error) {
		var col ColumnMeta
		err := rows.Scan(&col.Name, &col.Dtype, &col.Position, &col.MinValue, &col.MaxValue)
		return col, err
	})
}

// DeleteTablesExcept removes index entries for tables no longer on disk.
func (d *Database) DeleteTablesExcept(keep []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	keepSet := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		keepSet[name] = struct{}{}
	}

	rows, err := tx.Query("SELECT name FROM tables")
	if err != nil {
		return err
	}
	names, err := collectRows(rows, func(rows *sql.Rows) (string, error) {
		var name string
		err := rows.Scan(&name)
		return name, err
	})
	if err != nil {
		return err
	}

	var stale []string
	for _, name := range names {
		if _, ok := keepSet[name]; !ok {
			stale = append(stale, name)
		}
	}
	if len(stale) == 0 {
		return tx.Commit()
	}

	placeholders, args := inClause(stale)
	if _, err := tx.Exec("DELETE FROM tables WHERE name IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("prune tables: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM columns WHERE table_name IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("prune columns: %w", err)
	}

	return tx.Commit()
}

// SetSessionValues replaces the stored distinct session values.
func (d *Database) SetSessionValues(values []string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin session values: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM session_values"); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := tx.Exec("INSERT OR IGNORE INTO session_values (value) VALUES (?)", v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SessionValues returns the stored distinct session values, sorted.
func (d *Database) SessionValues() ([]string, error) {
	rows, err := d.db.Query("SELECT value FROM session_values ORDER BY value")
	if err != nil {
		return nil, err
	}

	return collectRows(rows, func(rows *sql.Rows) (string, error) {
		var v string
		err := rows.Scan(&v)
		return v, err
	})
}

// GetMeta returns a meta value, or "" if unset.
func (d *Database) GetMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta stores a meta value.
func (d *Database) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// LogAction appends one dataset-preparation log entry.
func (d *Database) LogAction(action string) error {
	_, err := d.db.Exec(
		"INSERT INTO actions (occurred_at, action) VALUES (?, ?)",
		time.Now().UTC().Format(time.RFC3339), action,
	)
	return err
}

// Actions returns the most recent log entries, newest first.
func (d *Database) Actions(limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		"SELECT id, occurred_at, action FROM actions ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}

	return collectRows(rows, func(rows *sql.Rows) (Action, error) {
		var a Action
		var at string
		if err := rows.Scan(&a.ID, &at, &a.Action); err != nil {
			return a, err
		}
		a.OccurredAt, _ = time.Parse(time.RFC3339, at)
		return a, nil
	})
}

// GetStats summarizes the index contents.
func (d *Database) GetStats() (*Stats, error) {
	var stats Stats
	if err := d.db.QueryRow("SELECT COUNT(*) FROM tables").Scan(&stats.Tables); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM columns").Scan(&stats.Columns); err != nil {
		return nil, err
	}
	return &stats, nil
}

// collectRows drains rows into a slice and closes them.
func collectRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// inClause builds the placeholder list and argument slice for an IN
// predicate over names. An empty slice yields "NULL" so the predicate
// matches no rows.
func inClause(names []string) (string, []any) {
	if len(names) == 0 {
		return "NULL", nil
	}
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	return strings.Repeat("?, ", len(names)-1) + "?", args
}
