package index

import (
	"database/sql"
	"testing"
	"time"
)

func TestDatabase(t *testing.T) {
	t.Run("initialization", func(t *testing.T) {
		db, err := OpenInMemory()
		if err != nil {
			t.Fatalf("failed to open index: %v", err)
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			t.Fatalf("failed to get stats: %v", err)
		}
		if stats.Tables != 0 {
			t.Errorf("expected 0 tables, got %d", stats.Tables)
		}

		version, err := db.GetMeta("db_version")
		if err != nil {
			t.Fatalf("failed to read db_version: %v", err)
		}
		if version != "1" {
			t.Errorf("expected db_version '1', got %q", version)
		}
	})

	t.Run("open on disk and rebuild detection", func(t *testing.T) {
		dataDir := t.TempDir()

		db, err := Open(dataDir)
		if err != nil {
			t.Fatalf("failed to open index: %v", err)
		}
		if err := db.SetMeta("config_hash", "abc"); err != nil {
			t.Fatalf("set meta: %v", err)
		}
		db.Close()

		// Compatible schema: reopened without rebuild, meta survives.
		db2, rebuilt, err := OpenWithRebuild(dataDir)
		if err != nil {
			t.Fatalf("failed to reopen index: %v", err)
		}
		if rebuilt {
			t.Error("expected no rebuild for compatible schema")
		}
		hash, err := db2.GetMeta("config_hash")
		if err != nil || hash != "abc" {
			t.Errorf("expected stored meta to survive reopen, got %q err %v", hash, err)
		}
		db2.Close()

		// Corrupt the version: reopen must rebuild.
		db3, err := Open(dataDir)
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		if _, err := db3.DB().Exec("UPDATE meta SET value = '999' WHERE key = 'db_version'"); err != nil {
			t.Fatalf("corrupt version: %v", err)
		}
		db3.Close()

		db4, rebuilt, err := OpenWithRebuild(dataDir)
		if err != nil {
			t.Fatalf("failed to rebuild index: %v", err)
		}
		defer db4.Close()
		if !rebuilt {
			t.Error("expected rebuild for incompatible schema version")
		}
		hash, err = db4.GetMeta("config_hash")
		if err != nil {
			t.Fatalf("get meta: %v", err)
		}
		if hash != "" {
			t.Errorf("expected meta cleared after rebuild, got %q", hash)
		}
	})
}

func testTableRecord(name string) *TableRecord {
	return &TableRecord{
		TableMeta: TableMeta{
			Name:      name,
			FilePath:  "data/" + name + ".csv",
			FileSize:  1234,
			FileMtime: 1700000000,
			RowCount:  10,
			ScannedAt: time.Now().UTC().Truncate(time.Second),
		},
		Columns: []ColumnMeta{
			{Name: "ursi", Dtype: "VARCHAR", Position: 0},
			{Name: "score", Dtype: "DOUBLE", Position: 1,
				MinValue: sql.NullFloat64{Float64: 1.5, Valid: true},
				MaxValue: sql.NullFloat64{Float64: 9.5, Valid: true}},
		},
	}
}
