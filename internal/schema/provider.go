package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/db"
	"github.com/cohort-cli/cohort/internal/index"
	"github.com/cohort-cli/cohort/internal/paths"
)

// Provider assembles schema snapshots from the metadata index, rescanning
// CSV files whose size or mtime changed on disk.
//
// Published snapshots are immutable; Refresh builds a complete replacement
// and swaps the pointer, so concurrent compilations never see a
// half-updated whitelist.
type Provider struct {
	cfg     *config.Config
	mgr     *db.Manager
	idx     *index.Database
	current atomic.Pointer[Snapshot]
}

// NewProvider creates a snapshot provider over an open engine and index.
func NewProvider(cfg *config.Config, mgr *db.Manager, idx *index.Database) *Provider {
	return &Provider{cfg: cfg, mgr: mgr, idx: idx}
}

// Current returns the last published snapshot, or nil before the first
// Refresh.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Refresh rescans changed files and publishes a fresh snapshot.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	return p.refresh(ctx, false)
}

// Reindex rescans every file regardless of staleness and publishes a fresh
// snapshot.
func (p *Provider) Reindex(ctx context.Context) (*Snapshot, error) {
	return p.refresh(ctx, true)
}

func (p *Provider) refresh(ctx context.Context, force bool) (*Snapshot, error) {
	dataDir := p.cfg.Data.Dir

	// A column-name change in config invalidates everything: ranges and
	// session values were derived under the old names.
	storedHash, err := p.idx.GetMeta("config_hash")
	if err != nil {
		return nil, fmt.Errorf("read config hash: %w", err)
	}
	if storedHash != p.cfg.DataHash() {
		force = true
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			snap := &Snapshot{
				DemographicsTable: p.cfg.DemographicsTable(),
				Messages:          []string{fmt.Sprintf("data directory %q not found", dataDir)},
				TakenAt:           time.Now(),
			}
			p.current.Store(snap)
			return snap, nil
		}
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	var onDisk []string
	for _, entry := range entries {
		if entry.IsDir() || !paths.IsDataCSV(entry.Name()) {
			continue
		}
		onDisk = append(onDisk, paths.TableName(entry.Name()))
	}
	sort.Strings(onDisk)

	demographicsTable := p.cfg.DemographicsTable()
	for _, table := range onDisk {
		path := paths.CSVPath(dataDir, table)
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		stale := force
		if !stale {
			meta, err := p.idx.GetTableMeta(table)
			switch {
			case errors.Is(err, index.ErrTableNotFound):
				stale = true
			case err != nil:
				return nil, fmt.Errorf("read table meta: %w", err)
			default:
				stale = meta.FileSize != info.Size() || meta.FileMtime != info.ModTime().Unix()
			}
		}
		if !stale {
			continue
		}

		scan, err := scanTable(ctx, p.mgr, path)
		if err != nil {
			return nil, err
		}
		rec := &index.TableRecord{
			TableMeta: index.TableMeta{
				Name:      table,
				FilePath:  path,
				FileSize:  info.Size(),
				FileMtime: info.ModTime().Unix(),
				RowCount:  scan.RowCount,
				ScannedAt: time.Now(),
			},
			Columns: scan.Columns,
		}
		if err := p.idx.PutTable(rec); err != nil {
			return nil, fmt.Errorf("store table %s: %w", table, err)
		}

		if table == demographicsTable {
			if err := p.refreshSessionValues(ctx, path, scan); err != nil {
				return nil, err
			}
		}
	}

	if err := p.idx.DeleteTablesExcept(onDisk); err != nil {
		return nil, fmt.Errorf("prune removed tables: %w", err)
	}
	if err := p.idx.SetMeta("config_hash", p.cfg.DataHash()); err != nil {
		return nil, fmt.Errorf("store config hash: %w", err)
	}

	snap, err := p.assemble()
	if err != nil {
		return nil, err
	}
	p.current.Store(snap)
	return snap, nil
}

func (p *Provider) refreshSessionValues(ctx context.Context, path string, scan *tableScan) error {
	sessionColumn := p.cfg.Data.SessionColumn
	hasSession := false
	for _, col := range scan.Columns {
		if col.Name == sessionColumn {
			hasSession = true
			break
		}
	}
	if !hasSession {
		return p.idx.SetSessionValues(nil)
	}
	values, err := scanSessionValues(ctx, p.mgr, path, sessionColumn)
	if err != nil {
		return err
	}
	return p.idx.SetSessionValues(values)
}

// assemble builds a snapshot from whatever the index currently holds.
func (p *Provider) assemble() (*Snapshot, error) {
	records, err := p.idx.Tables()
	if err != nil {
		return nil, fmt.Errorf("read indexed tables: %w", err)
	}

	snap := &Snapshot{
		Tables:            make(map[string]*TableSchema, len(records)),
		DemographicsTable: p.cfg.DemographicsTable(),
		TakenAt:           time.Now(),
	}

	for _, rec := range records {
		t := &TableSchema{
			Name:     rec.Name,
			Columns:  make([]string, 0, len(rec.Columns)),
			Dtypes:   make(map[string]string, len(rec.Columns)),
			Ranges:   make(map[string]Range),
			RowCount: rec.RowCount,
		}
		for _, col := range rec.Columns {
			t.Columns = append(t.Columns, col.Name)
			t.Dtypes[col.Name] = col.Dtype
			if col.MinValue.Valid && col.MaxValue.Valid {
				t.Ranges[col.Name] = Range{Min: col.MinValue.Float64, Max: col.MaxValue.Float64}
			}
		}
		snap.Tables[rec.Name] = t
	}

	if snap.IsEmpty() {
		snap.Messages = append(snap.Messages,
			fmt.Sprintf("no CSV tables found in %q", p.cfg.Data.Dir))
		return snap, nil
	}

	demo := snap.Demographics()
	if demo == nil {
		snap.Messages = append(snap.Messages,
			fmt.Sprintf("demographics file %q not found in %q",
				p.cfg.Data.DemographicsFile, p.cfg.Data.Dir))
		return snap, nil
	}

	keys, err := ResolveMergeKeys(p.cfg.Data, demo)
	if err != nil {
		return nil, err
	}
	snap.Keys = keys

	if keys.IsLongitudinal {
		values, err := p.idx.SessionValues()
		if err != nil {
			return nil, fmt.Errorf("read session values: %w", err)
		}
		snap.SessionValues = values

		if !demo.HasColumn(keys.CompositeID) {
			snap.Messages = append(snap.Messages, fmt.Sprintf(
				"composite id column %q not materialized in %s; run 'cohort prepare'",
				keys.CompositeID, demo.Name))
		}
	}

	return snap, nil
}

// JoinColumn returns the merge column a table joins to demographics on:
// the composite id for session-level tables in a longitudinal dataset,
// the primary id for subject-level ones. A session-level table that has
// not had the composite materialized yet still reports the composite,
// so the join planner surfaces the missing column instead of quietly
// joining at the wrong granularity.
func (s *Snapshot) JoinColumn(table string) string {
	if !s.Keys.IsLongitudinal {
		return s.Keys.PrimaryID
	}
	if s.HasColumn(table, s.Keys.SessionID) || s.HasColumn(table, s.Keys.CompositeID) {
		return s.Keys.CompositeID
	}
	return s.Keys.PrimaryID
}
