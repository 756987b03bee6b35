// Package dataset prepares raw CSVs for querying. Longitudinal joins
// and counts key on a composite (subject, session) column that raw
// exports usually lack; preparation materializes it into every
// session-level CSV, idempotently, so running it twice changes nothing.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cohort-cli/cohort/internal/atomicfile"
	"github.com/cohort-cli/cohort/internal/config"
	"github.com/cohort-cli/cohort/internal/paths"
	"github.com/cohort-cli/cohort/internal/schema"
)

// Options controls a preparation run.
type Options struct {
	// DryRun reports what would change without rewriting any file.
	DryRun bool

	// Progress, when set, is called after each file with the running count.
	Progress func(done, total int)
}

// Action is one change preparation made (or would make, under dry run)
// to one CSV.
type Action struct {
	File   string
	Change string
}

func (a Action) String() string {
	return fmt.Sprintf("%s in %s", a.Change, a.File)
}

// Result summarizes a preparation run.
type Result struct {
	// Longitudinal is false when the demographics header has no session
	// column, in which case there is nothing to materialize.
	Longitudinal bool
	// Checked counts the CSVs inspected.
	Checked int
	// Actions lists the files that changed and how. Empty on a second
	// run over the same data.
	Actions []Action
}

// Prepare materializes the composite merge key across the dataset. A
// session-level CSV (one that carries both the primary id and session
// columns) gets the composite column appended if missing, and any rows
// whose existing composite value disagrees with <primary>_<session>
// rewritten. Files are replaced atomically, so readers never observe a
// half-written table.
func Prepare(cfg *config.Config, opts Options) (*Result, error) {
	data := cfg.Data
	composite := data.CompositeIDColumn

	demoPath := paths.DemographicsPath(data.Dir, data.DemographicsFile)
	demoHeader, err := readHeader(demoPath)
	if err != nil {
		return nil, fmt.Errorf("read demographics: %w", err)
	}

	res := &Result{}
	if data.SessionColumn == "" || !contains(demoHeader, data.SessionColumn) {
		return res, nil
	}
	res.Longitudinal = true

	entries, err := os.ReadDir(data.Dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !paths.IsDataCSV(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}

	for i, name := range files {
		path := filepath.Join(data.Dir, name)
		action, err := prepareFile(path, data.PrimaryIDColumn, data.SessionColumn, composite, opts.DryRun)
		if err != nil {
			return nil, fmt.Errorf("prepare %s: %w", name, err)
		}
		res.Checked++
		if action != "" {
			res.Actions = append(res.Actions, Action{File: name, Change: action})
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(files))
		}
	}
	return res, nil
}

// prepareFile returns a description of the change made to one CSV, or
// "" when the file either needed nothing or is not session-level.
func prepareFile(path, primary, session, composite string, dryRun bool) (string, error) {
	records, err := readAll(path)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	header := records[0]
	primaryIdx := indexOf(header, primary)
	sessionIdx := indexOf(header, session)
	if primaryIdx < 0 || sessionIdx < 0 {
		// Subject-level table: joins use the primary id directly.
		return "", nil
	}

	compositeIdx := indexOf(header, composite)
	if compositeIdx < 0 {
		records[0] = append(header, composite)
		for i, row := range records[1:] {
			records[i+1] = append(row, schema.CompositeValue(row[primaryIdx], row[sessionIdx]))
		}
		if !dryRun {
			if err := atomicfile.WriteCSV(path, records, 0); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("added %s column", composite), nil
	}

	fixed := 0
	for i, row := range records[1:] {
		want := schema.CompositeValue(row[primaryIdx], row[sessionIdx])
		if row[compositeIdx] != want {
			records[i+1][compositeIdx] = want
			fixed++
		}
	}
	if fixed == 0 {
		return "", nil
	}
	if !dryRun {
		if err := atomicfile.WriteCSV(path, records, 0); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("fixed %d inconsistent %s value(s)", fixed, composite), nil
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, err
	}
	return header, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}

func contains(header []string, name string) bool {
	return indexOf(header, name) >= 0
}
