package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohort-cli/cohort/internal/schema"
	"github.com/cohort-cli/cohort/internal/ui"
)

// TableInfo describes one table for JSON output.
type TableInfo struct {
	Name         string `json:"name"`
	Rows         int64  `json:"rows"`
	Columns      int    `json:"columns"`
	Demographics bool   `json:"demographics,omitempty"`
}

// ColumnInfo describes one column for JSON output.
type ColumnInfo struct {
	Name     string   `json:"name"`
	Dtype    string   `json:"dtype"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	MergeKey bool     `json:"merge_key,omitempty"`
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the dataset's tables and merge topology",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		e, err := openEnv(cmd.Context())
		if err != nil {
			return handleEnvError(err)
		}
		defer e.Close()

		snap := e.snap
		if snap.IsEmpty() {
			return handleErrorMsg(ErrSchemaEmpty,
				"no CSV tables found in "+e.cfg.Data.Dir,
				"Add *.csv files to the data directory, then run 'cohort reindex'")
		}

		infos := make([]TableInfo, 0, len(snap.Tables))
		for _, name := range snap.TableNames() {
			t := snap.Tables[name]
			infos = append(infos, TableInfo{
				Name:         name,
				Rows:         t.RowCount,
				Columns:      len(t.Columns),
				Demographics: name == snap.DemographicsTable,
			})
		}

		if isJSONOutput() {
			data := map[string]interface{}{
				"data_dir":           e.cfg.Data.Dir,
				"topology":           topologyName(snap.Keys),
				"demographics_table": snap.DemographicsTable,
				"merge_keys": map[string]interface{}{
					"primary_id":   snap.Keys.PrimaryID,
					"session_id":   snap.Keys.SessionID,
					"composite_id": snap.Keys.CompositeID,
					"merge_column": snap.Keys.MergeColumn(),
				},
				"session_values": snap.SessionValues,
				"tables":         infos,
			}
			outputSuccessWithWarnings(data, schemaWarnings(snap), timedMeta(start, len(infos)))
			return nil
		}

		fmt.Printf("%s %s (%s) %s\n", ui.Header("Dataset:"), ui.FilePath(e.cfg.Data.Dir),
			topologyName(snap.Keys), ui.Hint(ui.Count(len(infos), "table", "tables")))
		if snap.Keys.IsLongitudinal {
			fmt.Printf("Merge key: %s (%s + %s)\n", ui.TableName(snap.Keys.CompositeID), snap.Keys.PrimaryID, snap.Keys.SessionID)
			if len(snap.SessionValues) > 0 {
				fmt.Printf("Sessions:  %s\n", ui.Hint(fmt.Sprintf("%v", snap.SessionValues)))
			}
		} else {
			fmt.Printf("Merge key: %s\n", ui.TableName(snap.Keys.PrimaryID))
		}
		fmt.Println()

		table := ui.NewTable(3)
		table.Header("TABLE", "ROWS", "COLUMNS")
		for _, info := range infos {
			name := info.Name
			if info.Demographics {
				name += " *"
			}
			table.AddRow(name, strconv.FormatInt(info.Rows, 10), strconv.Itoa(info.Columns))
		}
		fmt.Print(table.String())
		fmt.Println()
		fmt.Println(ui.Hint("* demographics (anchor table)"))

		for _, msg := range snap.Messages {
			fmt.Println(ui.Warning(msg))
		}
		return nil
	},
}

var columnsCmd = &cobra.Command{
	Use:               "columns <table>",
	Short:             "List a table's columns with types and observed ranges",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeTableNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		tableName := args[0]

		e, err := openEnv(cmd.Context())
		if err != nil {
			return handleEnvError(err)
		}
		defer e.Close()

		snap := e.snap
		t, ok := snap.Tables[tableName]
		if !ok {
			return handleErrorMsg(ErrTableNotFound,
				fmt.Sprintf("table %q not found", tableName),
				"Run 'cohort tables' to list tables")
		}

		infos := make([]ColumnInfo, 0, len(t.Columns))
		for _, col := range t.Columns {
			info := ColumnInfo{
				Name:     col,
				Dtype:    t.Dtypes[col],
				MergeKey: snap.Keys.IsMergeColumn(col),
			}
			if r, ok := t.Ranges[col]; ok {
				min, max := r.Min, r.Max
				info.Min, info.Max = &min, &max
			}
			infos = append(infos, info)
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"table":   tableName,
				"rows":    t.RowCount,
				"columns": infos,
			}, timedMeta(start, len(infos)))
			return nil
		}

		fmt.Printf("%s %s (%d rows)\n\n", ui.Header("Table:"), ui.TableName(tableName), t.RowCount)
		out := ui.NewTable(4)
		out.Header("COLUMN", "DTYPE", "RANGE", "")
		for _, info := range infos {
			rangeStr := ""
			if info.Min != nil {
				rangeStr = fmt.Sprintf("%g .. %g", *info.Min, *info.Max)
			}
			marker := ""
			if info.MergeKey {
				marker = "merge key"
			}
			out.AddRow(info.Name, info.Dtype, rangeStr, ui.Hint(marker))
		}
		fmt.Print(out.String())
		return nil
	},
}

func topologyName(keys schema.MergeKeys) string {
	if keys.IsLongitudinal {
		return "longitudinal"
	}
	return "cross-sectional"
}

// schemaWarnings converts scan messages into envelope warnings.
func schemaWarnings(snap *schema.Snapshot) []Warning {
	var warnings []Warning
	for _, msg := range snap.Messages {
		warnings = append(warnings, Warning{Code: WarnSchemaMessages, Message: msg})
	}
	return warnings
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(columnsCmd)
}
