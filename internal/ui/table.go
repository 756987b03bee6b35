package ui

import "strings"

// Table renders aligned columns without borders, two spaces apart.
type Table struct {
	header []string
	rows   [][]string
	widths []int
}

// NewTable returns a table with the given column count.
func NewTable(cols int) *Table {
	return &Table{widths: make([]int, cols)}
}

// Header sets the heading row. It renders muted, above the data rows.
func (t *Table) Header(cells ...string) {
	t.header = t.fit(cells)
}

// AddRow appends one row. Extra cells are dropped, missing ones stay blank.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, t.fit(cells))
}

func (t *Table) fit(cells []string) []string {
	row := make([]string, len(t.widths))
	for i := 0; i < len(row) && i < len(cells); i++ {
		row[i] = cells[i]
		if w := len(cells[i]); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	return row
}

// String renders the table. Widths are computed from cell lengths, so
// styled cells belong in the last column only.
func (t *Table) String() string {
	if t.header == nil && len(t.rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.header != nil {
		sb.WriteString(Muted.Render(t.line(t.header)))
		sb.WriteString("\n")
	}
	for _, row := range t.rows {
		sb.WriteString(t.line(row))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *Table) line(row []string) string {
	var sb strings.Builder
	for i, cell := range row {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(cell)
		if i < len(row)-1 {
			sb.WriteString(strings.Repeat(" ", t.widths[i]-len(cell)))
		}
	}
	return sb.String()
}
