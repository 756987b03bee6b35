package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/term"
)

// DefaultTermWidth is assumed when stdout is not a terminal or size
// detection fails.
const DefaultTermWidth = 120

// DisplayContext carries the terminal geometry previews are fitted to.
type DisplayContext struct {
	TermWidth int
	IsTTY     bool
}

// NewDisplayContext detects the terminal dimensions of stdout.
func NewDisplayContext() *DisplayContext {
	fd := os.Stdout.Fd()
	isTTY := term.IsTerminal(fd)

	width := DefaultTermWidth
	if isTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}
	return &DisplayContext{TermWidth: width, IsTTY: isTTY}
}

// NewDisplayContextWithWidth fixes the width, for tests.
func NewDisplayContextWithWidth(width int) *DisplayContext {
	return &DisplayContext{TermWidth: width, IsTTY: true}
}

// AvailableWidth is the usable width after a left margin.
func (d *DisplayContext) AvailableWidth(leftMargin int) int {
	return d.TermWidth - leftMargin
}

// Preview column constraints. Result sets can carry dozens of columns;
// the preview shows as many as fit and reports how many it hid.
const (
	previewColPadding  = 2
	previewMinColWidth = 4
	previewMaxColWidth = 24
	previewLeftMargin  = 2
)

// PreviewTable renders the head of a query result: a bold header row,
// one line per data row, cells truncated so columns stay aligned.
// Columns that do not fit the terminal width are dropped and counted in
// a trailing hint. Empty cells are SQL nulls.
func PreviewTable(display *DisplayContext, columns []string, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	// Natural width per column, clamped so one long value cannot
	// crowd out the rest.
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i := 0; i < len(columns) && i < len(row); i++ {
			if l := len(row[i]); l > widths[i] {
				widths[i] = l
			}
		}
	}
	for i := range widths {
		if widths[i] < previewMinColWidth {
			widths[i] = previewMinColWidth
		}
		if widths[i] > previewMaxColWidth {
			widths[i] = previewMaxColWidth
		}
	}

	// Fit columns into the terminal budget, always keeping the first.
	budget := display.AvailableWidth(previewLeftMargin)
	shown := len(columns)
	used := 0
	for i, w := range widths {
		need := w
		if i > 0 {
			need += previewColPadding
		}
		if used+need > budget && i > 0 {
			shown = i
			break
		}
		used += need
	}

	// Header goes in as the first row, pre-styled bold.
	tableRows := make([][]string, 0, len(rows)+1)
	header := make([]string, shown)
	for i := 0; i < shown; i++ {
		header[i] = Bold.Render(TruncateWithEllipsis(columns[i], widths[i]))
	}
	tableRows = append(tableRows, header)
	for _, row := range rows {
		cells := make([]string, shown)
		for i := 0; i < shown; i++ {
			if i < len(row) {
				cells[i] = TruncateWithEllipsis(row[i], widths[i])
			}
		}
		tableRows = append(tableRows, cells)
	}

	tbl := table.New().
		Border(lipgloss.Border{
			Top:    "─",
			Bottom: "─",
			Left:   "",
			Right:  "",
			Middle: "─",
		}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderRow(true).
		BorderColumn(false).
		BorderStyle(Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle()
			if col >= shown {
				return style
			}
			style = style.Width(widths[col]).Align(lipgloss.Left)
			if col < shown-1 {
				style = style.PaddingRight(previewColPadding)
			}
			return style
		}).
		Rows(tableRows...)

	out := tbl.Render()
	if hidden := len(columns) - shown; hidden > 0 {
		out += "\n" + Hint(fmt.Sprintf("(%d more %s not shown)", hidden, Pluralize("column", hidden)))
	}
	return out
}

// TruncateWithEllipsis shortens s to at most maxLen bytes, ending the
// cut with "...". When a space falls in the second half of the cut it
// breaks there, which reads better for free-text cells.
func TruncateWithEllipsis(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}

	cut := s[:maxLen-3]
	if i := strings.LastIndex(cut, " "); i > maxLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
