package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// MarkdownRenderMargin is the left margin for terminal markdown output.
const MarkdownRenderMargin = 2

// RenderMarkdown renders markdown for terminal display with the shared
// style configuration. Output always ends in exactly one newline.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// markdownStyle builds the glamour style from the active theme: accent
// for headings and inline code, muted for links and block quotes.
func markdownStyle() ansi.StyleConfig {
	muted := ptr("8")
	codeColor := muted
	var accent *string
	if color, ok := AccentColor(); ok {
		accent = ptr(color)
		codeColor = accent
	}

	var s ansi.StyleConfig

	s.Document.BlockPrefix = "\n"
	s.Document.BlockSuffix = "\n"
	s.Document.Margin = ptr(uint(MarkdownRenderMargin))

	s.Heading.BlockSuffix = "\n"
	s.Heading.Color = accent
	s.Heading.Bold = ptr(true)
	for i, h := range []*ansi.StyleBlock{&s.H1, &s.H2, &s.H3, &s.H4, &s.H5, &s.H6} {
		h.Prefix = strings.Repeat("#", i+1) + " "
	}
	s.H1.Underline = ptr(true)
	s.H2.Underline = ptr(true)
	s.H6.Bold = ptr(false)

	s.BlockQuote.Color = muted
	s.BlockQuote.Indent = ptr(uint(1))
	s.BlockQuote.IndentToken = ptr("│ ")

	s.List.LevelIndent = 2
	s.Item.BlockPrefix = "• "
	s.Enumeration.BlockPrefix = ". "
	s.Task.Ticked = "[x] "
	s.Task.Unticked = "[ ] "

	s.Emph.Italic = ptr(true)
	s.Strong.Bold = ptr(true)
	s.Strikethrough.CrossedOut = ptr(true)
	s.HorizontalRule.Color = muted
	s.HorizontalRule.Format = "\n--------\n"

	s.Link.Color = muted
	s.Link.Underline = ptr(true)
	s.LinkText.Color = muted
	s.LinkText.Bold = ptr(true)
	s.Image.Underline = ptr(true)
	s.ImageText.Color = muted
	s.ImageText.Format = "Image: {{.text}} ->"

	s.Code.Prefix = "`"
	s.Code.Suffix = "`"
	s.Code.Color = codeColor
	s.CodeBlock.Color = muted
	s.CodeBlock.Margin = ptr(uint(MarkdownRenderMargin))
	s.CodeBlock.Theme = MarkdownCodeTheme()

	s.Table.CenterSeparator = ptr("│")
	s.Table.ColumnSeparator = ptr("│")
	s.Table.RowSeparator = ptr("─")

	s.DefinitionDescription.BlockPrefix = "\n- "

	return s
}

func ptr[T any](v T) *T { return &v }
