package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/glamour/ansi"
)

func TestRenderMarkdownTrailingNewline(t *testing.T) {
	t.Parallel()

	// Nonpositive widths fall back to the default terminal width.
	for _, width := range []int{80, 0, -5} {
		out, err := RenderMarkdown("# Filters\n\nAge bounds are inclusive.", width)
		if err != nil {
			t.Fatalf("width %d: %v", width, err)
		}
		if strings.TrimSpace(out) == "" {
			t.Fatalf("width %d: rendered nothing", width)
		}
		if !strings.HasSuffix(out, "\n") || strings.HasSuffix(out, "\n\n") {
			t.Fatalf("width %d: want exactly one trailing newline, got %q", width, out)
		}
	}
}

func TestMarkdownStyleHeadings(t *testing.T) {
	s := markdownStyle()

	for i, h := range []*ansi.StyleBlock{&s.H1, &s.H2, &s.H3, &s.H4, &s.H5, &s.H6} {
		want := strings.Repeat("#", i+1) + " "
		if h.Prefix != want {
			t.Errorf("H%d prefix = %q, want %q", i+1, h.Prefix, want)
		}
	}
	if s.H1.Underline == nil || !*s.H1.Underline {
		t.Error("H1 lost its underline")
	}
	if s.H2.Underline == nil || !*s.H2.Underline {
		t.Error("H2 lost its underline")
	}
	if s.H6.Bold == nil || *s.H6.Bold {
		t.Error("H6 must drop the heading bold")
	}
}

func TestMarkdownStyleCode(t *testing.T) {
	s := markdownStyle()

	if s.Code.Color == nil || *s.Code.Color == "" {
		t.Fatal("inline code has no color")
	}
	if s.CodeBlock.Color == nil {
		t.Fatal("code blocks have no color")
	}
	if got := s.CodeBlock.Theme; got != MarkdownCodeTheme() {
		t.Fatalf("code block theme = %q, want the configured %q", got, MarkdownCodeTheme())
	}
}

func TestConfigureMarkdownCodeThemeNormalization(t *testing.T) {
	orig := markdownCodeTheme
	t.Cleanup(func() { markdownCodeTheme = orig })

	cases := []struct {
		give string
		want string
	}{
		{"dracula", "dracula"},
		{"DrAcUlA", "dracula"},
		{"  github  ", "github"},
		{"not-a-real-theme", defaultCodeTheme},
		{"", defaultCodeTheme},
	}
	for _, tc := range cases {
		markdownCodeTheme = defaultCodeTheme
		ConfigureMarkdownCodeTheme(tc.give)
		if markdownCodeTheme != tc.want {
			t.Errorf("ConfigureMarkdownCodeTheme(%q): theme = %q, want %q", tc.give, markdownCodeTheme, tc.want)
		}
	}
}

func TestMarkdownStyleFollowsConfiguredTheme(t *testing.T) {
	orig := markdownCodeTheme
	t.Cleanup(func() { markdownCodeTheme = orig })

	ConfigureMarkdownCodeTheme("dracula")
	if got := markdownStyle().CodeBlock.Theme; got != "dracula" {
		t.Fatalf("style theme = %q after configuring dracula", got)
	}
}
