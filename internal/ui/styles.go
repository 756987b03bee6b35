package ui

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
// - Default (white/black): primary text
// - Accent (soft purple #A78BFA): highlights, paths, table names
// - Muted (gray): secondary info, hints, null cells
// - No colored success/error/warning - use unicode symbols only

// defaultAccent is the accent color used when the config does not
// override it.
const defaultAccent = "#A78BFA"

var (
	// Accent style for file paths, table names, highlights
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent))

	// Muted style for secondary info, hints, null cells
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// AccentBold combines accent color with bold
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent)).Bold(true)
)

// defaultCodeTheme is the chroma theme for fenced code blocks when the
// config does not pick one.
const defaultCodeTheme = "monokai"

var (
	accentColor       = defaultAccent
	accentEnabled     = true
	markdownCodeTheme = defaultCodeTheme
)

// normalizeAccentColor validates a configured accent color. It accepts
// 6 or 3 digit hex colors (3 digit forms are expanded) and ANSI 256
// codes. "none", "off", and "default" disable the accent.
func normalizeAccentColor(raw string) (string, bool) {
	color := strings.TrimSpace(raw)
	switch strings.ToLower(color) {
	case "", "none", "off", "default":
		return "", false
	}

	if strings.HasPrefix(color, "#") {
		hex := color[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return "", false
		}
		for _, c := range hex {
			if !isHexDigit(byte(c)) {
				return "", false
			}
		}
		return "#" + strings.ToLower(hex), true
	}

	if n, err := strconv.Atoi(color); err == nil && n >= 0 && n <= 255 {
		return strconv.Itoa(n), true
	}
	return "", false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ConfigureTheme overrides the accent color for all styled output.
// "none", "off", and "default" disable accent coloring entirely;
// unrecognized values are ignored so a typo in the config cannot break
// every command.
func ConfigureTheme(color string) {
	trimmed := strings.TrimSpace(color)
	if trimmed == "" {
		return
	}
	normalized, ok := normalizeAccentColor(trimmed)
	if !ok {
		switch strings.ToLower(trimmed) {
		case "none", "off", "default":
			accentEnabled = false
			Accent = lipgloss.NewStyle()
			AccentBold = lipgloss.NewStyle().Bold(true)
		}
		return
	}
	accentColor = normalized
	accentEnabled = true
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(normalized))
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color(normalized)).Bold(true)
}

// AccentColor returns the active accent color and whether accent
// coloring is enabled.
func AccentColor() (string, bool) {
	if !accentEnabled {
		return "", false
	}
	return accentColor, true
}

// ConfigureMarkdownCodeTheme selects the chroma theme used for fenced
// code blocks in rendered markdown. Theme names are case insensitive;
// unknown names fall back to the default theme.
func ConfigureMarkdownCodeTheme(theme string) {
	normalized := strings.ToLower(strings.TrimSpace(theme))
	if normalized == "" {
		return
	}
	if styles.Get(normalized) == styles.Fallback && normalized != "fallback" {
		markdownCodeTheme = defaultCodeTheme
		return
	}
	markdownCodeTheme = normalized
}

// MarkdownCodeTheme returns the chroma theme for fenced code blocks.
func MarkdownCodeTheme() string {
	return markdownCodeTheme
}
