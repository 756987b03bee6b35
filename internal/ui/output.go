package ui

import "fmt"

// Status symbols prefixed to one-line command output.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
)

func tagged(symbol, msg string) string { return symbol + " " + msg }

// Success marks msg with a checkmark.
func Success(msg string) string { return tagged(SymbolSuccess, msg) }

// Successf is Success with Sprintf formatting.
func Successf(format string, args ...interface{}) string {
	return Success(fmt.Sprintf(format, args...))
}

// Check marks msg with a bold checkmark. Used for the completion line
// after long-running operations.
func Check(msg string) string { return tagged(Bold.Render(SymbolSuccess), msg) }

// Checkf is Check with Sprintf formatting.
func Checkf(format string, args ...interface{}) string {
	return Check(fmt.Sprintf(format, args...))
}

// Error marks msg with an X.
func Error(msg string) string { return tagged(SymbolError, msg) }

// Errorf is Error with Sprintf formatting.
func Errorf(format string, args ...interface{}) string {
	return Error(fmt.Sprintf(format, args...))
}

// Warning marks msg with a warning sign.
func Warning(msg string) string { return tagged(SymbolWarning, msg) }

// Warningf is Warning with Sprintf formatting.
func Warningf(format string, args ...interface{}) string {
	return Warning(fmt.Sprintf(format, args...))
}

// Info marks msg with an info sign.
func Info(msg string) string { return tagged(SymbolInfo, msg) }

// Infof is Info with Sprintf formatting.
func Infof(format string, args ...interface{}) string {
	return Info(fmt.Sprintf(format, args...))
}

// Header renders a bold section header.
func Header(msg string) string { return Bold.Render(msg) }

// FilePath renders a file path in the accent color.
func FilePath(path string) string { return Accent.Render(path) }

// TableName renders a table name in the accent color.
func TableName(name string) string { return Accent.Render(name) }

// Hint renders muted hint text.
func Hint(msg string) string { return Muted.Render(msg) }

// Count renders a parenthesized count like "(3 tables)", choosing the
// plural form by n.
func Count(n int, singular, plural string) string {
	word := plural
	if n == 1 {
		word = singular
	}
	return fmt.Sprintf("(%d %s)", n, word)
}

// Pluralize appends "s" to singular unless count is exactly one.
func Pluralize(singular string, count int) string {
	if count == 1 {
		return singular
	}
	return singular + "s"
}
