package db

import (
	"fmt"
	"regexp"
)

// QueryError wraps an execution failure. Its message is safe for the UI
// boundary: absolute paths from engine errors are reduced to base names and
// no SQL text or bound values are included.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed (%s): %s", e.Op, SanitizeMessage(e.Err.Error()))
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// absPathPattern matches unix-style absolute paths with at least two
// segments, the shape DuckDB IO errors embed.
var absPathPattern = regexp.MustCompile(`(?:/[\w.~-]+){2,}`)

// SanitizeMessage strips absolute path prefixes from an engine error
// message, keeping only the final path segment.
func SanitizeMessage(msg string) string {
	return absPathPattern.ReplaceAllStringFunc(msg, func(match string) string {
		for i := len(match) - 1; i >= 0; i-- {
			if match[i] == '/' {
				return match[i+1:]
			}
		}
		return match
	})
}
