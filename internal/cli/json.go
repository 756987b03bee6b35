package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// jsonOutput is bound to the global --json flag.
var jsonOutput bool

// envelope is the JSON shape every command emits in --json mode.
// Exactly one of Data or Error is set.
type envelope struct {
	OK       bool          `json:"ok"`
	Data     interface{}   `json:"data,omitempty"`
	Error    *commandError `json:"error,omitempty"`
	Warnings []Warning     `json:"warnings,omitempty"`
	Meta     *Meta         `json:"meta,omitempty"`
}

type commandError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Warning is a non-fatal note attached to a successful response, such
// as a filter skipped because its column is missing from the schema.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries response metadata.
type Meta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// timedMeta builds metadata for a response measured from start. A zero
// count is omitted from the JSON.
func timedMeta(start time.Time, count int) *Meta {
	return &Meta{Count: count, QueryTimeMs: time.Since(start).Milliseconds()}
}

// emitEnvelope resolves os.Stdout at call time so tests that swap the
// file descriptor capture the output.
func emitEnvelope(resp envelope) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

// outputSuccess emits a success envelope. data may be nil for
// acknowledgement-only commands.
func outputSuccess(data interface{}, meta *Meta) {
	outputSuccessWithWarnings(data, nil, meta)
}

func outputSuccessWithWarnings(data interface{}, warnings []Warning, meta *Meta) {
	emitEnvelope(envelope{OK: true, Data: data, Warnings: warnings, Meta: meta})
}

// isJSONOutput reports whether --json is in effect.
func isJSONOutput() bool {
	return jsonOutput
}

// handleError resolves a command error for the active output mode. In
// JSON mode the error envelope is emitted here and nil is returned so
// cobra does not print a second copy; in text mode the original error
// propagates unchanged.
func handleError(code string, err error, suggestion string) error {
	if jsonOutput {
		return handleErrorWithDetails(code, err.Error(), suggestion, nil)
	}
	return err
}

// handleErrorMsg is handleError for errors that exist only as text.
func handleErrorMsg(code, message, suggestion string) error {
	return handleErrorWithDetails(code, message, suggestion, nil)
}

func handleErrorWithDetails(code, message, suggestion string, details interface{}) error {
	if !jsonOutput {
		return fmt.Errorf("%s", message)
	}
	emitEnvelope(envelope{OK: false, Error: &commandError{
		Code:       code,
		Message:    message,
		Details:    details,
		Suggestion: suggestion,
	}})
	return nil
}
