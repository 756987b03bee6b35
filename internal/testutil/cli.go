package testutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

// The binary is compiled once per test process and shared; a failed
// build is remembered so every test does not retry it.
var (
	buildMu    sync.Mutex
	binaryPath string
	buildFail  error
)

// CLIResult is the decoded envelope from one binary invocation.
type CLIResult struct {
	OK       bool
	Data     map[string]interface{}
	Error    *CLIError
	Warnings []CLIWarning
	Meta     *CLIMeta
	RawJSON  string
	Stderr   string
	ExitCode int
}

// CLIError mirrors the error half of the CLI's JSON envelope.
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// CLIWarning mirrors one warning entry.
type CLIWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CLIMeta mirrors the envelope metadata.
type CLIMeta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// BuildCLI compiles the cohort binary and returns its path. Safe for
// concurrent use; later calls reuse the cached binary.
func BuildCLI(t *testing.T) string {
	t.Helper()

	buildMu.Lock()
	defer buildMu.Unlock()

	if buildFail != nil {
		t.Fatalf("building cohort binary: %v", buildFail)
	}
	if binaryPath != "" {
		// Some Windows runners clean temp dirs mid-run; rebuild then.
		if _, err := os.Stat(binaryPath); err == nil {
			return binaryPath
		}
		binaryPath = ""
	}

	path, err := buildBinary()
	if err != nil {
		buildFail = err
		t.Fatalf("building cohort binary: %v", err)
	}
	binaryPath = path
	return path
}

func buildBinary() (string, error) {
	root, err := moduleRoot()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "cohort-bin-*")
	if err != nil {
		return "", err
	}

	name := "cohort"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	out := filepath.Join(dir, name)

	cmd := exec.Command("go", "build", "-o", out, "./cmd/cohort")
	cmd.Dir = root
	if msg, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("go build: %w\n%s", err, msg)
	}
	return out, nil
}

// moduleRoot walks up from the working directory to the go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("no go.mod above working directory")
		}
		dir = parent
	}
}

// RunCLI runs one cohort command against the dataset with --json and
// the dataset's config. Stdout and stderr stay separate so warnings on
// stderr cannot corrupt the JSON envelope.
func (d *TestDataset) RunCLI(args ...string) *CLIResult {
	d.t.Helper()

	binary := BuildCLI(d.t)
	full := append([]string{"--config", d.ConfigPath, "--json"}, args...)

	cmd := exec.Command(binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	res := parseEnvelope(stdout.Bytes())
	res.Stderr = stderr.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
	}
	return res
}

// parseEnvelope decodes the CLI's JSON envelope. Undecodable output is
// reported as a synthetic PARSE_ERROR so assertions still have a code
// to match against.
func parseEnvelope(raw []byte) *CLIResult {
	res := &CLIResult{RawJSON: string(raw)}

	var resp struct {
		OK       bool                   `json:"ok"`
		Data     map[string]interface{} `json:"data"`
		Error    *CLIError              `json:"error"`
		Warnings []CLIWarning           `json:"warnings"`
		Meta     *CLIMeta               `json:"meta"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		res.Error = &CLIError{
			Code:    "PARSE_ERROR",
			Message: "not a JSON envelope: " + err.Error(),
			Details: map[string]interface{}{"raw": string(raw)},
		}
		return res
	}

	res.OK = resp.OK
	res.Data = resp.Data
	res.Error = resp.Error
	res.Warnings = resp.Warnings
	res.Meta = resp.Meta
	return res
}

// MustSucceed fails the test unless the command reported ok=true.
func (r *CLIResult) MustSucceed(t *testing.T) *CLIResult {
	t.Helper()
	if r.OK {
		return r
	}
	msg := "no error payload"
	if r.Error != nil {
		msg = r.Error.Code + ": " + r.Error.Message
	}
	t.Fatalf("command failed: %s\nraw: %s\nstderr: %s", msg, r.RawJSON, r.Stderr)
	return r
}

// MustFail fails the test unless the command reported the given error code.
func (r *CLIResult) MustFail(t *testing.T, code string) *CLIResult {
	t.Helper()
	if r.OK {
		t.Fatalf("command succeeded, wanted error %s\nraw: %s", code, r.RawJSON)
	}
	if r.Error == nil {
		t.Fatalf("command failed without an error payload, wanted %s\nraw: %s", code, r.RawJSON)
	}
	if r.Error.Code != code {
		t.Fatalf("error code = %s (%s), want %s", r.Error.Code, r.Error.Message, code)
	}
	return r
}

func dataAs[T any](r *CLIResult, key string) T {
	var zero T
	if r.Data == nil {
		return zero
	}
	if v, ok := r.Data[key].(T); ok {
		return v
	}
	return zero
}

// DataString returns a string field from Data, or "" when absent.
func (r *CLIResult) DataString(key string) string { return dataAs[string](r, key) }

// DataNumber returns a numeric field from Data. JSON numbers decode as
// float64.
func (r *CLIResult) DataNumber(key string) float64 { return dataAs[float64](r, key) }

// DataBool returns a boolean field from Data, or false when absent.
func (r *CLIResult) DataBool(key string) bool { return dataAs[bool](r, key) }

// DataList returns a list field from Data, or nil when absent.
func (r *CLIResult) DataList(key string) []interface{} { return dataAs[[]interface{}](r, key) }
