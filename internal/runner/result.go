package runner

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Result holds the outcome of one tool invocation.
//
// Stdout is not held in memory: it lives in the file at OutputPath and is
// read again on every call to Stdout, so a caller can poll a file that is
// still being written. Once the orchestrator has cleaned up, Stdout returns
// the empty string.
//
// Success means the process was started and ran to completion, whatever its
// exit code. Tools that report findings usually exit non-zero.
type Result struct {
	RunID      string        // unique identifier for this invocation
	Name       string        // tool name
	Command    string        // command after environment expansion
	OutputPath string        // file holding stdout, "" when none was created
	Stderr     string        // captured stderr (may be truncated)
	ExitCode   int           // process exit code, -1 when it did not exit normally
	Success    bool          // process launched and completed
	Duration   time.Duration // wall time of the invocation
	Error      string        // failure description when !Success
	TimedOut   bool
	NotFound   bool

	logger *slog.Logger

	jsonOnce sync.Once
	isJSON   bool
	jsonErr  string
}

// Stdout reads the captured output from disk. Invalid UTF-8 is replaced
// with U+FFFD. A missing file reads as empty.
func (r *Result) Stdout() string {
	if r.OutputPath == "" {
		return ""
	}
	b, err := os.ReadFile(r.OutputPath)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(b), "�")
}

// HasOutput reports whether stdout or stderr contains anything besides
// whitespace.
func (r *Result) HasOutput() bool {
	return strings.TrimSpace(r.Stdout()) != "" || strings.TrimSpace(r.Stderr) != ""
}

// IsJSON reports whether stdout parses as a JSON document. The answer is
// computed on first use and cached for the life of the result.
func (r *Result) IsJSON() bool {
	r.checkJSON()
	return r.isJSON
}

// JSONParseError returns the parse error recorded by IsJSON, or "" when the
// output is valid JSON or empty.
func (r *Result) JSONParseError() string {
	r.checkJSON()
	return r.jsonErr
}

func (r *Result) checkJSON() {
	r.jsonOnce.Do(func() {
		out := strings.TrimSpace(r.Stdout())
		if out == "" {
			return
		}
		if json.Valid([]byte(out)) {
			r.isJSON = true
			return
		}
		var v any
		if err := json.Unmarshal([]byte(out), &v); err != nil {
			r.jsonErr = err.Error()
		} else {
			r.jsonErr = "invalid JSON"
		}
		r.log().Warn("tool output is not valid JSON",
			"tool", r.Name, "error", r.jsonErr, "output", preview(out, 100))
	})
}

// Map returns the result as a plain map. stdout is read at call time.
func (r *Result) Map() map[string]any {
	return map[string]any{
		"run_id":           r.RunID,
		"name":             r.Name,
		"command":          r.Command,
		"stdout":           r.Stdout(),
		"stderr":           r.Stderr,
		"exit_code":        r.ExitCode,
		"success":          r.Success,
		"duration_seconds": r.Duration.Seconds(),
		"error_message":    nullable(r.Error),
		"timed_out":        r.TimedOut,
		"tool_not_found":   r.NotFound,
		"is_json_output":   r.IsJSON(),
		"json_parse_error": nullable(r.JSONParseError()),
	}
}

// MarshalJSON encodes the map returned by Map.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Status returns a one-word description of how the invocation ended.
func (r *Result) Status() string {
	switch {
	case r.Success:
		return "completed"
	case r.TimedOut:
		return "timed out"
	case r.NotFound:
		return "not found"
	default:
		return "failed"
	}
}

func (r *Result) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// preview returns the first n runes of s, with "..." appended when s was
// longer.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
