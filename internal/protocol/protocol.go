// Package protocol defines how a structured result is carried back from the
// sandboxed process over its combined stdout/stderr stream, and the host-side
// parser that extracts it.
package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel delimits free-form program output from the JSON result block.
const Sentinel = "__LITEAGENT_RESULT_JSON__"

// Fixed filenames written into the shadow directory before each execution.
const (
	CodeFilename    = "_liteagent_code.py"
	WrapperFilename = "_liteagent_wrapper.py"
)

//go:embed wrapper.py
var wrapperScript string

// Result is the outcome of one code execution. Value is the deserialized
// result (may be nil), Logs the captured output or diagnostic text.
type Result struct {
	Value   any
	Logs    string
	Success bool
}

// WriteFiles places the submitted code and the wrapper script into dir under
// their fixed names.
func WriteFiles(dir, code string) error {
	if err := os.WriteFile(filepath.Join(dir, CodeFilename), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write code file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, WrapperFilename), []byte(wrapperScript), 0o644); err != nil {
		return fmt.Errorf("write wrapper file: %w", err)
	}
	return nil
}

// payload mirrors the JSON object the wrapper emits after the sentinel.
type payload struct {
	Success            bool   `json:"success"`
	Result             any    `json:"result"`
	Output             string `json:"output"`
	SerializationError string `json:"serialization_error"`
	Error              string `json:"error"`
	Traceback          string `json:"traceback"`
}

// Parse extracts a Result from the combined output of a wrapper run. If the
// sentinel never appeared (crash before the final print, or the timeout fired
// first) the whole output becomes the diagnostic log with Success=false.
// Text after the sentinel that is not valid JSON is preserved in the log for
// debugging rather than swallowed.
//
// The JSON block after the last sentinel occurrence wins, so user code that
// prints the sentinel itself cannot spoof the result.
func Parse(combined string) Result {
	marker := Sentinel + "\n"
	idx := strings.LastIndex(combined, marker)
	if idx < 0 {
		return Result{
			Logs:    "execution failed or timed out: " + combined,
			Success: false,
		}
	}
	trailing := combined[idx+len(marker):]

	// Decode a single JSON value; anything the engine appends to the stream
	// after the result block (stderr noise) must not break parsing.
	var p payload
	dec := json.NewDecoder(strings.NewReader(trailing))
	if err := dec.Decode(&p); err != nil {
		return Result{
			Logs:    "error decoding result JSON: " + trailing,
			Success: false,
		}
	}
	logs := p.Output
	if !p.Success && p.Traceback != "" && !strings.Contains(logs, p.Traceback) {
		logs += p.Traceback
	}
	return Result{
		Value:   p.Result,
		Logs:    logs,
		Success: p.Success,
	}
}
