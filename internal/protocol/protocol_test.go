package protocol

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseValidResult(t *testing.T) {
	combined := "some program chatter\n" +
		Sentinel + "\n" +
		`{"success": true, "result": 42, "output": "hello\n"}` + "\n"

	res := Parse(combined)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if got, ok := res.Value.(float64); !ok || got != 42 {
		t.Fatalf("expected result 42, got %v (%T)", res.Value, res.Value)
	}
	if res.Logs != "hello\n" {
		t.Fatalf("expected output logs, got %q", res.Logs)
	}
}

func TestParseFailureResultCarriesTraceback(t *testing.T) {
	combined := Sentinel + "\n" +
		`{"success": false, "error": "boom", "traceback": "Traceback (most recent call last):\nValueError: boom", "output": ""}`

	res := Parse(combined)
	if res.Success {
		t.Fatalf("expected failure result")
	}
	if !strings.Contains(res.Logs, "Traceback") {
		t.Fatalf("expected traceback in logs, got %q", res.Logs)
	}
}

func TestParseMissingSentinel(t *testing.T) {
	combined := "partial output before the process was killed"
	res := Parse(combined)
	if res.Success {
		t.Fatalf("expected failure when sentinel is absent")
	}
	if res.Value != nil {
		t.Fatalf("expected nil value, got %v", res.Value)
	}
	if !strings.Contains(res.Logs, combined) {
		t.Fatalf("expected raw output preserved in logs, got %q", res.Logs)
	}
}

func TestParseInvalidJSONAfterSentinel(t *testing.T) {
	trailing := `{"success": true, "result":` // truncated
	res := Parse("noise\n" + Sentinel + "\n" + trailing)
	if res.Success {
		t.Fatalf("expected failure for truncated JSON")
	}
	if !strings.Contains(res.Logs, trailing) {
		t.Fatalf("expected offending trailing text in logs, got %q", res.Logs)
	}
}

func TestParseUsesLastSentinelOccurrence(t *testing.T) {
	combined := Sentinel + "\n" +
		`{"success": false, "error": "spoofed"}` + "\n" +
		Sentinel + "\n" +
		`{"success": true, "result": "real", "output": "ok"}` + "\n"

	res := Parse(combined)
	if !res.Success {
		t.Fatalf("expected last result block to win, got %+v", res)
	}
	if res.Value != "real" {
		t.Fatalf("expected real result, got %v", res.Value)
	}
}

func TestParseIgnoresStreamNoiseAfterResultBlock(t *testing.T) {
	combined := Sentinel + "\n" +
		`{"success": true, "result": 1, "output": ""}` + "\n" +
		"WARN engine: config file not found\n"

	res := Parse(combined)
	if !res.Success {
		t.Fatalf("expected success despite trailing engine noise, got %+v", res)
	}
}

func TestParseNullResult(t *testing.T) {
	res := Parse(Sentinel + "\n" + `{"success": true, "result": null, "output": "done\n"}`)
	if !res.Success || res.Value != nil {
		t.Fatalf("expected success with nil value, got %+v", res)
	}
}

func TestParseSerializationFallbackPayload(t *testing.T) {
	res := Parse(Sentinel + "\n" +
		`{"success": true, "result": "{1, 2, 3}", "output": "", "serialization_error": "Object of type set is not JSON serializable"}`)
	if !res.Success {
		t.Fatalf("a coerced result is still a successful execution, got %+v", res)
	}
	if got, ok := res.Value.(string); !ok || got != "{1, 2, 3}" {
		t.Fatalf("expected stringified result, got %v (%T)", res.Value, res.Value)
	}
}

// Runs the real wrapper under a host python. Results that json cannot
// serialize must be coerced to their string form, not reported as failures;
// python raises TypeError for unserializable types but ValueError for
// circular references, and both take the coercion path.
func TestWrapperCoercesUnserializableResults(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not in PATH")
	}

	cases := []struct {
		name string
		code string
		want string
	}{
		{"unserializable type", "_liteagent_result = {1, 2, 3}", "{1, 2, 3}"},
		{"circular reference", "x = []\nx.append(x)\n_liteagent_result = x", "[[...]]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := WriteFiles(dir, tc.code); err != nil {
				t.Fatalf("write files: %v", err)
			}
			cmd := exec.Command(python, WrapperFilename)
			cmd.Dir = dir
			out, err := cmd.CombinedOutput()
			if err != nil {
				t.Fatalf("run wrapper: %v\n%s", err, out)
			}

			res := Parse(string(out))
			if !res.Success {
				t.Fatalf("expected success with coerced result, got %+v", res)
			}
			if got, ok := res.Value.(string); !ok || got != tc.want {
				t.Fatalf("expected coerced result %q, got %v (%T)", tc.want, res.Value, res.Value)
			}
		})
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFiles(dir, "_liteagent_result = 42\n"); err != nil {
		t.Fatalf("write files: %v", err)
	}

	code, err := os.ReadFile(filepath.Join(dir, CodeFilename))
	if err != nil {
		t.Fatalf("read code file: %v", err)
	}
	if string(code) != "_liteagent_result = 42\n" {
		t.Fatalf("code file content mismatch: %q", code)
	}

	wrapper, err := os.ReadFile(filepath.Join(dir, WrapperFilename))
	if err != nil {
		t.Fatalf("read wrapper file: %v", err)
	}
	for _, needle := range []string{Sentinel, CodeFilename, "_liteagent_result"} {
		if !strings.Contains(string(wrapper), needle) {
			t.Fatalf("wrapper script missing %q", needle)
		}
	}
}
