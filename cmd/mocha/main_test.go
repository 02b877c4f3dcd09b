package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thomasrohde/mocha/go/pkg/logging"
	"github.com/thomasrohde/mocha/go/pkg/runtime"
)

// isolate runs the test in an empty working and home directory with no
// MOCHA_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"MOCHA_LOG_LEVEL", "MOCHA_LOG_FORMAT", "MOCHA_HISTORY_FILE",
		"MOCHA_TIME_MS", "MOCHA_MAX_ITERATIONS", "MOCHA_MAX_CALL_DEPTH",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

// ---- run ----

func TestRun(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "hello.mocha", `say "hi"; [1, "a"]`)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default", []string{"run", path}, "hi\n[1, \"a\"]\n"},
		{"json", []string{"run", path, "--json"}, "hi\n[1,\"a\"]\n"},
		{"quiet", []string{"run", "-q", path}, "hi\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, "", tt.args...)
			if code != runtime.ExitOK {
				t.Fatalf("exit code %d, stderr: %s", code, errOut)
			}
			if out != tt.want {
				t.Errorf("stdout = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestRunFromStdin(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "1 to 3", "run", "-")
	if code != runtime.ExitOK || out != "[1, 2, 3]\n" {
		t.Errorf("code = %d, stdout = %q", code, out)
	}
}

func TestRunAskReadsStdin(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "ask.mocha", `name = ask "name? "; say "hi " + name`)
	code, out, _ := runCLI(t, "Ada\n", "run", "-q", path)
	if code != runtime.ExitOK || out != "name? hi Ada\n" {
		t.Errorf("code = %d, stdout = %q", code, out)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := isolate(t)
	tests := []struct {
		name    string
		src     string
		code    int
		errCode string
	}{
		{"ok", "1 + 1", runtime.ExitOK, ""},
		{"exit", `exit "bye"`, runtime.ExitOK, ""},
		{"lex", `"open`, runtime.ExitDiagnostic, "E_LEX"},
		{"parse", "1 +", runtime.ExitDiagnostic, "E_PARSE"},
		{"runtime", "1 / 0", runtime.ExitRuntime, "E_ZERO_DIV"},
		{"name", "missing", runtime.ExitRuntime, "E_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".mocha", tt.src)
			code, _, errOut := runCLI(t, "", "run", path)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.code, errOut)
			}
			if tt.errCode != "" && !strings.Contains(errOut, `"code":"`+tt.errCode+`"`) {
				t.Errorf("stderr %q does not contain %s", errOut, tt.errCode)
			}
		})
	}
}

func TestRunExitPrintsOperandOnly(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "exit.mocha", `say 1; exit "bye"; 2`)
	_, out, _ := runCLI(t, "", "run", path)
	if out != "1\nbye\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunPrettyDiagnostics(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "bad.mocha", "x = 1;\nx / true")
	_, _, errOut := runCLI(t, "", "run", "--pretty", path)
	want := "TypeError[E_TYPE]"
	if !strings.Contains(errOut, want) || !strings.Contains(errOut, path+":2:") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunMissingFile(t *testing.T) {
	isolate(t)
	code, _, errOut := runCLI(t, "", "run", "nope.mocha")
	if code != runtime.ExitUsage || !strings.Contains(errOut, "E_IO") {
		t.Errorf("code = %d, stderr = %q", code, errOut)
	}
}

func TestRunUsageErrors(t *testing.T) {
	isolate(t)
	tests := [][]string{
		{"run"},
		{"run", "a.mocha", "b.mocha"},
		{"run", "--json", "--quiet", "a.mocha"},
		{"run", "--watch", "-"},
		{"nosuch"},
	}
	for _, args := range tests {
		if code, _, _ := runCLI(t, "", args...); code != runtime.ExitUsage {
			t.Errorf("%v: exit code = %d, want %d", args, code, runtime.ExitUsage)
		}
	}
}

func TestRunBudgetFromConfig(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".mocha.yaml", "limits:\n  maxIterations: 5\n")
	path := writeFile(t, dir, "loop.mocha", "while true (1)")
	code, _, errOut := runCLI(t, "", "run", path)
	if code != runtime.ExitBudget || !strings.Contains(errOut, "E_BUDGET") {
		t.Errorf("code = %d, stderr = %q", code, errOut)
	}
}

func TestRunBudgetFromEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("MOCHA_MAX_CALL_DEPTH", "20")
	path := writeFile(t, dir, "deep.mocha", "f = fn (n) -> f(n + 1); f(0)")
	if code, _, errOut := runCLI(t, "", "run", path); code != runtime.ExitBudget {
		t.Errorf("code = %d, stderr = %q", code, errOut)
	}
}

func TestBadConfig(t *testing.T) {
	dir := isolate(t)
	cfg := writeFile(t, dir, "bad.yaml", "logging:\n  level: loud\n")
	path := writeFile(t, dir, "ok.mocha", "1")

	code, _, errOut := runCLI(t, "", "--config", cfg, "run", path)
	if code != runtime.ExitUsage || !strings.Contains(errOut, "E_CONFIG") {
		t.Errorf("code = %d, stderr = %q", code, errOut)
	}
	code, _, _ = runCLI(t, "", "--log-level", "loud", "run", path)
	if code != runtime.ExitUsage {
		t.Errorf("bad --log-level: code = %d", code)
	}
}

func TestRunDebugLogging(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "a.mocha", "1")
	_, _, errOut := runCLI(t, "", "--log-level", "debug", "--log-format", "json", "run", path)
	if !strings.Contains(errOut, `"msg":"evaluated"`) || !strings.Contains(errOut, `"run_id"`) {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRunTraceAndMetrics(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "t.mocha", "sq = fn (x) -> x * x; for i in [1, 2] (say sq(i))")
	traceFile := filepath.Join(dir, "out.jsonl")
	metricsFile := filepath.Join(dir, "mocha.prom")

	code, _, errOut := runCLI(t, "", "run", "-q", "--trace-out", traceFile, "--metrics-out", metricsFile, path)
	if code != runtime.ExitOK {
		t.Fatalf("code = %d, stderr = %q", code, errOut)
	}

	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `mocha_runs_total{status="ok"} 1`) {
		t.Errorf("metrics file:\n%s", prom)
	}

	code, out, _ := runCLI(t, "", "trace", "--text", traceFile)
	if code != runtime.ExitOK {
		t.Fatalf("trace exit code = %d", code)
	}
	for _, want := range []string{"Calls: 2", "Loops: 1", "Output: 2 say, 0 exit"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace text missing %q:\n%s", want, out)
		}
	}

	_, out, _ = runCLI(t, "", "trace", traceFile)
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"calls":2`) {
		t.Errorf("trace json = %q", out)
	}
}

func TestTraceUsage(t *testing.T) {
	isolate(t)
	if code, _, _ := runCLI(t, "", "trace", "missing.jsonl"); code != runtime.ExitUsage {
		t.Errorf("missing file: code = %d", code)
	}
	if code, _, _ := runCLI(t, "", "trace", "--json", "--text", "x.jsonl"); code != runtime.ExitUsage {
		t.Errorf("conflicting flags: code = %d", code)
	}
}

// ---- check ----

func TestCheck(t *testing.T) {
	dir := isolate(t)
	good := writeFile(t, dir, "good.mocha", "x = 1; say x")
	bad := writeFile(t, dir, "bad.mocha", "say y; f = fn (a, a) -> a")

	code, out, _ := runCLI(t, "", "check", good)
	if code != runtime.ExitOK || out != "[]\n" {
		t.Errorf("good: code = %d, stdout = %q", code, out)
	}
	_, out, _ = runCLI(t, "", "check", "--pretty", good)
	if out != "No errors found.\n" {
		t.Errorf("good --pretty: stdout = %q", out)
	}

	code, _, errOut := runCLI(t, "", "check", bad)
	if code != runtime.ExitDiagnostic {
		t.Errorf("bad: code = %d", code)
	}
	if !strings.Contains(errOut, "E_UNBOUND") || !strings.Contains(errOut, "E_DUP_PARAM") {
		t.Errorf("bad: stderr = %q", errOut)
	}
}

// ---- fmt ----

func TestFmt(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "f.mocha", "x=1;say x+2")

	code, out, _ := runCLI(t, "", "fmt", path)
	if code != runtime.ExitOK || out != "x = 1;\nsay x + 2\n" {
		t.Errorf("code = %d, stdout = %q", code, out)
	}

	code, out, _ = runCLI(t, "", "fmt", "--write", path)
	if code != runtime.ExitOK || out != "" {
		t.Errorf("--write: code = %d, stdout = %q", code, out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "x = 1;\nsay x + 2\n" {
		t.Errorf("file = %q", data)
	}
}

func TestFmtWarnsAboutComments(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "x = 1 # one\n", "fmt", "-")
	if code != runtime.ExitOK || out != "x = 1\n" {
		t.Errorf("code = %d, stdout = %q", code, out)
	}
	if !strings.Contains(errOut, "comments are not preserved") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestFmtErrors(t *testing.T) {
	isolate(t)
	if code, _, _ := runCLI(t, "(", "fmt", "-"); code != runtime.ExitDiagnostic {
		t.Errorf("parse error: code = %d", code)
	}
	if code, _, _ := runCLI(t, "1", "fmt", "--write", "-"); code != runtime.ExitUsage {
		t.Errorf("--write with stdin: code = %d", code)
	}
}

// ---- version ----

func TestVersionCommand(t *testing.T) {
	isolate(t)
	orig := Version
	Version = "9.9.9-test"
	t.Cleanup(func() { Version = orig })

	code, out, _ := runCLI(t, "", "version")
	if code != runtime.ExitOK || !strings.HasPrefix(out, "mocha 9.9.9-test\n") {
		t.Errorf("code = %d, stdout = %q", code, out)
	}
	if !strings.Contains(out, "Go Version: ") {
		t.Errorf("stdout = %q", out)
	}
}

// ---- repl ----

type scriptedLines struct {
	lines   []string
	prompts []string
	history []string
}

func (s *scriptedLines) Prompt(prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedLines) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func runREPL(t *testing.T, lines ...string) (code int, stdout, stderr string, sl *scriptedLines) {
	t.Helper()
	var out, errOut bytes.Buffer
	sl = &scriptedLines{lines: lines}
	session := runtime.New(runtime.WithOutput(&out)).NewSession()
	code = repl(context.Background(), sl, session, "mocha> ", &out, &errOut)
	return code, out.String(), errOut.String(), sl
}

func TestREPLPersistsBindings(t *testing.T) {
	code, out, errOut, sl := runREPL(t, "x = 40", "", "x + 2", "say x")
	if code != runtime.ExitOK {
		t.Fatalf("code = %d", code)
	}
	if out != "40\n42\n40\n40\n\n" {
		t.Errorf("stdout = %q", out)
	}
	if errOut != "" {
		t.Errorf("stderr = %q", errOut)
	}
	if len(sl.history) != 3 {
		t.Errorf("history = %q, blank lines are not recorded", sl.history)
	}
}

func TestREPLContinuesAfterErrors(t *testing.T) {
	_, out, errOut, _ := runREPL(t, "1 / 0", "nope", "1 )", "7")
	if out != "7\n\n" {
		t.Errorf("stdout = %q", out)
	}
	for _, want := range []string{"E_ZERO_DIV", "E_NAME", "E_PARSE"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("stderr missing %s: %q", want, errOut)
		}
	}
}

func TestREPLMultiLineEntry(t *testing.T) {
	_, out, _, sl := runREPL(t, "f = fn (n) -> (", "n * 2", ")", "f(21)")
	if !strings.HasSuffix(out, "42\n\n") {
		t.Errorf("stdout = %q", out)
	}
	if sl.prompts[1] != continuationPrompt || sl.prompts[2] != continuationPrompt {
		t.Errorf("prompts = %q", sl.prompts)
	}
	if sl.history[0] != "f = fn (n) -> ( n * 2 )" {
		t.Errorf("history = %q", sl.history)
	}
}

func TestREPLStopsOnExit(t *testing.T) {
	_, out, _, sl := runREPL(t, `exit "bye"`, "say 1")
	if out != "bye\n" {
		t.Errorf("stdout = %q", out)
	}
	if len(sl.lines) != 1 {
		t.Error("the line after exit should not be read")
	}
}

func TestREPLCommands(t *testing.T) {
	_, out, errOut, sl := runREPL(t, "a = 1", ":globals", ":what", ":quit", "2")
	if !strings.Contains(out, `{"a":1}`) {
		t.Errorf("stdout = %q", out)
	}
	if !strings.Contains(errOut, "unknown command") {
		t.Errorf("stderr = %q", errOut)
	}
	if len(sl.lines) != 1 {
		t.Error(":quit should end the session")
	}
}

func TestIncomplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 + 2", false},
		{"(1 + 2", true},
		{"x = ", true},
		{"f = fn (a) ->", true},
		{"[1, 2", true},
		{"1 )", false},
		{`"open`, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := incomplete(tt.src); got != tt.want {
			t.Errorf("incomplete(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

// ---- watch ----

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "w.mocha", "1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 20*time.Millisecond, logging.Discard(), func() {
			calls.Add(1)
			cancel()
		})
	}()

	// keep writing until the watcher has picked a change up
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for calls.Load() == 0 {
		select {
		case <-ctx.Done():
		case <-ticker.C:
			_ = os.WriteFile(path, []byte("2"), 0644)
			// an unrelated file in the same directory is ignored
			_ = os.WriteFile(filepath.Join(dir, "other.mocha"), []byte("3"), 0644)
			continue
		}
		break
	}

	if err := <-done; err != nil {
		t.Fatalf("watchFile: %v", err)
	}
	if calls.Load() == 0 {
		t.Error("onChange was never called")
	}
}

func TestWatchFileMissingDir(t *testing.T) {
	err := watchFile(context.Background(), filepath.Join(t.TempDir(), "no", "such.mocha"), time.Millisecond, logging.Discard(), func() {})
	if err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&exitError{code: 3, err: inner})
	if !errors.Is(err, inner) || err.Error() != "boom" {
		t.Errorf("err = %v", err)
	}
	if (&exitError{code: 4}).Error() != "exit status 4" {
		t.Error("nil inner error should describe the status")
	}
	if exitWith(runtime.ExitOK) != nil {
		t.Error("exitWith(0) should be nil")
	}
}
