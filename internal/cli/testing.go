package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI provides a clean interface for running mcache in tests.
// It manages a temp directory and environment variables.
type CLI struct {
	t   *testing.T
	Dir string
	Env map[string]string
}

// NewCLI creates a new test CLI with a temp directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{
		t:   t,
		Dir: t.TempDir(),
		Env: map[string]string{},
	}
}

// Run executes mcache with the given args and returns stdout, stderr, and exit code.
// Args should not include "mcache" or "--cwd" - those are added automatically.
func (r *CLI) Run(args ...string) (string, string, int) {
	return r.run(nil, args)
}

// RunScript feeds script to mcache on stdin.
func (r *CLI) RunScript(script string, args ...string) (string, string, int) {
	return r.run(strings.NewReader(script), args)
}

func (r *CLI) run(stdin io.Reader, args []string) (string, string, int) {
	var outBuf, errBuf bytes.Buffer

	fullArgs := append([]string{"mcache", "--cwd", r.Dir}, args...)
	code := Run(stdin, &outBuf, &errBuf, fullArgs, r.Env, nil)

	return outBuf.String(), errBuf.String(), code
}

// MustRunScript runs script and fails the test on a non-zero exit code or
// any stderr output. Returns stdout.
func (r *CLI) MustRunScript(script string, args ...string) string {
	r.t.Helper()

	stdout, stderr, code := r.RunScript(script, args...)
	if code != 0 || stderr != "" {
		r.t.Fatalf("script failed with exit code %d\nscript:\n%s\nstderr: %s", code, script, stderr)
	}

	return stdout
}

// WriteFile writes content to a file relative to the CLI directory.
func (r *CLI) WriteFile(name, content string) string {
	r.t.Helper()

	path := filepath.Join(r.Dir, name)

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		r.t.Fatalf("failed to create dir for %s: %v", name, err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		r.t.Fatalf("failed to write %s: %v", name, err)
	}

	return path
}

// AssertContains fails the test if content doesn't contain substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("content should contain %q\ncontent:\n%s", substr, content)
	}
}

// AssertNotContains fails the test if content contains substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("content should NOT contain %q\ncontent:\n%s", substr, content)
	}
}
