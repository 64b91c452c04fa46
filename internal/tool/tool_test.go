package tool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()
	path := writeScript(t, "echo hello; exit 0")
	tl := New("fake", path, 0, 0)

	code, out, err := tl.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if string(out) != "hello\n" {
		t.Errorf("output = %q, want %q", out, "hello\n")
	}
}

func TestRunNonZeroExitIsNotFatal(t *testing.T) {
	t.Parallel()
	path := writeScript(t, "echo oops 1>&2; exit 7")
	tl := New("fake", path, 0, 0)

	code, out, err := tl.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run() should not error on nonzero exit, got: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
	if string(out) != "oops\n" {
		t.Errorf("output = %q, want %q", out, "oops\n")
	}
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()
	tl := New("fake", filepath.Join(t.TempDir(), "does-not-exist"), 0, 0)

	_, _, err := tl.Run(context.Background(), nil, nil)
	if !errors.Is(err, ErrToolLaunch) {
		t.Errorf("Run() error = %v, want ErrToolLaunch", err)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()
	path := writeScript(t, `echo "some noise"
echo "fake-tool version 2.3.4."
exit 0`)
	tl := New("fake-tool", path, 0, 0)

	v, err := tl.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != "2.3.4" {
		t.Errorf("Version() = %q, want %q", v, "2.3.4")
	}
}

func TestVersionUnparseable(t *testing.T) {
	t.Parallel()
	path := writeScript(t, "echo nothing useful; exit 0")
	tl := New("fake-tool", path, 0, 0)

	if _, err := tl.Version(context.Background()); err == nil {
		t.Error("Version() should error when no matching line is found")
	}
}

func TestRunStdin(t *testing.T) {
	t.Parallel()
	path := writeScript(t, "cat")
	tl := New("fake", path, 0, 0)

	_, out, err := tl.Run(context.Background(), nil, []byte("piped in"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if string(out) != "piped in" {
		t.Errorf("output = %q, want %q", out, "piped in")
	}
}
