// Package tool drives external command-line programs: the similarity
// searcher and the multiple-sequence aligner are both invoked through the
// same small capability set, grounded on the original ExternalTool/_execute
// pattern of running a child process, capturing its combined output, and
// leaving exit-code interpretation to the caller.
package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// ErrToolLaunch is returned when the external binary could not be started
// at all (missing, not executable, permission denied).
var ErrToolLaunch = errors.New("tool: launch error")

// Tool wraps invocation of a single external binary. Concrete search and
// alignment adapters (internal/searchtool, internal/aligntool) hold a
// *Tool and add their own argument-vector construction; they differ from
// each other only in the argument vectors they build, matching the spec's
// "small external tool capability set" design note.
type Tool struct {
	// Name is the token a version-probe line is expected to start with.
	Name string
	// Path is the binary to exec; defaults to Name if empty.
	Path string

	// limiter bounds how often this tool may be launched (a rate per
	// second with a burst allowance), protecting the host from a fork
	// burst when many workers dispatch jobs at once. It does not cap how
	// many instances run at the same time. A nil limiter means unlimited.
	limiter *rate.Limiter
}

// New returns a Tool for the given logical name and binary path.
// ratePerSec <= 0 means launches are never throttled.
func New(name, path string, ratePerSec float64, burst int) *Tool {
	t := &Tool{Name: name, Path: path}
	if t.Path == "" {
		t.Path = name
	}
	if ratePerSec > 0 {
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return t
}

// Run executes the tool with args, feeding stdin (may be nil), and returns
// the exit code and combined stdout+stderr. It never kills the process on
// non-zero exit; the caller classifies the outcome. A launch failure
// (binary missing, not executable) returns a wrapped ErrToolLaunch.
func (t *Tool) Run(ctx context.Context, args []string, stdin []byte) (exitCode int, output []byte, err error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return -1, nil, err
		}
	}

	// exec.Command, not CommandContext: cancelling ctx does not kill a
	// child that is already running.
	cmd := exec.Command(t.Path, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()
	if runErr == nil {
		return 0, combined.Bytes(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return exitErr.ExitCode(), combined.Bytes(), nil
	}

	return -1, combined.Bytes(), fmt.Errorf("%w: %s: %v", ErrToolLaunch, t.Path, runErr)
}

// Version invokes the tool with "-version" and parses the first output
// line that starts with t.Name: the last whitespace-delimited token on
// that line, with exactly one trailing rune stripped regardless of what
// it is (matching v[:-1] in the original), is the version string.
func (t *Tool) Version(ctx context.Context) (string, error) {
	_, output, err := t.Run(ctx, []string{"-version"}, nil)
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.HasPrefix(line, t.Name) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		last := fields[len(fields)-1]
		if last == "" {
			return last, nil
		}
		_, size := utf8.DecodeLastRuneInString(last)
		return last[:len(last)-size], nil
	}

	return "", fmt.Errorf("tool: could not parse version of %s", t.Name)
}
