// Package aligntool drives the external multiple-sequence alignment
// tool (pagan-shaped): invoked once per gene-family file, producing the
// six fixed-suffix outputs internal/cache.AlignmentSuffixes names. A
// nonzero exit marks the whole family FAIL (spec §4.F stage 4); the
// tool is never retried automatically within one run.
package aligntool

import (
	"context"
	"fmt"
	"os"

	"github.com/jra3/glutton/internal/cache"
	"github.com/jra3/glutton/internal/tool"
)

// Aligner runs the configured alignment tool against one family file at
// a time.
type Aligner struct {
	t *tool.Tool
}

// New wraps an already-constructed tool.Tool as an Aligner.
func New(t *tool.Tool) *Aligner {
	return &Aligner{t: t}
}

// Output is one of the six fixed alignment artifacts produced for a
// family, read back from disk after a successful run.
type Output struct {
	Suffix  string
	Content []byte
}

// Run invokes the alignment tool on familyFile (expected to already be
// on disk, e.g. under the cache directory) and, on a zero exit, reads
// back all six suffixed output files it produced alongside it.
func (a *Aligner) Run(ctx context.Context, familyFile string) (outputs []Output, exitCode int, err error) {
	exitCode, _, err = a.t.Run(ctx, []string{familyFile}, nil)
	if err != nil {
		return nil, exitCode, err
	}
	if exitCode != 0 {
		return nil, exitCode, nil
	}

	outputs = make([]Output, 0, len(cache.AlignmentSuffixes))
	for _, suf := range cache.AlignmentSuffixes {
		content, err := os.ReadFile(familyFile + suf)
		if err != nil {
			return nil, exitCode, fmt.Errorf("aligntool: read output %s: %w", suf, err)
		}
		outputs = append(outputs, Output{Suffix: suf, Content: content})
	}
	return outputs, exitCode, nil
}
