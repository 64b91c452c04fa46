// Package searchtool drives the external similarity-search tool
// (blastx-shaped): invoke the tool on an already-written query FASTA
// against the reference database, and parse its six-column tabular hit file into
// the best hit per query. Grounded directly on
// original_source/glutton/blast.py's Blast.run and its
// four-whitespace-field hit parsing (contig, gene, identity, length),
// including the warn-and-skip behavior on malformed lines.
package searchtool

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jra3/glutton/internal/tool"
)

// Hit is one parsed line of the search tool's tabular output: the
// query id, the best-matching gene id, percent identity, and alignment
// length. Further columns the tool may emit are ignored.
type Hit struct {
	QueryID  string
	GeneID   string
	Identity float64
	Length   int
}

// Searcher runs the configured search tool and parses its results.
type Searcher struct {
	t *tool.Tool
}

// New wraps an already-constructed tool.Tool as a Searcher.
func New(t *tool.Tool) *Searcher {
	return &Searcher{t: t}
}

// Run invokes the search tool as
// "-query queryFASTA -db dbPath -out outPath -max_target_seqs 1 -outfmt 6"
// and parses outPath afterward, regardless of the tool's exit code
// (spec §4.B: the caller classifies, the driver never does).
func (s *Searcher) Run(ctx context.Context, queryFASTA, dbPath, outPath string) ([]Hit, int, error) {
	args := []string{
		"-query", queryFASTA,
		"-db", dbPath,
		"-out", outPath,
		"-max_target_seqs", "1",
		"-outfmt", "6",
	}

	exitCode, _, err := s.t.Run(ctx, args, nil)
	if err != nil {
		return nil, exitCode, err
	}

	hits, err := parseHitFile(outPath)
	if err != nil {
		return nil, exitCode, err
	}
	return hits, exitCode, nil
}

func parseHitFile(path string) ([]Hit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("searchtool: open hit file: %w", err)
	}
	defer f.Close()

	var hits []Hit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			log.Printf("[searchtool] bad hit line (too few fields): %q", line)
			continue
		}

		identity, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			log.Printf("[searchtool] bad hit line (identity): %q", line)
			continue
		}
		length, err := strconv.Atoi(fields[3])
		if err != nil {
			log.Printf("[searchtool] bad hit line (length): %q", line)
			continue
		}

		hits = append(hits, Hit{
			QueryID:  fields[0],
			GeneID:   fields[1],
			Identity: identity,
			Length:   length,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("searchtool: scan hit file: %w", err)
	}
	return hits, nil
}

// BestHits reduces a hit list to the first (hence best, per the tool's
// own ranking) hit per query id.
func BestHits(hits []Hit) map[string]string {
	best := map[string]string{}
	for _, h := range hits {
		if _, seen := best[h.QueryID]; seen {
			continue
		}
		best[h.QueryID] = h.GeneID
	}
	return best
}
