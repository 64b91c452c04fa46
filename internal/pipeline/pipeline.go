// Package pipeline implements the coordinator: the component that
// stages a run through identifier minting, similarity search, family
// grouping, alignment dispatch, and a final completion check (spec
// §4.F). It is grounded on the relationship between
// original_source/glutton/info.py (state) and
// original_source/glutton/queue.py plus blast.py (work execution),
// restructured into a single type whose Run method executes the five
// stages in order and skips any stage with no pending work.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/jra3/glutton/internal/aligntool"
	"github.com/jra3/glutton/internal/cache"
	"github.com/jra3/glutton/internal/progress"
	"github.com/jra3/glutton/internal/queue"
	"github.com/jra3/glutton/internal/refdb"
	"github.com/jra3/glutton/internal/searchtool"
	"github.com/jra3/glutton/pkg/fasta"
)

// InputFile names one input contig file for a run.
type InputFile struct {
	Path    string
	Label   string
	Species string
}

// Result is the stage-5 barrier report (spec §4.F stage 5).
type Result struct {
	Completed   int
	Failed      int
	Outstanding int
}

// Done reports whether every known family has a recorded outcome.
func (r Result) Done() bool { return r.Outstanding == 0 }

// Coordinator ties together the progress store, the family cache, the
// reference database, the search and alignment tool adapters, and the
// worker pool that runs them.
type Coordinator struct {
	Store  *progress.Store
	Cache  *cache.Cache
	DB     refdb.Adapter
	Search *searchtool.Searcher
	Align  *aligntool.Aligner

	// WorkDir holds the transient query FASTA and hit file for the
	// search stage; it is not part of the persistent progress state.
	WorkDir string
	// SearchDBPath is passed to the search tool's -db argument.
	SearchDBPath string

	Workers      int
	MaxQueueSize int

	querySequence map[string]fasta.Record
}

// Run executes stages 1-5 against inputs, skipping any stage with no
// pending work, and returns the stage-5 completion report.
func (co *Coordinator) Run(ctx context.Context, inputs []InputFile) (Result, error) {
	descriptors, err := co.checkParams(inputs)
	if err != nil {
		return Result{}, co.flushAnd(err)
	}
	if err := co.ingest(inputs, descriptors); err != nil {
		return Result{}, co.flushAnd(err)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, co.flushAnd(err)
	}
	if pending := co.Store.PendingQueries(); len(pending) > 0 {
		if err := co.search(ctx, pending); err != nil {
			return Result{}, co.flushAnd(err)
		}
	} else {
		log.Printf("[pipeline] no pending queries, skipping search stage")
	}

	if err := ctx.Err(); err != nil {
		return Result{}, co.flushAnd(err)
	}
	groups := co.Store.FamiliesToAlign(co.DB)
	if len(groups) > 0 {
		if err := co.align(ctx, groups); err != nil {
			return Result{}, co.flushAnd(err)
		}
	} else {
		log.Printf("[pipeline] no families pending alignment, skipping align stage")
	}

	return co.barrier()
}

// flushAnd persists whatever progress was recorded before a fatal error
// (minted query ids, recorded gene/family outcomes) so a restart picks
// up from here instead of redoing completed work (spec §7).
func (co *Coordinator) flushAnd(err error) error {
	if ferr := co.Store.Flush(); ferr != nil {
		log.Printf("[pipeline] flush on error exit failed: %v", ferr)
	}
	return err
}

func (co *Coordinator) checkParams(inputs []InputFile) (map[string]progress.InputDescriptor, error) {
	files := make([]struct{ Path, Label, Species string }, len(inputs))
	for i, f := range inputs {
		files[i] = struct{ Path, Label, Species string }{Path: f.Path, Label: f.Label, Species: f.Species}
	}
	descriptors, err := progress.BuildInputDescriptors(files)
	if err != nil {
		return nil, err
	}
	if err := co.Store.CheckParams(co.DB, descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// ingest mints/looks up a query id for every (label, contig_id) pair
// and retains each query's sequence in memory for the align stage
// (spec §4.F stage 1). Sequences are never persisted directly; they are
// re-derived from the input files on every run.
func (co *Coordinator) ingest(inputs []InputFile, descriptors map[string]progress.InputDescriptor) error {
	co.querySequence = map[string]fasta.Record{}

	for _, in := range inputs {
		f, err := os.Open(in.Path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", progress.ErrInputMissing, in.Path, err)
		}
		records, err := fasta.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("pipeline: parse %s: %w", in.Path, err)
		}

		for _, rec := range records {
			q := co.Store.QueryFor(in.Label, rec.ID)
			co.querySequence[q] = rec
		}
	}
	return nil
}

func (co *Coordinator) search(ctx context.Context, pending []string) error {
	if err := os.MkdirAll(co.WorkDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create work directory: %w", err)
	}

	queryPath := filepath.Join(co.WorkDir, "query.fasta")
	hitPath := filepath.Join(co.WorkDir, "hits.tsv")

	records := make([]fasta.Record, 0, len(pending))
	for _, q := range pending {
		rec, ok := co.querySequence[q]
		if !ok {
			log.Printf("[pipeline] query %s has no sequence on record, skipping", q)
			continue
		}
		records = append(records, fasta.Record{ID: q, Sequence: rec.Sequence})
	}

	f, err := os.Create(queryPath)
	if err != nil {
		return fmt.Errorf("pipeline: create query file: %w", err)
	}
	werr := fasta.Write(f, records)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("pipeline: write query file: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("pipeline: close query file: %w", cerr)
	}

	q := queue.New(co.Workers, co.MaxQueueSize)
	q.Start(ctx, co.Workers)

	job := &searchJob{co: co, pending: pending, queryFASTA: queryPath, hitFile: hitPath}
	if err := q.Submit(ctx, job); err != nil {
		return fmt.Errorf("pipeline: submit search job: %w", err)
	}
	q.Drain()
	if err := q.Wait(); err != nil {
		return fmt.Errorf("pipeline: search stage: %w", err)
	}
	if job.launchErr != nil {
		return fmt.Errorf("pipeline: search tool: %w", job.launchErr)
	}
	return nil
}

func (co *Coordinator) align(ctx context.Context, groups map[string][]string) error {
	q := queue.New(co.Workers, co.MaxQueueSize)
	q.Start(ctx, co.Workers)

	families := make([]string, 0, len(groups))
	for family := range groups {
		families = append(families, family)
	}
	sort.Strings(families)

	jobs := make([]*alignJob, 0, len(families))
	for _, family := range families {
		queries := groups[family]
		records := make([]fasta.Record, 0, len(queries))
		for _, qid := range queries {
			rec, ok := co.querySequence[qid]
			if !ok {
				log.Printf("[pipeline] family %s: query %s has no sequence on record, skipping", family, qid)
				continue
			}
			records = append(records, fasta.Record{ID: qid, Sequence: rec.Sequence})
		}

		job := &alignJob{
			co:       co,
			familyID: family,
			basename: co.Cache.NewFamilyBasename(),
			records:  records,
		}
		jobs = append(jobs, job)
		if err := q.Submit(ctx, job); err != nil {
			return fmt.Errorf("pipeline: submit align job for %s: %w", family, err)
		}
	}

	q.Drain()
	if err := q.Wait(); err != nil {
		return fmt.Errorf("pipeline: align stage: %w", err)
	}

	for _, job := range jobs {
		if job.launchErr != nil {
			return fmt.Errorf("pipeline: alignment tool: %w", job.launchErr)
		}
	}
	return nil
}

func (co *Coordinator) barrier() (Result, error) {
	if err := co.Store.Flush(); err != nil {
		return Result{}, err
	}
	total := co.Store.FamilyTotal(co.DB)
	notDone, failed := co.Store.AlignmentsRemaining(co.DB)
	completed := total - notDone - failed
	log.Printf("[pipeline] %s families complete, %s failed, %s outstanding",
		humanize.Comma(int64(completed)), humanize.Comma(int64(failed)), humanize.Comma(int64(notDone)))
	return Result{Completed: completed, Failed: failed, Outstanding: notDone}, nil
}

type searchJob struct {
	co         *Coordinator
	pending    []string
	queryFASTA string
	hitFile    string
	launchErr  error
}

func (j *searchJob) Run(ctx context.Context) queue.State {
	hits, exitCode, err := j.co.Search.Run(ctx, j.queryFASTA, j.co.SearchDBPath, j.hitFile)
	if err != nil {
		log.Printf("[pipeline] search tool launch failed: %v", err)
		j.launchErr = err
		return queue.TERMINATED
	}

	best := searchtool.BestHits(hits)
	batch := make(map[string]string, len(j.pending))
	for _, q := range j.pending {
		if gene, ok := best[q]; ok {
			batch[q] = gene
		} else {
			batch[q] = progress.Fail
		}
	}
	j.co.Store.UpdateQueryGene(batch)

	if exitCode != 0 {
		log.Printf("[pipeline] search tool exited %d", exitCode)
		return queue.FAILED
	}
	return queue.OK
}

type alignJob struct {
	co        *Coordinator
	familyID  string
	basename  string
	records   []fasta.Record
	launchErr error
}

func (j *alignJob) Run(ctx context.Context) queue.State {
	if err := j.co.Cache.WriteFamily(j.basename, j.records); err != nil {
		log.Printf("[pipeline] write family %s: %v", j.familyID, err)
		j.co.Store.PutFamilyFile(j.familyID, progress.Fail)
		return queue.FAILED
	}

	if len(j.records) < 2 {
		j.co.Store.PutFamilyFile(j.familyID, j.basename)
		return queue.OK
	}

	outputs, exitCode, err := j.co.Align.Run(ctx, j.co.Cache.FamilyPath(j.basename))
	if err != nil {
		log.Printf("[pipeline] alignment tool launch failed for %s: %v", j.familyID, err)
		j.co.Store.PutFamilyFile(j.familyID, progress.Fail)
		j.launchErr = err
		return queue.TERMINATED
	}
	if exitCode != 0 {
		log.Printf("[pipeline] alignment tool exited %d for family %s", exitCode, j.familyID)
		j.co.Store.PutFamilyFile(j.familyID, progress.Fail)
		return queue.FAILED
	}

	for _, out := range outputs {
		if err := j.co.Cache.WriteAlignmentOutput(j.basename, out.Suffix, out.Content); err != nil {
			log.Printf("[pipeline] commit alignment output %s for %s: %v", out.Suffix, j.familyID, err)
			j.co.Store.PutFamilyFile(j.familyID, progress.Fail)
			return queue.FAILED
		}
	}

	j.co.Store.PutFamilyFile(j.familyID, j.basename)
	return queue.OK
}
