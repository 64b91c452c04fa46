// Package progress implements the durable, crash-safe record of every
// stage-to-stage mapping the pipeline coordinator produces: contig to
// query id, query id to gene id, family id to alignment file, and the
// restart-time parameters that must not silently change underneath a
// resumed run. Direct, rewritten port of
// original_source/glutton/info.py's GluttonInformation: the do_locking
// decorator becomes a single sync.Mutex held across every exported
// method, and the four ad hoc module-level globals for filenames become
// named constants.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jra3/glutton/internal/fsutil"
	"github.com/jra3/glutton/internal/refdb"
)

const (
	parameterFile = "parameters.json"
	contigFile    = "contigs.json"
	blastFile     = "blastx.json"
	paganFile     = "pagan.json"

	queryIDPrefix = "query"

	// Fail is the sentinel value recorded for a query with no search hit
	// or a family whose alignment attempt failed.
	Fail = "FAIL"
)

// ErrConfigMismatch is returned when a restart's reference database or
// input-file checksums disagree with the stored parameters.
var ErrConfigMismatch = errors.New("progress: reference database or input files differ from the previous run")

// ErrInputMissing is returned when a configured input file cannot be
// opened to compute its checksum.
var ErrInputMissing = errors.New("progress: input file missing or unreadable")

// InputDescriptor names one input file: its user-facing label, the
// species it was assembled from, and a content checksum computed when
// the descriptor was captured.
type InputDescriptor struct {
	Label    string
	Species  string
	Checksum string
}

// MarshalJSON renders an InputDescriptor as the 3-element
// [label, species, checksum] array spec.md's parameters.json uses.
func (d InputDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]string{d.Label, d.Species, d.Checksum})
}

// UnmarshalJSON parses the 3-element array form back into a descriptor.
func (d *InputDescriptor) UnmarshalJSON(b []byte) error {
	var arr [3]string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	d.Label, d.Species, d.Checksum = arr[0], arr[1], arr[2]
	return nil
}

// Params is the restart-time configuration snapshot: the reference
// database's identity plus a checksum descriptor for every input file.
type Params struct {
	DBSpecies   string                      `json:"db_species"`
	DBRelease   int                         `json:"db_release"`
	DBFilename  string                      `json:"db_filename"`
	DBChecksum  string                      `json:"db_checksum"`
	ContigFiles map[string]InputDescriptor  `json:"contig_files"`
}

func (p Params) isEmpty() bool {
	return len(p.ContigFiles) == 0
}

// Store holds the four persistent maps described in spec §3/§6 and
// serializes every access through a single mutex, matching the
// coarse-grained locking the spec calls for (Non-goals explicitly
// exclude fine-grained per-record locking).
type Store struct {
	dir string

	mu          sync.Mutex
	params      Params
	contigQuery map[string]map[string]string // label -> contig_id -> query_id
	queryGene   map[string]string             // query_id -> gene_id | FAIL
	familyFile  map[string]string             // family_id -> filename | FAIL

	nextQueryID  int
	counterReady bool

	queryContig map[string][2]string // query_id -> [contig_id, label], lazy
}

// Open loads whichever progress files already exist in dir (a fresh
// directory yields an empty store).
func Open(dir string) (*Store, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	s := &Store{
		dir:         dir,
		contigQuery: map[string]map[string]string{},
		queryGene:   map[string]string{},
		familyFile:  map[string]string{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	if err := loadJSON(filepath.Join(s.dir, parameterFile), &s.params); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dir, contigFile), &s.contigQuery); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dir, blastFile), &s.queryGene); err != nil {
		return err
	}
	if err := loadJSON(filepath.Join(s.dir, paganFile), &s.familyFile); err != nil {
		return err
	}

	n := 0
	for label := range s.contigQuery {
		n += len(s.contigQuery[label])
	}
	if n > 0 {
		log.Printf("[progress] read %d contig to query id mappings", n)
	}
	if len(s.queryGene) > 0 {
		log.Printf("[progress] read %d search results", len(s.queryGene))
	}
	if len(s.familyFile) > 0 {
		log.Printf("[progress] read %d alignment results", len(s.familyFile))
	}
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("progress: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("progress: parse %s: %w", path, err)
	}
	return nil
}

// Flush writes all four progress files to disk.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	log.Printf("[progress] flushing to disk...")
	if err := dumpJSON(filepath.Join(s.dir, parameterFile), s.params); err != nil {
		return err
	}
	if err := dumpJSON(filepath.Join(s.dir, contigFile), s.contigQuery); err != nil {
		return err
	}
	if err := dumpJSON(filepath.Join(s.dir, blastFile), s.queryGene); err != nil {
		return err
	}
	if err := dumpJSON(filepath.Join(s.dir, paganFile), s.familyFile); err != nil {
		return err
	}
	return nil
}

func dumpJSON(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("progress: marshal %s: %w", path, err)
	}
	if err := fsutil.AtomicWrite(path, b); err != nil {
		return fmt.Errorf("progress: write %s: %w", path, err)
	}
	return nil
}

// CheckParams runs the restart invariant (spec §4.E): if no parameters
// are stored yet, the current reference database and inputs become
// authoritative. Otherwise the sorted set of checksums (db + every
// input) must match exactly; a mismatch is reported as
// ErrConfigMismatch with both sides logged. File paths are always
// refreshed to the current ones — only content checksums must agree,
// not locations.
func (s *Store) CheckParams(db refdb.Adapter, inputs map[string]InputDescriptor) error {
	current := Params{
		DBSpecies:   db.Species(),
		DBRelease:   db.Release(),
		DBFilename:  db.Filename(),
		DBChecksum:  db.Checksum(),
		ContigFiles: inputs,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.params.isEmpty() {
		s.params = current
		return nil
	}

	if !sameChecksums(s.params, current) {
		logParams("original", s.params)
		logParams("current", current)
		return ErrConfigMismatch
	}

	s.params = current
	return nil
}

func sameChecksums(a, b Params) bool {
	return checksumSet(a).equalTo(checksumSet(b))
}

type sortedStrings []string

func checksumSet(p Params) sortedStrings {
	out := make(sortedStrings, 0, len(p.ContigFiles)+1)
	out = append(out, p.DBChecksum)
	for _, d := range p.ContigFiles {
		out = append(out, d.Checksum)
	}
	sort.Strings(out)
	return out
}

func (a sortedStrings) equalTo(b sortedStrings) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func logParams(tag string, p Params) {
	log.Printf("[progress] %s: %s/%d", tag, p.DBSpecies, p.DBRelease)
	for path, d := range p.ContigFiles {
		log.Printf("[progress]   %s label=%s species=%s md5=%s", path, d.Label, d.Species, d.Checksum)
	}
}

// BuildInputDescriptors computes an InputDescriptor for each (path,
// label, species) triple, hashing the file's current contents. Returns
// ErrInputMissing, wrapped with the offending path, if any file cannot
// be read.
func BuildInputDescriptors(files []struct{ Path, Label, Species string }) (map[string]InputDescriptor, error) {
	out := make(map[string]InputDescriptor, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInputMissing, f.Path, err)
		}
		sum, err := fsutil.HashFile(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInputMissing, f.Path, err)
		}
		out[abs] = InputDescriptor{Label: f.Label, Species: f.Species, Checksum: sum}
	}
	return out, nil
}

// QueryFor returns the query id for (label, contigID), minting a fresh
// one on first sight. Minted ids are stable forever (spec invariant 2).
func (s *Store) QueryFor(label, contigID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byContig, ok := s.contigQuery[label]; ok {
		if q, ok := byContig[contigID]; ok {
			return q
		}
	}

	if !s.counterReady {
		s.initCounterLocked()
	}

	q := queryIDPrefix + strconv.Itoa(s.nextQueryID)
	s.nextQueryID++

	if s.contigQuery[label] == nil {
		s.contigQuery[label] = map[string]string{}
	}
	s.contigQuery[label][contigID] = q
	s.queryContig = nil // lazy index invalidated
	return q
}

func (s *Store) initCounterLocked() {
	max := 0
	for label := range s.contigQuery {
		for _, q := range s.contigQuery[label] {
			if n, err := strconv.Atoi(strings.TrimPrefix(q, queryIDPrefix)); err == nil && n > max {
				max = n
			}
		}
	}
	s.nextQueryID = max + 1
	s.counterReady = true
}

// UpdateQueryGene bulk-merges query id -> gene id (or Fail) results.
func (s *Store) UpdateQueryGene(batch map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for q, g := range batch {
		s.queryGene[q] = g
	}
}

// PutFamilyFile records the alignment outcome for a family: a basename
// on success, or Fail.
func (s *Store) PutFamilyFile(familyID, filenameOrFail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.familyFile[familyID] = filenameOrFail
}

// FamilyFile returns the recorded outcome for familyID, if any.
func (s *Store) FamilyFile(familyID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.familyFile[familyID]
	return f, ok
}

// PendingQueries returns every query id with no recorded search result.
func (s *Store) PendingQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for label := range s.contigQuery {
		for _, q := range s.contigQuery[label] {
			if _, done := s.queryGene[q]; !done {
				out = append(out, q)
			}
		}
	}
	sort.Strings(out)
	return out
}

// FamiliesToAlign inverts query_gene (excluding Fail) through db's
// family lookup, grouping query ids by family, and skips families
// already present in family_file (spec §4.F stage 3).
func (s *Store) FamiliesToAlign(db refdb.Adapter) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string][]string{}
	for q, g := range s.queryGene {
		if g == Fail {
			continue
		}
		family, ok := db.FamilyOf(g)
		if !ok {
			log.Printf("[progress] gene %s (query %s) has no known family, skipping", g, q)
			continue
		}
		if _, done := s.familyFile[family]; done {
			continue
		}
		out[family] = append(out[family], q)
	}
	for family := range out {
		sort.Strings(out[family])
	}
	return out
}

// AlignmentsRemaining returns (notDone, failed) over the families
// currently implied by query_gene, per spec §4.E/§8 property 7.
func (s *Store) AlignmentsRemaining(db refdb.Adapter) (notDone, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	families := map[string]struct{}{}
	for _, g := range s.queryGene {
		if g == Fail {
			continue
		}
		if family, ok := db.FamilyOf(g); ok {
			families[family] = struct{}{}
		}
	}

	for family := range families {
		outcome, done := s.familyFile[family]
		if !done {
			notDone++
			continue
		}
		if outcome == Fail {
			failed++
		}
	}
	return notDone, failed
}

// FamilyTotal returns the count of distinct families currently implied
// by query_gene (excluding Fail), used for the stage-5 completion
// report alongside AlignmentsRemaining.
func (s *Store) FamilyTotal(db refdb.Adapter) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	families := map[string]struct{}{}
	for _, g := range s.queryGene {
		if g == Fail {
			continue
		}
		if family, ok := db.FamilyOf(g); ok {
			families[family] = struct{}{}
		}
	}
	return len(families)
}

// QueryIDs returns every minted query id, sorted, for introspection
// callers (pkg/inspectfs) that need to enumerate the whole store rather
// than just what's pending.
func (s *Store) QueryIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for label := range s.contigQuery {
		for _, q := range s.contigQuery[label] {
			out = append(out, q)
		}
	}
	sort.Strings(out)
	return out
}

// GeneFor returns the recorded gene id (or Fail) for a query, if any
// search result has been recorded yet.
func (s *Store) GeneFor(queryID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.queryGene[queryID]
	return g, ok
}

// FamilyIDs returns every family id currently implied by query_gene
// (excluding Fail), sorted, for introspection callers.
func (s *Store) FamilyIDs(db refdb.Adapter) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	families := map[string]struct{}{}
	for _, g := range s.queryGene {
		if g == Fail {
			continue
		}
		if family, ok := db.FamilyOf(g); ok {
			families[family] = struct{}{}
		}
	}
	out := make([]string, 0, len(families))
	for f := range families {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ContigFromQuery reverses the contig_query map, building the index
// lazily on first call and caching it until the next mutation.
func (s *Store) ContigFromQuery(queryID string) (contigID, label string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queryContig == nil {
		s.queryContig = map[string][2]string{}
		for lbl := range s.contigQuery {
			for c, q := range s.contigQuery[lbl] {
				s.queryContig[q] = [2]string{c, lbl}
			}
		}
	}
	pair, ok := s.queryContig[queryID]
	if !ok {
		return "", "", false
	}
	return pair[0], pair[1], true
}

// ContigUsed reports whether contigID has already been assigned a query
// id under label.
func (s *Store) ContigUsed(label, contigID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.contigQuery[label][contigID]
	return ok
}

// ContigAssigned reports whether contigID's query has a non-Fail gene
// assignment. Panics-as-error is avoided: an unassigned or unknown
// contig simply reports false.
func (s *Store) ContigAssigned(label, contigID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.contigQuery[label][contigID]
	if !ok {
		return false
	}
	gene, ok := s.queryGene[q]
	return ok && gene != Fail
}

// SpeciesForLabel returns the species recorded for the input file with
// the given label.
func (s *Store) SpeciesForLabel(label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.params.ContigFiles {
		if d.Label == label {
			return d.Species, nil
		}
	}
	return "", fmt.Errorf("progress: no input file with label %q", label)
}

// LabelForChecksum resolves the label of the input file whose content
// checksum matches the given value, used by callers that only have a
// file's current path (and hence must recompute its checksum) rather
// than its original label.
func (s *Store) LabelForChecksum(checksum string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.params.ContigFiles {
		if d.Checksum == checksum {
			return d.Label, nil
		}
	}
	return "", fmt.Errorf("progress: no input file with checksum %q", checksum)
}

// Params returns a copy of the currently stored restart parameters.
func (s *Store) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}
