// Package cache implements the per-family assembly/alignment cache: a
// content-addressed directory of gene-family FASTA files and their
// alignment outputs, protected by a self-validating, append-only
// manifest. This is a materially rewritten Go port of the original
// Manifest class (lib/manifest.py): the same validation and append
// protocol, the same three-way keep/drop/realign classification, but
// built from explicit multi-return values instead of exceptions, and
// against the concrete alphabet and suffix set spec.md fixes.
package cache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jra3/glutton/internal/fsutil"
	"github.com/jra3/glutton/pkg/fasta"
)

const manifestName = "manifest"

// AlignmentSuffixes are the six fixed suffixes the alignment tool
// produces for any family with two or more sequences.
var AlignmentSuffixes = []string{".1.dnd", ".2.dnd", ".nuc.1.fas", ".nuc.2.fas", ".pep.1.fas", ".pep.2.fas"}

const basenameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_"
const basenameSuffixLen = 6

var manifestLinePattern = regexp.MustCompile(`^(.+) ([0-9a-z]{32})$`)

// Cache manages one family-cache directory.
type Cache struct {
	dir          string
	prefix       string
	familyRegexp *regexp.Regexp
	manifestPath string

	mu            sync.Mutex
	validFamilies map[string]struct{}
	validAligns   map[string]struct{}
	needsRealign  map[string]struct{}
	genes         map[string]struct{}
}

// Open opens (creating if necessary) the family cache at dir with the
// given family-basename prefix, and runs the validation protocol once.
func Open(dir, prefix string) (*Cache, error) {
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	c := &Cache{
		dir:          dir,
		prefix:       prefix,
		familyRegexp: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + fmt.Sprintf("[A-Za-z0-9_]{%d}$", basenameSuffixLen)),
		manifestPath: filepath.Join(dir, manifestName),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Prefix returns the configured family-basename prefix.
func (c *Cache) Prefix() string { return c.prefix }

// NewFamilyBasename mints a fresh, unused basename: prefix + 6 characters
// drawn from [A-Za-z0-9_]. Randomness comes from a UUIDv4's bytes mapped
// into that 63-symbol alphabet, which keeps collision probability
// negligible (spec's "random-suffix collision probability ≈ 0") without
// workers contending over a shared counter.
func (c *Cache) NewFamilyBasename() string {
	id := uuid.New()
	var sb strings.Builder
	sb.WriteString(c.prefix)
	for i := 0; i < basenameSuffixLen; i++ {
		sb.WriteByte(basenameAlphabet[int(id[i])%len(basenameAlphabet)])
	}
	return sb.String()
}

// FamilyPath returns the on-disk path for a family basename (or an
// alignment output, if basename already includes a suffix).
func (c *Cache) FamilyPath(basename string) string {
	return filepath.Join(c.dir, basename)
}

// Genes returns the set of gene names found across all valid family
// files, as scanned at the last validate().
func (c *Cache) Genes() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.genes))
	for g := range c.genes {
		out[g] = struct{}{}
	}
	return out
}

// NeedsRealign returns the family basenames whose alignment outputs
// failed validation and must be regenerated.
func (c *Cache) NeedsRealign() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.needsRealign))
	for f := range c.needsRealign {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// HasValidFamily reports whether basename is currently a validated
// family file.
func (c *Cache) HasValidFamily(basename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.validFamilies[basename]
	return ok
}

// HasValidAlignment reports whether the given alignment artifact
// basename (family basename + suffix) is currently valid.
func (c *Cache) HasValidAlignment(basename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.validAligns[basename]
	return ok
}

// WriteFamily serializes records as FASTA and commits them under
// basename through the append protocol.
func (c *Cache) WriteFamily(basename string, records []fasta.Record) error {
	var buf strings.Builder
	if err := fasta.Write(&buf, records); err != nil {
		return fmt.Errorf("cache: serialize family %s: %w", basename, err)
	}
	if err := c.Append(basename, []byte(buf.String())); err != nil {
		return err
	}
	c.mu.Lock()
	c.validFamilies[basename] = struct{}{}
	for _, rec := range records {
		c.genes[rec.ID] = struct{}{}
	}
	c.mu.Unlock()
	return nil
}

// WriteAlignmentOutput commits one of the six fixed alignment artifacts
// for familyBasename.
func (c *Cache) WriteAlignmentOutput(familyBasename, suffix string, content []byte) error {
	name := familyBasename + suffix
	if err := c.Append(name, content); err != nil {
		return err
	}
	c.mu.Lock()
	c.validAligns[name] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Append implements the append protocol: the manifest line is written
// and fsync'd under the cache's mutex before the content file itself is
// written. A crash between the two leaves the family in a state the
// next validate() classifies as "needs redo", never as a false failure.
func (c *Cache) Append(basename string, content []byte) error {
	hash := fsutil.HashBytes(content)

	c.mu.Lock()
	err := c.appendManifestLine(basename, hash)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("cache: append manifest entry for %s: %w", basename, err)
	}

	if err := os.WriteFile(c.FamilyPath(basename), content, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", basename, err)
	}
	return nil
}

// appendManifestLine must be called with c.mu held.
func (c *Cache) appendManifestLine(basename, hash string) error {
	f, err := os.OpenFile(c.manifestPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %s\n", basename, hash); err != nil {
		return err
	}
	return f.Sync()
}

// validate runs the six-step startup protocol described in spec §4.C.
func (c *Cache) validate() error {
	lines, err := c.loadManifestLines()
	if err != nil {
		return err
	}

	validFamilies := map[string]struct{}{}
	for basename, hash := range lines {
		if !c.familyRegexp.MatchString(basename) {
			continue
		}
		actual, err := fsutil.HashFile(c.FamilyPath(basename))
		if err != nil {
			log.Printf("[cache] family file %s missing, dropping: %v", basename, err)
			continue
		}
		if actual != hash {
			log.Printf("[cache] family file %s hash mismatch, dropping", basename)
			continue
		}
		validFamilies[basename] = struct{}{}
	}

	sortedFamilies := make([]string, 0, len(validFamilies))
	for f := range validFamilies {
		sortedFamilies = append(sortedFamilies, f)
	}
	sort.Strings(sortedFamilies)

	validAligns := map[string]struct{}{}
	needsRealign := map[string]struct{}{}
	for _, basename := range sortedFamilies {
		n, err := c.countSequences(basename)
		if err != nil || n < 2 {
			continue
		}

		ok := true
		for _, suf := range AlignmentSuffixes {
			alignName := basename + suf
			hash, present := lines[alignName]
			if !present {
				ok = false
				break
			}
			actual, err := fsutil.HashFile(c.FamilyPath(alignName))
			if err != nil || actual != hash {
				ok = false
				break
			}
		}

		if ok {
			for _, suf := range AlignmentSuffixes {
				validAligns[basename+suf] = struct{}{}
			}
		} else {
			needsRealign[basename] = struct{}{}
		}
	}

	if err := c.rewriteManifest(lines, validFamilies, validAligns); err != nil {
		return err
	}
	if err := c.cleanupStrayFiles(validFamilies, validAligns); err != nil {
		return err
	}

	genes := map[string]struct{}{}
	for _, basename := range sortedFamilies {
		names, err := c.readHeaderNames(basename)
		if err != nil {
			continue
		}
		for _, n := range names {
			genes[n] = struct{}{}
		}
	}

	c.mu.Lock()
	c.validFamilies = validFamilies
	c.validAligns = validAligns
	c.needsRealign = needsRealign
	c.genes = genes
	c.mu.Unlock()

	log.Printf("[cache] validation complete: %d genes in %d families, %d need realignment",
		len(genes), len(validFamilies), len(needsRealign))
	return nil
}

func (c *Cache) countSequences(basename string) (int, error) {
	f, err := os.Open(c.FamilyPath(basename))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return fasta.CountHeaders(f)
}

func (c *Cache) readHeaderNames(basename string) ([]string, error) {
	f, err := os.Open(c.FamilyPath(basename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fasta.HeaderNames(f)
}

// loadManifestLines parses the manifest file, warning on and skipping
// any line that doesn't match "<basename> <32-hex-hash>". A missing
// manifest file is treated as an empty one (fresh cache directory).
func (c *Cache) loadManifestLines() (map[string]string, error) {
	data, err := os.ReadFile(c.manifestPath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read manifest: %w", err)
	}

	out := map[string]string{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := manifestLinePattern.FindStringSubmatch(line)
		if m == nil {
			log.Printf("[cache] manifest line %d is corrupt, ignoring: %q", i+1, line)
			continue
		}
		out[m[1]] = m[2]
	}
	return out, nil
}

// rewriteManifest atomically replaces the manifest with only the
// validated family and alignment entries.
func (c *Cache) rewriteManifest(lines map[string]string, families, aligns map[string]struct{}) error {
	names := make([]string, 0, len(families)+len(aligns))
	for f := range families {
		names = append(names, f)
	}
	for a := range aligns {
		names = append(names, a)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s %s\n", name, lines[name])
	}
	return fsutil.AtomicWrite(c.manifestPath, []byte(sb.String()))
}

// cleanupStrayFiles removes every file in the cache directory that is
// neither the manifest itself nor a member of the validated sets.
func (c *Cache) cleanupStrayFiles(families, aligns map[string]struct{}) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cache: read directory: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if name == manifestName {
			continue
		}
		if _, ok := families[name]; ok {
			continue
		}
		if _, ok := aligns[name]; ok {
			continue
		}
		log.Printf("[cache] removing stray file %s", name)
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("[cache] failed to remove %s: %v", name, err)
		}
	}
	return nil
}
