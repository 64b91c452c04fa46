// Package fasta provides the minimal FASTA record reading and writing the
// pipeline and cache need: header scanning, record counting, and
// concatenating a set of sequences into one family file. It is not a
// general-purpose sequence toolkit.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Record is a single FASTA entry: the header (without the leading '>',
// and without any trailing description after the first whitespace run
// folded into ID, the remainder kept in Desc) and its sequence lines
// joined into one string.
type Record struct {
	ID       string
	Desc     string
	Sequence string
}

// Header returns the full header line content (without '>').
func (r Record) Header() string {
	if r.Desc == "" {
		return r.ID
	}
	return r.ID + " " + r.Desc
}

// Parse reads every record from r.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	var cur *Record
	var seq strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	flush := func() {
		if cur != nil {
			cur.Sequence = seq.String()
			records = append(records, *cur)
			seq.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ">") {
			flush()
			header := strings.TrimPrefix(line, ">")
			id, desc := header, ""
			if i := strings.IndexFunc(header, unicode.IsSpace); i >= 0 {
				id, desc = header[:i], strings.TrimLeftFunc(header[i:], unicode.IsSpace)
			}
			cur = &Record{ID: id, Desc: desc}
			continue
		}
		if cur != nil {
			seq.WriteString(strings.TrimSpace(line))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fasta: scan: %w", err)
	}
	return records, nil
}

// CountHeaders returns the number of '>'-prefixed lines in r, without
// retaining sequence content. Used by the cache to decide whether a
// family needs alignment (>= 2 sequences).
func CountHeaders(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	count := 0
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), ">") {
			count++
		}
	}
	return count, scanner.Err()
}

// HeaderNames returns every record's ID (the token before the first
// whitespace on a '>' line), matching the original manifest validator's
// gene-name scan.
func HeaderNames(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var names []string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, ">") {
			continue
		}
		id := strings.TrimPrefix(line, ">")
		if i := strings.IndexFunc(id, unicode.IsSpace); i >= 0 {
			id = id[:i]
		}
		names = append(names, id)
	}
	return names, scanner.Err()
}

// Write serializes records in FASTA format, wrapping sequence lines at 70
// characters, the conventional FASTA line width.
func Write(w io.Writer, records []Record) error {
	const lineWidth = 70
	for _, rec := range records {
		if _, err := fmt.Fprintf(w, ">%s\n", rec.Header()); err != nil {
			return err
		}
		seq := rec.Sequence
		for len(seq) > 0 {
			n := lineWidth
			if n > len(seq) {
				n = len(seq)
			}
			if _, err := fmt.Fprintf(w, "%s\n", seq[:n]); err != nil {
				return err
			}
			seq = seq[n:]
		}
	}
	return nil
}
