package fasta

import (
	"strings"
	"testing"
)

const sample = `>gene1 description one
ACGTACGT
ACGT
>gene2
TTTTGGGG
`

func TestParse(t *testing.T) {
	t.Parallel()
	records, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ID != "gene1" || records[0].Desc != "description one" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[0].Sequence != "ACGTACGTACGT" {
		t.Errorf("records[0].Sequence = %q", records[0].Sequence)
	}
	if records[1].ID != "gene2" || records[1].Sequence != "TTTTGGGG" {
		t.Errorf("records[1] = %+v", records[1])
	}
}

func TestCountHeaders(t *testing.T) {
	t.Parallel()
	n, err := CountHeaders(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("CountHeaders() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountHeaders() = %d, want 2", n)
	}
}

func TestHeaderNames(t *testing.T) {
	t.Parallel()
	names, err := HeaderNames(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("HeaderNames() error: %v", err)
	}
	want := []string{"gene1", "gene2"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()
	records, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	if err := Write(&buf, records); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	reparsed, err := Parse(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(reparsed) != 2 || reparsed[0].Sequence != records[0].Sequence {
		t.Errorf("round trip mismatch: %+v", reparsed)
	}
}

func TestEmptyInput(t *testing.T) {
	t.Parallel()
	records, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}
