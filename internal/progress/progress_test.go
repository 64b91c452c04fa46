package progress

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jra3/glutton/internal/refdb"
)

func TestQueryForMintsStableIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	q1 := s.QueryFor("A", "c1")
	q2 := s.QueryFor("A", "c2")
	if q1 == q2 {
		t.Fatalf("distinct contigs got the same query id %q", q1)
	}
	if again := s.QueryFor("A", "c1"); again != q1 {
		t.Errorf("QueryFor(A,c1) = %q on second call, want %q", again, q1)
	}
}

func TestQueryForCounterSurvivesReload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.QueryFor("A", "c1")
	s.QueryFor("A", "c2")
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	q3 := s2.QueryFor("A", "c3")
	if q3 == "query1" || q3 == "query2" {
		t.Errorf("QueryFor(A,c3) = %q, collided with a previously minted id", q3)
	}
	if got := s2.QueryFor("A", "c1"); got != "query1" {
		t.Errorf("QueryFor(A,c1) after reload = %q, want query1", got)
	}
}

func TestPendingQueries(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	q1 := s.QueryFor("A", "c1")
	q2 := s.QueryFor("A", "c2")
	s.UpdateQueryGene(map[string]string{q1: "geneX"})

	pending := s.PendingQueries()
	if len(pending) != 1 || pending[0] != q2 {
		t.Errorf("PendingQueries() = %v, want [%s]", pending, q2)
	}
}

func TestFamiliesToAlignGroupsAndSkipsDone(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "db", "sum", map[string]string{
		"geneA": "fam1",
		"geneB": "fam1",
		"geneC": "fam2",
	})

	q1 := s.QueryFor("A", "c1")
	q2 := s.QueryFor("A", "c2")
	q3 := s.QueryFor("A", "c3")
	s.UpdateQueryGene(map[string]string{q1: "geneA", q2: "geneB", q3: "geneC"})

	groups := s.FamiliesToAlign(db)
	if len(groups["fam1"]) != 2 {
		t.Errorf("fam1 group = %v, want 2 members", groups["fam1"])
	}
	if len(groups["fam2"]) != 1 {
		t.Errorf("fam2 group = %v, want 1 member", groups["fam2"])
	}

	s.PutFamilyFile("fam1", "famABC123")
	groups2 := s.FamiliesToAlign(db)
	if _, present := groups2["fam1"]; present {
		t.Errorf("fam1 should be excluded once family_file is set")
	}
	if _, present := groups2["fam2"]; !present {
		t.Errorf("fam2 should still be pending")
	}
}

func TestAlignmentsRemaining(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "db", "sum", map[string]string{
		"geneA": "fam1",
		"geneB": "fam2",
	})
	q1 := s.QueryFor("A", "c1")
	q2 := s.QueryFor("A", "c2")
	s.UpdateQueryGene(map[string]string{q1: "geneA", q2: "geneB"})

	notDone, failed := s.AlignmentsRemaining(db)
	if notDone != 2 || failed != 0 {
		t.Fatalf("AlignmentsRemaining() = (%d,%d), want (2,0)", notDone, failed)
	}

	s.PutFamilyFile("fam1", "famXYZ")
	s.PutFamilyFile("fam2", Fail)
	notDone, failed = s.AlignmentsRemaining(db)
	if notDone != 0 || failed != 1 {
		t.Fatalf("AlignmentsRemaining() = (%d,%d), want (0,1)", notDone, failed)
	}
}

func TestContigFromQueryLazyIndex(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	q1 := s.QueryFor("A", "c1")

	contig, label, ok := s.ContigFromQuery(q1)
	if !ok || contig != "c1" || label != "A" {
		t.Errorf("ContigFromQuery(%s) = (%q,%q,%v), want (c1,A,true)", q1, contig, label, ok)
	}

	q2 := s.QueryFor("A", "c2")
	_, _, ok = s.ContigFromQuery(q2)
	if !ok {
		t.Errorf("ContigFromQuery(%s) should find the newly minted query after index invalidation", q2)
	}
}

func TestContigUsedAndAssigned(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if s.ContigUsed("A", "c1") {
		t.Errorf("ContigUsed should be false before QueryFor")
	}
	s.QueryFor("A", "c1")
	if !s.ContigUsed("A", "c1") {
		t.Errorf("ContigUsed should be true after QueryFor")
	}
	if s.ContigAssigned("A", "c1") {
		t.Errorf("ContigAssigned should be false before a search result")
	}
	s.UpdateQueryGene(map[string]string{"query1": "geneA"})
	if !s.ContigAssigned("A", "c1") {
		t.Errorf("ContigAssigned should be true once query1 -> geneA is recorded")
	}
}

func TestCheckParamsFreshRunAdoptsCurrent(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "tc23.glt", "dbsum", nil)
	inputs := map[string]InputDescriptor{
		"/abs/A.fa": {Label: "A", Species: "human", Checksum: "aaa"},
	}
	if err := s.CheckParams(db, inputs); err != nil {
		t.Fatalf("CheckParams() on fresh store error: %v", err)
	}
	if s.Params().DBChecksum != "dbsum" {
		t.Errorf("expected params to adopt current db checksum")
	}
}

func TestCheckParamsMismatchIsFatal(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "tc23.glt", "dbsum", nil)
	inputs := map[string]InputDescriptor{
		"/abs/A.fa": {Label: "A", Species: "human", Checksum: "aaa"},
	}
	if err := s.CheckParams(db, inputs); err != nil {
		t.Fatal(err)
	}

	mutated := map[string]InputDescriptor{
		"/abs/A.fa": {Label: "A", Species: "human", Checksum: "changed"},
	}
	err = s.CheckParams(db, mutated)
	if !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("CheckParams() with mutated checksum error = %v, want ErrConfigMismatch", err)
	}
}

func TestCheckParamsPathChangeIsTolerated(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "tc23.glt", "dbsum", nil)
	original := map[string]InputDescriptor{
		"/old/path/A.fa": {Label: "A", Species: "human", Checksum: "aaa"},
	}
	if err := s.CheckParams(db, original); err != nil {
		t.Fatal(err)
	}

	moved := map[string]InputDescriptor{
		"/new/path/A.fa": {Label: "A", Species: "human", Checksum: "aaa"},
	}
	if err := s.CheckParams(db, moved); err != nil {
		t.Fatalf("CheckParams() should tolerate a path change with matching checksum, got %v", err)
	}
	if _, ok := s.Params().ContigFiles["/new/path/A.fa"]; !ok {
		t.Errorf("expected params to be refreshed to the new path")
	}
}

func TestBuildInputDescriptorsMissingFile(t *testing.T) {
	t.Parallel()
	_, err := BuildInputDescriptors([]struct{ Path, Label, Species string }{
		{Path: "/does/not/exist.fa", Label: "A", Species: "human"},
	})
	if !errors.Is(err, ErrInputMissing) {
		t.Fatalf("BuildInputDescriptors() error = %v, want ErrInputMissing", err)
	}
}

func TestBuildInputDescriptorsHashesContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "A.fa")
	if err := os.WriteFile(path, []byte(">c1\nACGT\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	descs, err := BuildInputDescriptors([]struct{ Path, Label, Species string }{
		{Path: path, Label: "A", Species: "human"},
	})
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(path)
	d, ok := descs[abs]
	if !ok {
		t.Fatalf("expected descriptor keyed by absolute path %s, got %v", abs, descs)
	}
	if d.Label != "A" || d.Species != "human" || d.Checksum == "" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
}

func TestSpeciesForLabelAndLabelForChecksum(t *testing.T) {
	t.Parallel()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "tc23.glt", "dbsum", nil)
	inputs := map[string]InputDescriptor{
		"/abs/A.fa": {Label: "A", Species: "human", Checksum: "aaa"},
	}
	if err := s.CheckParams(db, inputs); err != nil {
		t.Fatal(err)
	}

	species, err := s.SpeciesForLabel("A")
	if err != nil || species != "human" {
		t.Errorf("SpeciesForLabel(A) = (%q, %v), want (human, nil)", species, err)
	}

	label, err := s.LabelForChecksum("aaa")
	if err != nil || label != "A" {
		t.Errorf("LabelForChecksum(aaa) = (%q, %v), want (A, nil)", label, err)
	}

	if _, err := s.SpeciesForLabel("missing"); err == nil {
		t.Errorf("SpeciesForLabel(missing) should return an error")
	}
}

func TestFlushAndReloadRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := refdb.NewMemDB("human", 1, "tc23.glt", "dbsum", nil)
	inputs := map[string]InputDescriptor{
		"/abs/A.fa": {Label: "A", Species: "human", Checksum: "aaa"},
	}
	if err := s.CheckParams(db, inputs); err != nil {
		t.Fatal(err)
	}
	q1 := s.QueryFor("A", "c1")
	s.UpdateQueryGene(map[string]string{q1: "geneA"})
	s.PutFamilyFile("fam1", "famBasename")

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := s2.QueryFor("A", "c1"); got != q1 {
		t.Errorf("reloaded QueryFor(A,c1) = %q, want %q", got, q1)
	}
	if f, ok := s2.FamilyFile("fam1"); !ok || f != "famBasename" {
		t.Errorf("reloaded FamilyFile(fam1) = (%q,%v), want (famBasename,true)", f, ok)
	}
	if s2.Params().DBChecksum != "dbsum" {
		t.Errorf("reloaded params checksum = %q, want dbsum", s2.Params().DBChecksum)
	}
}
