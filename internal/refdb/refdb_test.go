package refdb

import (
	"path/filepath"
	"testing"
)

func TestMemDBFamilyOf(t *testing.T) {
	t.Parallel()
	db := NewMemDB("human", 42, "tc23.glt", "abc123", map[string]string{
		"geneA": "fam1",
		"geneB": "fam1",
		"geneC": "fam2",
	})

	if fam, ok := db.FamilyOf("geneA"); !ok || fam != "fam1" {
		t.Errorf("FamilyOf(geneA) = (%q, %v), want (fam1, true)", fam, ok)
	}
	if _, ok := db.FamilyOf("unknown"); ok {
		t.Errorf("FamilyOf(unknown) should report not found")
	}
	if db.Species() != "human" || db.Release() != 42 {
		t.Errorf("unexpected meta: species=%s release=%d", db.Species(), db.Release())
	}
}

func TestSQLiteDBRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "refdb.sqlite")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer db.Close()

	if err := db.SetMeta("mouse", 7, "mm.glt", "deadbeef"); err != nil {
		t.Fatalf("SetMeta() error: %v", err)
	}
	if err := db.PutGene("geneX", "famX"); err != nil {
		t.Fatalf("PutGene() error: %v", err)
	}

	if db.Species() != "mouse" || db.Release() != 7 || db.Checksum() != "deadbeef" {
		t.Errorf("unexpected meta after SetMeta: %+v", db)
	}

	fam, ok := db.FamilyOf("geneX")
	if !ok || fam != "famX" {
		t.Errorf("FamilyOf(geneX) = (%q, %v), want (famX, true)", fam, ok)
	}
	if _, ok := db.FamilyOf("missing"); ok {
		t.Errorf("FamilyOf(missing) should report not found")
	}
}

func TestSQLiteDBPersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "refdb.sqlite")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetMeta("zebrafish", 3, "zf.glt", "cafef00d"); err != nil {
		t.Fatal(err)
	}
	if err := db.PutGene("geneZ", "famZ"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	if reopened.Species() != "zebrafish" || reopened.Checksum() != "cafef00d" {
		t.Errorf("meta not persisted: %+v", reopened)
	}
	if fam, ok := reopened.FamilyOf("geneZ"); !ok || fam != "famZ" {
		t.Errorf("FamilyOf(geneZ) after reopen = (%q, %v), want (famZ, true)", fam, ok)
	}
}
