package refdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS gene (
	gene_id   TEXT PRIMARY KEY,
	family_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gene_family ON gene(family_id);
CREATE TABLE IF NOT EXISTS meta (
	species  TEXT NOT NULL,
	release  INTEGER NOT NULL,
	filename TEXT NOT NULL,
	checksum TEXT NOT NULL
);
`

// SQLiteDB is a reference database backed by a single-file SQLite
// database: a `gene(gene_id, family_id)` table and one `meta` row
// carrying the database's own identity. Grounded on the teacher's
// internal/db.Store open sequence (WAL mode, foreign keys, embedded
// schema), adapted to this package's read-mostly, single-table shape.
type SQLiteDB struct {
	db *sql.DB

	species  string
	release  int
	filename string
	checksum string
}

// OpenSQLite opens (creating and initializing if necessary) a reference
// database file at path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("refdb: create directory: %w", err)
	}

	escaped := strings.ReplaceAll(path, " ", "%20")
	sqldb, err := sql.Open("sqlite", "file:"+escaped+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("refdb: open database: %w", err)
	}

	if _, err := sqldb.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("refdb: enable WAL mode: %w", err)
	}
	if _, err := sqldb.Exec(schemaSQL); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("refdb: initialize schema: %w", err)
	}

	d := &SQLiteDB{db: sqldb}
	if err := d.loadMeta(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return d, nil
}

func (d *SQLiteDB) loadMeta() error {
	row := d.db.QueryRow("SELECT species, release, filename, checksum FROM meta LIMIT 1")
	err := row.Scan(&d.species, &d.release, &d.filename, &d.checksum)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refdb: read meta row: %w", err)
	}
	return nil
}

// SetMeta replaces the database's identity row. Used when building a
// reference database from scratch.
func (d *SQLiteDB) SetMeta(species string, release int, filename, checksum string) error {
	if _, err := d.db.Exec("DELETE FROM meta"); err != nil {
		return fmt.Errorf("refdb: clear meta: %w", err)
	}
	if _, err := d.db.Exec(
		"INSERT INTO meta (species, release, filename, checksum) VALUES (?, ?, ?, ?)",
		species, release, filename, checksum,
	); err != nil {
		return fmt.Errorf("refdb: write meta: %w", err)
	}
	d.species, d.release, d.filename, d.checksum = species, release, filename, checksum
	return nil
}

// PutGene inserts or replaces a gene -> family mapping.
func (d *SQLiteDB) PutGene(geneID, familyID string) error {
	_, err := d.db.Exec(
		"INSERT INTO gene (gene_id, family_id) VALUES (?, ?) ON CONFLICT(gene_id) DO UPDATE SET family_id = excluded.family_id",
		geneID, familyID,
	)
	if err != nil {
		return fmt.Errorf("refdb: write gene %s: %w", geneID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func (d *SQLiteDB) Species() string  { return d.species }
func (d *SQLiteDB) Release() int     { return d.release }
func (d *SQLiteDB) Filename() string { return d.filename }
func (d *SQLiteDB) Checksum() string { return d.checksum }

func (d *SQLiteDB) FamilyOf(geneID string) (string, bool) {
	var familyID string
	err := d.db.QueryRow("SELECT family_id FROM gene WHERE gene_id = ?", geneID).Scan(&familyID)
	if err != nil {
		return "", false
	}
	return familyID, true
}

var _ Adapter = (*SQLiteDB)(nil)
