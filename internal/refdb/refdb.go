// Package refdb adapts the reference gene-family database: a read-only
// lookup of which family a gene belongs to, plus the database's own
// identity (species, release, filename, checksum) used by the progress
// store's restart check. The wire format of the real reference database
// is explicitly out of scope of the pipeline; Adapter is the entire
// contract the coordinator depends on.
package refdb

// Adapter is the read-only reference-database contract the pipeline
// coordinator and progress store depend on. The Ensembl/Compara
// harvesting process that originally populates a database of this shape
// is a separate, offline concern and has no adapter here.
type Adapter interface {
	Species() string
	Release() int
	Filename() string
	Checksum() string

	// FamilyOf resolves a gene id to its family id. ok is false if the
	// gene is not present in the database.
	FamilyOf(geneID string) (familyID string, ok bool)
}
