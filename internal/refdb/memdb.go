package refdb

// MemDB is an in-memory Adapter, used by tests and by callers building a
// reference set programmatically instead of from a database file.
type MemDB struct {
	species  string
	release  int
	filename string
	checksum string
	families map[string]string
}

// NewMemDB builds a MemDB from a gene id -> family id mapping.
func NewMemDB(species string, release int, filename, checksum string, families map[string]string) *MemDB {
	m := make(map[string]string, len(families))
	for gene, family := range families {
		m[gene] = family
	}
	return &MemDB{
		species:  species,
		release:  release,
		filename: filename,
		checksum: checksum,
		families: m,
	}
}

func (m *MemDB) Species() string  { return m.species }
func (m *MemDB) Release() int     { return m.release }
func (m *MemDB) Filename() string { return m.filename }
func (m *MemDB) Checksum() string { return m.checksum }

func (m *MemDB) FamilyOf(geneID string) (string, bool) {
	f, ok := m.families[geneID]
	return f, ok
}

var _ Adapter = (*MemDB)(nil)
