// Package inspectfs mounts a running pipeline's progress store and
// family cache as a read-only browsable filesystem, the same "mount
// internal state as files" idea the teacher built for Linear issues
// (pkg/fuse), generalized from one resource type (issues) to three
// (families, queries, a summary) and stripped of write support: an
// operator inspecting a run has no business editing it.
package inspectfs

import (
	"context"
	"fmt"
	"log"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/jra3/glutton/internal/progress"
	"github.com/jra3/glutton/internal/refdb"
)

// InspectFS is the filesystem root: a directory with "families",
// "queries" subdirectories and a "summary.txt" file.
type InspectFS struct {
	fs.Inode
	store *progress.Store
	db    refdb.Adapter
	debug bool
}

// New creates an InspectFS over the given progress store and reference
// database. It holds no cache of its own; every Readdir/Lookup call
// reads the in-memory store directly. The store is not reloaded from
// disk, so progress flushed by another process after the store was
// opened does not appear in the mount.
func New(store *progress.Store, db refdb.Adapter, debug bool) *InspectFS {
	return &InspectFS{store: store, db: db, debug: debug}
}

// Mount mounts the filesystem read-only at mountpoint.
func (i *InspectFS) Mount(mountpoint string) (*fuse.Server, error) {
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:    "glutton-inspect",
			FsName:  "glutton",
			Debug:   i.debug,
			Options: []string{"ro"},
		},
	}
	server, err := fs.Mount(mountpoint, i, opts)
	if err != nil {
		return nil, fmt.Errorf("inspectfs: mount failed: %w", err)
	}
	return server, nil
}

var _ = (fs.NodeReaddirer)((*InspectFS)(nil))
var _ = (fs.NodeLookuper)((*InspectFS)(nil))

func (i *InspectFS) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	if i.debug {
		log.Printf("[inspectfs] readdir root")
	}
	entries := []fuse.DirEntry{
		{Name: "families", Mode: fuse.S_IFDIR},
		{Name: "queries", Mode: fuse.S_IFDIR},
		{Name: "summary.txt", Mode: fuse.S_IFREG},
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (i *InspectFS) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if i.debug {
		log.Printf("[inspectfs] lookup root: %s", name)
	}
	switch name {
	case "families":
		child := i.NewInode(ctx, &familyDirNode{store: i.store, db: i.db, debug: i.debug}, fs.StableAttr{Mode: fuse.S_IFDIR})
		return child, fs.OK
	case "queries":
		child := i.NewInode(ctx, &queryDirNode{store: i.store, debug: i.debug}, fs.StableAttr{Mode: fuse.S_IFDIR})
		return child, fs.OK
	case "summary.txt":
		child := i.NewInode(ctx, &staticFileNode{content: []byte(i.summary())}, fs.StableAttr{Mode: fuse.S_IFREG})
		return child, fs.OK
	default:
		return nil, syscall.ENOENT
	}
}

func (i *InspectFS) summary() string {
	total := i.store.FamilyTotal(i.db)
	notDone, failed := i.store.AlignmentsRemaining(i.db)
	completed := total - notDone - failed
	queries := i.store.QueryIDs()
	pending := i.store.PendingQueries()
	return fmt.Sprintf(
		"queries: %d total, %d pending search\nfamilies: %d total, %d complete, %d failed, %d outstanding\n",
		len(queries), len(pending), total, completed, failed, notDone,
	)
}

// familyDirNode lists every family id currently known to the store.
type familyDirNode struct {
	fs.Inode
	store *progress.Store
	db    refdb.Adapter
	debug bool
}

var _ = (fs.NodeReaddirer)((*familyDirNode)(nil))
var _ = (fs.NodeLookuper)((*familyDirNode)(nil))

func (n *familyDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	ids := n.store.FamilyIDs(n.db)
	entries := make([]fuse.DirEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, fuse.DirEntry{Name: id + ".txt", Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (n *familyDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	id := stripTxt(name)
	if id == "" {
		return nil, syscall.ENOENT
	}
	found := false
	for _, known := range n.store.FamilyIDs(n.db) {
		if known == id {
			found = true
			break
		}
	}
	if !found {
		return nil, syscall.ENOENT
	}

	outcome, done := n.store.FamilyFile(id)
	status := "pending"
	switch {
	case !done:
		status = "pending"
	case outcome == progress.Fail:
		status = "failed"
	default:
		status = "complete (" + outcome + ")"
	}
	content := fmt.Sprintf("family: %s\nstatus: %s\n", id, status)
	child := n.NewInode(ctx, &staticFileNode{content: []byte(content)}, fs.StableAttr{Mode: fuse.S_IFREG})
	return child, fs.OK
}

// queryDirNode lists every minted query id.
type queryDirNode struct {
	fs.Inode
	store *progress.Store
	debug bool
}

var _ = (fs.NodeReaddirer)((*queryDirNode)(nil))
var _ = (fs.NodeLookuper)((*queryDirNode)(nil))

func (n *queryDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	ids := n.store.QueryIDs()
	entries := make([]fuse.DirEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, fuse.DirEntry{Name: id + ".txt", Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (n *queryDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	id := stripTxt(name)
	if id == "" {
		return nil, syscall.ENOENT
	}
	contigID, label, ok := n.store.ContigFromQuery(id)
	if !ok {
		return nil, syscall.ENOENT
	}
	gene, searched := n.store.GeneFor(id)
	geneStr := "pending"
	if searched {
		geneStr = gene
	}
	content := fmt.Sprintf("query: %s\nlabel: %s\ncontig: %s\ngene: %s\n", id, label, contigID, geneStr)
	child := n.NewInode(ctx, &staticFileNode{content: []byte(content)}, fs.StableAttr{Mode: fuse.S_IFREG})
	return child, fs.OK
}

func stripTxt(name string) string {
	const suf = ".txt"
	if len(name) <= len(suf) || name[len(name)-len(suf):] != suf {
		return ""
	}
	return name[:len(name)-len(suf)]
}
