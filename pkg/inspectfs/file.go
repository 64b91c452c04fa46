package inspectfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// staticFileNode serves a fixed byte slice computed once at Lookup time.
// Unlike the teacher's IssueFileNode, it never accepts writes: an
// introspection mount has nothing for a write to mean.
type staticFileNode struct {
	fs.Inode
	content []byte
}

var _ = (fs.NodeOpener)((*staticFileNode)(nil))
var _ = (fs.NodeReader)((*staticFileNode)(nil))
var _ = (fs.NodeGetattrer)((*staticFileNode)(nil))

func (n *staticFileNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (n *staticFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(n.content)) {
		return fuse.ReadResultData([]byte{}), fs.OK
	}
	end := int(off) + len(dest)
	if end > len(n.content) {
		end = len(n.content)
	}
	return fuse.ReadResultData(n.content[off:end]), fs.OK
}

func (n *staticFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0o444
	out.Size = uint64(len(n.content))
	return fs.OK
}
