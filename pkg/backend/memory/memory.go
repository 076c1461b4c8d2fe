// Package memory implements an in-memory storage backend.
//
// The tree lives entirely in process memory and is lost on restart. It is
// the reference implementation of the backend contract: small enough to
// read in one sitting, used heavily by protocol and adapter tests, and
// useful for ephemeral scratch shares.
//
// Thread safety: all operations take a single read-write mutex, so the
// backend can be shared by several sessions.
package memory

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// readdirBatchSize is the number of entries returned per READDIR call.
const readdirBatchSize = 64

// node is one file, directory, or symlink in the tree.
type node struct {
	dir      bool
	children map[string]*node // only for directories
	data     []byte           // only for regular files
	target   string           // only for symlinks
	mode     uint32           // permission bits
	uid      uint32
	gid      uint32
	atime    uint32
	mtime    uint32
}

// openState tracks one handle: an open file or a directory cursor with a
// snapshot of entries taken at Opendir time.
type openState struct {
	path    string
	n       *node
	writing bool
	appends bool

	dir     bool
	entries []backend.DirEntry
	pos     int
}

// Backend is the in-memory implementation of backend.Backend. It also
// implements ReadlinkCapable and SymlinkCapable.
type Backend struct {
	mu      sync.RWMutex
	root    *node
	handles map[backend.Handle]*openState
}

// New creates an empty in-memory backend with a root directory.
func New() *Backend {
	now := uint32(time.Now().Unix())
	return &Backend{
		root: &node{
			dir:      true,
			children: map[string]*node{},
			mode:     0o755,
			atime:    now,
			mtime:    now,
		},
		handles: map[backend.Handle]*openState{},
	}
}

func (b *Backend) InitSession(ctx context.Context, clientVersion uint32, identity backend.Identity, clientExts []backend.Extension) ([]backend.Extension, error) {
	return nil, nil
}

// ResolvePath joins the configured root with the client path. Cleaning the
// client path against "/" first keeps ".." from escaping the root.
func (b *Backend) ResolvePath(root, p string) (string, error) {
	if root == "" {
		root = "/"
	}
	return path.Join(root, path.Clean("/"+p)), nil
}

// lookup walks the tree. Caller holds at least the read lock.
func (b *Backend) lookup(p string) (*node, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		return b.root, nil
	}

	current := b.root
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if !current.dir {
			return nil, backend.ErrorNotFound(p)
		}
		next, ok := current.children[part]
		if !ok {
			return nil, backend.ErrorNotFound(p)
		}
		current = next
	}
	return current, nil
}

// lookupParent returns the parent directory node and the leaf name.
func (b *Backend) lookupParent(p string) (*node, string, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		return nil, "", backend.ErrorBadMessage("cannot address the root this way")
	}

	parent, err := b.lookup(path.Dir(p))
	if err != nil {
		return nil, "", err
	}
	if !parent.dir {
		return nil, "", backend.ErrorNotFound(p)
	}
	return parent, path.Base(p), nil
}

// deref follows one level of symlink indirection for Stat.
func (b *Backend) deref(p string, n *node) (*node, error) {
	if n.target == "" {
		return n, nil
	}

	target := n.target
	if !strings.HasPrefix(target, "/") {
		target = path.Join(path.Dir(path.Clean("/"+p)), target)
	}
	return b.lookup(target)
}

func (n *node) attrs() *backend.FileAttributes {
	perm := n.mode & backend.ModePerm
	switch {
	case n.dir:
		perm |= backend.ModeDir
	case n.target != "":
		perm |= backend.ModeSymlink
	default:
		perm |= backend.ModeRegular
	}

	size := uint64(len(n.data))
	if n.dir {
		size = 4096
	}

	return &backend.FileAttributes{
		Size:        &size,
		UID:         backend.U32(n.uid),
		GID:         backend.U32(n.gid),
		Permissions: &perm,
		AccessTime:  backend.U32(n.atime),
		ModifyTime:  backend.U32(n.mtime),
	}
}

func (b *Backend) getHandle(h backend.Handle) (*openState, error) {
	state, ok := b.handles[h]
	if !ok {
		return nil, backend.ErrorInvalidHandle(h)
	}
	return state, nil
}
