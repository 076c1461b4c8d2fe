package memory

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func (b *Backend) Open(ctx context.Context, p string, flags int, attrs *backend.FileAttributes) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, lookupErr := b.lookup(p)
	switch {
	case lookupErr == nil:
		if flags&os.O_EXCL != 0 {
			return "", backend.ErrorFailure(fmt.Sprintf("%s: file exists", p))
		}
		if n.dir {
			return "", backend.ErrorFailure(fmt.Sprintf("%s: is a directory", p))
		}
		resolved, err := b.deref(p, n)
		if err != nil {
			return "", err
		}
		n = resolved
		if flags&os.O_TRUNC != 0 {
			n.data = nil
			n.mtime = uint32(time.Now().Unix())
		}

	case flags&os.O_CREATE != 0:
		parent, name, err := b.lookupParent(p)
		if err != nil {
			return "", err
		}
		mode := uint32(0o644)
		if attrs != nil && attrs.Permissions != nil {
			mode = *attrs.Permissions & backend.ModePerm
		}
		now := uint32(time.Now().Unix())
		n = &node{mode: mode, atime: now, mtime: now}
		if attrs != nil && attrs.UID != nil && attrs.GID != nil {
			n.uid = *attrs.UID
			n.gid = *attrs.GID
		}
		parent.children[name] = n
		parent.mtime = now

	default:
		return "", lookupErr
	}

	h := backend.Handle(uuid.NewString())
	b.handles[h] = &openState{
		path:    path.Clean("/" + p),
		n:       n,
		writing: flags&(os.O_WRONLY|os.O_RDWR) != 0,
		appends: flags&os.O_APPEND != 0,
	}
	return h, nil
}

func (b *Backend) Close(ctx context.Context, h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.getHandle(h); err != nil {
		return err
	}
	delete(b.handles, h)
	return nil
}

func (b *Backend) Read(ctx context.Context, h backend.Handle, offset uint64, length uint32) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	if state.dir {
		return nil, backend.ErrorInvalidHandle(h)
	}

	data := state.n.data
	if offset >= uint64(len(data)) {
		return nil, backend.ErrorEOF()
	}

	end := offset + uint64(length)
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (b *Backend) Write(ctx context.Context, h backend.Handle, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.getHandle(h)
	if err != nil {
		return err
	}
	if state.dir || !state.writing {
		return backend.ErrorInvalidHandle(h)
	}

	n := state.n
	if state.appends {
		offset = uint64(len(n.data))
	}

	if need := offset + uint64(len(data)); need > uint64(len(n.data)) {
		grown := make([]byte, need)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:], data)
	n.mtime = uint32(time.Now().Unix())
	return nil
}

func (b *Backend) Lstat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, err := b.lookup(p)
	if err != nil {
		return nil, err
	}
	return n.attrs(), nil
}

func (b *Backend) Stat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, err := b.lookup(p)
	if err != nil {
		return nil, err
	}
	n, err = b.deref(p, n)
	if err != nil {
		return nil, err
	}
	return n.attrs(), nil
}

func (b *Backend) Fstat(ctx context.Context, h backend.Handle) (*backend.FileAttributes, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	return state.n.attrs(), nil
}

// applyAttrs writes the present attribute groups onto a node.
func applyAttrs(n *node, attrs *backend.FileAttributes) {
	if attrs == nil {
		return
	}
	if attrs.Size != nil && !n.dir {
		size := *attrs.Size
		if size <= uint64(len(n.data)) {
			n.data = n.data[:size]
		} else {
			grown := make([]byte, size)
			copy(grown, n.data)
			n.data = grown
		}
	}
	if attrs.Permissions != nil {
		n.mode = *attrs.Permissions & backend.ModePerm
	}
	if attrs.UID != nil && attrs.GID != nil {
		n.uid = *attrs.UID
		n.gid = *attrs.GID
	}
	if attrs.AccessTime != nil && attrs.ModifyTime != nil {
		n.atime = *attrs.AccessTime
		n.mtime = *attrs.ModifyTime
	}
}

func (b *Backend) Setstat(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.lookup(p)
	if err != nil {
		return err
	}
	n, err = b.deref(p, n)
	if err != nil {
		return err
	}
	applyAttrs(n, attrs)
	return nil
}

func (b *Backend) Fsetstat(ctx context.Context, h backend.Handle, attrs *backend.FileAttributes) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.getHandle(h)
	if err != nil {
		return err
	}
	applyAttrs(state.n, attrs)
	return nil
}

func (b *Backend) Opendir(ctx context.Context, p string) (backend.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, err := b.lookup(p)
	if err != nil {
		return "", err
	}
	if !n.dir {
		return "", backend.ErrorFailure(fmt.Sprintf("%s: not a directory", p))
	}

	// Snapshot the listing so concurrent mutation cannot skew the cursor.
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]backend.DirEntry, 0, len(names))
	for _, name := range names {
		attrs := n.children[name].attrs()
		entries = append(entries, backend.DirEntry{
			Name:     name,
			LongName: backend.FormatLongName(name, attrs),
			Attrs:    attrs,
		})
	}

	h := backend.Handle(uuid.NewString())
	b.handles[h] = &openState{
		path:    path.Clean("/" + p),
		n:       n,
		dir:     true,
		entries: entries,
	}
	return h, nil
}

func (b *Backend) Readdir(ctx context.Context, h backend.Handle) ([]backend.DirEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	if !state.dir {
		return nil, backend.ErrorInvalidHandle(h)
	}
	if state.pos >= len(state.entries) {
		return nil, backend.ErrorEOF()
	}

	end := state.pos + readdirBatchSize
	if end > len(state.entries) {
		end = len(state.entries)
	}
	batch := state.entries[state.pos:end]
	state.pos = end
	return batch, nil
}

func (b *Backend) Remove(ctx context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	parent, name, err := b.lookupParent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return backend.ErrorNotFound(p)
	}
	if n.dir {
		return backend.ErrorFailure(fmt.Sprintf("%s: is a directory", p))
	}
	delete(parent.children, name)
	parent.mtime = uint32(time.Now().Unix())
	return nil
}

func (b *Backend) Mkdir(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	parent, name, err := b.lookupParent(p)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return backend.ErrorFailure(fmt.Sprintf("%s: file exists", p))
	}

	mode := uint32(0o755)
	if attrs != nil && attrs.Permissions != nil {
		mode = *attrs.Permissions & backend.ModePerm
	}
	now := uint32(time.Now().Unix())
	parent.children[name] = &node{
		dir:      true,
		children: map[string]*node{},
		mode:     mode,
		atime:    now,
		mtime:    now,
	}
	parent.mtime = now
	return nil
}

func (b *Backend) Rmdir(ctx context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	parent, name, err := b.lookupParent(p)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return backend.ErrorNotFound(p)
	}
	if !n.dir {
		return backend.ErrorFailure(fmt.Sprintf("%s: not a directory", p))
	}
	if len(n.children) > 0 {
		return backend.ErrorFailure(fmt.Sprintf("%s: directory not empty", p))
	}
	delete(parent.children, name)
	parent.mtime = uint32(time.Now().Unix())
	return nil
}

func (b *Backend) Realpath(ctx context.Context, p string) (string, error) {
	return path.Clean("/" + p), nil
}

func (b *Backend) Rename(ctx context.Context, oldpath, newpath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldParent, oldName, err := b.lookupParent(oldpath)
	if err != nil {
		return err
	}
	n, ok := oldParent.children[oldName]
	if !ok {
		return backend.ErrorNotFound(oldpath)
	}

	newParent, newName, err := b.lookupParent(newpath)
	if err != nil {
		return err
	}
	if _, ok := newParent.children[newName]; ok {
		return backend.ErrorFailure(fmt.Sprintf("%s: file exists", newpath))
	}

	delete(oldParent.children, oldName)
	newParent.children[newName] = n

	now := uint32(time.Now().Unix())
	oldParent.mtime = now
	newParent.mtime = now
	return nil
}

func (b *Backend) Readlink(ctx context.Context, p string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, err := b.lookup(p)
	if err != nil {
		return "", err
	}
	if n.target == "" {
		return "", backend.ErrorFailure(fmt.Sprintf("%s: not a symlink", p))
	}
	return n.target, nil
}

func (b *Backend) Symlink(ctx context.Context, linkpath, targetpath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	parent, name, err := b.lookupParent(linkpath)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return backend.ErrorFailure(fmt.Sprintf("%s: file exists", linkpath))
	}

	now := uint32(time.Now().Unix())
	parent.children[name] = &node{
		target: targetpath,
		mode:   0o777,
		atime:  now,
		mtime:  now,
	}
	parent.mtime = now
	return nil
}
