package badgerfs

import (
	"context"
	"path"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// listChildren returns the names in a directory, in key order.
func listChildren(txn *badger.Txn, p string) []string {
	prefix := childPrefix(p)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var names []string
	for it.Rewind(); it.Valid(); it.Next() {
		names = append(names, string(it.Item().Key()[len(prefix):]))
	}
	return names
}

func (b *Backend) Opendir(ctx context.Context, p string) (backend.Handle, error) {
	p = path.Clean("/" + p)

	var entries []backend.DirEntry
	err := b.db.View(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, p)
		if err != nil {
			return err
		}
		if !meta.Dir {
			return backend.ErrorFailure(p + ": not a directory")
		}

		for _, name := range listChildren(txn, p) {
			childMeta, err := getMeta(txn, path.Join(p, name))
			if err != nil {
				// Index entry without a record. Skip rather than fail
				// the whole listing.
				continue
			}
			attrs := childMeta.attrs()
			entries = append(entries, backend.DirEntry{
				Name:     name,
				LongName: backend.FormatLongName(name, attrs),
				Attrs:    attrs,
			})
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	h := backend.Handle(uuid.NewString())
	b.mu.Lock()
	b.handles[h] = &openState{path: p, dir: true, entries: entries}
	b.mu.Unlock()
	return h, nil
}

func (b *Backend) Readdir(ctx context.Context, h backend.Handle) ([]backend.DirEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.handles[h]
	if !ok {
		return nil, backend.ErrorInvalidHandle(h)
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

func (b *Backend) Mkdir(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	p = path.Clean("/" + p)

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := getMeta(txn, p); err == nil {
			return backend.ErrorFailure(p + ": file exists")
		}

		parent, name, err := parentOf(p)
		if err != nil {
			return err
		}
		parentMeta, err := getMeta(txn, parent)
		if err != nil {
			return err
		}
		if !parentMeta.Dir {
			return backend.ErrorNotFound(p)
		}

		mode := uint32(0o755)
		if attrs != nil && attrs.Permissions != nil {
			mode = *attrs.Permissions & backend.ModePerm
		}
		now := uint32(time.Now().Unix())
		meta := &fileMeta{Dir: true, Mode: mode, Atime: now, Mtime: now}
		if err := putMeta(txn, p, meta); err != nil {
			return err
		}
		if err := txn.Set(childKey(parent, name), nil); err != nil {
			return backend.ErrorFailure(err.Error())
		}
		parentMeta.Mtime = now
		return putMeta(txn, parent, parentMeta)
	})
}

// removeLeaf deletes one node and its parent index entry inside txn.
func removeLeaf(txn *badger.Txn, p string) error {
	parent, name, err := parentOf(p)
	if err != nil {
		return err
	}
	for _, key := range [][]byte{metaKey(p), dataKey(p), childKey(parent, name)} {
		if err := txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
			return backend.ErrorFailure(err.Error())
		}
	}

	parentMeta, err := getMeta(txn, parent)
	if err != nil {
		return err
	}
	parentMeta.Mtime = uint32(time.Now().Unix())
	return putMeta(txn, parent, parentMeta)
}

func (b *Backend) Remove(ctx context.Context, p string) error {
	p = path.Clean("/" + p)

	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, p)
		if err != nil {
			return err
		}
		if meta.Dir {
			return backend.ErrorFailure(p + ": is a directory")
		}
		return removeLeaf(txn, p)
	})
}

func (b *Backend) Rmdir(ctx context.Context, p string) error {
	p = path.Clean("/" + p)

	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, p)
		if err != nil {
			return err
		}
		if !meta.Dir {
			return backend.ErrorFailure(p + ": not a directory")
		}
		if len(listChildren(txn, p)) > 0 {
			return backend.ErrorFailure(p + ": directory not empty")
		}
		return removeLeaf(txn, p)
	})
}

func (b *Backend) Rename(ctx context.Context, oldpath, newpath string) error {
	oldpath = path.Clean("/" + oldpath)
	newpath = path.Clean("/" + newpath)

	if oldpath == newpath {
		return nil
	}
	if strings.HasPrefix(newpath, oldpath+"/") {
		return backend.ErrorFailure("cannot move a directory into itself")
	}

	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, oldpath)
		if err != nil {
			return err
		}
		if _, err := getMeta(txn, newpath); err == nil {
			return backend.ErrorFailure(newpath + ": file exists")
		}

		newParent, newName, err := parentOf(newpath)
		if err != nil {
			return err
		}
		newParentMeta, err := getMeta(txn, newParent)
		if err != nil {
			return err
		}
		if !newParentMeta.Dir {
			return backend.ErrorNotFound(newpath)
		}

		// Collect the subtree before mutating: the node itself plus every
		// descendant path.
		paths := []string{oldpath}
		if meta.Dir {
			paths = append(paths, descendants(txn, oldpath)...)
		}

		for _, oldSub := range paths {
			newSub := newpath + strings.TrimPrefix(oldSub, oldpath)
			if err := moveNode(txn, oldSub, newSub); err != nil {
				return err
			}
		}

		oldParent, oldName, err := parentOf(oldpath)
		if err != nil {
			return err
		}
		if err := txn.Delete(childKey(oldParent, oldName)); err != nil && err != badger.ErrKeyNotFound {
			return backend.ErrorFailure(err.Error())
		}
		if err := txn.Set(childKey(newParent, newName), nil); err != nil {
			return backend.ErrorFailure(err.Error())
		}

		now := uint32(time.Now().Unix())
		if oldParent != newParent {
			oldParentMeta, err := getMeta(txn, oldParent)
			if err != nil {
				return err
			}
			oldParentMeta.Mtime = now
			if err := putMeta(txn, oldParent, oldParentMeta); err != nil {
				return err
			}
		}
		newParentMeta.Mtime = now
		return putMeta(txn, newParent, newParentMeta)
	})
}

// descendants lists every path strictly below p, collected from the
// metadata namespace.
func descendants(txn *badger.Txn, p string) []string {
	prefix := metaKey(p + "/")

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var paths []string
	for it.Rewind(); it.Valid(); it.Next() {
		paths = append(paths, p+"/"+string(it.Item().Key()[len(prefix):]))
	}
	return paths
}

// moveNode relocates one record: metadata, content, and its child index
// entries if it is a directory.
func moveNode(txn *badger.Txn, oldp, newp string) error {
	meta, err := getMeta(txn, oldp)
	if err != nil {
		return err
	}
	if err := putMeta(txn, newp, meta); err != nil {
		return err
	}
	if err := txn.Delete(metaKey(oldp)); err != nil {
		return backend.ErrorFailure(err.Error())
	}

	if !meta.Dir {
		content, err := getData(txn, oldp)
		if err != nil {
			return err
		}
		if content != nil {
			if err := txn.Set(dataKey(newp), content); err != nil {
				return backend.ErrorFailure(err.Error())
			}
			if err := txn.Delete(dataKey(oldp)); err != nil {
				return backend.ErrorFailure(err.Error())
			}
		}
		return nil
	}

	for _, name := range listChildren(txn, oldp) {
		if err := txn.Delete(childKey(oldp, name)); err != nil {
			return backend.ErrorFailure(err.Error())
		}
		if err := txn.Set(childKey(newp, name), nil); err != nil {
			return backend.ErrorFailure(err.Error())
		}
	}
	return nil
}
