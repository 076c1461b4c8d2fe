package badgerfs

import (
	"context"
	"os"
	"path"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func (b *Backend) InitSession(ctx context.Context, clientVersion uint32, identity backend.Identity, clientExts []backend.Extension) ([]backend.Extension, error) {
	return nil, nil
}

func (b *Backend) ResolvePath(root, p string) (string, error) {
	if root == "" {
		root = "/"
	}
	return path.Join(root, path.Clean("/"+p)), nil
}

func (b *Backend) Open(ctx context.Context, p string, flags int, attrs *backend.FileAttributes) (backend.Handle, error) {
	p = path.Clean("/" + p)

	err := b.db.Update(func(txn *badger.Txn) error {
		meta, lookupErr := getMeta(txn, p)
		switch {
		case lookupErr == nil:
			if flags&os.O_EXCL != 0 {
				return backend.ErrorFailure(p + ": file exists")
			}
			if meta.Dir {
				return backend.ErrorFailure(p + ": is a directory")
			}
			if flags&os.O_TRUNC != 0 {
				meta.Size = 0
				meta.Mtime = uint32(time.Now().Unix())
				if err := txn.Delete(dataKey(p)); err != nil {
					return backend.ErrorFailure(err.Error())
				}
				return putMeta(txn, p, meta)
			}
			return nil

		case flags&os.O_CREATE != 0:
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

			mode := uint32(0o644)
			if attrs != nil && attrs.Permissions != nil {
				mode = *attrs.Permissions & backend.ModePerm
			}
			now := uint32(time.Now().Unix())
			meta := &fileMeta{Mode: mode, Atime: now, Mtime: now}
			if attrs != nil && attrs.UID != nil && attrs.GID != nil {
				meta.UID = *attrs.UID
				meta.GID = *attrs.GID
			}
			if err := putMeta(txn, p, meta); err != nil {
				return err
			}
			if err := txn.Set(childKey(parent, name), nil); err != nil {
				return backend.ErrorFailure(err.Error())
			}
			parentMeta.Mtime = now
			return putMeta(txn, parent, parentMeta)

		default:
			return lookupErr
		}
	})
	if err != nil {
		return "", err
	}

	h := backend.Handle(uuid.NewString())
	b.mu.Lock()
	b.handles[h] = &openState{
		path:    p,
		writing: flags&(os.O_WRONLY|os.O_RDWR) != 0,
		appends: flags&os.O_APPEND != 0,
	}
	b.mu.Unlock()
	return h, nil
}

func (b *Backend) Close(ctx context.Context, h backend.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handles[h]; !ok {
		return backend.ErrorInvalidHandle(h)
	}
	delete(b.handles, h)
	return nil
}

func (b *Backend) Read(ctx context.Context, h backend.Handle, offset uint64, length uint32) ([]byte, error) {
	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	if state.dir {
		return nil, backend.ErrorInvalidHandle(h)
	}

	var out []byte
	err = b.db.View(func(txn *badger.Txn) error {
		if _, err := getMeta(txn, state.path); err != nil {
			return err
		}
		data, err := getData(txn, state.path)
		if err != nil {
			return err
		}
		if offset >= uint64(len(data)) {
			return backend.ErrorEOF()
		}
		end := offset + uint64(length)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		out = data[offset:end]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) Write(ctx context.Context, h backend.Handle, offset uint64, data []byte) error {
	state, err := b.getHandle(h)
	if err != nil {
		return err
	}
	if state.dir || !state.writing {
		return backend.ErrorInvalidHandle(h)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, state.path)
		if err != nil {
			return err
		}
		content, err := getData(txn, state.path)
		if err != nil {
			return err
		}

		if state.appends {
			offset = uint64(len(content))
		}
		if need := offset + uint64(len(data)); need > uint64(len(content)) {
			grown := make([]byte, need)
			copy(grown, content)
			content = grown
		}
		copy(content[offset:], data)

		if err := txn.Set(dataKey(state.path), content); err != nil {
			return backend.ErrorFailure(err.Error())
		}
		meta.Size = uint64(len(content))
		meta.Mtime = uint32(time.Now().Unix())
		return putMeta(txn, state.path, meta)
	})
}

func (b *Backend) stat(p string) (*backend.FileAttributes, error) {
	var attrs *backend.FileAttributes
	err := b.db.View(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, path.Clean("/"+p))
		if err != nil {
			return err
		}
		attrs = meta.attrs()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// Lstat equals Stat because the store has no symlinks.
func (b *Backend) Lstat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	return b.stat(p)
}

func (b *Backend) Stat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	return b.stat(p)
}

func (b *Backend) Fstat(ctx context.Context, h backend.Handle) (*backend.FileAttributes, error) {
	state, err := b.getHandle(h)
	if err != nil {
		return nil, err
	}
	return b.stat(state.path)
}

func (b *Backend) setstat(p string, attrs *backend.FileAttributes) error {
	if attrs == nil {
		return nil
	}
	p = path.Clean("/" + p)

	return b.db.Update(func(txn *badger.Txn) error {
		meta, err := getMeta(txn, p)
		if err != nil {
			return err
		}

		if attrs.Size != nil && !meta.Dir && *attrs.Size != meta.Size {
			content, err := getData(txn, p)
			if err != nil {
				return err
			}
			resized := make([]byte, *attrs.Size)
			copy(resized, content)
			if err := txn.Set(dataKey(p), resized); err != nil {
				return backend.ErrorFailure(err.Error())
			}
			meta.Size = *attrs.Size
		}
		if attrs.Permissions != nil {
			meta.Mode = *attrs.Permissions & backend.ModePerm
		}
		if attrs.UID != nil && attrs.GID != nil {
			meta.UID = *attrs.UID
			meta.GID = *attrs.GID
		}
		if attrs.AccessTime != nil && attrs.ModifyTime != nil {
			meta.Atime = *attrs.AccessTime
			meta.Mtime = *attrs.ModifyTime
		}
		return putMeta(txn, p, meta)
	})
}

func (b *Backend) Setstat(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	return b.setstat(p, attrs)
}

func (b *Backend) Fsetstat(ctx context.Context, h backend.Handle, attrs *backend.FileAttributes) error {
	state, err := b.getHandle(h)
	if err != nil {
		return err
	}
	return b.setstat(state.path, attrs)
}

func (b *Backend) Realpath(ctx context.Context, p string) (string, error) {
	return path.Clean("/" + p), nil
}
