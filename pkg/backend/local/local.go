// Package local implements a storage backend on top of the operating system
// filesystem. The backend is bound to a base directory at construction and
// every session is jailed under it: client paths are cleaned against "/"
// before being joined to the base, so ".." sequences can never climb out.
package local

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// readdirBatchSize is the number of entries returned per READDIR call.
// OpenSSH uses a similar batch to keep NAME responses comfortably under the
// packet limit.
const readdirBatchSize = 100

// Backend serves files from a directory on the local filesystem. It
// implements backend.Backend along with the readlink, symlink, and extended
// capabilities.
type Backend struct {
	base string

	mu    sync.Mutex
	files map[backend.Handle]*openFile
	dirs  map[backend.Handle]*dirCursor
}

type openFile struct {
	f *os.File
	// WriteAt is rejected on O_APPEND descriptors, so append-mode handles
	// go through Write instead.
	appends bool
}

type dirCursor struct {
	f         *os.File
	exhausted bool
}

// New creates a local filesystem backend serving files under base.
func New(base string) *Backend {
	return &Backend{
		base:  base,
		files: map[backend.Handle]*openFile{},
		dirs:  map[backend.Handle]*dirCursor{},
	}
}

// ResolvePath jails the client path under the backend's base directory. The
// session root selects a virtual subtree inside the base; both the root and
// the client path are cleaned against "/", so neither can escape the base.
func (b *Backend) ResolvePath(root, p string) (string, error) {
	if b.base == "" {
		return "", backend.ErrorFailure("no base directory configured")
	}
	virtual := path.Join("/", root, path.Clean("/"+p))
	return filepath.Join(b.base, filepath.FromSlash(virtual)), nil
}

// wrapErr maps operating system errors onto the backend error taxonomy.
func wrapErr(p string, err error) error {
	if err == nil {
		return nil
	}

	var domainErr *backend.Error
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return backend.ErrorNotFound(p)
	case errors.Is(err, fs.ErrPermission):
		return backend.ErrorPermissionDenied(p)
	case errors.Is(err, fs.ErrExist):
		return backend.ErrorFailure(p + ": file exists")
	default:
		return backend.ErrorFailure(err.Error())
	}
}

func (b *Backend) getFile(h backend.Handle) (*openFile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	of, ok := b.files[h]
	if !ok {
		return nil, backend.ErrorInvalidHandle(h)
	}
	return of, nil
}

func (b *Backend) getDir(h backend.Handle) (*dirCursor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dc, ok := b.dirs[h]
	if !ok {
		return nil, backend.ErrorInvalidHandle(h)
	}
	return dc, nil
}
