package local

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

func (b *Backend) Open(ctx context.Context, p string, flags int, attrs *backend.FileAttributes) (backend.Handle, error) {
	mode := os.FileMode(0o644)
	if attrs != nil && attrs.Permissions != nil {
		mode = os.FileMode(*attrs.Permissions & backend.ModePerm)
	}

	f, err := os.OpenFile(p, flags, mode)
	if err != nil {
		return "", wrapErr(p, err)
	}

	h := backend.Handle(uuid.NewString())
	b.mu.Lock()
	b.files[h] = &openFile{f: f, appends: flags&os.O_APPEND != 0}
	b.mu.Unlock()
	return h, nil
}

func (b *Backend) Close(ctx context.Context, h backend.Handle) error {
	b.mu.Lock()
	of, isFile := b.files[h]
	dc, isDir := b.dirs[h]
	delete(b.files, h)
	delete(b.dirs, h)
	b.mu.Unlock()

	switch {
	case isFile:
		return wrapErr(of.f.Name(), of.f.Close())
	case isDir:
		return wrapErr(dc.f.Name(), dc.f.Close())
	default:
		return backend.ErrorInvalidHandle(h)
	}
}

func (b *Backend) Read(ctx context.Context, h backend.Handle, offset uint64, length uint32) ([]byte, error) {
	of, err := b.getFile(h)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	n, readErr := of.f.ReadAt(buf, int64(offset))
	if n > 0 {
		// A short read at the end of the file still carries data. The
		// client sees EOF on its next request.
		return buf[:n], nil
	}
	if readErr == io.EOF {
		return nil, backend.ErrorEOF()
	}
	return nil, wrapErr(of.f.Name(), readErr)
}

func (b *Backend) Write(ctx context.Context, h backend.Handle, offset uint64, data []byte) error {
	of, err := b.getFile(h)
	if err != nil {
		return err
	}

	var writeErr error
	if of.appends {
		_, writeErr = of.f.Write(data)
	} else {
		_, writeErr = of.f.WriteAt(data, int64(offset))
	}
	return wrapErr(of.f.Name(), writeErr)
}

func (b *Backend) Lstat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return nil, wrapErr(p, err)
	}
	return backend.NewFileAttributes(info), nil
}

func (b *Backend) Stat(ctx context.Context, p string) (*backend.FileAttributes, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, wrapErr(p, err)
	}
	return backend.NewFileAttributes(info), nil
}

func (b *Backend) Fstat(ctx context.Context, h backend.Handle) (*backend.FileAttributes, error) {
	of, err := b.getFile(h)
	if err != nil {
		return nil, err
	}

	info, statErr := of.f.Stat()
	if statErr != nil {
		return nil, wrapErr(of.f.Name(), statErr)
	}
	return backend.NewFileAttributes(info), nil
}

func (b *Backend) Setstat(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	if attrs == nil {
		return nil
	}
	if attrs.Size != nil {
		if err := os.Truncate(p, int64(*attrs.Size)); err != nil {
			return wrapErr(p, err)
		}
	}
	if attrs.Permissions != nil {
		if err := os.Chmod(p, os.FileMode(*attrs.Permissions&backend.ModePerm)); err != nil {
			return wrapErr(p, err)
		}
	}
	if attrs.UID != nil && attrs.GID != nil {
		if err := os.Chown(p, int(*attrs.UID), int(*attrs.GID)); err != nil {
			return wrapErr(p, err)
		}
	}
	if attrs.AccessTime != nil && attrs.ModifyTime != nil {
		atime := time.Unix(int64(*attrs.AccessTime), 0)
		mtime := time.Unix(int64(*attrs.ModifyTime), 0)
		if err := os.Chtimes(p, atime, mtime); err != nil {
			return wrapErr(p, err)
		}
	}
	return nil
}

func (b *Backend) Fsetstat(ctx context.Context, h backend.Handle, attrs *backend.FileAttributes) error {
	of, err := b.getFile(h)
	if err != nil {
		return err
	}
	if attrs == nil {
		return nil
	}

	name := of.f.Name()
	if attrs.Size != nil {
		if err := of.f.Truncate(int64(*attrs.Size)); err != nil {
			return wrapErr(name, err)
		}
	}
	if attrs.Permissions != nil {
		if err := of.f.Chmod(os.FileMode(*attrs.Permissions & backend.ModePerm)); err != nil {
			return wrapErr(name, err)
		}
	}
	if attrs.UID != nil && attrs.GID != nil {
		if err := of.f.Chown(int(*attrs.UID), int(*attrs.GID)); err != nil {
			return wrapErr(name, err)
		}
	}
	if attrs.AccessTime != nil && attrs.ModifyTime != nil {
		atime := time.Unix(int64(*attrs.AccessTime), 0)
		mtime := time.Unix(int64(*attrs.ModifyTime), 0)
		if err := os.Chtimes(name, atime, mtime); err != nil {
			return wrapErr(name, err)
		}
	}
	return nil
}

func (b *Backend) Opendir(ctx context.Context, p string) (backend.Handle, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", wrapErr(p, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return "", wrapErr(p, err)
	}
	if !info.IsDir() {
		f.Close()
		return "", backend.ErrorFailure(p + ": not a directory")
	}

	h := backend.Handle(uuid.NewString())
	b.mu.Lock()
	b.dirs[h] = &dirCursor{f: f}
	b.mu.Unlock()
	return h, nil
}

func (b *Backend) Readdir(ctx context.Context, h backend.Handle) ([]backend.DirEntry, error) {
	dc, err := b.getDir(h)
	if err != nil {
		return nil, err
	}
	if dc.exhausted {
		return nil, backend.ErrorEOF()
	}

	osEntries, readErr := dc.f.ReadDir(readdirBatchSize)
	if readErr == io.EOF || len(osEntries) == 0 {
		dc.exhausted = true
		if len(osEntries) == 0 {
			return nil, backend.ErrorEOF()
		}
	} else if readErr != nil {
		return nil, wrapErr(dc.f.Name(), readErr)
	}

	entries := make([]backend.DirEntry, 0, len(osEntries))
	for _, e := range osEntries {
		var attrs *backend.FileAttributes
		if info, err := e.Info(); err == nil {
			attrs = backend.NewFileAttributes(info)
		} else {
			// The entry vanished between the listing and the stat. Report
			// it with empty attributes rather than failing the batch.
			attrs = &backend.FileAttributes{}
		}
		entries = append(entries, backend.DirEntry{
			Name:     e.Name(),
			LongName: backend.FormatLongName(e.Name(), attrs),
			Attrs:    attrs,
		})
	}
	return entries, nil
}

func (b *Backend) Remove(ctx context.Context, p string) error {
	info, err := os.Lstat(p)
	if err != nil {
		return wrapErr(p, err)
	}
	if info.IsDir() {
		return backend.ErrorFailure(p + ": is a directory")
	}
	return wrapErr(p, os.Remove(p))
}

func (b *Backend) Mkdir(ctx context.Context, p string, attrs *backend.FileAttributes) error {
	mode := os.FileMode(0o755)
	if attrs != nil && attrs.Permissions != nil {
		mode = os.FileMode(*attrs.Permissions & backend.ModePerm)
	}
	return wrapErr(p, os.Mkdir(p, mode))
}

func (b *Backend) Rmdir(ctx context.Context, p string) error {
	info, err := os.Lstat(p)
	if err != nil {
		return wrapErr(p, err)
	}
	if !info.IsDir() {
		return backend.ErrorFailure(p + ": not a directory")
	}
	return wrapErr(p, os.Remove(p))
}

// Realpath canonicalizes the client-visible path. The result stays in the
// client's namespace; the jail root is never revealed.
func (b *Backend) Realpath(ctx context.Context, p string) (string, error) {
	return path.Clean("/" + p), nil
}

func (b *Backend) Rename(ctx context.Context, oldpath, newpath string) error {
	// Refuse to clobber an existing target. Clients that want overwrite
	// semantics remove the target first.
	if _, err := os.Lstat(newpath); err == nil {
		return backend.ErrorFailure(newpath + ": file exists")
	}
	return wrapErr(oldpath, os.Rename(oldpath, newpath))
}

func (b *Backend) Readlink(ctx context.Context, p string) (string, error) {
	target, err := os.Readlink(p)
	if err != nil {
		return "", wrapErr(p, err)
	}
	return target, nil
}

func (b *Backend) Symlink(ctx context.Context, linkpath, targetpath string) error {
	return wrapErr(linkpath, os.Symlink(targetpath, linkpath))
}
