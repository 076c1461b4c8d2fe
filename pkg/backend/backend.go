// Package backend defines the storage contract the SFTP protocol engine
// delegates to.
//
// The engine (internal/protocol/sftp) owns the wire format and the
// request/response state machine; everything that touches actual storage
// lives behind the Backend interface. Implementations own all open-handle
// state, path normalization, and access control. The engine only threads
// opaque handle tokens and path strings between requests.
//
// Every operation may fail with a *Error (a domain error carrying a status
// category and a log severity) or with any other error, which the engine
// reports to the client as a generic failure.
package backend

import (
	"context"
	"io"
)

// Handle is an opaque token identifying an open file or directory cursor.
//
// Handles are minted and owned entirely by the backend. The engine never
// interprets their contents and holds no handle table; a handle is valid
// from Open/Opendir until the matching Close.
type Handle string

// Extension is a (name, data) pair exchanged during version negotiation.
// The engine does not interpret extensions; they are carried verbatim.
type Extension struct {
	Name string
	Data string
}

// Identity describes the user a session runs as.
//
// The engine receives the identity explicitly from the embedding host
// (config or process owner) and forwards it to InitSession; it performs no
// ambient user lookups itself.
type Identity struct {
	Username string
	UID      uint32
	GID      uint32
}

// DirEntry is a single directory listing entry: the entry path, a
// human-readable long form (ls -l style), and its attributes.
type DirEntry struct {
	Name     string
	LongName string
	Attrs    *FileAttributes
}

// Backend is the storage collaborator for one SFTP session.
//
// All blocking operations take a context; implementations should abort
// promptly when it is cancelled. Operations must be safe for sequential use
// by one session; synchronization across sessions sharing state is the
// implementation's responsibility.
type Backend interface {
	// InitSession is called once, during version negotiation, with the
	// client-announced protocol version, the session identity, and the
	// client's extensions. The returned extensions are advertised back to
	// the client in the VERSION response.
	InitSession(ctx context.Context, clientVersion uint32, identity Identity, clientExts []Extension) ([]Extension, error)

	// ResolvePath combines the configured root with a client-supplied path.
	// The backend owns normalization and sandboxing of the result.
	ResolvePath(root, path string) (string, error)

	// Open opens or creates a file. flags is an os.O_* access mask already
	// translated from wire pflags; attrs carries requested initial
	// attributes (may be empty).
	Open(ctx context.Context, path string, flags int, attrs *FileAttributes) (Handle, error)

	// Close releases a handle obtained from Open or Opendir.
	Close(ctx context.Context, handle Handle) error

	// Read reads up to length bytes from the given offset. At end of file it
	// returns a *Error with code ErrEOF.
	Read(ctx context.Context, handle Handle, offset uint64, length uint32) ([]byte, error)

	// Write writes data at the given offset. Short writes must be reported
	// as errors; a nil return means every byte was stored.
	Write(ctx context.Context, handle Handle, offset uint64, data []byte) error

	// Lstat returns attributes without following a trailing symlink.
	Lstat(ctx context.Context, path string) (*FileAttributes, error)

	// Stat returns attributes, following symlinks.
	Stat(ctx context.Context, path string) (*FileAttributes, error)

	// Fstat returns attributes for an open handle.
	Fstat(ctx context.Context, handle Handle) (*FileAttributes, error)

	// Setstat applies the attributes present in attrs to a path.
	Setstat(ctx context.Context, path string, attrs *FileAttributes) error

	// Fsetstat applies the attributes present in attrs to an open handle.
	Fsetstat(ctx context.Context, handle Handle, attrs *FileAttributes) error

	// Opendir opens a directory cursor.
	Opendir(ctx context.Context, path string) (Handle, error)

	// Readdir returns the next batch of entries for a directory cursor.
	// When the cursor is exhausted it returns a *Error with code ErrEOF.
	Readdir(ctx context.Context, handle Handle) ([]DirEntry, error)

	// Remove removes a file (not a directory).
	Remove(ctx context.Context, path string) error

	// Mkdir creates a directory with the requested attributes.
	Mkdir(ctx context.Context, path string, attrs *FileAttributes) error

	// Rmdir removes an empty directory.
	Rmdir(ctx context.Context, path string) error

	// Realpath canonicalizes a path.
	Realpath(ctx context.Context, path string) (string, error)

	// Rename moves oldpath to newpath.
	Rename(ctx context.Context, oldpath, newpath string) error
}

// ReadlinkCapable is implemented by backends that support reading symbolic
// links. The engine accepts READLINK requests only when the backend
// implements this interface; otherwise it answers OP_UNSUPPORTED without a
// backend call.
type ReadlinkCapable interface {
	Readlink(ctx context.Context, path string) (string, error)
}

// SymlinkCapable is implemented by backends that support creating symbolic
// links. Gated the same way as ReadlinkCapable.
type SymlinkCapable interface {
	// Symlink creates linkpath pointing at targetpath. Note the argument
	// order matches the backend contract, not the wire order (the wire
	// carries target first).
	Symlink(ctx context.Context, linkpath, targetpath string) error
}

// ExtendedCapable is implemented by backends that handle EXTENDED requests.
//
// This is an explicit escape hatch from the one-call-one-response pattern:
// by the time Extended is invoked the engine has already contributed the
// response tag and the echoed request id to the pending response frame. The
// handler reads its own payload from req (the unread remainder of the
// request frame) and appends its reply payload to resp. The engine flushes
// the assembled frame exactly once after Extended returns; returning an
// error abandons the pending payload and produces a STATUS response instead.
type ExtendedCapable interface {
	Extended(ctx context.Context, name string, req io.Reader, resp io.Writer) error
}
