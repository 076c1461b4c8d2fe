// Package badgerfs implements a storage backend on BadgerDB. The whole tree
// lives in one key-value store, which makes it a good fit for single-node
// deployments that want durability without managing a directory hierarchy
// on disk.
//
// Key layout, all paths cleaned and absolute:
//
//	m:<path>            JSON-encoded metadata record
//	c:<path>            raw file content
//	d:<parent>\x00<name> child index entry, empty value
//
// The child index exists so directory listings are a prefix scan instead of
// a scan of the entire metadata namespace. The NUL separator cannot appear
// in a path component, so prefixes never collide.
package badgerfs

import (
	"encoding/json"
	"path"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/LazuliKao/SFTPServer/pkg/backend"
)

// readdirBatchSize is the number of entries returned per READDIR call.
const readdirBatchSize = 64

// Options configures where the store keeps its data.
type Options struct {
	// Path is the Badger data directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps the store in RAM. Used by tests.
	InMemory bool
}

type fileMeta struct {
	Dir   bool   `json:"dir"`
	Mode  uint32 `json:"mode"`
	UID   uint32 `json:"uid"`
	GID   uint32 `json:"gid"`
	Size  uint64 `json:"size"`
	Atime uint32 `json:"atime"`
	Mtime uint32 `json:"mtime"`
}

type openState struct {
	path    string
	writing bool
	appends bool

	dir     bool
	entries []backend.DirEntry
	pos     int
}

// Backend stores the file tree in a Badger database.
type Backend struct {
	db *badger.DB

	mu      sync.Mutex
	handles map[backend.Handle]*openState
}

// New opens (or creates) the store and makes sure the root directory
// record exists.
func New(opts Options) (*Backend, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		db:      db,
		handles: map[backend.Handle]*openState{},
	}

	err = db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey("/")); err == nil {
			return nil
		}
		now := uint32(time.Now().Unix())
		return putMeta(txn, "/", &fileMeta{Dir: true, Mode: 0o755, Atime: now, Mtime: now})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Shutdown flushes and closes the underlying database.
func (b *Backend) Shutdown() error {
	return b.db.Close()
}

func metaKey(p string) []byte {
	return append([]byte("m:"), p...)
}

func dataKey(p string) []byte {
	return append([]byte("c:"), p...)
}

func childKey(parent, name string) []byte {
	key := append([]byte("d:"), parent...)
	key = append(key, 0)
	return append(key, name...)
}

func childPrefix(parent string) []byte {
	key := append([]byte("d:"), parent...)
	return append(key, 0)
}

func getMeta(txn *badger.Txn, p string) (*fileMeta, error) {
	item, err := txn.Get(metaKey(p))
	if err == badger.ErrKeyNotFound {
		return nil, backend.ErrorNotFound(p)
	}
	if err != nil {
		return nil, backend.ErrorFailure(err.Error())
	}

	var meta fileMeta
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, backend.ErrorFailure(err.Error())
	}
	return &meta, nil
}

func putMeta(txn *badger.Txn, p string, meta *fileMeta) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return backend.ErrorFailure(err.Error())
	}
	return txn.Set(metaKey(p), encoded)
}

func getData(txn *badger.Txn, p string) ([]byte, error) {
	item, err := txn.Get(dataKey(p))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, backend.ErrorFailure(err.Error())
	}
	return item.ValueCopy(nil)
}

func (meta *fileMeta) attrs() *backend.FileAttributes {
	perm := meta.Mode & backend.ModePerm
	if meta.Dir {
		perm |= backend.ModeDir
	} else {
		perm |= backend.ModeRegular
	}

	size := meta.Size
	if meta.Dir {
		size = 4096
	}

	return &backend.FileAttributes{
		Size:        &size,
		UID:         backend.U32(meta.UID),
		GID:         backend.U32(meta.GID),
		Permissions: &perm,
		AccessTime:  backend.U32(meta.Atime),
		ModifyTime:  backend.U32(meta.Mtime),
	}
}

// parentOf rejects the root and splits a path into parent and leaf name.
func parentOf(p string) (string, string, error) {
	p = path.Clean("/" + p)
	if p == "/" {
		return "", "", backend.ErrorBadMessage("cannot address the root this way")
	}
	return path.Dir(p), path.Base(p), nil
}

func (b *Backend) getHandle(h backend.Handle) (*openState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.handles[h]
	if !ok {
		return nil, backend.ErrorInvalidHandle(h)
	}
	return state, nil
}
